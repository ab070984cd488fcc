package archive

import (
	"bytes"
	"io"
	"testing"

	"github.com/alexmullins/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePlainArchive(t *testing.T) {
	data, err := Bytes([]Entry{
		{Name: "icon_20x20@1x.png", Data: []byte("one")},
		{Name: "nested/dir/icon_83p5x83p5@2x.png", Data: []byte("two")},
	}, "")
	require.NoError(t, err)

	files := readAll(t, data, "")
	assert.Equal(t, map[string]string{
		"icon_20x20@1x.png":     "one",
		"icon_83p5x83p5@2x.png": "two",
	}, files)
}

func TestWriteEncryptedArchive(t *testing.T) {
	data, err := Bytes([]Entry{{Name: "secret.png", Data: []byte("pixels")}}, "hunter2")
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, reader.File, 1)
	assert.True(t, reader.File[0].IsEncrypted())

	files := readAll(t, data, "hunter2")
	assert.Equal(t, "pixels", files["secret.png"])
}

func TestWriteRejectsEmptyAndDuplicates(t *testing.T) {
	_, err := Bytes(nil, "")
	assert.Error(t, err)

	_, err = Bytes([]Entry{{Name: "a.png"}, {Name: "x/a.png"}}, "")
	assert.Error(t, err)
}

func readAll(t *testing.T, data []byte, password string) map[string]string {
	t.Helper()

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string, len(reader.File))
	for _, f := range reader.File {
		if password != "" {
			f.SetPassword(password)
		}
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(body)
	}
	return out
}
