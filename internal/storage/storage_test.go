package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := OutputKey("tok-1", "converted_image.png")
	exists, err := store.ObjectExists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.WriteObject(ctx, key, []byte("png-bytes"), "image/png"))

	exists, err = store.ObjectExists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := store.ReadObject(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestLocalStoreMissingObject(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.ReadObject(context.Background(), "output/nope/file.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	require.NoError(t, store.WriteObject(context.Background(), "../../escape.txt", []byte("x"), ""))
	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err, "dot segments are resolved against the root")

	assert.Error(t, store.WriteObject(context.Background(), "/", []byte("x"), ""))
}

func TestKeysSanitizeClientInput(t *testing.T) {
	assert.Equal(t, "uploads/abc/photo.png", UploadKey("abc", "photo.png"))
	assert.Equal(t, "uploads/abc/passwd", UploadKey("abc", "../../etc/passwd"))
	assert.Equal(t, "uploads/abc/evil.png", UploadKey("abc", `C:\temp\evil.png`))
	assert.Equal(t, "uploads/abc/my_icon_1_.png", UploadKey("abc", "my icon(1).png"))
	assert.Equal(t, "uploads/abc/unknown", UploadKey("abc", ".."))
	assert.Equal(t, "output/a_b/icon_83p5x83p5@2x.png", OutputKey("a/b", "icon_83p5x83p5@2x.png"))
}
