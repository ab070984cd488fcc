package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/alexmullins/zip"
)

const ContentType = "application/zip"

// Entry is one file to place in an archive.
type Entry struct {
	Name string
	Data []byte
}

// Write bundles entries into a zip stream. When password is non-empty every
// entry is AES-256 encrypted; otherwise entries are deflated.
func Write(w io.Writer, entries []Entry, password string) error {
	if len(entries) == 0 {
		return errors.New("archive requires at least one entry")
	}

	zw := zip.NewWriter(w)
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		name := entryName(entry.Name)
		if seen[name] {
			zw.Close()
			return fmt.Errorf("duplicate archive entry %s", name)
		}
		seen[name] = true

		if err := addEntry(zw, name, entry.Data, password); err != nil {
			zw.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// Bytes is Write into a buffer.
func Bytes(entries []Entry, password string) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, entries, password); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addEntry(zw *zip.Writer, name string, data []byte, password string) error {
	var (
		fw  io.Writer
		err error
	)
	if password != "" {
		fw, err = zw.Encrypt(name, password)
	} else {
		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		header.SetModTime(time.Now().UTC())
		fw, err = zw.CreateHeader(header)
	}
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	return nil
}

func entryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return path.Base(name)
}
