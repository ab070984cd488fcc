package intake

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/dunamismax/iconforge/internal/storage"
)

// Upload is a source file staged under a request token.
type Upload struct {
	Token    string
	Filename string
	Key      string
	Size     int64
}

// Intake stages multipart uploads into storage byte for byte. It does not
// look at the content; decoding is the only format gate.
type Intake struct {
	store    storage.Store
	maxBytes int64
}

func New(store storage.Store, maxBytes int64) *Intake {
	return &Intake{store: store, maxBytes: maxBytes}
}

// Stage persists the file behind header at uploads/{token}/{filename}. A nil
// header or a blank filename yields domain.ErrNoFile.
func (i *Intake) Stage(ctx context.Context, token string, header *multipart.FileHeader) (Upload, error) {
	if header == nil || strings.TrimSpace(header.Filename) == "" {
		return Upload{}, domain.ErrNoFile
	}
	if i.maxBytes > 0 && header.Size > i.maxBytes {
		return Upload{}, fmt.Errorf("%w: upload is %d bytes, limit %d", domain.ErrImageTooLarge, header.Size, i.maxBytes)
	}

	file, err := header.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	return i.StageReader(ctx, token, header.Filename, file)
}

// StageReader is Stage for callers that already hold the file contents.
func (i *Intake) StageReader(ctx context.Context, token, filename string, r io.Reader) (Upload, error) {
	if strings.TrimSpace(filename) == "" || r == nil {
		return Upload{}, domain.ErrNoFile
	}

	reader := r
	if i.maxBytes > 0 {
		reader = io.LimitReader(r, i.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if i.maxBytes > 0 && int64(len(data)) > i.maxBytes {
		return Upload{}, fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrImageTooLarge, i.maxBytes)
	}

	name := storage.SanitizeFilename(filename)
	key := storage.UploadKey(token, name)
	if err := i.store.WriteObject(ctx, key, data, "application/octet-stream"); err != nil {
		return Upload{}, fmt.Errorf("stage upload: %w", err)
	}

	return Upload{
		Token:    token,
		Filename: name,
		Key:      key,
		Size:     int64(len(data)),
	}, nil
}
