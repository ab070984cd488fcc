package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

var ErrNotFound = errors.New("object not found")

// Store holds staged uploads and derived assets under slash separated keys.
type Store interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

const (
	uploadPrefix = "uploads"
	outputPrefix = "output"
)

func UploadKey(token, filename string) string {
	return path.Join(uploadPrefix, SanitizeToken(token), SanitizeFilename(filename))
}

func OutputKey(token, filename string) string {
	return path.Join(outputPrefix, SanitizeToken(token), SanitizeFilename(filename))
}

// SanitizeFilename keeps the base name of a client supplied filename and
// replaces anything outside [A-Za-z0-9._@-] so it cannot escape its prefix.
func SanitizeFilename(in string) string {
	in = strings.ReplaceAll(in, "\\", "/")
	in = path.Base(strings.TrimSpace(in))
	if in == "." || in == "/" || in == ".." {
		return "unknown"
	}
	out := sanitize(in, func(r rune) bool {
		return r == '.' || r == '@'
	})
	if strings.Trim(out, ".") == "" {
		return "unknown"
	}
	return out
}

func SanitizeToken(in string) string {
	return sanitize(strings.TrimSpace(in), func(rune) bool { return false })
}

func sanitize(in string, extra func(rune) bool) string {
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		case extra(r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
