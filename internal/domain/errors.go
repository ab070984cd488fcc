package domain

import "errors"

var (
	ErrNoFile        = errors.New("no file uploaded")
	ErrConversion    = errors.New("image conversion failed")
	ErrUnavailable   = errors.New("feature unavailable")
	ErrUnknownFilter = errors.New("unknown filter type")
	ErrImageTooLarge = errors.New("image exceeds pixel limit")
	ErrInvalidSpec   = errors.New("invalid transform spec")
	ErrAssetNotFound = errors.New("asset not found")
	ErrJobNotFound   = errors.New("job not found")
)
