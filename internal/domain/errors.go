package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrNoImage           = errors.New("no image provided")
	ErrImageTooLarge     = errors.New("image exceeds size limit")
	ErrUnsupportedImage  = errors.New("unsupported image format")
	ErrProviderFailure   = errors.New("provider failure")
	ErrMalformedResponse = errors.New("malformed provider response")
)
