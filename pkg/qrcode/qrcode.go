package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the image width and height in pixels.
const DefaultSize = 256

const dataURIPrefix = "data:image/png;base64,"

type options struct {
	size  int
	level skipqrcode.RecoveryLevel
}

// Option configures rendering.
type Option func(*options)

// WithSize sets the image size in pixels. Non-positive values are ignored.
func WithSize(px int) Option {
	return func(o *options) {
		if px > 0 {
			o.size = px
		}
	}
}

// WithHighRecovery switches to the highest error correction level.
func WithHighRecovery() Option {
	return func(o *options) { o.level = skipqrcode.Highest }
}

// PNG renders content as a PNG image.
func PNG(content string, opts ...Option) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	o := options{size: DefaultSize, level: skipqrcode.Medium}
	for _, opt := range opts {
		opt(&o)
	}

	img, err := skipqrcode.Encode(content, o.level, o.size)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerate, err)
	}
	return img, nil
}

// DataURI renders content as a base64 PNG data URI.
func DataURI(content string, opts ...Option) (string, error) {
	img, err := PNG(content, opts...)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(img), nil
}
