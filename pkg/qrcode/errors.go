package qrcode

import "errors"

var (
	ErrEmptyContent     = errors.New("qrcode: content cannot be empty")
	ErrFailedToGenerate = errors.New("qrcode: failed to generate image")
)
