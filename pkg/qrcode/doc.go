// Package qrcode renders short strings (typically otpauth:// provisioning
// URIs) as PNG QR codes, either as raw bytes or as a data URI that a client
// can drop straight into an <img> tag.
//
// It wraps github.com/skip2/go-qrcode. The default recovery level is Medium,
// which is what authenticator apps scan reliably at small sizes.
//
//	uri, _ := totp.GetTOTPURI(params)
//	img, err := qrcode.DataURI(uri)
package qrcode
