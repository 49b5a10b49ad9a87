// Package qr renders link URLs as PNG QR codes.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// EncodePNG renders the given URL as a PNG QR code. Size is in
// pixels; zero or negative selects the default.
func EncodePNG(url string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultSize
	}
	// Low error correction keeps the module count down; the encoded
	// link is already shortened.
	png, err := qrcode.Encode(url, qrcode.Low, size)
	if err != nil {
		return nil, fmt.Errorf("encoding QR code: %w", err)
	}
	return png, nil
}
