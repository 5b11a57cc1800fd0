package security

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/pquerna/otp"
)

const qrImageSize = 256

// QRRenderer draws otpauth URIs as PNG QR codes.
type QRRenderer struct {
	size int
}

func NewQRRenderer() *QRRenderer {
	return &QRRenderer{size: qrImageSize}
}

func (r *QRRenderer) RenderQR(uri string) ([]byte, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse provisioning uri: %w", err)
	}
	img, err := key.Image(r.size, r.size)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr png: %w", err)
	}
	return buf.Bytes(), nil
}
