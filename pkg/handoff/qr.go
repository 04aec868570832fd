package handoff

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrQREncode is returned when content does not fit into a QR code.
var ErrQREncode = errors.New("qr encode failed")

// DefaultQRSize is the edge length of the QR image in pixels.
const DefaultQRSize = 250

// EncodeQR renders content as a square PNG QR code of size pixels. The low
// recovery level leaves the most room for content.
func EncodeQR(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	q, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("%d bytes: %w: %v", len(content), ErrQREncode, err)
	}
	bs, err := q.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("png: %w: %v", ErrQREncode, err)
	}
	return bs, nil
}
