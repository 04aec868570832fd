package handoff

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"
)

// Messages shown to the visitor when sharing fails.
const (
	UploadFailedMessage = "The picture could not be uploaded. Please try again or download it instead."
	QRFailedMessage     = "The link could not be turned into a QR code. Try a simpler background."
)

// Result is what the kiosk shows after a share attempt. On failure URL and
// QR are empty and Message explains what went wrong.
type Result struct {
	URL     string
	QR      []byte
	Message string
}

// OK reports whether the share produced a scannable code.
func (r Result) OK() bool {
	return r.URL != "" && len(r.QR) > 0
}

// Sharer uploads a composite and encodes the returned link.
type Sharer struct {
	Uploader *Uploader
	QRSize   int
}

// Share uploads data and returns the link as a QR code. Only the link is
// ever encoded. The error wraps ErrUpload or ErrQREncode; Result.Message is
// always set when the error is non-nil.
func (s *Sharer) Share(ctx context.Context, filename string, data []byte) (Result, error) {
	url, err := s.Uploader.Upload(ctx, filename, data)
	if err != nil {
		klog.Errorf("share: %v", err)
		return Result{Message: UploadFailedMessage}, err
	}

	qr, err := EncodeQR(url, s.QRSize)
	if err != nil {
		klog.Errorf("share: %v", err)
		return Result{Message: QRFailedMessage}, fmt.Errorf("encode %s: %w", url, err)
	}
	return Result{URL: url, QR: qr}, nil
}

// Message returns the visitor-facing text for a share error.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQREncode):
		return QRFailedMessage
	default:
		return UploadFailedMessage
	}
}
