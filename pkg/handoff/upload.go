// Package handoff gets a finished composite onto the visitor's phone: the
// image is uploaded and the returned link is shown as a QR code.
package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"
)

// ErrUpload is wrapped by every failed upload, whatever the cause.
var ErrUpload = errors.New("upload failed")

// DefaultTimeout bounds one upload round trip.
const DefaultTimeout = 30 * time.Second

// Uploader posts images to an upload endpoint as multipart field "file".
type Uploader struct {
	URL    string
	Client *http.Client
}

// NewUploader returns an uploader for endpoint. A nil client gets one with DefaultTimeout.
func NewUploader(endpoint string, client *http.Client) *Uploader {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Uploader{URL: endpoint, Client: client}
}

type uploadResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Upload sends data under filename and returns the public URL from the reply.
func (u *Uploader) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType(filename))
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("create part: %w", errors.Join(ErrUpload, err))
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write part: %w", errors.Join(ErrUpload, err))
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", errors.Join(ErrUpload, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, &body)
	if err != nil {
		return "", fmt.Errorf("request: %w", errors.Join(ErrUpload, err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	klog.V(1).Infof("uploading %s (%d bytes) to %s", filename, len(data), u.URL)
	resp, err := u.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", u.URL, errors.Join(ErrUpload, err))
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read reply: %w", errors.Join(ErrUpload, err))
	}

	var r uploadResponse
	jerr := json.Unmarshal(bs, &r)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := r.Error
		if jerr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("%w: %s returned %d: %s", ErrUpload, u.URL, resp.StatusCode, msg)
	}
	if jerr != nil {
		return "", fmt.Errorf("%w: decode reply: %v", ErrUpload, jerr)
	}
	if r.URL == "" {
		return "", fmt.Errorf("%w: reply carries no url", ErrUpload)
	}

	klog.Infof("uploaded %s: %s", filename, r.URL)
	return r.URL, nil
}

func contentType(filename string) string {
	switch filepath.Ext(filename) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return "application/octet-stream"
}
