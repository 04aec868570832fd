package sink

import (
	"fmt"
	"time"

	"github.com/barasher/go-exiftool"
	"k8s.io/klog/v2"
)

var exifDate = "2006:01:02 15:04:05"

// Stamper writes capture metadata into stored uploads with exiftool.
type Stamper struct {
	et       *exiftool.Exiftool
	software string
	caption  string
}

// NewStamper starts an exiftool process. caption is written as the image
// description, typically the event name.
func NewStamper(software, caption string) (*Stamper, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("exiftool: %w", err)
	}
	return &Stamper{et: et, software: software, caption: caption}, nil
}

// Stamp sets the software, description and capture date of the file at path.
func (s *Stamper) Stamp(path string, taken time.Time) error {
	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	fm.SetString("Software", s.software)
	fm.SetString("DateTimeOriginal", taken.Format(exifDate))
	if s.caption != "" {
		fm.SetString("ImageDescription", s.caption)
	}

	fms := []exiftool.FileMetadata{fm}
	s.et.WriteMetadata(fms)
	if fms[0].Err != nil {
		return fmt.Errorf("write %q: %w", path, fms[0].Err)
	}
	klog.V(1).Infof("stamped %s", path)
	return nil
}

// Close stops the exiftool process.
func (s *Stamper) Close() error {
	return s.et.Close()
}

// Caption returns the image description stored in the file at path.
func (s *Stamper) Caption(path string) (string, error) {
	fi := s.et.ExtractMetadata(path)[0]
	if fi.Err != nil {
		return "", fmt.Errorf("extract fail for %q: %w", path, fi.Err)
	}
	d, err := fi.GetString("ImageDescription")
	if err != nil {
		return "", fmt.Errorf("get ImageDescription: %w", err)
	}
	return d, nil
}
