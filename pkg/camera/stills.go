package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// Stills plays back the images of a directory as camera frames, in name
// order, wrapping around at the end. It stands in for a camera on machines
// without one.
type Stills struct {
	Dir string

	mu    sync.Mutex
	paths []string
	next  int
	open  bool
}

// NewStills returns a source reading frames from dir.
func NewStills(dir string) *Stills {
	return &Stills{Dir: dir}
}

// Open scans the directory. A directory without images counts as a denied camera.
func (s *Stills) Open(_ context.Context) error {
	paths, err := findImages(s.Dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", s.Dir, errors.Join(ErrAccessDenied, err))
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images in %s: %w", s.Dir, ErrAccessDenied)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = paths
	s.next = 0
	s.open = true
	klog.Infof("stills camera open with %d frames from %s", len(paths), s.Dir)
	return nil
}

// Grab decodes the next image.
func (s *Stills) Grab(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	p := s.paths[s.next%len(s.paths)]
	s.next++
	s.mu.Unlock()

	klog.V(1).Infof("stills frame: %s", p)
	img, err := imgio.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return img, nil
}

// Close stops playback.
func (s *Stills) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

func findImages(root string) ([]string, error) {
	found := []string{}
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if filepath.Base(path)[0] == '.' && path != root {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}
			if de.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".jpg", ".jpeg", ".png":
				found = append(found, path)
			}
			return nil
		},
	})
	return found, err
}
