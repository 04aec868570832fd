package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

const (
	thumbDir     = "_"
	thumbHeight  = 180
	thumbQuality = 75
)

// Upload is a stored file as listed on the recent page.
type Upload struct {
	Name    string
	Thumb   string
	Caption string
	Taken   time.Time
	Size    int64
}

// thumbnail writes a small JPEG preview of dir/name into dir/_/.
func thumbnail(dir string, name string) error {
	img, err := imgio.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("imgio.Open: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return fmt.Errorf("empty image %v", b)
	}

	scale := float64(b.Dy()) / float64(thumbHeight)
	x := int(float64(b.Dx()) / scale)
	if x < 1 {
		x = 1
	}

	path := filepath.Join(dir, thumbDir, thumbName(name))
	klog.V(1).Infof("creating %dx%d thumb: %s", x, thumbHeight, path)
	rimg := transform.Resize(img, x, thumbHeight, transform.Lanczos)
	if err := imgio.Save(path, rimg, imgio.JPEGEncoder(thumbQuality)); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func thumbName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + fmt.Sprintf("@y%d.jpg", thumbHeight)
}

// uploadTime parses the timestamp out of a foto-<unix millis><ext> name.
func uploadTime(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, "foto-") {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, "foto-"), filepath.Ext(name)), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Recent returns up to max stored uploads, newest first.
func (s *Server) Recent(max int) ([]Upload, error) {
	found := []Upload{}
	err := godirwalk.Walk(s.dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == s.dir {
				return nil
			}
			if de.IsDir() {
				return godirwalk.SkipThis
			}
			name := filepath.Base(path)
			taken, ok := uploadTime(name)
			if !ok {
				return nil
			}

			fi, err := os.Stat(path)
			if err != nil {
				return err
			}
			u := Upload{Name: name, Taken: taken, Size: fi.Size()}
			if _, err := os.Stat(filepath.Join(s.dir, thumbDir, thumbName(name))); err == nil {
				u.Thumb = thumbDir + "/" + thumbName(name)
			}
			found = append(found, u)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.dir, err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Taken.After(found[j].Taken) })
	if max > 0 && len(found) > max {
		found = found[:max]
	}
	return found, nil
}
