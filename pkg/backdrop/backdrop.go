// Package backdrop keeps the catalog of background images offered at the kiosk.
package backdrop

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/otiai10/copy"
	"k8s.io/klog/v2"
)

// ErrNotFound is returned by Lookup for names outside the catalog.
var ErrNotFound = errors.New("background not found")

// Backdrop is one background image on disk.
type Backdrop struct {
	// Name is the path relative to the catalog root, with forward slashes.
	Name    string
	Path    string
	ModTime time.Time
}

// Catalog lists the images below Root. It is safe for concurrent use.
type Catalog struct {
	Root string

	mu    sync.RWMutex
	items []Backdrop
	dirs  []string
}

// New returns an empty catalog for root; call Reload to fill it.
func New(root string) *Catalog {
	return &Catalog{Root: root}
}

// Reload rescans Root and replaces the listing.
func (c *Catalog) Reload() error {
	found, dirs, err := find(c.Root)
	if err != nil {
		return fmt.Errorf("scan %s: %w", c.Root, err)
	}

	c.mu.Lock()
	c.items = found
	c.dirs = dirs
	c.mu.Unlock()

	klog.Infof("found %d backgrounds in %s", len(found), c.Root)
	return nil
}

// List returns the backgrounds ordered by name.
func (c *Catalog) List() []Backdrop {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Backdrop{}, c.items...)
}

// Lookup returns the background called name. Only catalog entries resolve,
// so a client can never name an arbitrary file.
func (c *Catalog) Lookup(name string) (Backdrop, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.items {
		if b.Name == name {
			return b, nil
		}
	}
	return Backdrop{}, fmt.Errorf("%q: %w", name, ErrNotFound)
}

// Dirs returns the directories seen by the last scan, root first.
func (c *Catalog) Dirs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.dirs) == 0 {
		return []string{c.Root}
	}
	return append([]string{}, c.dirs...)
}

// Install copies the bundled backgrounds in src into dst, unless dst already exists.
func Install(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		klog.V(1).Infof("%s exists, not installing backgrounds", dst)
		return nil
	}
	klog.Infof("installing backgrounds from %s to %s", src, dst)
	if err := copy.Copy(src, dst); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func find(root string) ([]Backdrop, []string, error) {
	found := []Backdrop{}
	dirs := []string{}
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path != root && filepath.Base(path)[0] == '.' {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}
			if de.IsDir() {
				dirs = append(dirs, path)
				return nil
			}
			if !isImage(path) {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			fi, err := os.Stat(path)
			if err != nil {
				klog.Errorf("stat failure: %v", err)
				return err
			}

			klog.V(1).Infof("found %s", path)
			found = append(found, Backdrop{Name: filepath.ToSlash(rel), Path: path, ModTime: fi.ModTime()})
			return nil
		},
	})

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, dirs, err
}
