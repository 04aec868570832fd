package backdrop

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// settle is how long the catalog waits after the last change before rescanning,
// so a burst of writes causes one reload.
const settle = 250 * time.Millisecond

// Watch reloads the catalog whenever files below Root change, until ctx ends.
// onReload, if non-nil, is called after every successful reload.
func (c *Catalog) Watch(ctx context.Context, onReload func([]Backdrop)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	watched := map[string]bool{}
	add := func() {
		for _, d := range c.Dirs() {
			if watched[d] {
				continue
			}
			if err := w.Add(d); err != nil {
				klog.Warningf("watch %s: %v", d, err)
				continue
			}
			watched[d] = true
		}
	}
	add()
	klog.Infof("watching %d dirs ...", len(watched))

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			klog.V(1).Infof("event: %v", event)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				timer.Reset(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)
		case <-timer.C:
			if err := c.Reload(); err != nil {
				klog.Errorf("reload failed: %v", err)
				continue
			}
			add()
			if onReload != nil {
				onReload(c.List())
			}
		}
	}
}
