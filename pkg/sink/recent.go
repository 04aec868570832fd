package sink

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"time"

	"k8s.io/klog/v2"
)

//go:embed assets/recent.tmpl
var recentTmpl string

// RecentCount is how many uploads the index page lists.
const RecentCount = 48

// RecentHandler lists the latest uploads as an HTML page.
func (s *Server) RecentHandler(w http.ResponseWriter, r *http.Request) {
	us, err := s.Recent(RecentCount)
	if err != nil {
		klog.Errorf("recent: %v", err)
		http.Error(w, "unable to list uploads", http.StatusInternalServerError)
		return
	}
	s.addCaptions(us)

	bs, err := renderRecent(us, s.now())
	if err != nil {
		klog.Errorf("render recent: %v", err)
		http.Error(w, "unable to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(bs)
}

// addCaptions reads the stamped image descriptions back, if stamping is on.
func (s *Server) addCaptions(us []Upload) {
	if s.stamper == nil {
		return
	}
	for i := range us {
		c, err := s.stamper.Caption(filepath.Join(s.dir, us[i].Name))
		if err != nil {
			klog.V(1).Infof("caption for %s: %v", us[i].Name, err)
			continue
		}
		us[i].Caption = c
	}
}

func renderRecent(us []Upload, now time.Time) ([]byte, error) {
	tmpl, err := template.New("recent").Funcs(tmplFunctions(now)).Parse(recentTmpl)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	data := struct {
		Title   string
		Uploads []Upload
	}{
		Title:   "fotobox",
		Uploads: us,
	}

	var tpl bytes.Buffer
	if err = tmpl.Execute(&tpl, data); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return tpl.Bytes(), nil
}

// tmplFunctions are functions available to our templates.
func tmplFunctions(now time.Time) template.FuncMap {
	return template.FuncMap{
		"Ago": func(t time.Time) string {
			d := now.Sub(t).Round(time.Minute)
			switch {
			case d < time.Minute:
				return "just now"
			case d < time.Hour:
				return fmt.Sprintf("%d min ago", int(d.Minutes()))
			case d < 24*time.Hour:
				return fmt.Sprintf("%d h ago", int(d.Hours()))
			}
			return t.Format("2006-01-02 15:04")
		},
		"KB": func(n int64) int64 {
			return (n + 1023) / 1024
		},
	}
}
