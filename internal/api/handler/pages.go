package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/aidtracker/aidtracker/internal/api/response"
)

// PageHandler serves the dashboard HTML files. The pages themselves are not
// part of this repository; missing files answer 404.
type PageHandler struct {
	webDir string
}

// NewPageHandler creates a PageHandler serving files from webDir.
func NewPageHandler(webDir string) *PageHandler {
	return &PageHandler{webDir: webDir}
}

// Page returns a handler for WEB_DIR/<name>.html.
func (h *PageHandler) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(h.webDir, name+".html")
		if _, err := os.Stat(path); err != nil {
			response.NotFound(w, r, "page not found")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeFile(w, r, path)
	}
}

// Index serves the login page at / and /login.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.Page("index")(w, r)
}

// Uploads serves stored photos under prefix from dir.
func Uploads(prefix, dir string) http.Handler {
	return http.StripPrefix(prefix, http.FileServer(noDirListing{http.Dir(dir)}))
}

// noDirListing hides directory indexes from http.FileServer.
type noDirListing struct {
	fs http.FileSystem
}

func (d noDirListing) Open(name string) (http.File, error) {
	f, err := d.fs.Open(name)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if stat.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
