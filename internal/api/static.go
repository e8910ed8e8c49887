package api

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/yegors/gnss-jamming/pkg/logger"
)

// StaticFileHandler serves the dashboard without caching. Unknown paths
// without an extension fall back to index.html so client side routes load.
type StaticFileHandler struct {
	files  fs.FS
	server http.Handler
	logger *logger.Logger
}

// NewStaticFileHandler creates a handler serving staticDir
func NewStaticFileHandler(staticDir string, logger *logger.Logger) *StaticFileHandler {
	files := os.DirFS(staticDir)
	return &StaticFileHandler{
		files:  files,
		server: http.FileServer(http.FS(files)),
		logger: logger.Named("static-handler"),
	}
}

// ServeHTTP serves a dashboard file
func (h *StaticFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "."
	}

	if _, err := fs.Stat(h.files, name); err != nil {
		if path.Ext(name) != "" || strings.HasPrefix(name, "api/") {
			h.logger.Debug("File not found", logger.String("path", name))
			http.NotFound(w, r)
			return
		}
		if _, err := fs.Stat(h.files, "index.html"); err != nil {
			http.NotFound(w, r)
			return
		}
		r = r.Clone(r.Context())
		r.URL.Path = "/"
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	h.server.ServeHTTP(w, r)
}
