package api

import (
	"bytes"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

const (
	indexCacheControl = "public, max-age=3600, must-revalidate"
	assetCacheControl = "public, max-age=31536000, immutable"
)

// SPAHandler serves the dashboard single page application. Unknown paths
// fall back to index.html so client-side routes survive a reload; hashed
// files under the assets prefix are cached for a year.
type SPAHandler struct {
	fs           fs.FS
	indexPath    string
	assetsPrefix string
}

// NewSPAHandler creates a new SPA handler.
//
// Parameters:
//   - fileSystem: The filesystem to serve from (typically os.DirFS(DASHBOARD_DIR))
//   - indexPath: Path to index.html within the filesystem (e.g., "index.html")
//   - assetsPrefix: URL prefix for hashed static assets (e.g., "/assets/")
func NewSPAHandler(fileSystem fs.FS, indexPath, assetsPrefix string) *SPAHandler {
	return &SPAHandler{
		fs:           fileSystem,
		indexPath:    indexPath,
		assetsPrefix: assetsPrefix,
	}
}

// ServeHTTP implements http.Handler.
func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	urlPath := path.Clean("/" + r.URL.Path)
	fsPath := strings.TrimPrefix(urlPath, "/")

	// API paths never fall back to the SPA.
	if strings.HasPrefix(urlPath, "/v1/") || strings.HasPrefix(urlPath, "/internal/") {
		WriteError(w, ErrNotFound, http.StatusNotFound, CodeNotFound)
		return
	}

	if fsPath != "" && h.serveFile(w, r, fsPath, h.cacheControl(urlPath)) {
		return
	}

	// File not found or is a directory - serve index.html for SPA routing
	if !h.serveFile(w, r, h.indexPath, indexCacheControl) {
		slog.Error("failed to open index.html", "path", h.indexPath)
		http.Error(w, "Not Found", http.StatusNotFound)
	}
}

// serveFile writes name if it exists and is a regular file.
func (h *SPAHandler) serveFile(w http.ResponseWriter, r *http.Request, name, cacheControl string) bool {
	file, err := h.fs.Open(name)
	if err != nil {
		return false
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil || stat.IsDir() {
		return false
	}

	w.Header().Set("Cache-Control", cacheControl)
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}

	if seeker, ok := file.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, stat.ModTime(), seeker)
		return true
	}

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return true
	}
	http.ServeContent(w, r, name, stat.ModTime(), bytes.NewReader(content))
	return true
}

func (h *SPAHandler) cacheControl(urlPath string) string {
	if h.assetsPrefix != "" && strings.HasPrefix(urlPath, h.assetsPrefix) {
		return assetCacheControl
	}
	return indexCacheControl
}

