package static

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// notFoundBody is written when even the index page is missing.
const notFoundBody = "404 File Not Found"

// mimeTypes maps the served extensions to their Content-Type.
var mimeTypes = map[string]string{
	".txt":  "text/plain; charset=utf-8",
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".json": "application/json",
	".png":  "image/png",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".zip":  "application/zip",
	".wasm": "application/wasm",
}

// Handler serves files under a root directory with index fallback.
type Handler struct {
	root    fs.FS
	index   string
	allowed map[string]bool
}

// New returns a Handler for dir. index is the fallback page relative to dir
// (default "index.html"). An empty allowed list allows every extension in
// the MIME table.
func New(dir, index string, allowed []string) *Handler {
	if index == "" {
		index = "index.html"
	}
	h := &Handler{
		root:    os.DirFS(dir),
		index:   strings.TrimPrefix(index, "/"),
		allowed: make(map[string]bool),
	}
	if len(allowed) == 0 {
		for ext := range mimeTypes {
			h.allowed[ext] = true
		}
	}
	for _, ext := range allowed {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		h.allowed[ext] = true
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Prevent aggressive caching of the mutable index page.
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")

	name := h.resolve(r.URL.Path)

	data, err := fs.ReadFile(h.root, name)
	if err != nil && name != h.index {
		name = h.index
		data, err = fs.ReadFile(h.root, name)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		http.Error(w, notFoundBody, status)
		return
	}

	if ct, ok := mimeTypes[strings.ToLower(path.Ext(name))]; ok {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", "inline; filename="+path.Base(name))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		w.Write(data)
	}
}

// resolve maps a URL path to a file name inside the root. Paths that would
// leave the root, and disallowed extensions, map to the index page.
func (h *Handler) resolve(urlPath string) string {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" || !fs.ValidPath(name) {
		return h.index
	}
	if !h.allowed[strings.ToLower(path.Ext(name))] {
		return h.index
	}
	return name
}
