// static.go - Legacy /uploads file serving. The remote media host is the
// source of truth; this path only covers files uploaded before the
// migration to object storage.
package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// contentTypeByExt covers the formats the upload pipeline accepts. Anything
// else falls back to http.ServeFile sniffing.
var contentTypeByExt = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// uploadsHandler serves GET /uploads/{path...} from the local uploads
// directory with long-lived caching. Uploaded files are content-addressed
// by timestamped names, so a year-long cache is safe.
func (s *Server) uploadsHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("path")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	// Resolve inside the uploads dir only. filepath.Clean plus the prefix
	// check rejects .. traversal.
	clean := filepath.Clean("/" + name)
	full := filepath.Join(s.uploadsDir, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.uploadsDir)+string(os.PathSeparator)) {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if ct, ok := contentTypeByExt[strings.ToLower(filepath.Ext(full))]; ok {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	http.ServeFile(w, r, full)
}
