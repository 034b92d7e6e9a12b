package api

import (
	"io"
	"net/http"

	"github.com/flashlightplugins/registry/pkg/httputil"
)

// serve streams blob content by its opaque key.
func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "resource")
	if !ok {
		return
	}

	content, contentType, err := s.opts.Blobs.Get(r.Context(), key)
	if err != nil {
		httputil.WriteNotFoundError(w, "no such resource")
		return
	}
	defer content.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if _, err := io.Copy(w, content); err != nil {
		s.log.WithError(err).Warn("Blob stream interrupted")
	}
}
