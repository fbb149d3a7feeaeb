package preview

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleIndex lists the project's templates.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	templates, err := s.loader.Discover()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out, err := s.index.render(r.Context(), map[string]any{"templates": templates})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(injectReload(out)))
}

// handleView renders one template with the configured data files.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	vars := map[string]any{}
	if s.provider != nil {
		var err error
		vars, err = s.provider.Context(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	tmpl, err := s.loader.Load(path)
	if err != nil {
		s.renderError(w, path, err, http.StatusNotFound)
		return
	}
	out, err := tmpl.Render(r.Context(), vars)
	if err != nil {
		s.renderError(w, path, err, http.StatusInternalServerError)
		return
	}

	contentType := "text/html; charset=utf-8"
	if tmpl.Kind() == "text" {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	if tmpl.Kind() != "text" {
		out = injectReload(out)
	}
	_, _ = w.Write([]byte(out))
}

// handleEvents is the long-lived SSE endpoint. One reload event is
// pushed per invalidation batch, carrying the affected paths.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, updates := s.hub.subscribe()
	defer s.hub.unsubscribe(id)
	s.logger.Debug("client connected", "client", id)

	// Confirm the stream so EventSource fires its open event.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("client disconnected", "client", id)
			return
		case batch, ok := <-updates:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: %s\n\n", strings.Join(batch, " "))
			flusher.Flush()
		}
	}
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// renderError writes an error page. A missing template is 404; render
// failures surface their location chain as preformatted text.
func (s *Server) renderError(w http.ResponseWriter, path string, err error, status int) {
	s.logger.Warn("render failed", "template", path, "error", err)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html><html><body><h1>%d</h1><pre>%s</pre>%s</body></html>",
		status, htmlEscape(err.Error()), reloadScript)
}

// htmlEscape escapes the characters that would break the error page.
var htmlEscape = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace

// injectReload splices the reload script ahead of </body>, or appends
// it when the rendered output has no body close tag.
func injectReload(out string) string {
	if i := strings.LastIndex(out, "</body>"); i >= 0 {
		return out[:i] + reloadScript + out[i:]
	}
	return out + reloadScript
}
