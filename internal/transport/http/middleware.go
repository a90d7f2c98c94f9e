package httptransport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"duel-relay/internal/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
)

func APILogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				rc := chi.RouteContext(req.Context())
				route := req.URL.Path
				if rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				attrs := []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("route", route),
					slog.String("path", req.URL.Path),
				}
				if id := chi.URLParam(req, "session_id"); id != "" {
					attrs = append(attrs, slog.String("session_id", id))
				}
				return attrs
			},
		},
	)
}

// BodyCaptureMiddleware adds the first maxBytes of the request body to the
// access log entry, plus the response body when the handler answered with an
// error status. Handlers downstream still read the whole request body.
func BodyCaptureMiddleware(maxBytes int) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 1024
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var head []byte
			if r.Body != nil && r.Body != http.NoBody {
				head, _ = io.ReadAll(io.LimitReader(r.Body, int64(maxBytes)+1))
				r.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(head), r.Body), Closer: r.Body}
			}

			cw := &captureWriter{ResponseWriter: w, maxBytes: maxBytes, status: http.StatusOK}
			next.ServeHTTP(cw, r)

			truncated := len(head) > maxBytes
			if truncated {
				head = head[:maxBytes]
			}
			attrs := []slog.Attr{
				slog.Any("request_body", logBody(head)),
				slog.Bool("request_body_truncated", truncated),
			}
			if cw.status >= http.StatusBadRequest {
				attrs = append(attrs, slog.Any("error_body", logBody(cw.body.Bytes())))
			}
			httplog.SetAttrs(r.Context(), attrs...)
		})
	}
}

// replayBody serves the captured prefix followed by the unread remainder.
type replayBody struct {
	io.Reader
	io.Closer
}

// captureWriter keeps the status and, for error responses, the first
// maxBytes written.
type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
	maxBytes    int
}

func (c *captureWriter) WriteHeader(status int) {
	if !c.wroteHeader {
		c.status = status
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.wroteHeader = true
	if c.status >= http.StatusBadRequest {
		if remain := c.maxBytes - c.body.Len(); remain > 0 {
			kept := p
			if len(kept) > remain {
				kept = kept[:remain]
			}
			_, _ = c.body.Write(kept)
		}
	}
	return c.ResponseWriter.Write(p)
}

// logBody renders JSON bodies as structured values and anything else, like
// the presence webhook forms or a truncated prefix, as text.
func logBody(b []byte) any {
	if len(b) == 0 {
		return ""
	}
	var out any
	if err := json.Unmarshal(b, &out); err == nil {
		return out
	}
	return string(b)
}

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
