package server

import (
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter mounts the handlers. Paths are passed through uncleaned so
// the application sees the request path as sent.
func NewRouter(handlers []*HttpHandler, log *zap.Logger) *mux.Router {
	router := mux.NewRouter().SkipClean(true)

	sorted := make([]*HttpHandler, len(handlers))
	copy(sorted, handlers)

	// exact paths first, then prefixes from the most specific one
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Prefix != sorted[j].Prefix {
			return !sorted[i].Prefix
		}
		return len(sorted[i].Path) > len(sorted[j].Path)
	})

	for _, h := range sorted {
		if h.Prefix {
			router.PathPrefix(h.Path).Handler(h.Handler)
		} else {
			router.Path(h.Path).Handler(h.Handler)
		}
	}

	router.Use(logRequests(log))

	return router
}

func logRequests(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.Debug("request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
