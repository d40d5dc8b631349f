// Package httpapi is the HTTP transport for the name server: the
// positional-query-arg command surface and the storage-node
// connect handshake, routed with github.com/go-chi/chi/v5 the way the
// teacher repo's http services are routed.
package httpapi

import (
	"context"
	"net/http"

	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/coordinator"
	"github.com/TymurLysenkoIU/ds-project2-name-server/internal/tree"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// CoordinatorAPI is the subset of *coordinator.Coordinator the HTTP
// layer drives, narrowed to an interface so handlers can be tested
// against a fake instead of a live tree/registry/FTP stack.
type CoordinatorAPI interface {
	Clear(ctx context.Context) error
	CreateFile(ctx context.Context, path, filename string) error
	DeleteFile(ctx context.Context, path, filename string) error
	GetFileSize(ctx context.Context, path, filename string) (int64, error)
	CopyFile(ctx context.Context, path, filename, newPath, newFilename string) error
	MoveFile(ctx context.Context, path, filename, newPath, newFilename string) error
	ReadDir(ctx context.Context, path string) ([]tree.Entry, error)
	MakeDir(ctx context.Context, path, dirname string) error
	DeleteDir(ctx context.Context, path, dirname string) error
	ReadFile(ctx context.Context, path, filename string, sink coordinator.ByteSink) error
	WriteFile(ctx context.Context, path, filename string, source coordinator.ByteSource) error
	AddStorageServer(ctx context.Context, host string) error
}

// Server holds the HTTP-facing dependencies: the coordinator and a
// logger. It is constructed once in main and mounted onto a router.
type Server struct {
	coordinator CoordinatorAPI
	log         zerolog.Logger
}

// New builds a Server over co.
func New(co CoordinatorAPI, log zerolog.Logger) *Server {
	return &Server{coordinator: co, log: log}
}

// Router returns the chi router exposing /command/ and /connect/.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/command/", s.handleCommand)
	r.Post("/command/", s.handleCommand)
	r.Post("/connect/", s.handleConnect)
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Str("query", r.URL.RawQuery).Msg("request")
			next.ServeHTTP(w, r)
		})
	}
}
