// Package http exposes the coordinator's persistence and sync operations as a
// JSON API. All reads come from the local store; writes return after the local
// half completes, with the remote half reported in the response body.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"controljm/internal/cache"
	"controljm/internal/core"
	"controljm/internal/middleware/ratelimit"
	"controljm/internal/middleware/security"
	"controljm/internal/middleware/trace"
	"controljm/internal/remote"
	"controljm/internal/services"
)

type Server struct {
	http.Server

	coordinator *services.Coordinator
	provider    *remote.Provider

	// listings caches GetAll output per collection and user. Flushed on
	// every local write and whenever a pull rewrites local records.
	listings     *cache.LRUCache[[]core.Record]
	cacheManager *cache.Manager
	rateLimiter  *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// The coordinator's apply hook is claimed here to keep listing reads coherent
// with pull application.
func NewServer(addr string, coordinator *services.Coordinator, provider *remote.Provider) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		coordinator:  coordinator,
		provider:     provider,
		listings:     cache.NewLRUCache[[]core.Record](64, 5*time.Minute),
		cacheManager: cache.NewManager(),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	s.cacheManager.Register(s.listings)
	s.cacheManager.StartCleanup(10 * time.Minute)
	coordinator.SetOnApply(s.listings.Flush)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/collections/{collection}", s.handleListCollection)
	mux.HandleFunc("POST /api/collections/{collection}", s.handleSaveRecord)
	mux.HandleFunc("DELETE /api/collections/{collection}/{id}", s.handleDeleteRecord)
	mux.HandleFunc("POST /api/sync", s.handleSync)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/config", s.handlePutConfig)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(trace.ClientIP)

	s.Handler = trace.Middleware(headers.Middleware(limited(mux)))

	return s
}

func listingKey(collection core.Collection, userID string) string {
	return collection.String() + "|" + userID
}

// Shutdown stops the HTTP server and the background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
