package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/speakup/internal/config"
	"github.com/npezzotti/speakup/internal/database"
	"github.com/npezzotti/speakup/internal/server"
)

type QueueApp struct {
	log            *log.Logger
	db             database.Repository
	srv            *http.Server
	qs             *server.QueueServer
	baseURL        string
	allowedOrigins []string
}

// NewQueueApp wires the HTTP routes onto mux. db may be nil when the server
// runs without a database.
func NewQueueApp(mux *http.ServeMux, logger *log.Logger, qs *server.QueueServer, db database.Repository, cfg *config.Config) *QueueApp {
	s := &QueueApp{
		log:            logger,
		db:             db,
		qs:             qs,
		baseURL:        cfg.BaseURL,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/meetings", s.createMeeting)
	mux.HandleFunc("GET /api/meetings/{code}", s.noStore(s.getMeeting))
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *QueueApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *QueueApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
