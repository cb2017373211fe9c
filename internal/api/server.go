// Package api exposes the timeline over HTTP for the editor frontend.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	jsoniter "github.com/json-iterator/go"

	"github.com/reeledit/reeledit/internal/manager"
	"github.com/reeledit/reeledit/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	http.Server
	manager *manager.Manager
}

// Initialize creates the router and the listener configuration. Start must
// be called to begin serving.
func Initialize() (*Server, error) {
	mgr := manager.GetInstance()
	cfg := mgr.Config

	address := net.JoinHostPort(cfg.GetHost(), fmt.Sprintf("%d", cfg.GetPort()))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Mount("/timeline", timelineRoutes{manager: mgr}.Routes())

	server := &Server{
		Server: http.Server{
			Addr:         address,
			Handler:      r,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		manager: mgr,
	}

	return server, nil
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Infof("reeledit is listening on %s", s.Addr)

	err := s.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Server.Shutdown(ctx)
}
