package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"image-workbench/internal/compressor"
	"image-workbench/internal/config"
	"image-workbench/internal/preview"
	"image-workbench/internal/statistics"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader

	compressor compressor.Compressor
	previews   *preview.Registry
	stats      *statistics.Statistics

	// baseCtx bounds background compressions; it is cancelled by Stop.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	sessionsMutex sync.RWMutex
	sessions      map[string]*session
	janitorOnce   sync.Once
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger, c compressor.Compressor, stats *statistics.Statistics) *Server {
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		log:        log,
		router:     mux.NewRouter(),
		compressor: c,
		previews:   preview.NewRegistry(),
		stats:      stats,
		baseCtx:    ctx,
		baseCancel: cancel,
		sessions:   make(map[string]*session),
	}
	s.wsUpgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods("GET")
	api.HandleFunc("/upload", s.handleUpload).Methods("POST")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/download", s.handleDownload).Methods("GET")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")

	s.router.HandleFunc("/preview/{id}", s.handlePreview).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Web.ReadTimeout,
		WriteTimeout: s.cfg.Web.WriteTimeout,
		IdleTimeout:  s.cfg.Web.IdleTimeout,
	}

	s.startJanitor()

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the HTTP server down and releases every session.
func (s *Server) Stop(ctx context.Context) error {
	s.baseCancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	s.sessionsMutex.Lock()
	for id, sess := range s.sessions {
		sess.close()
		delete(s.sessions, id)
	}
	s.sessionsMutex.Unlock()

	return err
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.Web.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.Web.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) startJanitor() {
	s.janitorOnce.Do(func() {
		go s.runJanitor(s.cfg.Web.SessionTTL)
	})
}

func (s *Server) runJanitor(ttl time.Duration) {
	ticker := time.NewTicker(max(ttl/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-s.baseCtx.Done():
			return
		case now := <-ticker.C:
			if n := s.expireSessions(now, ttl); n > 0 {
				s.log.Infof("Expired %d idle sessions", n)
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	s.writeJSONStatus(w, data, http.StatusOK)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSONStatus(w, APIResponse{
		Success: false,
		Error:   message,
	}, statusCode)
}
