// Package api provides the HTTP status API and the WebSocket capture ingest.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"vtouch/internal/config"
	"vtouch/internal/executor"
	"vtouch/internal/network"
	"vtouch/internal/protocol"
	"vtouch/internal/reactor"
)

// StatusSource reports the reactor state.
type StatusSource interface {
	Status() reactor.Status
}

// StatsSource reports executor counters.
type StatsSource interface {
	Stats() executor.Stats
}

// Server serves /health, /api/status and the /ws capture endpoint. Messages
// received from capture clients are sent to out.
type Server struct {
	cfg     config.API
	env     string
	session string
	status  StatusSource
	stats   StatsSource
	out     chan<- protocol.Message
	wsMgr   *WSManager
	started time.Time
}

// NewServer creates a server for environment env.
func NewServer(cfg config.API, env string, status StatusSource, stats StatsSource, out chan<- protocol.Message) *Server {
	s := &Server{
		cfg:     cfg,
		env:     env,
		session: uuid.NewString(),
		status:  status,
		stats:   stats,
		out:     out,
		started: time.Now(),
	}
	s.wsMgr = newWSManager(s)
	go s.wsMgr.start()
	return s
}

// Close disconnects every capture client.
func (s *Server) Close() {
	s.wsMgr.stop()
}

// Session identifies this process to capture clients.
func (s *Server) Session() string { return s.session }

// Clients returns the number of connected capture clients.
func (s *Server) Clients() int { return s.wsMgr.count() }

// Handler returns the routed handler with auth and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start serves on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	addr := fmt.Sprintf("0.0.0.0:%d", s.cfg.Port)
	if ips, err := network.GetLocalIPs(); err == nil {
		for _, ip := range ips {
			log.Debugf("API: local IPv4 %s", ip)
		}
	}

	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("api listen %s: %w", addr, err)
	}
	log.Printf("API: listening on %s", addr)

	server := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Errorf("API: panic serving %s: %v", r.URL.Path, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the API token if configured. WebSocket clients that
// cannot set headers may pass it as the "token" query parameter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		if r.URL.Path == "/health" || s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.Token && r.URL.Query().Get("token") != s.cfg.Token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Environment string         `json:"environment"`
	Session     string         `json:"session"`
	Uptime      string         `json:"uptime"`
	Reactor     reactor.Status `json:"reactor"`
	Executor    executor.Stats `json:"executor"`
	Clients     int            `json:"clients"`
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{
		Environment: s.env,
		Session:     s.session,
		Uptime:      time.Since(s.started).Truncate(time.Second).String(),
		Clients:     s.Clients(),
	}
	if s.status != nil {
		resp.Reactor = s.status.Status()
	}
	if s.stats != nil {
		resp.Executor = s.stats.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
