// Package api serves the contact book over HTTP: the JSON CRUD API, a
// server-rendered overview page, a WebSocket live feed of changes and
// Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/steveyegge/contacts/internal/contact"
	"github.com/steveyegge/contacts/internal/query"
	"github.com/steveyegge/contacts/internal/store"
)

// Backend is the record store the API serves.
type Backend interface {
	query.Reader
	CreateContext(ctx context.Context, c *contact.Contact) (*contact.Contact, error)
	GetContext(ctx context.Context, id string) (*contact.Contact, error)
	UpdateContext(ctx context.Context, id string, patch contact.Patch) (*contact.Contact, error)
	DeleteContext(ctx context.Context, id string) (bool, error)
}

var _ Backend = (*store.DB)(nil)

// Server serves the API and manages live feed connections.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	handler  http.Handler

	db      Backend
	query   *query.Service
	page    *template.Template
	metrics *metrics

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8000, 0 picks a free port)
	Port int

	// CaseSensitive disables case folding of the search parameter
	CaseSensitive bool

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:   8000,
		Logger: log.New(os.Stderr, "[api] ", log.LstdFlags),
	}
}

// NewServer creates a server over db. The HTTP listener is not opened until
// Start.
func NewServer(db Backend, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[api] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		db:        db,
		query:     query.New(db, query.Config{CaseSensitive: config.CaseSensitive}),
		page:      pageTemplate,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
	s.metrics = newMetrics(s.ClientCount)
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "POST /api/contacts", s.handleCreate)
	s.handle(mux, "GET /api/contacts", s.handleList)
	s.handle(mux, "GET /api/contacts/{id}", s.handleGet)
	s.handle(mux, "PUT /api/contacts/{id}", s.handleUpdate)
	s.handle(mux, "DELETE /api/contacts/{id}", s.handleDelete)
	s.handle(mux, "GET /api/stats", s.handleStats)
	s.handle(mux, "GET /health", s.handleHealth)
	s.handle(mux, "GET /{$}", s.handleRoot)

	// The upgrade needs the raw ResponseWriter, so /ws is not instrumented.
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	return mux
}

// Handler returns the HTTP handler, for use without Start.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start opens the listener, then serves HTTP and runs the broadcast loop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("API server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Println("Stopping API server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()

	s.logger.Println("API server stopped")
	return nil
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of live feed clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
