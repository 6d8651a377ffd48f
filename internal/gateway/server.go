// Package gateway exposes the operator console: a WebSocket feed of
// escalation events plus a reply path back into the channels.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatdesk-ai/chatdesk/internal/bus"
	"github.com/chatdesk-ai/chatdesk/internal/channels"
	"github.com/chatdesk-ai/chatdesk/internal/config"
)

// Bus is the message-bus surface the gateway needs: escalation fan-out to
// operator consoles plus inbound publishing so operator replies are recorded
// as staff answers.
type Bus interface {
	bus.EventPublisher
	PublishInbound(msg bus.InboundMessage)
}

// Server handles operator WebSocket connections and the health endpoint.
type Server struct {
	cfg     *config.Config
	bus     Bus
	manager *channels.Manager

	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[string]*Client

	httpServer *http.Server
}

// NewServer creates a gateway server.
func NewServer(cfg *config.Config, msgBus Bus, manager *channels.Manager) *Server {
	s := &Server{
		cfg:     cfg,
		bus:     msgBus,
		manager: manager,
		clients: make(map[string]*Client),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Operator consoles are non-browser clients; origin checks add nothing.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return s
}

// BuildMux creates the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start listens until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Gateway.Host, s.cfg.Gateway.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.BuildMux(),
	}

	slog.Info("gateway starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// authorized checks the gateway token. An empty configured token disables
// auth (local development).
func (s *Server) authorized(r *http.Request) bool {
	token := s.cfg.Gateway.Token
	if token == "" {
		return true
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ") == token
	}
	return r.URL.Query().Get("token") == token
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, s)
	s.registerClient(client)
	defer func() {
		s.unregisterClient(client)
		client.Close()
	}()

	client.Run(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := map[string]any{"status": "ok"}
	if s.manager != nil {
		status["channels"] = s.manager.Status()
	}
	json.NewEncoder(w).Encode(status)
}

func (s *Server) registerClient(c *Client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	s.bus.Subscribe(c.id, c.SendEvent)
	slog.Info("operator connected", "id", c.id)
}

func (s *Server) unregisterClient(c *Client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()

	s.bus.Unsubscribe(c.id)
	slog.Info("operator disconnected", "id", c.id)
}

// StartTestServer listens on a random local port and returns the address and
// a start function. Used by integration tests.
func StartTestServer(s *Server, ctx context.Context) (addr string, start func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("listen: " + err.Error())
	}

	s.httpServer = &http.Server{Handler: s.BuildMux()}
	addr = ln.Addr().String()

	start = func() {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.httpServer.Shutdown(shutdownCtx)
		}()
		s.httpServer.Serve(ln)
	}
	return addr, start
}
