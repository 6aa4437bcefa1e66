package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"bargain/internal/negotiation"
)

// Server represents the WebSocket server
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	engine      *negotiation.Engine
}

// NewServer creates a new WebSocket server
func NewServer(addr string, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Participants connect from the hosting study page; origin
				// checking is the deployment proxy's concern.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetEngine sets the negotiation engine for the server
func (s *Server) SetEngine(engine *negotiation.Engine) {
	s.engine = engine
}

// Start starts the WebSocket server and blocks until it fails or the context
// is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	srv := &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting WebSocket server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		_ = srv.Close()
		return s.Stop()
	}
}

// Stop stops the WebSocket server
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
	s.mu.Unlock()

	return nil
}

// run handles connection lifecycle
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "total", total)

		case conn := <-s.unregister:
			removed, rebound, total := s.removeConnection(conn)

			if removed {
				// Withdraw waiting players and notify opponents of players
				// who dropped mid-session. The session itself survives. A
				// stale connection whose player already rebound elsewhere
				// must not tear down the fresh binding.
				if playerID := conn.GetPlayer(); playerID != "" && !rebound && s.engine != nil {
					s.engine.Disconnect(playerID)
				}
				_ = conn.Close() // Ignore close errors during unregistration
				s.logger.Info("Client disconnected", "total", total)
			}

		case <-s.ctx.Done():
			return
		}
	}
}

// removeConnection drops one connection from the set. rebound reports whether
// another live connection is already bound to the same player, in which case
// the caller must not disconnect the player from the engine.
func (s *Server) removeConnection(conn *Connection) (removed, rebound bool, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connections[conn]; !ok {
		return false, false, len(s.connections)
	}
	delete(s.connections, conn)

	if playerID := conn.GetPlayer(); playerID != "" {
		rebound = s.connectionForLocked(playerID) != nil
	}
	return true, rebound, len(s.connections)
}

// connectionForLocked returns the connection bound to the player, if any.
// Caller holds mu.
func (s *Server) connectionForLocked(playerID string) *Connection {
	for conn := range s.connections {
		if conn.GetPlayer() == playerID {
			return conn
		}
	}
	return nil
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger, s)
	s.register <- client
	client.Start()

	go func() {
		<-client.ctx.Done()
		s.unregister <- client
	}()
}

// Send implements the negotiation.Sink interface: engine events are wrapped
// in the wire envelope and routed to the player's connection. Events for
// disconnected players are dropped; reconnection replays the visible state.
func (s *Server) Send(playerID string, event negotiation.Event) {
	msg, err := MessageFromEvent(event)
	if err != nil {
		s.logger.Error("Failed to encode event", "type", event.EventType(), "error", err)
		return
	}

	if err := s.SendToPlayer(playerID, msg); err != nil {
		s.logger.Debug("Dropped event for offline player", "player", playerID, "type", event.EventType())
	}
}

// SendToPlayer sends a message to a specific player
func (s *Server) SendToPlayer(playerID string, msg *Message) error {
	s.mu.RLock()
	conn := s.connectionForLocked(playerID)
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("player not connected: %s", playerID)
	}
	return conn.SendMessage(msg)
}

// ConnectedPlayers returns a list of connected player IDs
func (s *Server) ConnectedPlayers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var players []string
	for conn := range s.connections {
		if playerID := conn.GetPlayer(); playerID != "" {
			players = append(players, playerID)
		}
	}

	return players
}
