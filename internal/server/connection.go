package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"bargain/internal/ident"
	"bargain/internal/negotiation"
)

// Connection represents a WebSocket connection to a client. It doubles as
// the player's negotiation.Handle: the queue and registry probe Alive to
// detect stale entries.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	playerID  string
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	server    *Server
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, server *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 64),
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
		server: server,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Alive implements the negotiation.Handle interface
func (c *Connection) Alive() bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
		return true
	}
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, this is expected during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

// SetPlayer associates this connection with a player
func (c *Connection) SetPlayer(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
}

// GetPlayer returns the associated player ID
func (c *Connection) GetPlayer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.GetPlayer())

	switch msg.Type {
	case MessageTypeJoinGame:
		var data JoinGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join game data")
			return
		}
		c.handleJoinGame(data)

	case MessageTypeSubmitOffer:
		var data SubmitOfferData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse offer data")
			return
		}
		c.handleSubmitOffer(data)

	case MessageTypeSubmitResponse:
		var data SubmitResponseData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse response data")
			return
		}
		c.handleSubmitResponse(data)

	case MessageTypeReconnectPlayer:
		var data ReconnectPlayerData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse reconnect data")
			return
		}
		c.handleReconnect(data)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.SendMessage(errorMsg) // Ignore send errors during error handling
}

// sendEngineError maps an engine error to the wire error codes.
func (c *Connection) sendEngineError(err error) {
	switch {
	case errors.Is(err, negotiation.ErrInvalidRequest):
		c.sendError("invalid_request", err.Error())
	case errors.Is(err, negotiation.ErrInvalidOffer):
		c.sendError("invalid_offer", err.Error())
	case errors.Is(err, negotiation.ErrInvalidState):
		c.sendError("invalid_state", err.Error())
	case errors.Is(err, negotiation.ErrInvalidResponse):
		c.sendError("invalid_response", err.Error())
	case errors.Is(err, negotiation.ErrGameEnded):
		c.sendError("game_already_ended", err.Error())
	case errors.Is(err, negotiation.ErrNotFound):
		c.sendError("not_found", err.Error())
	default:
		c.sendError("internal_error", err.Error())
	}
}

func (c *Connection) handleJoinGame(data JoinGameData) {
	if c.server.engine == nil {
		c.sendError("service_unavailable", "Game engine not available")
		return
	}

	playerID := data.PlayerID
	if playerID == "" {
		playerID = c.server.engine.NewPlayerID()
	} else if err := ident.Validate(playerID); err != nil {
		c.sendError("invalid_request", "Malformed player ID")
		return
	}

	// Associate before joining so pairing events can be routed here.
	c.SetPlayer(playerID)

	c.logger.Info("Join game request", "player", playerID, "group", data.GroupNumber)

	ack, _ := NewMessage(MessageTypeJoined, JoinedData{
		PlayerID:    playerID,
		GroupNumber: data.GroupNumber,
	})
	_ = c.SendMessage(ack) // Ignore send errors

	if _, err := c.server.engine.Join(c.ctx, playerID, data.GroupNumber, c); err != nil {
		c.sendEngineError(err)
	}
}

func (c *Connection) handleSubmitOffer(data SubmitOfferData) {
	c.logger.Info("Offer submitted", "pair", data.PairID, "player", data.PlayerID,
		"offerA", data.OfferA, "offerB", data.OfferB)

	if c.server.engine == nil {
		c.sendError("service_unavailable", "Game engine not available")
		return
	}

	if err := c.server.engine.Offer(c.ctx, data.PairID, data.PlayerID, data.OfferA, data.OfferB); err != nil {
		c.sendEngineError(err)
	}
}

func (c *Connection) handleSubmitResponse(data SubmitResponseData) {
	c.logger.Info("Response submitted", "pair", data.PairID, "player", data.PlayerID,
		"response", data.Response)

	if c.server.engine == nil {
		c.sendError("service_unavailable", "Game engine not available")
		return
	}

	err := c.server.engine.Respond(c.ctx, data.PairID, data.PlayerID,
		negotiation.Response(data.Response), data.OfferA, data.OfferB)
	if err != nil {
		c.sendEngineError(err)
	}
}

func (c *Connection) handleReconnect(data ReconnectPlayerData) {
	c.logger.Info("Reconnect request", "player", data.PlayerID)

	if c.server.engine == nil {
		c.sendError("service_unavailable", "Game engine not available")
		return
	}
	if data.PlayerID == "" {
		c.sendError("invalid_request", "Player ID required")
		return
	}
	if err := ident.Validate(data.PlayerID); err != nil {
		c.sendError("invalid_request", "Malformed player ID")
		return
	}

	c.SetPlayer(data.PlayerID)

	err := c.server.engine.Reconnect(c.ctx, data.PlayerID, c)
	if errors.Is(err, negotiation.ErrNotFound) {
		// No session for this player; nothing to restore.
		c.logger.Debug("Reconnect with no session", "player", data.PlayerID)
		return
	}
	if err != nil {
		c.sendEngineError(err)
	}
}
