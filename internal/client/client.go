// Package client implements the interactive terminal client used to play a
// negotiation against another participant, mainly for piloting sessions and
// smoke-testing a deployed server.
package client

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"bargain/internal/server"
)

// Client wraps the WebSocket connection to the game server. Incoming
// messages are funneled through a channel so the TUI can consume them as
// Bubble Tea messages.
type Client struct {
	conn     *websocket.Conn
	logger   *log.Logger
	incoming chan *server.Message
}

// Dial connects to the game server's /ws endpoint.
func Dial(url string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:     conn,
		logger:   logger.WithPrefix("client"),
		incoming: make(chan *server.Message, 16),
	}
	go c.readLoop()

	return c, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send transmits one typed message to the server.
func (c *Client) Send(messageType server.MessageType, data interface{}) error {
	msg, err := server.NewMessage(messageType, data)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

// Incoming returns the channel of server messages. The channel closes when
// the connection drops.
func (c *Client) Incoming() <-chan *server.Message {
	return c.incoming
}

func (c *Client) readLoop() {
	defer close(c.incoming)

	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("Connection lost", "error", err)
			}
			return
		}
		c.incoming <- &msg
	}
}

// Decode unmarshals a message payload into the given target type.
func Decode[T any](msg *server.Message) (T, error) {
	var data T
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return data, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return data, nil
}
