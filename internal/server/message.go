package server

import (
	"encoding/json"
	"fmt"
	"time"

	"bargain/internal/negotiation"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type JoinGameData struct {
	PlayerID    string `json:"playerId,omitempty"`
	GroupNumber int    `json:"groupNumber"`
}

type SubmitOfferData struct {
	PairID   string `json:"pairId"`
	PlayerID string `json:"playerId"`
	OfferA   int    `json:"offerA"`
	OfferB   int    `json:"offerB"`
}

type SubmitResponseData struct {
	PairID   string `json:"pairId"`
	PlayerID string `json:"playerId"`
	Response string `json:"response"`
	OfferA   int    `json:"offerA"`
	OfferB   int    `json:"offerB"`
}

type ReconnectPlayerData struct {
	PlayerID string `json:"playerId"`
}

// Server → Client Messages
//
// Most outbound payloads are the negotiation event structs themselves; only
// the transport-level ones live here.

type JoinedData struct {
	PlayerID    string `json:"playerId"`
	GroupNumber int    `json:"groupNumber"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MessageFromEvent wraps a negotiation event in the wire envelope. Event
// types and message types share their names on the wire.
func MessageFromEvent(event negotiation.Event) (*Message, error) {
	msg, err := NewMessage(MessageType(event.EventType()), event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", event.EventType(), err)
	}
	return msg, nil
}
