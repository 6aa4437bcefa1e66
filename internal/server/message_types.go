package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
// These are used for client-server communication protocol
const (
	// Client to server messages
	MessageTypeJoinGame        MessageType = "join_game"
	MessageTypeSubmitOffer     MessageType = "submit_offer"
	MessageTypeSubmitResponse  MessageType = "submit_response"
	MessageTypeReconnectPlayer MessageType = "reconnect_player"

	// Server to client messages
	MessageTypeJoined               MessageType = "joined"
	MessageTypeWaitingForPair       MessageType = "waiting_for_pair"
	MessageTypePairFound            MessageType = "pair_found"
	MessageTypeOfferSent            MessageType = "offer_sent"
	MessageTypeOfferReceived        MessageType = "offer_received"
	MessageTypeTurnUpdated          MessageType = "turn_updated"
	MessageTypeGameEnded            MessageType = "game_ended"
	MessageTypeReconnected          MessageType = "reconnected"
	MessageTypeOpponentDisconnected MessageType = "opponent_disconnected"
	MessageTypeError                MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
