package negotiation

// EventType represents a negotiation event type with type safety
type EventType string

// EventType constants for negotiation domain events
const (
	EventTypeWaitingForPair       EventType = "waiting_for_pair"
	EventTypePairFound            EventType = "pair_found"
	EventTypeOfferSent            EventType = "offer_sent"
	EventTypeOfferReceived        EventType = "offer_received"
	EventTypeTurnUpdated          EventType = "turn_updated"
	EventTypeGameEnded            EventType = "game_ended"
	EventTypeReconnected          EventType = "reconnected"
	EventTypeOpponentDisconnected EventType = "opponent_disconnected"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event is anything the engine emits towards a player. Events carry the
// complete payload the transport needs; the transport never reaches back into
// session state.
type Event interface {
	EventType() EventType
}

// WaitingForPairEvent is sent to a lone player after joining with no partner
// available.
type WaitingForPairEvent struct {
	Message string `json:"message"`
}

func (e WaitingForPairEvent) EventType() EventType { return EventTypeWaitingForPair }

// PairFoundEvent is sent to both players once a pairing succeeds. BATNA is
// the receiving player's own fallback payout.
type PairFoundEvent struct {
	PairID      string `json:"pairId"`
	Role        Role   `json:"role"`
	BATNA       int    `json:"batna"`
	CurrentTurn Role   `json:"currentTurn"`
	GroupNumber int    `json:"groupNumber"`
}

func (e PairFoundEvent) EventType() EventType { return EventTypePairFound }

// OfferSentEvent acknowledges a proposer's offer while the opponent decides.
type OfferSentEvent struct {
	OfferA int `json:"offerA"`
	OfferB int `json:"offerB"`
}

func (e OfferSentEvent) EventType() EventType { return EventTypeOfferSent }

// OfferReceivedEvent delivers a pending offer to the responder.
type OfferReceivedEvent struct {
	Proposer Role `json:"proposer"`
	OfferA   int  `json:"offerA"`
	OfferB   int  `json:"offerB"`
}

func (e OfferReceivedEvent) EventType() EventType { return EventTypeOfferReceived }

// TurnUpdatedEvent is sent to both players after a non-terminal response.
type TurnUpdatedEvent struct {
	CurrentTurn  Role     `json:"currentTurn"`
	CurrentRound int      `json:"currentRound"`
	LastOffer    Round    `json:"lastOffer"`
	LastResponse Response `json:"lastResponse"`
}

func (e TurnUpdatedEvent) EventType() EventType { return EventTypeTurnUpdated }

// GameEndedEvent is sent to both players once the session reaches a terminal
// status, and to a reconnecting player whose session ended while they were
// away.
type GameEndedEvent struct {
	PairID string  `json:"pairId"`
	Status Status  `json:"status"`
	Rounds []Round `json:"rounds"`
	Result Result  `json:"result"`
}

func (e GameEndedEvent) EventType() EventType { return EventTypeGameEnded }

// ReconnectedEvent restores the full visible state to a player rejoining an
// active session.
type ReconnectedEvent struct {
	PairID       string `json:"pairId"`
	Role         Role   `json:"role"`
	BATNA        int    `json:"batna"`
	CurrentTurn  Role   `json:"currentTurn"`
	CurrentRound int    `json:"currentRound"`
	GroupNumber  int    `json:"groupNumber"`
}

func (e ReconnectedEvent) EventType() EventType { return EventTypeReconnected }

// OpponentDisconnectedEvent informs the remaining player that their partner
// dropped. The session stays active and the partner may still return.
type OpponentDisconnectedEvent struct {
	Message string `json:"message"`
}

func (e OpponentDisconnectedEvent) EventType() EventType { return EventTypeOpponentDisconnected }

// Sink delivers events to players. The transport implements it; the engine
// never holds connections directly.
type Sink interface {
	Send(playerID string, event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(playerID string, event Event)

// Send implements the Sink interface
func (f SinkFunc) Send(playerID string, event Event) { f(playerID, event) }
