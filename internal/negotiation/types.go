package negotiation

import "time"

// Role identifies one of the two sides of a negotiation.
type Role string

const (
	RoleA Role = "A"
	RoleB Role = "B"
)

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RoleA {
		return RoleB
	}
	return RoleA
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Status represents the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the session accepts no further actions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Response is a responder's verdict on a pending offer.
type Response string

const (
	// ResponseTooLow rejects the offer and invites a counteroffer.
	ResponseTooLow Response = "too_low"
	// ResponseAccept accepts the offer and ends the negotiation successfully.
	ResponseAccept Response = "accept"
	// ResponseBetterOffer rejects in favour of the outside option but keeps
	// negotiating.
	ResponseBetterOffer Response = "better_offer"
	// ResponseNotAccept terminates the negotiation without agreement.
	ResponseNotAccept Response = "not_accept"
)

// Valid reports whether the response is one of the four recognized values.
func (r Response) Valid() bool {
	switch r {
	case ResponseTooLow, ResponseAccept, ResponseBetterOffer, ResponseNotAccept:
		return true
	}
	return false
}

// Terminal reports whether the response ends the negotiation.
func (r Response) Terminal() bool {
	return r == ResponseAccept || r == ResponseNotAccept
}

// ResultType distinguishes successful from failed negotiations.
type ResultType string

const (
	ResultSuccess ResultType = "success"
	ResultFailed  ResultType = "failed"
)

// Round records one completed propose-then-respond cycle. Rounds are
// append-only and never mutated after creation.
type Round struct {
	RoundNumber int       `json:"roundNumber"`
	Proposer    Role      `json:"proposer"`
	OfferA      int       `json:"offerA"`
	OfferB      int       `json:"offerB"`
	Response    Response  `json:"response"`
	Timestamp   time.Time `json:"timestamp"`
}

// Result is populated once a session reaches a terminal status.
type Result struct {
	Type        ResultType `json:"type"`
	FinalOfferA int        `json:"finalOfferA,omitempty"`
	FinalOfferB int        `json:"finalOfferB,omitempty"`
	PayoutA     int        `json:"payoutA"`
	PayoutB     int        `json:"payoutB"`
	Reason      string     `json:"reason"`
}

// Slot holds one side of a pair: the player occupying the role and their
// fallback payout if the negotiation fails.
type Slot struct {
	PlayerID string `json:"playerId"`
	BATNA    int    `json:"batna"`
}

// Handle is the transport-level connection of a player. It is transient:
// cleared on disconnect and renewed on reconnect. The queue uses it to detect
// stale waiting entries.
type Handle interface {
	// Alive reports whether the connection is still usable.
	Alive() bool
}

// Player is a participant from join until their pair completes. A player
// transitions from waiting to paired exactly once.
type Player struct {
	ID     string
	Group  int
	Handle Handle

	// Set once paired.
	Role   Role
	PairID string
}

// BATNAPair holds the fallback payouts of both roles for one group.
type BATNAPair struct {
	A int
	B int
}

// Rules carries the fixed parameters of the bargaining game.
type Rules struct {
	// PieSize is the total amount every offer must split.
	PieSize int
	// MaxRounds bounds the number of propose-respond cycles before the
	// negotiation is forced to fail.
	MaxRounds int
	// BATNAs maps a group number to the fallback payouts of its two roles.
	// Group membership also defines the set of valid group numbers.
	BATNAs map[int]BATNAPair
}

// DefaultRules returns the parameters of the experiment as originally run:
// a pie of 1000, ten rounds, and four groups that differ only in B's outside
// option.
func DefaultRules() Rules {
	return Rules{
		PieSize:   1000,
		MaxRounds: 10,
		BATNAs: map[int]BATNAPair{
			1: {A: 0, B: 0},
			2: {A: 0, B: 250},
			3: {A: 0, B: 500},
			4: {A: 0, B: 750},
		},
	}
}

// ValidGroup reports whether the group number is part of the configured set.
func (r Rules) ValidGroup(group int) bool {
	_, ok := r.BATNAs[group]
	return ok
}

// RoundRecord is the flattened per-round row handed to the store, one per
// completed propose-respond cycle.
type RoundRecord struct {
	PairID      string    `json:"pairId"`
	GroupNumber int       `json:"groupNumber"`
	RoundNumber int       `json:"roundNumber"`
	Proposer    Role      `json:"proposer"`
	OfferA      int       `json:"offerA"`
	OfferB      int       `json:"offerB"`
	Response    Response  `json:"response"`
	Timestamp   time.Time `json:"timestamp"`
}

// Summary is the session-level row handed to the store whenever the session
// is created or transitions.
type Summary struct {
	PairID      string     `json:"pairId"`
	GroupNumber int        `json:"groupNumber"`
	Status      Status     `json:"status"`
	PlayerA     Slot       `json:"playerA"`
	PlayerB     Slot       `json:"playerB"`
	CurrentTurn Role       `json:"currentTurn"`
	CurrentRound int       `json:"currentRound"`
	Result      *Result    `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
