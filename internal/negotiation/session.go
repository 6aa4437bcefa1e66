package negotiation

import (
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// PendingOffer is a proposed split held until the opponent responds. It is
// not part of round history: a round only exists once both halves of the
// propose-respond cycle have happened.
type PendingOffer struct {
	Proposer Role
	OfferA   int
	OfferB   int
}

// CommitFunc persists the outcome of a response before it is applied in
// memory. It receives the completed round and the post-transition session
// summary. Returning an error aborts the transition: the session is left
// exactly as it was, pending offer included.
type CommitFunc func(rec RoundRecord, sum Summary) error

// Outcome describes the state a session reached after a response was applied.
type Outcome struct {
	Round        Round
	Status       Status
	CurrentTurn  Role
	CurrentRound int
	Rounds       []Round
	Result       *Result
}

// View is the visible state of a session from one player's perspective, as
// restored on reconnection.
type View struct {
	PairID       string
	GroupNumber  int
	Role         Role
	BATNA        int
	CurrentTurn  Role
	CurrentRound int
	Status       Status
	Rounds       []Round
	Result       *Result
}

// Session is the per-pair negotiation state machine. It is created active,
// mutated only through SubmitOffer and SubmitResponse, and becomes read-only
// once it reaches a terminal status. All methods serialize on an internal
// mutex so at most one transition is in flight per pair.
type Session struct {
	mu sync.Mutex

	pairID      string
	group       int
	playerA     Slot
	playerB     Slot
	rounds      []Round
	currentTurn Role
	// currentRound starts at 1 and only ever increases. It may reach
	// maxRounds+1, at which point the session has already failed.
	currentRound int
	status       Status
	pending      *PendingOffer
	result       *Result
	createdAt    time.Time
	completedAt  *time.Time

	rules Rules
	clock quartz.Clock
}

// NewSession creates an active session for a freshly matched pair. The
// starting turn is decided by the caller (the queue's coin flip) and BATNA
// values come from the group lookup in the rules.
func NewSession(pairID string, group int, playerA, playerB Slot, startingTurn Role, rules Rules, clock quartz.Clock) *Session {
	return &Session{
		pairID:       pairID,
		group:        group,
		playerA:      playerA,
		playerB:      playerB,
		currentTurn:  startingTurn,
		currentRound: 1,
		status:       StatusActive,
		createdAt:    clock.Now(),
		rules:        rules,
		clock:        clock,
	}
}

// PairID returns the pair identifier.
func (s *Session) PairID() string { return s.pairID }

// GroupNumber returns the group this pair was matched in.
func (s *Session) GroupNumber() int { return s.group }

// RoleOf returns the role a player holds in this session.
func (s *Session) RoleOf(playerID string) (Role, error) {
	switch playerID {
	case s.playerA.PlayerID:
		return RoleA, nil
	case s.playerB.PlayerID:
		return RoleB, nil
	}
	return "", fmt.Errorf("player %s: %w", playerID, ErrNotFound)
}

// Opponent returns the player id of the other side.
func (s *Session) Opponent(playerID string) (string, error) {
	role, err := s.RoleOf(playerID)
	if err != nil {
		return "", err
	}
	return s.slot(role.Other()).PlayerID, nil
}

// PlayerIDs returns both player ids, A first.
func (s *Session) PlayerIDs() (string, string) {
	return s.playerA.PlayerID, s.playerB.PlayerID
}

func (s *Session) slot(role Role) Slot {
	if role == RoleA {
		return s.playerA
	}
	return s.playerB
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SubmitOffer validates and records a proposed split. The offer is held
// pending the opponent's response; round history is untouched until that
// response arrives.
func (s *Session) SubmitOffer(playerID string, offerA, offerB int) (*PendingOffer, error) {
	role, err := s.RoleOf(playerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return nil, fmt.Errorf("pair %s is %s: %w", s.pairID, s.status, ErrGameEnded)
	}
	if role != s.currentTurn {
		return nil, fmt.Errorf("not %s's turn: %w", role, ErrInvalidState)
	}
	if s.pending != nil {
		return nil, fmt.Errorf("offer already awaiting response: %w", ErrInvalidState)
	}
	if offerA < 0 || offerB < 0 || offerA+offerB != s.rules.PieSize {
		return nil, fmt.Errorf("offer (%d, %d) must be non-negative and sum to %d: %w",
			offerA, offerB, s.rules.PieSize, ErrInvalidOffer)
	}

	s.pending = &PendingOffer{Proposer: role, OfferA: offerA, OfferB: offerB}
	return s.pending, nil
}

// SubmitResponse applies the responder's verdict on the pending offer. The
// completed round and the resulting session state are handed to commit
// before any in-memory mutation; if commit fails the session is unchanged
// and the offer stays pending, so the response can be retried.
func (s *Session) SubmitResponse(playerID string, response Response, offerA, offerB int, commit CommitFunc) (*Outcome, error) {
	role, err := s.RoleOf(playerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return nil, fmt.Errorf("pair %s is %s: %w", s.pairID, s.status, ErrGameEnded)
	}
	if !response.Valid() {
		return nil, fmt.Errorf("response %q: %w", response, ErrInvalidResponse)
	}
	if s.pending == nil {
		return nil, fmt.Errorf("no offer awaiting response: %w", ErrInvalidState)
	}
	if role != s.currentTurn.Other() {
		return nil, fmt.Errorf("not %s's response to give: %w", role, ErrInvalidState)
	}

	round := Round{
		RoundNumber: s.currentRound,
		Proposer:    s.currentTurn,
		OfferA:      offerA,
		OfferB:      offerB,
		Response:    response,
		Timestamp:   s.clock.Now(),
	}

	// Compute the transition without touching session state so a failed
	// commit observes no partial mutation.
	next := transition{
		status:       s.status,
		currentTurn:  s.currentTurn,
		currentRound: s.currentRound,
	}

	switch response {
	case ResponseAccept:
		next.status = StatusCompleted
		next.result = &Result{
			Type:        ResultSuccess,
			FinalOfferA: offerA,
			FinalOfferB: offerB,
			PayoutA:     offerA,
			PayoutB:     offerB,
			Reason:      "Offer accepted",
		}

	case ResponseNotAccept:
		next.status = StatusFailed
		next.result = s.failureResult("Negotiation terminated")

	default: // too_low, better_offer
		next.currentRound++
		if next.currentRound > s.rules.MaxRounds {
			next.status = StatusFailed
			next.result = s.failureResult("Maximum rounds reached")
		} else {
			next.currentTurn = s.currentTurn.Other()
		}
	}

	var completedAt *time.Time
	if next.status.Terminal() {
		done := round.Timestamp
		completedAt = &done
	}

	if commit != nil {
		sum := Summary{
			PairID:       s.pairID,
			GroupNumber:  s.group,
			Status:       next.status,
			PlayerA:      s.playerA,
			PlayerB:      s.playerB,
			CurrentTurn:  next.currentTurn,
			CurrentRound: next.currentRound,
			Result:       next.result,
			CreatedAt:    s.createdAt,
			CompletedAt:  completedAt,
		}
		rec := RoundRecord{
			PairID:      s.pairID,
			GroupNumber: s.group,
			RoundNumber: round.RoundNumber,
			Proposer:    round.Proposer,
			OfferA:      round.OfferA,
			OfferB:      round.OfferB,
			Response:    round.Response,
			Timestamp:   round.Timestamp,
		}
		if err := commit(rec, sum); err != nil {
			return nil, fmt.Errorf("commit round %d for pair %s: %w", round.RoundNumber, s.pairID, err)
		}
	}

	s.rounds = append(s.rounds, round)
	s.pending = nil
	s.status = next.status
	s.currentTurn = next.currentTurn
	s.currentRound = next.currentRound
	s.result = next.result
	s.completedAt = completedAt

	return &Outcome{
		Round:        round,
		Status:       s.status,
		CurrentTurn:  s.currentTurn,
		CurrentRound: s.currentRound,
		Rounds:       s.roundsCopy(),
		Result:       s.result,
	}, nil
}

type transition struct {
	status       Status
	currentTurn  Role
	currentRound int
	result       *Result
}

// failureResult builds the payout for a failed negotiation. Only B's BATNA is
// paid out; A's share is zero regardless of A's own BATNA. This mirrors the
// behaviour of the experiment as it was actually run, and is pinned by tests.
func (s *Session) failureResult(reason string) *Result {
	return &Result{
		Type:    ResultFailed,
		PayoutA: 0,
		PayoutB: s.playerB.BATNA,
		Reason:  reason,
	}
}

// Pending returns the offer currently awaiting a response, if any.
func (s *Session) Pending() (*PendingOffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil, false
	}
	p := *s.pending
	return &p, true
}

// ViewFor returns the full visible state for one player, identical whether
// or not they ever disconnected. Reading the view never mutates the session.
func (s *Session) ViewFor(playerID string) (*View, error) {
	role, err := s.RoleOf(playerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return &View{
		PairID:       s.pairID,
		GroupNumber:  s.group,
		Role:         role,
		BATNA:        s.slot(role).BATNA,
		CurrentTurn:  s.currentTurn,
		CurrentRound: s.currentRound,
		Status:       s.status,
		Rounds:       s.roundsCopy(),
		Result:       s.resultCopy(),
	}, nil
}

// Summary returns the session-level record in its persisted shape.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Summary{
		PairID:       s.pairID,
		GroupNumber:  s.group,
		Status:       s.status,
		PlayerA:      s.playerA,
		PlayerB:      s.playerB,
		CurrentTurn:  s.currentTurn,
		CurrentRound: s.currentRound,
		Result:       s.resultCopy(),
		CreatedAt:    s.createdAt,
		CompletedAt:  s.completedAt,
	}
}

// Rounds returns a copy of the completed round history.
func (s *Session) Rounds() []Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundsCopy()
}

// Result returns the terminal result, or nil while the session is active.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultCopy()
}

func (s *Session) roundsCopy() []Round {
	rounds := make([]Round, len(s.rounds))
	copy(rounds, s.rounds)
	return rounds
}

func (s *Session) resultCopy() *Result {
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}
