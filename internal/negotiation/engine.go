package negotiation

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Store persists the experiment's data trail. CommitResponse must write the
// round and the updated summary atomically: a response is either fully
// recorded or not recorded at all.
type Store interface {
	CreateSession(ctx context.Context, sum Summary) error
	CommitResponse(ctx context.Context, rec RoundRecord, sum Summary) error
}

// Engine is the single entry point for player actions. It routes joins to
// the queue and offers, responses and reconnects to the session via the
// registry, and emits outbound events through the sink. The engine itself
// holds no negotiation state.
type Engine struct {
	queue    *Queue
	registry *Registry
	store    Store
	sink     Sink
	rules    Rules
	ids      IDSource
	clock    quartz.Clock
	logger   *log.Logger
}

// NewEngine wires the queue, registry and store together. The store may be
// nil, in which case nothing is persisted (useful in tests and the demo
// client); the sink must not be.
func NewEngine(queue *Queue, registry *Registry, store Store, sink Sink, rules Rules, ids IDSource, clock quartz.Clock, logger *log.Logger) *Engine {
	return &Engine{
		queue:    queue,
		registry: registry,
		store:    store,
		sink:     sink,
		rules:    rules,
		ids:      ids,
		clock:    clock,
		logger:   logger.WithPrefix("engine"),
	}
}

// Rules returns the game parameters the engine runs with.
func (e *Engine) Rules() Rules { return e.rules }

// NewPlayerID mints a player identifier. The transport assigns identifiers
// before joining so events can be routed from the first emission.
func (e *Engine) NewPlayerID() string { return e.ids.NewPlayerID() }

// Join enqueues a player and attempts to pair them. An empty playerID asks
// the engine to mint one; an id bound to a live session is rejected, so a
// player can never be paired twice. On success both players receive
// pair_found; a lone player receives waiting_for_pair and stays queued.
func (e *Engine) Join(ctx context.Context, playerID string, group int, h Handle) (*Player, error) {
	if playerID == "" {
		playerID = e.ids.NewPlayerID()
	} else if sess, err := e.registry.LookupByPlayer(playerID); err == nil && !sess.Status().Terminal() {
		// Re-entering the queue here would let a third joiner match this
		// player and overwrite the registry binding of the live session.
		return nil, fmt.Errorf("player %s is already in pair %s: %w", playerID, sess.PairID(), ErrInvalidRequest)
	}

	player := &Player{ID: playerID, Group: group, Handle: h}
	if err := e.queue.Enqueue(player); err != nil {
		return nil, err
	}

	pairing, err := e.queue.TryPair(playerID)
	if errors.Is(err, ErrNoMatch) {
		e.sink.Send(playerID, WaitingForPairEvent{Message: "Waiting for a partner in your group"})
		return player, nil
	}
	if err != nil {
		return nil, err
	}

	batna, ok := e.rules.BATNAs[group]
	if !ok {
		// Enqueue validated the group already.
		return nil, fmt.Errorf("unknown group %d: %w", group, ErrInvalidRequest)
	}

	sess := NewSession(
		pairing.PairID,
		group,
		Slot{PlayerID: pairing.PlayerA.ID, BATNA: batna.A},
		Slot{PlayerID: pairing.PlayerB.ID, BATNA: batna.B},
		pairing.StartingTurn,
		e.rules,
		e.clock,
	)
	e.registry.Register(sess, pairing.PlayerA.Handle, pairing.PlayerB.Handle)

	e.logger.Info("Session created",
		"pair", pairing.PairID,
		"group", group,
		"playerA", pairing.PlayerA.ID,
		"playerB", pairing.PlayerB.ID,
		"startingTurn", pairing.StartingTurn)

	e.sink.Send(pairing.PlayerA.ID, PairFoundEvent{
		PairID:      pairing.PairID,
		Role:        RoleA,
		BATNA:       batna.A,
		CurrentTurn: pairing.StartingTurn,
		GroupNumber: group,
	})
	e.sink.Send(pairing.PlayerB.ID, PairFoundEvent{
		PairID:      pairing.PairID,
		Role:        RoleB,
		BATNA:       batna.B,
		CurrentTurn: pairing.StartingTurn,
		GroupNumber: group,
	})

	if e.store != nil {
		if err := e.store.CreateSession(ctx, sess.Summary()); err != nil {
			// The in-memory session is already live and the commit on the
			// first response upserts the summary, so the game goes on.
			e.logger.Error("Failed to persist new session", "pair", pairing.PairID, "error", err)
			return player, fmt.Errorf("persist session %s: %w", pairing.PairID, err)
		}
	}

	return player, nil
}

// Offer submits a proposed split. The proposer gets offer_sent, the opponent
// offer_received; validation failures are returned to the caller and nothing
// is emitted.
func (e *Engine) Offer(ctx context.Context, pairID, playerID string, offerA, offerB int) error {
	sess, err := e.registry.LookupByPair(pairID)
	if err != nil {
		return err
	}

	pending, err := sess.SubmitOffer(playerID, offerA, offerB)
	if err != nil {
		return err
	}

	opponent, err := sess.Opponent(playerID)
	if err != nil {
		return err
	}

	e.logger.Info("Offer submitted",
		"pair", pairID,
		"proposer", pending.Proposer,
		"offerA", offerA,
		"offerB", offerB)

	e.sink.Send(playerID, OfferSentEvent{OfferA: offerA, OfferB: offerB})
	e.sink.Send(opponent, OfferReceivedEvent{
		Proposer: pending.Proposer,
		OfferA:   offerA,
		OfferB:   offerB,
	})
	return nil
}

// Respond applies the responder's verdict on the pending offer. The round
// and updated summary are committed to the store before in-memory state
// advances; both players then receive turn_updated or game_ended.
func (e *Engine) Respond(ctx context.Context, pairID, playerID string, response Response, offerA, offerB int) error {
	sess, err := e.registry.LookupByPair(pairID)
	if err != nil {
		return err
	}

	var commit CommitFunc
	if e.store != nil {
		commit = func(rec RoundRecord, sum Summary) error {
			return e.store.CommitResponse(ctx, rec, sum)
		}
	}

	outcome, err := sess.SubmitResponse(playerID, response, offerA, offerB, commit)
	if err != nil {
		return err
	}

	playerA, playerB := sess.PlayerIDs()

	if outcome.Status.Terminal() {
		e.logger.Info("Session ended",
			"pair", pairID,
			"status", outcome.Status,
			"rounds", len(outcome.Rounds),
			"reason", outcome.Result.Reason)

		ended := GameEndedEvent{
			PairID: pairID,
			Status: outcome.Status,
			Rounds: outcome.Rounds,
			Result: *outcome.Result,
		}
		e.sink.Send(playerA, ended)
		e.sink.Send(playerB, ended)
		return nil
	}

	updated := TurnUpdatedEvent{
		CurrentTurn:  outcome.CurrentTurn,
		CurrentRound: outcome.CurrentRound,
		LastOffer:    outcome.Round,
		LastResponse: outcome.Round.Response,
	}
	e.sink.Send(playerA, updated)
	e.sink.Send(playerB, updated)
	return nil
}

// Reconnect restores a player's session after a transport drop. An active
// session rebinds the new handle and replays the visible state; a terminal
// session replays its result; a player with no session at all is a no-op
// signalled by ErrNotFound.
func (e *Engine) Reconnect(ctx context.Context, playerID string, h Handle) error {
	sess, err := e.registry.LookupByPlayer(playerID)
	if err != nil {
		return err
	}

	view, err := sess.ViewFor(playerID)
	if err != nil {
		return err
	}

	if view.Status.Terminal() {
		e.sink.Send(playerID, GameEndedEvent{
			PairID: view.PairID,
			Status: view.Status,
			Rounds: view.Rounds,
			Result: *view.Result,
		})
		return nil
	}

	if _, err := e.registry.Rebind(playerID, h); err != nil {
		return err
	}

	e.logger.Info("Player reconnected", "player", playerID, "pair", view.PairID)

	e.sink.Send(playerID, ReconnectedEvent{
		PairID:       view.PairID,
		Role:         view.Role,
		BATNA:        view.BATNA,
		CurrentTurn:  view.CurrentTurn,
		CurrentRound: view.CurrentRound,
		GroupNumber:  view.GroupNumber,
	})
	return nil
}

// Disconnect handles a transport-level drop. A waiting player is withdrawn
// from the queue; a player in an active session has their handle cleared and
// the opponent is notified. The session itself is never terminated by a
// disconnect alone.
func (e *Engine) Disconnect(playerID string) {
	if playerID == "" {
		return
	}

	e.queue.Withdraw(playerID)

	sess, err := e.registry.LookupByPlayer(playerID)
	if err != nil {
		return
	}
	if sess.Status().Terminal() {
		return
	}

	e.registry.ClearHandle(playerID)

	opponent, err := sess.Opponent(playerID)
	if err != nil {
		return
	}

	e.logger.Info("Player disconnected mid-session", "player", playerID, "pair", sess.PairID())
	e.sink.Send(opponent, OpponentDisconnectedEvent{
		Message: "Your partner disconnected. The game will resume if they return.",
	})
}

// Withdraw removes a waiting player from the queue before pairing succeeds.
// It is idempotent and has no effect once the player is paired.
func (e *Engine) Withdraw(playerID string) {
	e.queue.Withdraw(playerID)
}

// Session exposes a session by pair id for read-only consumers such as the
// HTTP API.
func (e *Engine) Session(pairID string) (*Session, error) {
	return e.registry.LookupByPair(pairID)
}
