package negotiation

import (
	"fmt"
	rand "math/rand/v2"
	"sync"

	"github.com/charmbracelet/log"
)

// IDSource mints player and pair identifiers.
type IDSource interface {
	NewPlayerID() string
	NewPairID() string
}

// Pairing is the outcome of a successful match: both players with roles
// assigned, a fresh pair identifier, and the coin-flipped starting turn.
type Pairing struct {
	PairID       string
	PlayerA      *Player
	PlayerB      *Player
	StartingTurn Role
}

// Queue holds players waiting for a partner in their group. Selection is
// compare-and-remove under a single mutex: once two players are matched no
// concurrent pairing attempt can pick either of them again.
type Queue struct {
	mu      sync.Mutex
	waiting map[string]*Player
	rules   Rules
	rng     *rand.Rand
	ids     IDSource
	logger  *log.Logger
}

// NewQueue creates an empty match queue. The rand source decides role
// assignment and starting turn; injecting it keeps pairings reproducible
// under test.
func NewQueue(rules Rules, rng *rand.Rand, ids IDSource, logger *log.Logger) *Queue {
	return &Queue{
		waiting: make(map[string]*Player),
		rules:   rules,
		rng:     rng,
		ids:     ids,
		logger:  logger.WithPrefix("queue"),
	}
}

// Enqueue adds a waiting player. Joining again while already waiting
// refreshes the stored connection handle.
func (q *Queue) Enqueue(p *Player) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("player required: %w", ErrInvalidRequest)
	}
	if !q.rules.ValidGroup(p.Group) {
		return fmt.Errorf("unknown group %d: %w", p.Group, ErrInvalidRequest)
	}
	if p.Handle == nil {
		return fmt.Errorf("connection handle required: %w", ErrInvalidRequest)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.waiting[p.ID] = p
	q.logger.Debug("Player enqueued", "player", p.ID, "group", p.Group, "waiting", len(q.waiting))
	return nil
}

// Withdraw removes a waiting player. Withdrawing a player who is not waiting
// is a no-op.
func (q *Queue) Withdraw(playerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.waiting[playerID]; ok {
		delete(q.waiting, playerID)
		q.logger.Debug("Player withdrawn", "player", playerID, "waiting", len(q.waiting))
	}
}

// TryPair attempts to match the given waiting player with another waiting
// player in the same group. Stale entries whose connection died while waiting
// are purged as they are encountered; the queue is never scanned eagerly.
// Returns ErrNoMatch when no candidate exists, in which case the requester
// stays queued.
func (q *Queue) TryPair(playerID string) (*Pairing, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	requester, ok := q.waiting[playerID]
	if !ok {
		return nil, fmt.Errorf("player %s is not waiting: %w", playerID, ErrNotFound)
	}

	var partner *Player
	for id, candidate := range q.waiting {
		if id == playerID || candidate.Group != requester.Group {
			continue
		}
		if candidate.Handle == nil || !candidate.Handle.Alive() {
			delete(q.waiting, id)
			q.logger.Info("Purged stale waiting player", "player", id, "group", candidate.Group)
			continue
		}
		partner = candidate
		break
	}

	if partner == nil {
		return nil, ErrNoMatch
	}

	// Both leave the queue in the same critical section, so no concurrent
	// TryPair can select either of them.
	delete(q.waiting, requester.ID)
	delete(q.waiting, partner.ID)

	pairID := q.ids.NewPairID()

	// Unbiased coin flips: one for role assignment, an independent one for
	// who proposes first.
	first, second := requester, partner
	if q.rng.IntN(2) == 1 {
		first, second = partner, requester
	}
	first.Role = RoleA
	second.Role = RoleB
	first.PairID = pairID
	second.PairID = pairID

	startingTurn := RoleA
	if q.rng.IntN(2) == 1 {
		startingTurn = RoleB
	}

	q.logger.Info("Paired players",
		"pair", pairID,
		"group", requester.Group,
		"playerA", first.ID,
		"playerB", second.ID,
		"startingTurn", startingTurn)

	return &Pairing{
		PairID:       pairID,
		PlayerA:      first,
		PlayerB:      second,
		StartingTurn: startingTurn,
	}, nil
}

// WaitingCount returns the number of players currently queued.
func (q *Queue) WaitingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// IsWaiting reports whether the player is still queued.
func (q *Queue) IsWaiting(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.waiting[playerID]
	return ok
}
