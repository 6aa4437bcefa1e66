package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bargain/internal/negotiation"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSummary(pairID string) negotiation.Summary {
	return negotiation.Summary{
		PairID:       pairID,
		GroupNumber:  3,
		Status:       negotiation.StatusActive,
		PlayerA:      negotiation.Slot{PlayerID: "Player_aaaa0001", BATNA: 0},
		PlayerB:      negotiation.Slot{PlayerID: "Player_bbbb0001", BATNA: 500},
		CurrentTurn:  negotiation.RoleA,
		CurrentRound: 1,
		CreatedAt:    time.UnixMilli(1700000000000),
	}
}

func TestSQLite_CreateAndGetSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, testSummary("Pair_00000001")))

	sum, err := s.GetSummary(ctx, "Pair_00000001")
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, 3, sum.GroupNumber)
	assert.Equal(t, negotiation.StatusActive, sum.Status)
	assert.Equal(t, 500, sum.PlayerB.BATNA)
	assert.Nil(t, sum.Result)
	assert.Nil(t, sum.CompletedAt)
	assert.Equal(t, int64(1700000000000), sum.CreatedAt.UnixMilli())
}

func TestSQLite_GetSummaryUnknownPair(t *testing.T) {
	s := newTestStore(t)

	sum, err := s.GetSummary(context.Background(), "Pair_missing0")
	require.NoError(t, err)
	assert.Nil(t, sum)
}

func TestSQLite_CommitResponseWritesRoundAndSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, testSummary("Pair_00000001")))

	rec := negotiation.RoundRecord{
		PairID:      "Pair_00000001",
		GroupNumber: 3,
		RoundNumber: 1,
		Proposer:    negotiation.RoleA,
		OfferA:      600,
		OfferB:      400,
		Response:    negotiation.ResponseTooLow,
		Timestamp:   time.UnixMilli(1700000001000),
	}
	sum := testSummary("Pair_00000001")
	sum.CurrentTurn = negotiation.RoleB
	sum.CurrentRound = 2
	require.NoError(t, s.CommitResponse(ctx, rec, sum))

	rounds, err := s.ListRounds(ctx)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, rec.OfferA, rounds[0].OfferA)
	assert.Equal(t, rec.Response, rounds[0].Response)
	assert.Equal(t, rec.Timestamp.UnixMilli(), rounds[0].Timestamp.UnixMilli())

	got, err := s.GetSummary(ctx, "Pair_00000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.CurrentRound)
	assert.Equal(t, negotiation.RoleB, got.CurrentTurn)
}

// A duplicate round number must roll the whole commit back: the summary keeps
// its previous state when the round insert fails.
func TestSQLite_CommitResponseIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, testSummary("Pair_00000001")))

	rec := negotiation.RoundRecord{
		PairID: "Pair_00000001", GroupNumber: 3, RoundNumber: 1,
		Proposer: negotiation.RoleA, OfferA: 600, OfferB: 400,
		Response: negotiation.ResponseTooLow, Timestamp: time.UnixMilli(1700000001000),
	}
	sum := testSummary("Pair_00000001")
	sum.CurrentRound = 2
	require.NoError(t, s.CommitResponse(ctx, rec, sum))

	conflicting := rec
	conflicting.OfferA, conflicting.OfferB = 100, 900
	badSum := sum
	badSum.CurrentRound = 99
	err := s.CommitResponse(ctx, conflicting, badSum)
	require.Error(t, err)

	rounds, err := s.ListRounds(ctx)
	require.NoError(t, err)
	assert.Len(t, rounds, 1)

	got, err := s.GetSummary(ctx, "Pair_00000001")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentRound, "summary untouched by the failed commit")
}

func TestSQLite_TerminalSummaryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done := time.UnixMilli(1700000005000)
	sum := testSummary("Pair_00000001")
	sum.Status = negotiation.StatusCompleted
	sum.CompletedAt = &done
	sum.Result = &negotiation.Result{
		Type:        negotiation.ResultSuccess,
		FinalOfferA: 450,
		FinalOfferB: 550,
		PayoutA:     450,
		PayoutB:     550,
		Reason:      "Offer accepted",
	}
	require.NoError(t, s.CreateSession(ctx, sum))

	got, err := s.GetSummary(ctx, "Pair_00000001")
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, negotiation.ResultSuccess, got.Result.Type)
	assert.Equal(t, 550, got.Result.PayoutB)
	assert.Equal(t, "Offer accepted", got.Result.Reason)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, done.UnixMilli(), got.CompletedAt.UnixMilli())
}

func TestSQLite_ListSummaries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := testSummary("Pair_00000001")
	second := testSummary("Pair_00000002")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	require.NoError(t, s.CreateSession(ctx, first))
	require.NoError(t, s.CreateSession(ctx, second))

	sums, err := s.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "Pair_00000001", sums[0].PairID)
	assert.Equal(t, "Pair_00000002", sums[1].PairID)
}
