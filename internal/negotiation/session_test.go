package negotiation

import (
	"errors"
	"testing"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, group int, startingTurn Role) *Session {
	t.Helper()
	rules := DefaultRules()
	batna := rules.BATNAs[group]
	return NewSession(
		"Pair_TEST0001",
		group,
		Slot{PlayerID: "Player_AAAA0001", BATNA: batna.A},
		Slot{PlayerID: "Player_BBBB0001", BATNA: batna.B},
		startingTurn,
		rules,
		quartz.NewMock(t),
	)
}

func TestSession_OfferThenCounteroffer(t *testing.T) {
	sess := newTestSession(t, 3, RoleA)

	pending, err := sess.SubmitOffer("Player_AAAA0001", 600, 400)
	require.NoError(t, err)
	assert.Equal(t, RoleA, pending.Proposer)

	outcome, err := sess.SubmitResponse("Player_BBBB0001", ResponseTooLow, 600, 400, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusActive, outcome.Status)
	assert.Equal(t, RoleB, outcome.CurrentTurn, "turn flips to the responder after a rejection")
	assert.Equal(t, 2, outcome.CurrentRound)
	require.Len(t, outcome.Rounds, 1)
	assert.Equal(t, 1, outcome.Rounds[0].RoundNumber)
	assert.Equal(t, ResponseTooLow, outcome.Rounds[0].Response)

	// The pending offer is consumed; B can now propose.
	_, ok := sess.Pending()
	assert.False(t, ok)
	_, err = sess.SubmitOffer("Player_BBBB0001", 400, 600)
	require.NoError(t, err)
}

func TestSession_AcceptPaysOutTheOffer(t *testing.T) {
	sess := newTestSession(t, 3, RoleA)

	_, err := sess.SubmitOffer("Player_AAAA0001", 450, 550)
	require.NoError(t, err)

	outcome, err := sess.SubmitResponse("Player_BBBB0001", ResponseAccept, 450, 550, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, outcome.Status)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, ResultSuccess, outcome.Result.Type)
	assert.Equal(t, 450, outcome.Result.PayoutA)
	assert.Equal(t, 550, outcome.Result.PayoutB)
	assert.Equal(t, "Offer accepted", outcome.Result.Reason)
}

func TestSession_NotAcceptTerminates(t *testing.T) {
	sess := newTestSession(t, 2, RoleB)

	_, err := sess.SubmitOffer("Player_BBBB0001", 800, 200)
	require.NoError(t, err)

	outcome, err := sess.SubmitResponse("Player_AAAA0001", ResponseNotAccept, 800, 200, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, outcome.Status)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, ResultFailed, outcome.Result.Type)
	assert.Equal(t, "Negotiation terminated", outcome.Result.Reason)
}

func TestSession_MaxRoundsForcesFailure(t *testing.T) {
	sess := newTestSession(t, 4, RoleA)

	// Ten full propose-respond cycles, every offer rejected.
	proposer, responder := "Player_AAAA0001", "Player_BBBB0001"
	for round := 1; round <= 10; round++ {
		_, err := sess.SubmitOffer(proposer, 500, 500)
		require.NoError(t, err, "round %d offer", round)
		outcome, err := sess.SubmitResponse(responder, ResponseTooLow, 500, 500, nil)
		require.NoError(t, err, "round %d response", round)

		if round < 10 {
			assert.Equal(t, StatusActive, outcome.Status)
			assert.Equal(t, round+1, outcome.CurrentRound)
			proposer, responder = responder, proposer
		} else {
			assert.Equal(t, StatusFailed, outcome.Status)
			// The counter runs past the limit on the forced failure.
			assert.Equal(t, 11, outcome.CurrentRound)
			require.NotNil(t, outcome.Result)
			assert.Equal(t, "Maximum rounds reached", outcome.Result.Reason)
		}
	}

	assert.Len(t, sess.Rounds(), 10)
}

// A failed negotiation pays B's outside option but nothing to A, even in a
// hypothetical group where A's outside option is positive. Downstream analysis
// depends on this exact payout rule, so it is locked in here.
func TestSession_FailurePayoutIsAsymmetric(t *testing.T) {
	rules := DefaultRules()
	rules.BATNAs[5] = BATNAPair{A: 300, B: 500}
	sess := NewSession(
		"Pair_TEST0002",
		5,
		Slot{PlayerID: "Player_AAAA0001", BATNA: 300},
		Slot{PlayerID: "Player_BBBB0001", BATNA: 500},
		RoleA,
		rules,
		quartz.NewMock(t),
	)

	_, err := sess.SubmitOffer("Player_AAAA0001", 900, 100)
	require.NoError(t, err)
	outcome, err := sess.SubmitResponse("Player_BBBB0001", ResponseNotAccept, 900, 100, nil)
	require.NoError(t, err)

	require.NotNil(t, outcome.Result)
	assert.Equal(t, 0, outcome.Result.PayoutA, "A never receives their own BATNA on failure")
	assert.Equal(t, 500, outcome.Result.PayoutB)
}

func TestSession_OfferValidation(t *testing.T) {
	tests := []struct {
		name    string
		player  string
		offerA  int
		offerB  int
		wantErr error
	}{
		{"wrong sum", "Player_AAAA0001", 600, 500, ErrInvalidOffer},
		{"negative share", "Player_AAAA0001", -100, 1100, ErrInvalidOffer},
		{"out of turn", "Player_BBBB0001", 500, 500, ErrInvalidState},
		{"unknown player", "Player_XXXX0001", 500, 500, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := newTestSession(t, 1, RoleA)
			_, err := sess.SubmitOffer(tt.player, tt.offerA, tt.offerB)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StatusActive, sess.Status())
			assert.Empty(t, sess.Rounds(), "failed validation must not touch history")
		})
	}
}

func TestSession_SecondOfferWhilePendingRejected(t *testing.T) {
	sess := newTestSession(t, 1, RoleA)

	_, err := sess.SubmitOffer("Player_AAAA0001", 500, 500)
	require.NoError(t, err)

	_, err = sess.SubmitOffer("Player_AAAA0001", 700, 300)
	assert.ErrorIs(t, err, ErrInvalidState)

	// The original offer is still the one on the table.
	pending, ok := sess.Pending()
	require.True(t, ok)
	assert.Equal(t, 500, pending.OfferA)
}

func TestSession_ResponseValidation(t *testing.T) {
	t.Run("no pending offer", func(t *testing.T) {
		sess := newTestSession(t, 1, RoleA)
		_, err := sess.SubmitResponse("Player_BBBB0001", ResponseAccept, 500, 500, nil)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("unknown response value", func(t *testing.T) {
		sess := newTestSession(t, 1, RoleA)
		_, err := sess.SubmitOffer("Player_AAAA0001", 500, 500)
		require.NoError(t, err)
		_, err = sess.SubmitResponse("Player_BBBB0001", Response("maybe"), 500, 500, nil)
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("proposer cannot answer their own offer", func(t *testing.T) {
		sess := newTestSession(t, 1, RoleA)
		_, err := sess.SubmitOffer("Player_AAAA0001", 500, 500)
		require.NoError(t, err)
		_, err = sess.SubmitResponse("Player_AAAA0001", ResponseAccept, 500, 500, nil)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestSession_TerminalSessionRejectsActions(t *testing.T) {
	sess := newTestSession(t, 1, RoleA)

	_, err := sess.SubmitOffer("Player_AAAA0001", 500, 500)
	require.NoError(t, err)
	_, err = sess.SubmitResponse("Player_BBBB0001", ResponseAccept, 500, 500, nil)
	require.NoError(t, err)

	_, err = sess.SubmitOffer("Player_BBBB0001", 400, 600)
	assert.ErrorIs(t, err, ErrGameEnded)
	_, err = sess.SubmitResponse("Player_AAAA0001", ResponseAccept, 400, 600, nil)
	assert.ErrorIs(t, err, ErrGameEnded)
}

func TestSession_FailedCommitLeavesStateUntouched(t *testing.T) {
	sess := newTestSession(t, 3, RoleA)

	_, err := sess.SubmitOffer("Player_AAAA0001", 600, 400)
	require.NoError(t, err)

	boom := errors.New("disk full")
	_, err = sess.SubmitResponse("Player_BBBB0001", ResponseAccept, 600, 400, func(RoundRecord, Summary) error {
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// Nothing advanced: still active, no rounds, offer still pending.
	assert.Equal(t, StatusActive, sess.Status())
	assert.Empty(t, sess.Rounds())
	assert.Nil(t, sess.Result())
	pending, ok := sess.Pending()
	require.True(t, ok)
	assert.Equal(t, 600, pending.OfferA)

	// Retrying the same response succeeds once the store recovers.
	outcome, err := sess.SubmitResponse("Player_BBBB0001", ResponseAccept, 600, 400, func(RoundRecord, Summary) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, outcome.Status)
}

func TestSession_CommitSeesPostTransitionSummary(t *testing.T) {
	sess := newTestSession(t, 2, RoleA)

	_, err := sess.SubmitOffer("Player_AAAA0001", 700, 300)
	require.NoError(t, err)

	var committed Summary
	var committedRound RoundRecord
	_, err = sess.SubmitResponse("Player_BBBB0001", ResponseTooLow, 700, 300, func(rec RoundRecord, sum Summary) error {
		committedRound = rec
		committed = sum
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Pair_TEST0001", committedRound.PairID)
	assert.Equal(t, 1, committedRound.RoundNumber)
	assert.Equal(t, StatusActive, committed.Status)
	assert.Equal(t, 2, committed.CurrentRound, "summary reflects the state after the transition")
	assert.Equal(t, RoleB, committed.CurrentTurn)
}

func TestSession_ViewForRestoresPerRoleState(t *testing.T) {
	sess := newTestSession(t, 3, RoleB)

	_, err := sess.SubmitOffer("Player_BBBB0001", 300, 700)
	require.NoError(t, err)
	_, err = sess.SubmitResponse("Player_AAAA0001", ResponseBetterOffer, 300, 700, nil)
	require.NoError(t, err)

	viewA, err := sess.ViewFor("Player_AAAA0001")
	require.NoError(t, err)
	assert.Equal(t, RoleA, viewA.Role)
	assert.Equal(t, 0, viewA.BATNA)
	assert.Equal(t, 2, viewA.CurrentRound)
	assert.Len(t, viewA.Rounds, 1)

	viewB, err := sess.ViewFor("Player_BBBB0001")
	require.NoError(t, err)
	assert.Equal(t, RoleB, viewB.Role)
	assert.Equal(t, 500, viewB.BATNA)

	_, err = sess.ViewFor("Player_XXXX0001")
	assert.ErrorIs(t, err, ErrNotFound)
}
