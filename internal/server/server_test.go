package server

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"

	"bargain/internal/ident"
	"bargain/internal/negotiation"
	"bargain/internal/randutil"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := testLogger()
	rules := negotiation.DefaultRules()
	rng := randutil.New(1)
	ids := ident.NewGenerator(rng)

	srv := NewServer("localhost:0", logger)
	queue := negotiation.NewQueue(rules, rng, ids, logger)
	engine := negotiation.NewEngine(queue, negotiation.NewRegistry(), nil, srv, rules, ids, quartz.NewReal(), logger)
	srv.SetEngine(engine)
	return srv
}

// A connection that expires after its player already rebound on a fresh one
// must not count as the player disconnecting.
func TestServer_RemoveConnectionDetectsRebind(t *testing.T) {
	srv := newTestServer(t)

	stale := NewConnection(nil, testLogger(), srv)
	stale.SetPlayer("Player_00000001")
	fresh := NewConnection(nil, testLogger(), srv)
	fresh.SetPlayer("Player_00000001")
	srv.connections[stale] = true
	srv.connections[fresh] = true

	removed, rebound, total := srv.removeConnection(stale)
	assert.True(t, removed)
	assert.True(t, rebound, "fresh connection still carries the player")
	assert.Equal(t, 1, total)

	removed, rebound, total = srv.removeConnection(fresh)
	assert.True(t, removed)
	assert.False(t, rebound, "last connection gone, player really disconnected")
	assert.Equal(t, 0, total)

	removed, _, _ = srv.removeConnection(stale)
	assert.False(t, removed, "double unregister is a no-op")
}

func TestServer_RemoveConnectionIgnoresOtherPlayers(t *testing.T) {
	srv := newTestServer(t)

	one := NewConnection(nil, testLogger(), srv)
	one.SetPlayer("Player_00000001")
	other := NewConnection(nil, testLogger(), srv)
	other.SetPlayer("Player_00000002")
	srv.connections[one] = true
	srv.connections[other] = true

	_, rebound, _ := srv.removeConnection(one)
	assert.False(t, rebound, "a different player's connection is not a rebind")
}

func TestServer_SendToPlayerRoutesByID(t *testing.T) {
	srv := newTestServer(t)

	conn := NewConnection(nil, testLogger(), srv)
	conn.SetPlayer("Player_00000001")
	srv.connections[conn] = true

	msg, err := NewMessage(MessageTypeWaitingForPair, negotiation.WaitingForPairEvent{Message: "hold on"})
	assert.NoError(t, err)

	assert.NoError(t, srv.SendToPlayer("Player_00000001", msg))
	select {
	case got := <-conn.send:
		assert.Equal(t, MessageTypeWaitingForPair, got.Type)
	default:
		t.Fatal("message not queued on the player's connection")
	}

	assert.Error(t, srv.SendToPlayer("Player_00000009", msg))
}
