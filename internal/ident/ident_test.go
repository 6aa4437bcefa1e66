package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bargain/internal/randutil"
)

func TestGenerator_Prefixes(t *testing.T) {
	g := NewGenerator(nil)

	player := g.NewPlayerID()
	assert.True(t, strings.HasPrefix(player, "Player_"), "got %q", player)
	assert.Len(t, player, len("Player_")+idLength)

	pair := g.NewPairID()
	assert.True(t, strings.HasPrefix(pair, "Pair_"), "got %q", pair)
	assert.Len(t, pair, len("Pair_")+idLength)
}

func TestGenerator_DeterministicWithSeed(t *testing.T) {
	a := NewGenerator(randutil.New(42))
	b := NewGenerator(randutil.New(42))

	for i := 0; i < 5; i++ {
		assert.Equal(t, a.NewPlayerID(), b.NewPlayerID())
		assert.Equal(t, a.NewPairID(), b.NewPairID())
	}
}

func TestGenerator_Uniqueness(t *testing.T) {
	g := NewGenerator(nil)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.NewPlayerID()
		require.False(t, seen[id], "duplicate id %s after %d draws", id, i)
		seen[id] = true
	}
}

func TestValidate(t *testing.T) {
	g := NewGenerator(randutil.New(1))
	assert.NoError(t, Validate(g.NewPlayerID()))
	assert.NoError(t, Validate(g.NewPairID()))

	assert.Error(t, Validate("nobody"))
	assert.Error(t, Validate("Player_"))
	assert.Error(t, Validate("Player_UPPER!"))
}
