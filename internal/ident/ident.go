// Package ident mints the opaque player and pair identifiers used across the
// queue, registry and data exports.
package ident

import (
	"crypto/rand"
	"fmt"
)

// Base32 alphabet (Crockford's base32): unambiguous and URL-safe.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of the random portion of an identifier.
const idLength = 8

// RandSource interface for dependency injection of randomness
type RandSource interface {
	IntN(n int) int
}

// Generator mints identifiers with configurable randomness. A nil RandSource
// uses crypto/rand.
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a new generator with optional RandSource
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// NewPlayerID creates a fresh player identifier, e.g. "Player_x7k2mq0d".
func (g *Generator) NewPlayerID() string {
	return "Player_" + g.random(idLength)
}

// NewPairID creates a fresh pair identifier, e.g. "Pair_9f3tz04w".
func (g *Generator) NewPairID() string {
	return "Pair_" + g.random(idLength)
}

func (g *Generator) random(n int) string {
	out := make([]byte, n)

	if g.randSource != nil {
		// Deterministic source for tests.
		for i := range out {
			out[i] = alphabet[g.randSource.IntN(len(alphabet))]
		}
		return string(out)
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}

// Validate checks that an identifier carries a known prefix and a random part
// drawn from the base32 alphabet.
func Validate(id string) error {
	var rest string
	switch {
	case len(id) > len("Player_") && id[:len("Player_")] == "Player_":
		rest = id[len("Player_"):]
	case len(id) > len("Pair_") && id[:len("Pair_")] == "Pair_":
		rest = id[len("Pair_"):]
	default:
		return fmt.Errorf("identifier %q has no known prefix", id)
	}

	for i, char := range rest {
		valid := false
		for _, validChar := range alphabet {
			if char == validChar {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}
	return nil
}
