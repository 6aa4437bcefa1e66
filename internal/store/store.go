// Package store persists the negotiation data trail consumed by the export
// tooling: one row per completed round plus one summary row per session.
package store

import (
	"context"

	"bargain/internal/negotiation"
)

// Repository is the full persistence surface. The engine only needs the
// negotiation.Store subset; the HTTP API and export command use the rest.
type Repository interface {
	negotiation.Store

	// ListRounds returns every recorded round across all sessions, ordered
	// by pair then round number.
	ListRounds(ctx context.Context) ([]negotiation.RoundRecord, error)

	// ListSummaries returns the summary row of every session.
	ListSummaries(ctx context.Context) ([]negotiation.Summary, error)

	// GetSummary returns the summary row for one pair, or nil if unknown.
	GetSummary(ctx context.Context, pairID string) (*negotiation.Summary, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying database.
	Close() error
}
