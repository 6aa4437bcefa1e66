package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bargain/internal/negotiation"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency between game commits and exports.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		pair_id        TEXT PRIMARY KEY,
		group_number   INTEGER NOT NULL,
		status         TEXT NOT NULL,
		player_a_id    TEXT NOT NULL,
		player_a_batna INTEGER NOT NULL,
		player_b_id    TEXT NOT NULL,
		player_b_batna INTEGER NOT NULL,
		current_turn   TEXT NOT NULL,
		current_round  INTEGER NOT NULL,
		result_type    TEXT,
		final_offer_a  INTEGER,
		final_offer_b  INTEGER,
		payout_a       INTEGER,
		payout_b       INTEGER,
		reason         TEXT,
		created_at     INTEGER NOT NULL,
		completed_at   INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_group ON sessions(group_number);

	CREATE TABLE IF NOT EXISTS rounds (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		pair_id      TEXT NOT NULL,
		group_number INTEGER NOT NULL,
		round_number INTEGER NOT NULL,
		proposer     TEXT NOT NULL,
		offer_a      INTEGER NOT NULL,
		offer_b      INTEGER NOT NULL,
		response     TEXT NOT NULL,
		timestamp    INTEGER NOT NULL,
		UNIQUE(pair_id, round_number)
	);
	CREATE INDEX IF NOT EXISTS idx_rounds_pair ON rounds(pair_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession writes the initial summary row for a freshly created pair.
func (s *SQLiteStore) CreateSession(ctx context.Context, sum negotiation.Summary) error {
	if err := s.upsertSummary(ctx, s.db, sum); err != nil {
		return fmt.Errorf("create session %s: %w", sum.PairID, err)
	}
	return nil
}

// CommitResponse records a completed round and the session state it produced
// in one transaction. Either both rows land or neither does.
func (s *SQLiteStore) CommitResponse(ctx context.Context, rec negotiation.RoundRecord, sum negotiation.Summary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit for pair %s: %w", rec.PairID, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rounds (pair_id, group_number, round_number, proposer, offer_a, offer_b, response, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.PairID, rec.GroupNumber, rec.RoundNumber, string(rec.Proposer),
		rec.OfferA, rec.OfferB, string(rec.Response), rec.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert round %d for pair %s: %w", rec.RoundNumber, rec.PairID, err)
	}

	if err := s.upsertSummary(ctx, tx, sum); err != nil {
		return fmt.Errorf("update summary for pair %s: %w", sum.PairID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit round %d for pair %s: %w", rec.RoundNumber, rec.PairID, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) upsertSummary(ctx context.Context, db execer, sum negotiation.Summary) error {
	var (
		resultType, reason               sql.NullString
		finalA, finalB, payoutA, payoutB sql.NullInt64
		completedAt                      sql.NullInt64
	)
	if sum.Result != nil {
		resultType = sql.NullString{String: string(sum.Result.Type), Valid: true}
		reason = sql.NullString{String: sum.Result.Reason, Valid: true}
		finalA = sql.NullInt64{Int64: int64(sum.Result.FinalOfferA), Valid: true}
		finalB = sql.NullInt64{Int64: int64(sum.Result.FinalOfferB), Valid: true}
		payoutA = sql.NullInt64{Int64: int64(sum.Result.PayoutA), Valid: true}
		payoutB = sql.NullInt64{Int64: int64(sum.Result.PayoutB), Valid: true}
	}
	if sum.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: sum.CompletedAt.UnixMilli(), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (pair_id, group_number, status,
			player_a_id, player_a_batna, player_b_id, player_b_batna,
			current_turn, current_round,
			result_type, final_offer_a, final_offer_b, payout_a, payout_b, reason,
			created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pair_id) DO UPDATE SET
			status = excluded.status,
			current_turn = excluded.current_turn,
			current_round = excluded.current_round,
			result_type = excluded.result_type,
			final_offer_a = excluded.final_offer_a,
			final_offer_b = excluded.final_offer_b,
			payout_a = excluded.payout_a,
			payout_b = excluded.payout_b,
			reason = excluded.reason,
			completed_at = excluded.completed_at`,
		sum.PairID, sum.GroupNumber, string(sum.Status),
		sum.PlayerA.PlayerID, sum.PlayerA.BATNA, sum.PlayerB.PlayerID, sum.PlayerB.BATNA,
		string(sum.CurrentTurn), sum.CurrentRound,
		resultType, finalA, finalB, payoutA, payoutB, reason,
		sum.CreatedAt.UnixMilli(), completedAt,
	)
	return err
}

// ListRounds returns every recorded round, ordered by pair then round number.
func (s *SQLiteStore) ListRounds(ctx context.Context) ([]negotiation.RoundRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pair_id, group_number, round_number, proposer, offer_a, offer_b, response, timestamp
		FROM rounds ORDER BY pair_id, round_number`)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []negotiation.RoundRecord
	for rows.Next() {
		var (
			rec                negotiation.RoundRecord
			proposer, response string
			ts                 int64
		)
		if err := rows.Scan(&rec.PairID, &rec.GroupNumber, &rec.RoundNumber,
			&proposer, &rec.OfferA, &rec.OfferB, &response, &ts); err != nil {
			return nil, fmt.Errorf("scan round row: %w", err)
		}
		rec.Proposer = negotiation.Role(proposer)
		rec.Response = negotiation.Response(response)
		rec.Timestamp = time.UnixMilli(ts)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListSummaries returns the summary row of every session.
func (s *SQLiteStore) ListSummaries(ctx context.Context) ([]negotiation.Summary, error) {
	rows, err := s.db.QueryContext(ctx, selectSummary+` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sums []negotiation.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		sums = append(sums, *sum)
	}
	return sums, rows.Err()
}

// GetSummary returns the summary row for one pair, or nil if unknown.
func (s *SQLiteStore) GetSummary(ctx context.Context, pairID string) (*negotiation.Summary, error) {
	rows, err := s.db.QueryContext(ctx, selectSummary+` WHERE pair_id = ?`, pairID)
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", pairID, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanSummary(rows)
}

const selectSummary = `
	SELECT pair_id, group_number, status,
		player_a_id, player_a_batna, player_b_id, player_b_batna,
		current_turn, current_round,
		result_type, final_offer_a, final_offer_b, payout_a, payout_b, reason,
		created_at, completed_at
	FROM sessions`

func scanSummary(rows *sql.Rows) (*negotiation.Summary, error) {
	var (
		sum                              negotiation.Summary
		status, turn                     string
		resultType, reason               sql.NullString
		finalA, finalB, payoutA, payoutB sql.NullInt64
		createdAt                        int64
		completedAt                      sql.NullInt64
	)

	err := rows.Scan(&sum.PairID, &sum.GroupNumber, &status,
		&sum.PlayerA.PlayerID, &sum.PlayerA.BATNA, &sum.PlayerB.PlayerID, &sum.PlayerB.BATNA,
		&turn, &sum.CurrentRound,
		&resultType, &finalA, &finalB, &payoutA, &payoutB, &reason,
		&createdAt, &completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sum.Status = negotiation.Status(status)
	sum.CurrentTurn = negotiation.Role(turn)
	sum.CreatedAt = time.UnixMilli(createdAt)
	if completedAt.Valid {
		done := time.UnixMilli(completedAt.Int64)
		sum.CompletedAt = &done
	}
	if resultType.Valid {
		sum.Result = &negotiation.Result{
			Type:        negotiation.ResultType(resultType.String),
			FinalOfferA: int(finalA.Int64),
			FinalOfferB: int(finalB.Int64),
			PayoutA:     int(payoutA.Int64),
			PayoutB:     int(payoutB.Int64),
			Reason:      reason.String,
		}
	}
	return &sum, nil
}
