package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"callpulse/internal/calls"
)

// Postgres appends terminal call records for offline reporting. The live
// store stays the source of truth; losing the archive never affects
// ingestion, and a process restart still loses in-memory state by design.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const schema = `
CREATE TABLE IF NOT EXISTS call_archive (
	call_id          TEXT PRIMARY KEY,
	call_type        TEXT NOT NULL,
	status           TEXT NOT NULL,
	purpose          TEXT NOT NULL,
	customer_number  TEXT,
	created_at       TIMESTAMPTZ NOT NULL,
	started_at       TIMESTAMPTZ,
	ended_at         TIMESTAMPTZ,
	duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost             DOUBLE PRECISION NOT NULL DEFAULT 0,
	ended_reason     TEXT,
	error            TEXT,
	event_count      INT NOT NULL DEFAULT 0,
	transcript       JSONB
)`

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("archive: ensure schema: %w", err)
	}
	return nil
}

// ArchiveCall upserts one terminal record. Replayed terminal events make
// this naturally idempotent.
func (p *Postgres) ArchiveCall(ctx context.Context, rec calls.Record) error {
	transcript, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("archive: marshal transcript: %w", err)
	}

	const q = `
INSERT INTO call_archive (
	call_id, call_type, status, purpose, customer_number,
	created_at, started_at, ended_at,
	duration_seconds, cost, ended_reason, error, event_count, transcript
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (call_id) DO UPDATE SET
	status = EXCLUDED.status,
	ended_at = EXCLUDED.ended_at,
	duration_seconds = EXCLUDED.duration_seconds,
	cost = EXCLUDED.cost,
	ended_reason = EXCLUDED.ended_reason,
	error = EXCLUDED.error,
	event_count = EXCLUDED.event_count,
	transcript = EXCLUDED.transcript`

	_, err = p.db.ExecContext(ctx, q,
		rec.ID, string(rec.Type), string(rec.Status), rec.Purpose, nullable(rec.CustomerNumber),
		rec.CreatedAt, rec.StartedAt, rec.EndedAt,
		rec.DurationSeconds, rec.Cost, nullable(rec.EndedReason), nullable(rec.Error),
		len(rec.Events), transcript,
	)
	if err != nil {
		return fmt.Errorf("archive: upsert call %s: %w", rec.ID, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
