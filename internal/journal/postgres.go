package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	pqUniqueViolation        = "23505"
	pqSerializationFailure   = "40001"
	defaultMaxAppendAttempts = 5
)

// Schema creates the journal table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS journal (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id BIGINT NOT NULL,
	event_type TEXT NOT NULL,
	event_data JSONB NOT NULL,
	version INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (aggregate_type, aggregate_id, version)
);
`

// Store is a Postgres-backed Journal with optimistic concurrency per aggregate.
type Store struct {
	db          *sqlx.DB
	tracer      trace.Tracer
	maxAttempts uint
}

// NewStore creates a journal store on an open connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:          db,
		tracer:      otel.Tracer("libraryloans/journal"),
		maxAttempts: defaultMaxAppendAttempts,
	}
}

// Append atomically appends entries after expectedVersion. It fails with
// ErrConcurrencyConflict when the aggregate has moved on.
func (s *Store) Append(ctx context.Context, aggregateType string, aggregateID int64, expectedVersion int, entries []Entry) error {
	ctx, span := s.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.String("aggregate.type", aggregateType),
			attribute.Int64("aggregate.id", aggregateID),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("entry.count", len(entries)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.GetContext(ctx, &currentVersion, `
		SELECT COALESCE(MAX(version), 0)
		FROM journal
		WHERE aggregate_type = $1 AND aggregate_id = $2
	`, aggregateType, aggregateID)
	if err != nil {
		return fmt.Errorf("query current version: %w", mapConflict(err))
	}

	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO journal (id, aggregate_type, aggregate_id, event_type, event_data, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, entry := range entries {
		version := expectedVersion + i + 1
		id := entry.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		_, err = stmt.ExecContext(ctx,
			id,
			aggregateType,
			aggregateID,
			entry.EventType,
			string(entry.EventData),
			version,
			time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert entry %d: %w", i, mapConflict(err))
		}

		span.AddEvent("entry.appended", trace.WithAttributes(
			attribute.String("entry.id", id.String()),
			attribute.Int("entry.version", version),
			attribute.String("entry.type", entry.EventType),
		))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapConflict(err))
	}

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// Record appends one entry at the aggregate's next version, retrying with
// exponential backoff when a concurrent writer got there first.
func (s *Store) Record(ctx context.Context, aggregateType string, aggregateID int64, eventType string, data any) error {
	payload, err := codec.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal entry data: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		version, err := s.CurrentVersion(ctx, aggregateType, aggregateID)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		err = s.Append(ctx, aggregateType, aggregateID, version, []Entry{{
			EventType: eventType,
			EventData: payload,
		}})
		if err != nil && !errors.Is(err, ErrConcurrencyConflict) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.maxAttempts),
	)
	return err
}

// Load returns every entry of an aggregate ordered by version.
func (s *Store) Load(ctx context.Context, aggregateType string, aggregateID int64) ([]Entry, error) {
	ctx, span := s.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(
			attribute.String("aggregate.type", aggregateType),
			attribute.Int64("aggregate.id", aggregateID),
		),
	)
	defer span.End()

	entries := []Entry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT id, aggregate_type, aggregate_id, event_type, event_data, version, created_at
		FROM journal
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY version ASC
	`, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}

	span.SetAttributes(attribute.Int("entries.loaded", len(entries)))
	return entries, nil
}

// CurrentVersion returns the latest version recorded for an aggregate, or 0.
func (s *Store) CurrentVersion(ctx context.Context, aggregateType string, aggregateID int64) (int, error) {
	ctx, span := s.tracer.Start(ctx, "journal.current_version",
		trace.WithAttributes(
			attribute.String("aggregate.type", aggregateType),
			attribute.Int64("aggregate.id", aggregateID),
		),
	)
	defer span.End()

	var version int
	err := s.db.GetContext(ctx, &version, `
		SELECT COALESCE(MAX(version), 0)
		FROM journal
		WHERE aggregate_type = $1 AND aggregate_id = $2
	`, aggregateType, aggregateID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query version: %w", err)
	}

	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}

// mapConflict turns the Postgres errors raised by racing appends into
// ErrConcurrencyConflict.
func mapConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation, pqSerializationFailure:
			return ErrConcurrencyConflict
		}
	}
	return err
}
