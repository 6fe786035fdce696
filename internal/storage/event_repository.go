package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/epoch-ledger/internal/ingest"
	"github.com/epoch-ledger/internal/models"
)

// EventRepository handles the append-only activity event log. Events are
// only ever inserted; the ON CONFLICT DO NOTHING on the source-derived ID
// makes re-pulls of the same window safe.
type EventRepository struct {
	db *PostgresDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *PostgresDB) *EventRepository {
	return &EventRepository{db: db}
}

// InsertActivityEvents appends a batch of events. Duplicate IDs from
// overlapping pulls are silently skipped.
func (r *EventRepository) InsertActivityEvents(ctx context.Context, events []models.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	query := `
		INSERT INTO activity_events (
			id, node_id, scope_id, source, event_type, platform_user_id,
			payload_hash, producer, producer_version, event_time,
			retrieved_at, ingested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(query,
			e.ID, e.NodeID, e.ScopeID, e.Source, e.EventType, e.PlatformUserID,
			e.PayloadHash, e.Producer, e.ProducerVersion, e.EventTime,
			e.RetrievedAt, e.IngestedAt,
		)
	}

	results := r.db.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert activity events: %w", err)
		}
	}
	return nil
}

// GetActivityForWindow retrieves events whose event time falls inside the
// window for a (node, scope)
func (r *EventRepository) GetActivityForWindow(ctx context.Context, nodeID, scopeID string, periodStart, periodEnd time.Time) ([]*models.ActivityEvent, error) {
	query := `
		SELECT id, node_id, scope_id, source, event_type, platform_user_id,
		       payload_hash, producer, producer_version, event_time,
		       retrieved_at, ingested_at
		FROM activity_events
		WHERE node_id = $1 AND scope_id = $2
		  AND event_time >= $3 AND event_time < $4
		ORDER BY event_time
	`

	rows, err := r.db.Pool().Query(ctx, query, nodeID, scopeID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity for window: %w", err)
	}
	defer rows.Close()

	var events []*models.ActivityEvent
	for rows.Next() {
		var e models.ActivityEvent
		err := rows.Scan(
			&e.ID, &e.NodeID, &e.ScopeID, &e.Source, &e.EventType, &e.PlatformUserID,
			&e.PayloadHash, &e.Producer, &e.ProducerVersion, &e.EventTime,
			&e.RetrievedAt, &e.IngestedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity events: %w", err)
	}
	return events, nil
}

// GetUncuratedEvents retrieves the epoch's events that still lack a
// resolved identity: events with no curation row, and events whose row's
// user is still null.
func (r *EventRepository) GetUncuratedEvents(ctx context.Context, epochID string) ([]ingest.UncuratedEvent, error) {
	query := `
		SELECT e.id, e.source, e.platform_user_id, c.event_id IS NOT NULL AS has_curation
		FROM activity_events e
		JOIN epochs ep
		  ON ep.id = $1
		 AND e.node_id = ep.node_id AND e.scope_id = ep.scope_id
		 AND e.event_time >= ep.period_start AND e.event_time < ep.period_end
		LEFT JOIN curations c
		  ON c.epoch_id = $1 AND c.event_id = e.id
		WHERE c.event_id IS NULL OR c.user_id IS NULL
		ORDER BY e.event_time
	`

	rows, err := r.db.Pool().Query(ctx, query, epochID)
	if err != nil {
		return nil, fmt.Errorf("failed to get uncurated events: %w", err)
	}
	defer rows.Close()

	var events []ingest.UncuratedEvent
	for rows.Next() {
		var e ingest.UncuratedEvent
		if err := rows.Scan(&e.EventID, &e.Source, &e.PlatformUserID, &e.HasCuration); err != nil {
			return nil, fmt.Errorf("failed to scan uncurated event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uncurated events: %w", err)
	}
	return events, nil
}
