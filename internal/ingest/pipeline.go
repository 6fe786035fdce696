// Package ingest pulls activity events from external sources into the
// append-only ledger and resolves them into curation rows.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/epoch-ledger/internal/logging"
	"github.com/epoch-ledger/internal/models"
	"github.com/epoch-ledger/internal/source"
	"github.com/epoch-ledger/internal/types"
)

// LedgerStore is the persistence surface the ingestion pipeline needs.
type LedgerStore interface {
	GetEpochByWindow(ctx context.Context, nodeID, scopeID string, periodStart, periodEnd time.Time) (*models.Epoch, error)
	CreateEpoch(ctx context.Context, e *models.Epoch) error
	GetCursor(ctx context.Context, nodeID, scopeID, src, stream, sourceRef string) (*models.SourceCursor, error)
	UpsertCursor(ctx context.Context, c *models.SourceCursor) error
	InsertActivityEvents(ctx context.Context, events []models.ActivityEvent) error
}

// Pipeline runs the cursor-tracked pull for one epoch window. Every step is
// independently retryable: re-running any of them after a crash is safe.
type Pipeline struct {
	store    LedgerStore
	registry *source.Registry
	logger   *logging.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(store LedgerStore, registry *source.Registry, logger *logging.Logger) *Pipeline {
	return &Pipeline{store: store, registry: registry, logger: logger}
}

// IngestParams bounds one ingestion pass.
type IngestParams struct {
	NodeID       string
	ScopeID      string
	Source       string
	Stream       string
	SourceRef    string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	WeightConfig []byte
}

// IngestResult reports what one pass did.
type IngestResult struct {
	EpochID         string `json:"epochId"`
	EventsIngested  int    `json:"eventsIngested"`
	ProducerVersion string `json:"producerVersion"`
	CursorAdvanced  bool   `json:"cursorAdvanced"`
}

// Ingest runs one full pass: ensure the epoch, load the cursor, collect from
// the source, append the events, advance the cursor.
func (p *Pipeline) Ingest(ctx context.Context, params IngestParams) (*IngestResult, error) {
	ep, err := p.EnsureEpochForWindow(ctx, params.NodeID, params.ScopeID, params.PeriodStart, params.PeriodEnd, params.WeightConfig)
	if err != nil {
		return nil, err
	}

	cursor, err := p.LoadCursor(ctx, params.NodeID, params.ScopeID, params.Source, params.Stream, params.SourceRef)
	if err != nil {
		return nil, err
	}

	collected, version, err := p.CollectFromSource(ctx, params.Source, source.CollectParams{
		NodeID:      params.NodeID,
		ScopeID:     params.ScopeID,
		SourceRef:   params.SourceRef,
		Streams:     []string{params.Stream},
		Cursor:      cursor,
		PeriodStart: params.PeriodStart,
		PeriodEnd:   params.PeriodEnd,
	})
	if err != nil {
		return nil, err
	}

	if err := p.InsertEvents(ctx, collected.Events, version); err != nil {
		return nil, err
	}

	advanced := false
	if collected.NextCursor != nil {
		advanced, err = p.SaveCursor(ctx, params.NodeID, params.ScopeID, params.Source, params.Stream, params.SourceRef, *collected.NextCursor)
		if err != nil {
			return nil, err
		}
	}

	return &IngestResult{
		EpochID:         ep.ID,
		EventsIngested:  len(collected.Events),
		ProducerVersion: version,
		CursorAdvanced:  advanced,
	}, nil
}

// EnsureEpochForWindow returns the epoch for the exact window, creating it
// with the given weight config when absent. The config is pinned at
// creation: a later caller with a different config gets the existing epoch
// back unchanged and the drift is logged, never applied.
func (p *Pipeline) EnsureEpochForWindow(ctx context.Context, nodeID, scopeID string, periodStart, periodEnd time.Time, weightConfig []byte) (*models.Epoch, error) {
	existing, err := p.store.GetEpochByWindow(ctx, nodeID, scopeID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to look up epoch by window: %w", err)
	}
	if existing != nil {
		if !bytes.Equal(existing.WeightConfig, weightConfig) {
			p.logger.WithFields(map[string]interface{}{
				"epochId":     existing.ID,
				"periodStart": periodStart.Format(time.RFC3339),
			}).Warn("weight config drift detected, keeping pinned config")
		}
		return existing, nil
	}

	ep := &models.Epoch{
		ID:           uuid.New().String(),
		NodeID:       nodeID,
		ScopeID:      scopeID,
		Status:       types.EpochOpen,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		WeightConfig: weightConfig,
		OpenedAt:     time.Now().UTC(),
	}
	if err := p.store.CreateEpoch(ctx, ep); err != nil {
		// A concurrent creator may have won the race; the window row is
		// unique, so re-reading settles it.
		if raced, lookupErr := p.store.GetEpochByWindow(ctx, nodeID, scopeID, periodStart, periodEnd); lookupErr == nil && raced != nil {
			return raced, nil
		}
		return nil, fmt.Errorf("failed to create epoch: %w", err)
	}
	return ep, nil
}

// LoadCursor returns the last persisted cursor value, or nil when no pull
// has happened yet.
func (p *Pipeline) LoadCursor(ctx context.Context, nodeID, scopeID, src, stream, sourceRef string) (*string, error) {
	cursor, err := p.store.GetCursor(ctx, nodeID, scopeID, src, stream, sourceRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor: %w", err)
	}
	if cursor == nil {
		return nil, nil
	}
	return &cursor.Value, nil
}

// CollectFromSource delegates to the registered adapter. When no adapter is
// registered for the source the pull degrades to an empty result with an
// unknown producer version; the pipeline keeps ticking either way.
func (p *Pipeline) CollectFromSource(ctx context.Context, src string, params source.CollectParams) (*source.CollectResult, string, error) {
	adapter := p.registry.Get(src)
	if adapter == nil {
		p.logger.WithField("source", src).Warn("no adapter registered for source, returning empty result")
		return &source.CollectResult{}, source.VersionUnknown, nil
	}

	result, err := adapter.Collect(ctx, params)
	if err != nil {
		return nil, "", fmt.Errorf("failed to collect from source %s: %w", src, err)
	}
	return result, adapter.Version(), nil
}

// InsertEvents appends collected events, stamping the producer version and
// ingestion time. Empty input is a no-op.
func (p *Pipeline) InsertEvents(ctx context.Context, events []models.ActivityEvent, producerVersion string) error {
	if len(events) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for i := range events {
		events[i].ProducerVersion = producerVersion
		events[i].IngestedAt = now
	}

	if err := p.store.InsertActivityEvents(ctx, events); err != nil {
		return fmt.Errorf("failed to insert activity events: %w", err)
	}
	return nil
}

// SaveCursor persists the greater of the stored cursor and newValue. A
// write that would move the cursor backwards re-persists the stored value
// instead; cursors only ever advance. Reports whether the cursor moved.
func (p *Pipeline) SaveCursor(ctx context.Context, nodeID, scopeID, src, stream, sourceRef, newValue string) (bool, error) {
	stored, err := p.store.GetCursor(ctx, nodeID, scopeID, src, stream, sourceRef)
	if err != nil {
		return false, fmt.Errorf("failed to read cursor before save: %w", err)
	}

	value := newValue
	advanced := true
	if stored != nil && strings.Compare(stored.Value, newValue) >= 0 {
		value = stored.Value
		advanced = false
	}

	err = p.store.UpsertCursor(ctx, &models.SourceCursor{
		NodeID:    nodeID,
		ScopeID:   scopeID,
		Source:    src,
		Stream:    stream,
		SourceRef: sourceRef,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to save cursor: %w", err)
	}
	return advanced, nil
}
