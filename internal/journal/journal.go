// Package journal is an in-memory, append-only log of domain events with
// per-aggregate optimistic versioning.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidPayload      = errors.New("invalid event payload")
	ErrEmptyBatch          = errors.New("no events to append")
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is one recorded domain fact.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	Sequence      int64           `json:"sequence"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewEvent encodes payload and returns an unsequenced event of the given type.
func NewEvent(eventType string, payload any) (Event, error) {
	data, err := codec.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{EventType: eventType, Data: data}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return codec.Unmarshal(e.Data, v)
}

// stream identifies one aggregate; ids are only unique within a type.
type stream struct {
	aggregateType string
	aggregateID   string
}

// Journal keeps events in append order.
type Journal struct {
	mu       sync.RWMutex
	events   []Event
	versions map[stream]int
	now      func() time.Time
	tracer   trace.Tracer
}

// New returns an empty journal stamping events with now.
func New(now func() time.Time) *Journal {
	if now == nil {
		now = time.Now
	}
	return &Journal{
		versions: make(map[stream]int),
		now:      now,
		tracer:   otel.Tracer("lendingdesk/journal"),
	}
}

// AppendEvents atomically appends events for one aggregate. expectedVersion must
// equal the aggregate's current version.
func (j *Journal) AppendEvents(ctx context.Context, aggregateID, aggregateType string, expectedVersion int, events []Event) error {
	_, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if len(events) == 0 {
		return ErrEmptyBatch
	}
	for i, event := range events {
		if !codec.Valid(event.Data) {
			return fmt.Errorf("event %d (%s): %w", i, event.EventType, ErrInvalidPayload)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	key := stream{aggregateType: aggregateType, aggregateID: aggregateID}
	currentVersion := j.versions[key]
	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	createdAt := j.now().UTC()
	for i, event := range events {
		event.ID = uuid.New()
		event.Sequence = int64(len(j.events) + 1)
		event.AggregateID = aggregateID
		event.AggregateType = aggregateType
		event.Version = expectedVersion + i + 1
		event.CreatedAt = createdAt
		j.events = append(j.events, event)

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.sequence", event.Sequence),
			attribute.Int("event.version", event.Version),
			attribute.String("event.type", event.EventType),
		))
	}
	j.versions[key] = expectedVersion + len(events)

	return nil
}

// LoadEvents returns an aggregate's events with fromVersion <= version <= toVersion.
// A toVersion of 0 means no upper bound.
func (j *Journal) LoadEvents(ctx context.Context, aggregateType, aggregateID string, fromVersion, toVersion int) ([]Event, error) {
	_, span := j.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	j.mu.RLock()
	defer j.mu.RUnlock()

	var events []Event
	for _, event := range j.events {
		if event.AggregateType != aggregateType || event.AggregateID != aggregateID || event.Version < fromVersion {
			continue
		}
		if toVersion > 0 && event.Version > toVersion {
			continue
		}
		events = append(events, event)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// CurrentVersion returns the latest version recorded for an aggregate, 0 if none.
func (j *Journal) CurrentVersion(aggregateType, aggregateID string) int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.versions[stream{aggregateType: aggregateType, aggregateID: aggregateID}]
}

// StreamEvents returns up to batchSize events with a sequence greater than afterSequence.
func (j *Journal) StreamEvents(ctx context.Context, afterSequence int64, batchSize int) ([]Event, error) {
	_, span := j.tracer.Start(ctx, "journal.stream",
		trace.WithAttributes(
			attribute.Int64("after.sequence", afterSequence),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	start := int(afterSequence)
	if start < 0 {
		start = 0
	}
	if start >= len(j.events) {
		return []Event{}, nil
	}
	end := start + batchSize
	if end > len(j.events) {
		end = len(j.events)
	}

	events := make([]Event, end-start)
	copy(events, j.events[start:end])

	span.SetAttributes(attribute.Int("events.streamed", len(events)))
	return events, nil
}

// Len returns the number of recorded events.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}
