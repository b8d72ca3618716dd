// Package mirror forwards committed engine events to an external
// spreadsheet-like sink. The mirror is strictly fire-and-forget: the ledger
// commit has already happened by the time an event reaches it, so a sink
// failure is logged and swallowed, never surfaced.
package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/cozykbin/Jipsa-bot/internal/domain/shared"
	"github.com/cozykbin/Jipsa-bot/pkg/retry"
)

// Row is one appended line in the external sink.
type Row struct {
	Timestamp   time.Time              `json:"timestamp"`
	EventType   string                 `json:"event_type"`
	AggregateID string                 `json:"aggregate_id"`
	Payload     map[string]interface{} `json:"payload"`
}

// Sink appends rows to the external destination.
type Sink interface {
	Append(ctx context.Context, row Row) error
}

// Mirror subscribes to the event bus and appends every event to the sink.
type Mirror struct {
	sink    Sink
	retrier *retry.Retrier
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a mirror over the given sink.
func New(sink Sink, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		sink: sink,
		retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(200*time.Millisecond),
			retry.WithMaxDelay(2*time.Second),
		),
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// Attach subscribes the mirror to every event on the bus.
func (m *Mirror) Attach(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(m.handle)
}

// handle appends one event. It always returns nil so the bus never treats a
// sink outage as a handler failure worth surfacing.
func (m *Mirror) handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	row := Row{
		Timestamp:   event.OccurredAt(),
		EventType:   string(event.EventType()),
		AggregateID: event.AggregateID(),
		Payload:     event.Payload(),
	}

	err := m.retrier.Do(ctx, func(ctx context.Context) error {
		return m.sink.Append(ctx, row)
	})
	if err != nil {
		m.logger.Warn("mirror append failed",
			"event_type", row.EventType,
			"aggregate_id", row.AggregateID,
			"error", err,
		)
	}
	return nil
}
