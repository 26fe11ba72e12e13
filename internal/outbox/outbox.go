package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Event statuses. The command core only ever writes PENDING rows; the
// dispatcher owns the transition to SENT.
const (
	StatusPending = "PENDING"
	StatusSent    = "SENT"
)

// Event is a row co-written with business state in the same transaction and
// delivered downstream at least once.
type Event struct {
	gorm.Model  `json:"-"`
	EventType   string `json:"event_type"`
	AggregateID int64  `gorm:"index" json:"aggregate_id"`
	Payload     string `json:"payload"`
	Status      string `gorm:"index" json:"status"`
}

// TableName pins events to the outbox table.
func (Event) TableName() string {
	return "outbox"
}

// Publisher delivers an outbox event downstream.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// LogPublisher is the default publisher: it logs the event and succeeds. A
// real deployment swaps in a broker-backed implementation.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event *Event) error {
	log.Info().
		Str("event_type", event.EventType).
		Int64("aggregate_id", event.AggregateID).
		Msg("published outbox event")
	return nil
}

// Dispatcher drains PENDING outbox rows on a fixed interval.
type Dispatcher struct {
	db        *gorm.DB
	publisher Publisher
	interval  time.Duration
	batchSize int
}

func NewDispatcher(db *gorm.DB, publisher Publisher, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Dispatcher{
		db:        db,
		publisher: publisher,
		interval:  interval,
		batchSize: 100,
	}
}

// Start begins the dispatch loop
func (d *Dispatcher) Start(ctx context.Context) {
	logger := log.With().Str("component", "outbox_dispatcher").Logger()
	logger.Info().Msg("starting outbox dispatcher")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down outbox dispatcher")
			return
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil {
				logger.Error().Err(err).Msg("failed to dispatch pending events")
			}
		}
	}
}

// DispatchPending publishes one batch of PENDING events and marks them SENT.
// Publish failures leave the row PENDING for the next pass, so delivery is
// at-least-once.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	var events []Event
	if err := d.db.Where("status = ?", StatusPending).
		Order("id").
		Limit(d.batchSize).
		Find(&events).Error; err != nil {
		return err
	}

	for i := range events {
		event := &events[i]
		if err := d.publisher.Publish(ctx, event); err != nil {
			log.Error().
				Err(err).
				Int64("aggregate_id", event.AggregateID).
				Str("event_type", event.EventType).
				Msg("failed to publish outbox event")
			continue
		}

		if err := d.db.Model(event).Update("status", StatusSent).Error; err != nil {
			return err
		}
	}

	return nil
}
