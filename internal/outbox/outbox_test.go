package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	published []int64
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, event *Event) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event.AggregateID)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Event{}))
	return db
}

func seedEvent(t *testing.T, db *gorm.DB, aggregateID int64, status string) {
	t.Helper()
	require.NoError(t, db.Create(&Event{
		EventType:   "ORDER_PLACED",
		AggregateID: aggregateID,
		Payload:     `{"orderId":1}`,
		Status:      status,
	}).Error)
}

func TestDispatchPending(t *testing.T) {
	db := newTestDB(t)
	publisher := &recordingPublisher{}
	dispatcher := NewDispatcher(db, publisher, time.Second)

	seedEvent(t, db, 1, StatusPending)
	seedEvent(t, db, 2, StatusPending)
	seedEvent(t, db, 3, StatusSent)

	require.NoError(t, dispatcher.DispatchPending(context.Background()))
	require.Equal(t, []int64{1, 2}, publisher.published)

	var pending int64
	require.NoError(t, db.Model(&Event{}).Where("status = ?", StatusPending).Count(&pending).Error)
	require.Zero(t, pending)
}

func TestDispatchPending_PublishFailureLeavesRowPending(t *testing.T) {
	db := newTestDB(t)
	publisher := &recordingPublisher{err: errors.New("broker down")}
	dispatcher := NewDispatcher(db, publisher, time.Second)

	seedEvent(t, db, 1, StatusPending)

	require.NoError(t, dispatcher.DispatchPending(context.Background()))

	// Still pending for the next pass: delivery is at-least-once.
	var pending int64
	require.NoError(t, db.Model(&Event{}).Where("status = ?", StatusPending).Count(&pending).Error)
	require.Equal(t, int64(1), pending)

	publisher.err = nil
	require.NoError(t, dispatcher.DispatchPending(context.Background()))
	require.Equal(t, []int64{1}, publisher.published)
}

func TestDispatchPending_Empty(t *testing.T) {
	db := newTestDB(t)
	dispatcher := NewDispatcher(db, &recordingPublisher{}, time.Second)
	require.NoError(t, dispatcher.DispatchPending(context.Background()))
}
