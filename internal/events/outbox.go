// Package events records friend-lifecycle events in a database outbox and
// relays them to Kafka. The outbox row is written in the same transaction as
// the edge mutation, so an event exists exactly when the mutation committed;
// delivery itself is asynchronous and retried on the next drain.
package events

import (
	"context"
	"encoding/json"
	"time"

	"whispr/backend/internal/models"
	"whispr/backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Friend-lifecycle event types.
const (
	EventRequestSent     = "request_sent"
	EventRequestAccepted = "request_accepted"
	EventRequestRejected = "request_rejected"
	EventRequestCanceled = "request_canceled"
	EventUnfriended      = "unfriended"
)

// Record inserts an outbox row inside the caller's transaction.
func Record(tx *gorm.DB, eventType string, senderID, receiverID uint) error {
	payload, _ := json.Marshal(map[string]any{
		"event_time": time.Now().UTC().Format(time.RFC3339Nano),
		"sender":     senderID,
		"receiver":   receiverID,
	})
	ev := &models.FriendEvent{
		EventType:  eventType,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Payload:    string(payload),
		Status:     models.EventPending,
	}
	return tx.Create(ev).Error
}

// Sender delivers one outbox row downstream.
type Sender func(ctx context.Context, ev *models.FriendEvent) error

// maxRetries caps redelivery attempts; a row that failed this many times is
// left in the failed state for manual repair.
const maxRetries = 5

// Relayer drains pending and retryable outbox rows on a fixed interval.
type Relayer struct {
	db        *gorm.DB
	sender    Sender
	batchSize int
	interval  time.Duration
}

func NewRelayer(db *gorm.DB, sender Sender) *Relayer {
	return &Relayer{
		db:        db,
		sender:    sender,
		batchSize: 200,
		interval:  time.Second,
	}
}

// Run drains until the context is canceled.
func (r *Relayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce sends one batch of undelivered rows, marking each sent or failed.
func (r *Relayer) DrainOnce(ctx context.Context) {
	var rows []models.FriendEvent
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry < ?)", models.EventPending, models.EventFailed, maxRetries).
		Order("id ASC").
		Limit(r.batchSize).
		Find(&rows).Error
	if err != nil {
		logger.Error("outbox query failed", zap.Error(err))
		return
	}

	for i := range rows {
		ev := rows[i]
		if err := r.sender(ctx, &ev); err != nil {
			logger.Warn("outbox send failed",
				zap.Uint64("event_id", ev.ID),
				zap.String("type", ev.EventType),
				zap.Error(err),
			)
			r.db.WithContext(ctx).Model(&models.FriendEvent{}).
				Where("id = ?", ev.ID).
				Updates(map[string]any{"status": models.EventFailed, "retry": gorm.Expr("retry + 1")})
			continue
		}
		r.db.WithContext(ctx).Model(&models.FriendEvent{}).
			Where("id = ?", ev.ID).
			Update("status", models.EventSent)
	}
}
