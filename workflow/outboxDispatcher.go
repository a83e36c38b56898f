package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublishFunc sends one event and returns the broker message id.
type PublishFunc func(ctx context.Context, msg config.EventMessage) (string, error)

// OutboxDispatcher publishes the reconciliation events of every store to
// Pub/Sub. Any number of instances may run; a batch is claimed with
// SELECT ... FOR UPDATE SKIP LOCKED and a claim older than LockTimeout is
// taken over.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string
	Publish      PublishFunc

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		Publish:        config.PublishEventWithResult,
		BatchSize:      config.IntFromEnv("OUTBOX_BATCH_SIZE", 50),
		PollInterval:   time.Duration(config.IntFromEnv("OUTBOX_POLL_INTERVAL_MS", 500)) * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    config.IntFromEnv("OUTBOX_MAX_ATTEMPTS", 20),
		InitialBackoff: 5 * time.Second,
	}
}

// Run polls until ctx is done. A full batch is followed immediately by the
// next one.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	for {
		sent := d.DispatchOnce(ctx)
		wait := d.PollInterval
		if d.BatchSize > 0 && sent >= d.BatchSize {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// DispatchOnce claims one batch and publishes it, oldest first. It returns
// how many events were published.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) int {
	if d.DB == nil || ctx.Err() != nil {
		return 0
	}
	now := time.Now().UTC()
	claimed, err := d.claim(ctx, now)
	if err != nil {
		config.LogError(d.logger(), "workflow", "OutboxDispatcher.DispatchOnce", "claim outbox batch", d.DispatcherID, err)
		return 0
	}

	sent := 0
	for _, ev := range claimed {
		msgId, err := d.Publish(ctx, models.ConvertToEventMessage(ev))
		d.settle(ctx, ev, msgId, err, now)
		if err == nil {
			sent++
		}
	}
	return sent
}

// claim marks due rows PROCESSING for this dispatcher. Rows already out of
// attempts go straight to DEAD and are not returned.
func (d *OutboxDispatcher) claim(ctx context.Context, now time.Time) ([]models.ReconciliationEvent, error) {
	var due, out []models.ReconciliationEvent
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("(publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)) OR (publish_status = ? AND locked_at <= ?)",
				[]string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now,
				models.OutboxPublishStatusProcessing, now.Add(-d.LockTimeout)).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Find(&due).Error
		if err != nil {
			return err
		}

		for _, ev := range due {
			if d.exhausted(ev.PublishAttempts) {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				if err := updateEvent(tx, ev.ID, deadFields(msg)); err != nil {
					return err
				}
				continue
			}
			ev.PublishStatus = models.OutboxPublishStatusProcessing
			ev.LockedAt = &now
			ev.LockedBy = &d.DispatcherID
			ev.PublishAttempts++
			err := updateEvent(tx, ev.ID, map[string]interface{}{
				"publish_status":     ev.PublishStatus,
				"locked_at":          ev.LockedAt,
				"locked_by":          ev.LockedBy,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			})
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

// settle records the publish outcome of ev: SENT, FAILED with a backoff, or
// DEAD once its attempts are used up.
func (d *OutboxDispatcher) settle(ctx context.Context, ev models.ReconciliationEvent, msgId string, pubErr error, now time.Time) {
	db := d.DB.WithContext(ctx)
	fields := logrus.Fields{
		"store_id":   ev.StoreId,
		"event_id":   ev.ID,
		"event_type": ev.EventType,
		"attempt":    ev.PublishAttempts,
	}

	var updates map[string]interface{}
	switch {
	case pubErr == nil:
		updates = unlockedFields(models.OutboxPublishStatusSent)
		updates["published_at"] = &now
		updates["pub_sub_message_id"] = &msgId
	case d.exhausted(ev.PublishAttempts):
		updates = deadFields(pubErr.Error())
		d.logger().WithFields(fields).Error("outbox event dead after max attempts: " + pubErr.Error())
	default:
		next := time.Now().UTC().Add(RetryBackoff(d.InitialBackoff, ev.PublishAttempts))
		msg := pubErr.Error()
		updates = unlockedFields(models.OutboxPublishStatusFailed)
		updates["last_publish_error"] = &msg
		updates["next_attempt_at"] = &next
		fields["next_attempt_at"] = next.Format(time.RFC3339)
		d.logger().WithFields(fields).Warn("outbox publish failed: " + msg)
	}
	if err := updateEvent(db, ev.ID, updates); err != nil {
		config.LogError(d.logger(), "workflow", "OutboxDispatcher.settle", "record publish outcome", ev.ID, err)
	}
}

func (d *OutboxDispatcher) exhausted(attempts int) bool {
	return d.MaxAttempts > 0 && attempts >= d.MaxAttempts
}

func (d *OutboxDispatcher) logger() *logrus.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return config.GetLogger()
}

func updateEvent(db *gorm.DB, id int, updates map[string]interface{}) error {
	return db.Model(&models.ReconciliationEvent{}).Where("id = ?", id).Updates(updates).Error
}

func unlockedFields(status string) map[string]interface{} {
	return map[string]interface{}{
		"publish_status":  status,
		"locked_at":       nil,
		"locked_by":       nil,
		"next_attempt_at": nil,
	}
}

func deadFields(msg string) map[string]interface{} {
	f := unlockedFields(models.OutboxPublishStatusDead)
	f["last_publish_error"] = &msg
	return f
}

const maxOutboxBackoff = 10 * time.Minute

// RetryBackoff doubles initial for every attempt after the first, capped at ten minutes.
func RetryBackoff(initial time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > maxOutboxBackoff {
			return maxOutboxBackoff
		}
	}
	return backoff
}
