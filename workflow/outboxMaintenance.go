package workflow

import (
	"context"

	"github.com/fr33d0m21/pull/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxStatusCounts counts events per publish status, optionally for one store.
func OutboxStatusCounts(ctx context.Context, db *gorm.DB, storeId string) (map[string]int64, error) {
	type row struct {
		PublishStatus string
		Total         int64
	}
	var rows []row
	q := db.WithContext(ctx).Model(&models.ReconciliationEvent{}).
		Select("publish_status, COUNT(*) AS total").
		Group("publish_status")
	if storeId != "" {
		q = q.Where("store_id = ?", storeId)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := map[string]int64{
		models.OutboxPublishStatusPending:    0,
		models.OutboxPublishStatusProcessing: 0,
		models.OutboxPublishStatusSent:       0,
		models.OutboxPublishStatusFailed:     0,
		models.OutboxPublishStatusDead:       0,
	}
	for _, r := range rows {
		counts[r.PublishStatus] = r.Total
	}
	return counts, nil
}

// RequeueDeadEvents puts DEAD events of a store back to PENDING with a fresh
// attempt budget. It returns how many rows moved.
func RequeueDeadEvents(ctx context.Context, db *gorm.DB, logger *logrus.Logger, storeId string) (int64, error) {
	res := db.WithContext(ctx).Model(&models.ReconciliationEvent{}).
		Where("store_id = ? AND publish_status = ?", storeId, models.OutboxPublishStatusDead).
		Updates(map[string]interface{}{
			"publish_status":   models.OutboxPublishStatusPending,
			"publish_attempts": 0,
			"next_attempt_at":  nil,
			"locked_at":        nil,
			"locked_by":        nil,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if logger != nil && res.RowsAffected > 0 {
		logger.WithFields(logrus.Fields{
			"field":    "OutboxRequeue",
			"store_id": storeId,
			"requeued": res.RowsAffected,
		}).Info("requeued dead outbox events")
	}
	return res.RowsAffected, nil
}
