package models

import (
	"time"

	"github.com/fr33d0m21/pull/config"
)

// ReconciliationEvent is an outbox row. It is written next to the change it
// describes and published to Pub/Sub later by the dispatcher.
type ReconciliationEvent struct {
	ID          int       `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	StoreId     string    `gorm:"size:64;not null;index" json:"store_id"`
	EventType   string    `gorm:"size:50;not null;index" json:"event_type"`
	ReferenceId string    `gorm:"size:100" json:"reference_id"`
	OccurredAt  time.Time `gorm:"index;not null" json:"occurred_at"`
	Payload     []byte    `gorm:"type:blob" json:"payload"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToEventMessage(record ReconciliationEvent) config.EventMessage {
	return config.EventMessage{
		ID:            record.ID,
		StoreId:       record.StoreId,
		EventType:     record.EventType,
		ReferenceId:   record.ReferenceId,
		OccurredAt:    record.OccurredAt,
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}
