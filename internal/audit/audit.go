package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action names a user-visible change recorded in the audit trail.
type Action string

const (
	ActionProfileViewed       Action = "profile.viewed"
	ActionProfileUpdated      Action = "profile.updated"
	ActionPrivacyUpdated      Action = "privacy.updated"
	ActionAvatarUploaded      Action = "avatar.uploaded"
	ActionAvatarDeleted       Action = "avatar.deleted"
	ActionCustomFieldsUpdated Action = "custom_fields.updated"
	ActionSocialLinksUpdated  Action = "social_links.updated"
	ActionAccountDeleted      Action = "account.deleted"
	ActionDataExported        Action = "data.exported"
	ActionConnectionRequested Action = "connection.requested"
	ActionConnectionAdded     Action = "connection.added"
	ActionConnectionDeclined  Action = "connection.declined"
	ActionConnectionRemoved   Action = "connection.removed"
)

// Event is one row of the audit trail.
type Event struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	UserID     uint              `gorm:"not null;index:idx_audit_events_user_created" json:"user_id"`
	Action     Action            `gorm:"not null;size:64" json:"action"`
	Platform   string            `gorm:"size:16" json:"platform"`
	ClientName string            `gorm:"size:64" json:"client_name"`
	IP         string            `gorm:"size:64" json:"ip"`
	Details    datatypes.JSONMap `json:"details"`
	CreatedAt  time.Time         `gorm:"not null;index:idx_audit_events_user_created;index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "audit_events"
}

// BeforeCreate assigns an ID and timestamp when missing.
func (e *Event) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Page sizes for ListForUser.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// ListForUser returns the newest events of a user first.
func ListForUser(db *gorm.DB, userID uint, limit int) ([]Event, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	events := []Event{}
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// cleanupBatchSize bounds how many rows one delete statement touches.
const cleanupBatchSize = 1000

// Cleanup deletes events created before the cutoff in batches and returns how many were removed.
func Cleanup(db *gorm.DB, before time.Time) (int64, error) {
	var total int64
	for {
		result := db.Exec(`
			DELETE FROM audit_events
			WHERE id IN (SELECT id FROM audit_events WHERE created_at < ? LIMIT ?)
		`, before, cleanupBatchSize)
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
		if result.RowsAffected < cleanupBatchSize {
			return total, nil
		}
	}
}
