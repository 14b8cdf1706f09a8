package jobs

import (
	"encoding/json"
	"time"
)

const (
	TypeEventReminder = "EVENT_REMINDER"

	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

type Job struct {
	ID     uint64 `gorm:"primaryKey"`
	UserID string `gorm:"index;size:36;not null"`

	Type    string `gorm:"type:text;not null"` // EVENT_REMINDER
	RefID   string `gorm:"index:idx_jobs_ref;size:36;not null;default:''"`
	Payload []byte `gorm:"not null"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"` // PENDING/RUNNING/DONE/FAILED

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	LockedBy *string `gorm:"type:text"`
	LockedAt *time.Time

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type eventReminderPayload struct {
	EventID  string `json:"event_id"`
	FamilyID string `json:"family_id"`
}

// NewEventReminder builds a pending reminder for the event. The caller inserts it,
// usually inside the same transaction that wrote the event.
func NewEventReminder(userID, familyID, eventID string, runAt time.Time) Job {
	payload, _ := json.Marshal(eventReminderPayload{EventID: eventID, FamilyID: familyID})
	return Job{
		UserID:  userID,
		Type:    TypeEventReminder,
		RefID:   eventID,
		Payload: payload,
		RunAt:   runAt,
		Status:  StatusPending,
	}
}
