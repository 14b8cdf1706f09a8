package notify

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Type string

const (
	TypeEventReminder Type = "event_reminder"
	TypePendingReturn Type = "pending_return"
	TypeFamilyInvite  Type = "family_invite"
	TypeGeneral       Type = "general"
)

type Notification struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"index:idx_notifications_user;size:36;not null" json:"userId"`
	FamilyID  *string   `gorm:"size:36" json:"familyId"`
	Type      Type      `gorm:"type:text;not null;default:'general'" json:"type"`
	Title     string    `gorm:"not null" json:"title"`
	Message   string    `gorm:"not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
