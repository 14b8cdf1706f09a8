package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Direction string

const (
	Given    Direction = "given"
	Received Direction = "received"
)

// Valid reports whether d is exactly given or received.
func (d Direction) Valid() bool {
	return d == Given || d == Received
}

// ParseDirection is the tolerant form used for imports and query filters: it trims
// and ignores case.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Given:
		return Given, true
	case Received:
		return Received, true
	}
	return "", false
}

type EventType string

const (
	EventWedding      EventType = "wedding"
	EventHousewarming EventType = "housewarming"
	EventFestival     EventType = "festival"
	EventFuneral      EventType = "funeral"
	EventCustom       EventType = "custom"
)

func (t EventType) Valid() bool {
	switch t {
	case EventWedding, EventHousewarming, EventFestival, EventFuneral, EventCustom:
		return true
	}
	return false
}

type EventStatus string

const (
	StatusOpen   EventStatus = "open"
	StatusClosed EventStatus = "closed"
)

func (s EventStatus) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

type Event struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	FamilyID    string      `gorm:"index:idx_events_family;size:36;not null" json:"familyId"`
	Title       string      `gorm:"not null" json:"title"`
	Type        EventType   `gorm:"type:text;not null;default:'custom'" json:"type"`
	Date        time.Time   `gorm:"index:idx_events_date;not null" json:"date"`
	Location    *string     `json:"location"`
	Description *string     `json:"description"`
	CreatedBy   string      `gorm:"size:36;not null" json:"createdBy"`
	Status      EventStatus `gorm:"type:text;index:idx_events_status;not null;default:'open'" json:"status"`
	CreatedAt   time.Time   `gorm:"index:idx_events_created_at;not null" json:"createdAt"`
	UpdatedAt   time.Time   `gorm:"not null" json:"updatedAt"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// Transaction is one cash gift given to or received from a contributor. The
// contributor is free text, not a user reference.
type Transaction struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	EventID         string    `gorm:"index:idx_transactions_event;size:36;not null" json:"eventId"`
	FamilyID        string    `gorm:"index:idx_transactions_family;size:36;not null" json:"familyId"`
	ContributorName string    `gorm:"index:idx_transactions_contributor;not null" json:"contributorName"`
	Amount          int64     `gorm:"not null" json:"amount"`
	Notes           *string   `json:"notes"`
	PaidStatus      bool      `gorm:"not null;default:false" json:"paidStatus"`
	Direction       Direction `gorm:"type:text;index:idx_transactions_direction;not null;default:'received'" json:"direction"`
	CreatedBy       string    `gorm:"size:36;not null" json:"createdBy"`
	CreatedAt       time.Time `gorm:"index:idx_transactions_date;not null" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"not null" json:"updatedAt"`

	// historyDate is the date stamped on the mirrored history row at insert time.
	historyDate time.Time
}

func (Transaction) TableName() string { return "moi_transactions" }

// ContributionHistory mirrors Transaction one to one and is the row set the returns
// engine aggregates over. It is maintained by the Transaction hooks below, inside the
// same database transaction as the ledger write.
type ContributionHistory struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	FamilyID      string    `gorm:"index:idx_history_family;size:36;not null" json:"familyId"`
	PersonName    string    `gorm:"index:idx_history_person;not null" json:"personName"`
	EventID       string    `gorm:"index:idx_history_event;size:36;not null" json:"eventId"`
	TransactionID string    `gorm:"uniqueIndex:uq_history_transaction;size:36;not null" json:"transactionId"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Direction     Direction `gorm:"type:text;not null" json:"direction"`
	Date          time.Time `gorm:"not null" json:"date"`
}

func (h *ContributionHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

type FavoriteEvent struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"uniqueIndex:unique_user_event_favorite;size:36;not null"`
	EventID   string    `gorm:"uniqueIndex:unique_user_event_favorite;index;size:36;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (f *FavoriteEvent) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (t *Transaction) AfterCreate(tx *gorm.DB) error {
	return t.createHistory(tx)
}

func (t *Transaction) createHistory(tx *gorm.DB) error {
	date := t.historyDate
	if date.IsZero() {
		var ev Event
		err := tx.Session(&gorm.Session{NewDB: true}).Select("date").Where("id = ?", t.EventID).First(&ev).Error
		switch {
		case err == nil:
			date = ev.Date
		case errors.Is(err, gorm.ErrRecordNotFound):
			date = time.Now()
		default:
			return fmt.Errorf("load event date: %w", err)
		}
	}
	h := ContributionHistory{
		FamilyID:      t.FamilyID,
		PersonName:    t.ContributorName,
		EventID:       t.EventID,
		TransactionID: t.ID,
		Amount:        t.Amount,
		Direction:     t.Direction,
		Date:          date,
	}
	return tx.Session(&gorm.Session{NewDB: true}).Create(&h).Error
}

func (t *Transaction) AfterUpdate(tx *gorm.DB) error {
	if t.ID == "" {
		return nil
	}
	res := tx.Session(&gorm.Session{NewDB: true}).
		Model(&ContributionHistory{}).
		Where("transaction_id = ?", t.ID).
		Updates(map[string]any{
			"person_name": t.ContributorName,
			"amount":      t.Amount,
			"direction":   t.Direction,
		})
	if res.Error != nil {
		return fmt.Errorf("update history: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return t.createHistory(tx)
	}
	return nil
}

// AfterDelete removes the paired history row. Bulk deletes without a loaded
// primary key skip the hook and must clean the mirror themselves.
func (t *Transaction) AfterDelete(tx *gorm.DB) error {
	if t.ID == "" {
		return nil
	}
	return tx.Session(&gorm.Session{NewDB: true}).
		Where("transaction_id = ?", t.ID).
		Delete(&ContributionHistory{}).Error
}
