package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"moiledger/internal/apperr"
	"moiledger/internal/family"
	"moiledger/internal/notify"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Membership is the slice of family.Service the ledger needs.
type Membership interface {
	RequireMember(ctx context.Context, userID, familyID string) (family.Role, error)
	RequireAdmin(ctx context.Context, userID, familyID string) (family.Role, error)
	Scope(ctx context.Context, userID, requested string) ([]string, error)
}

// Recorder writes ledger transactions. Every write keeps the contribution history
// mirror in step within one database transaction.
type Recorder struct {
	DB       *gorm.DB
	Families Membership
	Notify   *notify.Service // optional
	Log      logrus.FieldLogger
}

type Entry struct {
	EventID         string
	FamilyID        string
	ContributorName string
	Amount          int64
	Direction       Direction
	Notes           *string
	PaidStatus      bool
}

func (e *Entry) normalize() error {
	e.ContributorName = strings.TrimSpace(e.ContributorName)
	if e.ContributorName == "" {
		return apperr.Invalid("contributorName", "contributor name is required")
	}
	if e.Amount <= 0 {
		return apperr.Invalid("amount", "amount must be a positive integer")
	}
	if !e.Direction.Valid() {
		return apperr.Invalid("direction", "direction must be given or received")
	}
	e.Notes = trimmedOrNil(e.Notes)
	return nil
}

// Record creates one transaction and its history row.
func (r *Recorder) Record(ctx context.Context, userID string, in Entry) (*Transaction, error) {
	if strings.TrimSpace(in.EventID) == "" {
		return nil, apperr.Invalid("eventId", "event is required")
	}
	if strings.TrimSpace(in.FamilyID) == "" {
		return nil, apperr.Invalid("familyId", "family is required")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := r.Families.RequireMember(ctx, userID, in.FamilyID); err != nil {
		return nil, err
	}
	ev, err := loadEventInFamily(ctx, r.DB, in.EventID, in.FamilyID)
	if err != nil {
		return nil, err
	}

	var t *Transaction
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, err = insert(tx, userID, ev, in)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	r.notifyRecorded(ctx, userID, ev, t)
	return t, nil
}

func insert(tx *gorm.DB, userID string, ev *Event, in Entry) (*Transaction, error) {
	t := Transaction{
		EventID:         ev.ID,
		FamilyID:        ev.FamilyID,
		ContributorName: in.ContributorName,
		Amount:          in.Amount,
		Notes:           in.Notes,
		PaidStatus:      in.PaidStatus,
		Direction:       in.Direction,
		CreatedBy:       userID,
		historyDate:     ev.Date,
	}
	if err := tx.Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Recorder) notifyRecorded(ctx context.Context, userID string, ev *Event, t *Transaction) {
	if r.Notify == nil {
		return
	}
	verb := "received from"
	if t.Direction == Given {
		verb = "given to"
	}
	_, err := r.Notify.Create(ctx, notify.Input{
		UserID:   userID,
		FamilyID: &ev.FamilyID,
		Type:     notify.TypeGeneral,
		Title:    "New Entry Added",
		Message:  fmt.Sprintf("₹%s %s %s in %s", humanize.Comma(t.Amount), verb, t.ContributorName, ev.Title),
	})
	if err != nil {
		r.Log.WithError(err).WithField("transaction_id", t.ID).Warn("entry notification failed")
	}
}

// Patch carries the fields of a transaction that may change. The event of a
// transaction is fixed once recorded.
type Patch struct {
	ContributorName *string
	Amount          *int64
	Direction       *Direction
	Notes           *string
	PaidStatus      *bool
}

func (r *Recorder) Update(ctx context.Context, userID, id string, p Patch) (*Transaction, error) {
	t, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.Families.RequireMember(ctx, userID, t.FamilyID); err != nil {
		return nil, err
	}

	e := Entry{
		ContributorName: t.ContributorName,
		Amount:          t.Amount,
		Direction:       t.Direction,
		Notes:           t.Notes,
		PaidStatus:      t.PaidStatus,
	}
	if p.ContributorName != nil {
		e.ContributorName = *p.ContributorName
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Direction != nil {
		e.Direction = *p.Direction
	}
	if p.Notes != nil {
		e.Notes = p.Notes
	}
	if p.PaidStatus != nil {
		e.PaidStatus = *p.PaidStatus
	}
	if err := e.normalize(); err != nil {
		return nil, err
	}

	t.ContributorName = e.ContributorName
	t.Amount = e.Amount
	t.Direction = e.Direction
	t.Notes = e.Notes
	t.PaidStatus = e.PaidStatus

	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Save(t).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	return t, nil
}

// Delete removes the transaction and exactly its own history row.
func (r *Recorder) Delete(ctx context.Context, userID, id string) error {
	t, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := r.Families.RequireMember(ctx, userID, t.FamilyID); err != nil {
		return err
	}
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Delete(t).Error
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (r *Recorder) Get(ctx context.Context, userID, id string) (*TransactionView, error) {
	t, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.Families.RequireMember(ctx, userID, t.FamilyID); err != nil {
		return nil, err
	}
	var ev Event
	if err := r.DB.WithContext(ctx).Select("id", "title", "date", "type").Where("id = ?", t.EventID).First(&ev).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load event: %w", err)
	}
	return &TransactionView{Transaction: *t, Event: EventRef{Title: ev.Title, Date: ev.Date, Type: ev.Type}}, nil
}

func (r *Recorder) load(ctx context.Context, id string) (*Transaction, error) {
	var t Transaction
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("transaction")
		}
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	return &t, nil
}

// loadEventInFamily returns NotFound both for a missing event and for an event of
// another family.
func loadEventInFamily(ctx context.Context, db *gorm.DB, eventID, familyID string) (*Event, error) {
	var ev Event
	if err := db.WithContext(ctx).Where("id = ?", eventID).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("event")
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	if ev.FamilyID != familyID {
		return nil, apperr.NotFound("event")
	}
	return &ev, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
