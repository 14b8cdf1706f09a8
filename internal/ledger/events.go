package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"moiledger/internal/apperr"
	"moiledger/internal/jobs"
	"moiledger/internal/page"

	"gorm.io/gorm"
)

// Events manages family events, favorites and the reminder schedule.
type Events struct {
	DB       *gorm.DB
	Families Membership
	// ReminderLead is how long before an event its reminder fires. Zero disables
	// reminders.
	ReminderLead time.Duration
}

type EventInput struct {
	FamilyID    string
	Title       string
	Type        EventType
	Date        string
	Location    *string
	Description *string
}

type EventPatch struct {
	Title       *string
	Type        *EventType
	Date        *string
	Location    *string
	Description *string
	Status      *EventStatus
}

type EventView struct {
	Event
	FamilyName       string `json:"familyName"`
	CreatorName      string `json:"creatorName"`
	TotalReceived    int64  `json:"totalReceived"`
	TotalGiven       int64  `json:"totalGiven"`
	TransactionCount int64  `json:"transactionCount"`
}

type EventDetail struct {
	EventView
	Transactions []Transaction `json:"transactions"`
}

// ParseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Invalid("date", "date must be YYYY-MM-DD or RFC 3339")
}

func (s *Events) Create(ctx context.Context, userID string, in EventInput) (*Event, error) {
	if strings.TrimSpace(in.FamilyID) == "" {
		return nil, apperr.Invalid("familyId", "family is required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Invalid("title", "title is required")
	}
	typ := in.Type
	if typ == "" {
		typ = EventCustom
	}
	if !typ.Valid() {
		return nil, apperr.Invalid("type", "unknown event type")
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	if _, err := s.Families.RequireMember(ctx, userID, in.FamilyID); err != nil {
		return nil, err
	}

	ev := Event{
		FamilyID:    in.FamilyID,
		Title:       title,
		Type:        typ,
		Date:        date,
		Location:    trimmedOrNil(in.Location),
		Description: trimmedOrNil(in.Description),
		CreatedBy:   userID,
		Status:      StatusOpen,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ev).Error; err != nil {
			return err
		}
		return s.schedule(tx, userID, &ev)
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return &ev, nil
}

func (s *Events) schedule(tx *gorm.DB, userID string, ev *Event) error {
	if s.ReminderLead <= 0 {
		return nil
	}
	runAt := ev.Date.Add(-s.ReminderLead)
	if ev.Status == StatusClosed {
		runAt = time.Time{}
	}
	return jobs.ReplaceEventReminder(tx, userID, ev.FamilyID, ev.ID, runAt)
}

func (s *Events) eventQuery(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx).
		Table("events AS e").
		Select(`e.*, f.name AS family_name, COALESCE(u.name, '') AS creator_name,
CAST(COALESCE((SELECT SUM(t.amount) FROM moi_transactions t WHERE t.event_id = e.id AND t.direction = 'received'), 0) AS BIGINT) AS total_received,
CAST(COALESCE((SELECT SUM(t.amount) FROM moi_transactions t WHERE t.event_id = e.id AND t.direction = 'given'), 0) AS BIGINT) AS total_given,
(SELECT COUNT(*) FROM moi_transactions t WHERE t.event_id = e.id) AS transaction_count`).
		Joins("JOIN families f ON f.id = e.family_id").
		Joins("LEFT JOIN users u ON u.id = e.created_by")
}

// List returns events of the user's families, newest event date first.
func (s *Events) List(ctx context.Context, userID, familyID string, p page.Params) (page.Result[EventView], error) {
	scope, err := s.Families.Scope(ctx, userID, familyID)
	if err != nil {
		return page.Result[EventView]{}, err
	}
	if len(scope) == 0 {
		return page.New([]EventView{}, p, 0), nil
	}

	var total int64
	if err := s.DB.WithContext(ctx).Model(&Event{}).Where("family_id IN ?", scope).Count(&total).Error; err != nil {
		return page.Result[EventView]{}, fmt.Errorf("count events: %w", err)
	}
	out := []EventView{}
	err = s.eventQuery(ctx).
		Where("e.family_id IN ?", scope).
		Order("e.date desc, e.id desc").
		Limit(p.Limit).
		Offset(p.Offset()).
		Scan(&out).Error
	if err != nil {
		return page.Result[EventView]{}, fmt.Errorf("list events: %w", err)
	}
	return page.New(out, p, total), nil
}

func (s *Events) Get(ctx context.Context, userID, id string) (*EventDetail, error) {
	ev, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.Families.RequireMember(ctx, userID, ev.FamilyID); err != nil {
		return nil, err
	}

	var view EventView
	if err := s.eventQuery(ctx).Where("e.id = ?", id).Scan(&view).Error; err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	txs := []Transaction{}
	if err := s.DB.WithContext(ctx).Where("event_id = ?", id).Order("created_at desc").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("load event transactions: %w", err)
	}
	return &EventDetail{EventView: view, Transactions: txs}, nil
}

// Update edits an event. A date change is carried into the contribution history
// of the event's transactions in the same database transaction.
func (s *Events) Update(ctx context.Context, userID, id string, p EventPatch) (*Event, error) {
	ev, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.Families.RequireMember(ctx, userID, ev.FamilyID); err != nil {
		return nil, err
	}

	dateChanged := false
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, apperr.Invalid("title", "title is required")
		}
		ev.Title = title
	}
	if p.Type != nil {
		if !p.Type.Valid() {
			return nil, apperr.Invalid("type", "unknown event type")
		}
		ev.Type = *p.Type
	}
	if p.Date != nil {
		date, err := ParseDate(*p.Date)
		if err != nil {
			return nil, err
		}
		dateChanged = !date.Equal(ev.Date)
		ev.Date = date
	}
	if p.Location != nil {
		ev.Location = trimmedOrNil(p.Location)
	}
	if p.Description != nil {
		ev.Description = trimmedOrNil(p.Description)
	}
	statusChanged := false
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, apperr.Invalid("status", "status must be open or closed")
		}
		statusChanged = *p.Status != ev.Status
		ev.Status = *p.Status
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(ev).Error; err != nil {
			return err
		}
		if dateChanged {
			if err := tx.Model(&ContributionHistory{}).Where("event_id = ?", ev.ID).Update("date", ev.Date).Error; err != nil {
				return err
			}
		}
		if dateChanged || statusChanged {
			return s.schedule(tx, userID, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return ev, nil
}

// Delete removes the event with its transactions, history rows, favorites and
// pending reminders. Admin only.
func (s *Events) Delete(ctx context.Context, userID, id string) error {
	ev, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.Families.RequireAdmin(ctx, userID, ev.FamilyID); err != nil {
		return err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&ContributionHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", id).Delete(&Transaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", id).Delete(&FavoriteEvent{}).Error; err != nil {
			return err
		}
		if err := jobs.CancelPending(tx, jobs.TypeEventReminder, id); err != nil {
			return err
		}
		return tx.Delete(ev).Error
	})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// Favorites returns the ids of the events the user starred.
func (s *Events) Favorites(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := s.DB.WithContext(ctx).Model(&FavoriteEvent{}).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Pluck("event_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return ids, nil
}

// ToggleFavorite stars or unstars the event and reports the new state.
func (s *Events) ToggleFavorite(ctx context.Context, userID, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return false, apperr.Invalid("eventId", "event is required")
	}
	ev, err := s.load(ctx, eventID)
	if err != nil {
		return false, err
	}
	if _, err := s.Families.RequireMember(ctx, userID, ev.FamilyID); err != nil {
		return false, err
	}

	var favorite bool
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND event_id = ?", userID, eventID).Delete(&FavoriteEvent{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		favorite = true
		return tx.Create(&FavoriteEvent{UserID: userID, EventID: eventID}).Error
	})
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return favorite, nil
}

type SearchResult struct {
	Events       []Event       `json:"events"`
	Transactions []Transaction `json:"transactions"`
}

const searchLimit = 10

// Search matches event titles and contributor names across the user's families.
func (s *Events) Search(ctx context.Context, userID, q string) (*SearchResult, error) {
	res := &SearchResult{Events: []Event{}, Transactions: []Transaction{}}
	q = strings.TrimSpace(q)
	if q == "" {
		return res, nil
	}
	scope, err := s.Families.Scope(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	if len(scope) == 0 {
		return res, nil
	}
	pattern := containsPattern(q)

	err = s.DB.WithContext(ctx).
		Where("family_id IN ?", scope).
		Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern).
		Order("date desc").
		Limit(searchLimit).
		Find(&res.Events).Error
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	err = s.DB.WithContext(ctx).
		Where("family_id IN ?", scope).
		Where(`LOWER(contributor_name) LIKE ? ESCAPE '\'`, pattern).
		Order("created_at desc").
		Limit(searchLimit).
		Find(&res.Transactions).Error
	if err != nil {
		return nil, fmt.Errorf("search transactions: %w", err)
	}
	return res, nil
}

func (s *Events) load(ctx context.Context, id string) (*Event, error) {
	var ev Event
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("event")
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	return &ev, nil
}
