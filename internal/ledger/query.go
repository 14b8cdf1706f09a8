package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"moiledger/internal/page"

	"gorm.io/gorm"
)

const contributorSuggestions = 10

type EventRef struct {
	Title string    `json:"title"`
	Date  time.Time `json:"date"`
	Type  EventType `json:"type"`
}

type TransactionView struct {
	Transaction
	Event EventRef `json:"event"`
}

type SortField string

const (
	SortByCreatedAt   SortField = "createdAt"
	SortByAmount      SortField = "amount"
	SortByContributor SortField = "contributorName"
)

// ParseSortField maps a sortBy query value to a field. "date" and "name" are
// accepted as short forms; anything else sorts by creation time.
func ParseSortField(s string) SortField {
	switch strings.TrimSpace(s) {
	case "amount":
		return SortByAmount
	case "contributorName", "name":
		return SortByContributor
	}
	return SortByCreatedAt
}

type ListQuery struct {
	FamilyID  string
	EventID   string
	Direction Direction
	Paid      *bool
	// Search is a case-insensitive substring match; ContributorName is exact.
	Search          string
	ContributorName string
	MinAmount       *int64
	MaxAmount       *int64
	SortBy          SortField
	Asc             bool
	Page            page.Params
}

type txRow struct {
	Transaction
	EventTitle string
	EventDate  time.Time
	EventType  EventType
}

func (r txRow) view() TransactionView {
	return TransactionView{
		Transaction: r.Transaction,
		Event:       EventRef{Title: r.EventTitle, Date: r.EventDate, Type: r.EventType},
	}
}

// List returns the transactions visible to the user, filtered and paginated.
func (r *Recorder) List(ctx context.Context, userID string, q ListQuery) (page.Result[TransactionView], error) {
	scope, err := r.Families.Scope(ctx, userID, q.FamilyID)
	if err != nil {
		return page.Result[TransactionView]{}, err
	}
	if len(scope) == 0 {
		return page.New([]TransactionView{}, q.Page, 0), nil
	}

	base := r.DB.WithContext(ctx).
		Table("moi_transactions AS t").
		Joins("JOIN events e ON e.id = t.event_id").
		Where("t.family_id IN ?", scope)
	if q.EventID != "" {
		base = base.Where("t.event_id = ?", q.EventID)
	}
	if q.Direction != "" {
		base = base.Where("t.direction = ?", q.Direction)
	}
	if q.Paid != nil {
		base = base.Where("t.paid_status = ?", *q.Paid)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		base = base.Where(`LOWER(t.contributor_name) LIKE ? ESCAPE '\'`, containsPattern(s))
	}
	if q.ContributorName != "" {
		base = base.Where("t.contributor_name = ?", q.ContributorName)
	}
	if q.MinAmount != nil {
		base = base.Where("t.amount >= ?", *q.MinAmount)
	}
	if q.MaxAmount != nil {
		base = base.Where("t.amount <= ?", *q.MaxAmount)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return page.Result[TransactionView]{}, fmt.Errorf("count transactions: %w", err)
	}

	var rows []txRow
	err = base.
		Select("t.*, e.title AS event_title, e.date AS event_date, e.type AS event_type").
		Order(orderClause(q.SortBy, q.Asc)).
		Limit(q.Page.Limit).
		Offset(q.Page.Offset()).
		Scan(&rows).Error
	if err != nil {
		return page.Result[TransactionView]{}, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]TransactionView, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.view())
	}
	return page.New(out, q.Page, total), nil
}

func orderClause(by SortField, asc bool) string {
	col := "t.created_at"
	switch by {
	case SortByAmount:
		col = "t.amount"
	case SortByContributor:
		col = "t.contributor_name"
	}
	dir := "desc"
	if asc {
		dir = "asc"
	}
	return fmt.Sprintf("%s %s, t.id %s", col, dir, dir)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// Contributors suggests distinct contributor names already used in the user's
// families, for autocomplete.
func (r *Recorder) Contributors(ctx context.Context, userID, familyID, search string) ([]string, error) {
	scope, err := r.Families.Scope(ctx, userID, familyID)
	if err != nil {
		return nil, err
	}
	names := []string{}
	if len(scope) == 0 {
		return names, nil
	}
	q := r.DB.WithContext(ctx).Model(&Transaction{}).
		Distinct("contributor_name").
		Where("family_id IN ?", scope)
	if s := strings.TrimSpace(search); s != "" {
		q = q.Where(`LOWER(contributor_name) LIKE ? ESCAPE '\'`, containsPattern(s))
	}
	if err := q.Order("contributor_name asc").Limit(contributorSuggestions).Pluck("contributor_name", &names).Error; err != nil {
		return nil, fmt.Errorf("list contributors: %w", err)
	}
	return names, nil
}

var exportHeader = []string{"Contributor Name", "Amount", "Direction", "Paid", "Notes", "Event", "Date"}

// Export writes the user's transactions as CSV, optionally narrowed to one family
// and one event.
func (r *Recorder) Export(ctx context.Context, userID, familyID, eventID string, w io.Writer) error {
	scope, err := r.Families.Scope(ctx, userID, familyID)
	if err != nil {
		return err
	}

	var rows []txRow
	if len(scope) > 0 {
		q := r.DB.WithContext(ctx).
			Table("moi_transactions AS t").
			Select("t.*, e.title AS event_title, e.date AS event_date, e.type AS event_type").
			Joins("JOIN events e ON e.id = t.event_id").
			Where("t.family_id IN ?", scope)
		if eventID != "" {
			q = q.Where("t.event_id = ?", eventID)
		}
		if err := q.Order("t.created_at asc, t.id asc").Scan(&rows).Error; err != nil {
			return fmt.Errorf("export transactions: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		paid := "No"
		if row.PaidStatus {
			paid = "Yes"
		}
		notes := ""
		if row.Notes != nil {
			notes = *row.Notes
		}
		rec := []string{
			row.ContributorName,
			strconv.FormatInt(row.Amount, 10),
			string(row.Direction),
			paid,
			notes,
			row.EventTitle,
			row.EventDate.UTC().Format("2006-01-02"),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
