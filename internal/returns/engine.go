// Package returns computes per-person reciprocal balances from contribution history.
//
// The engine works on rows already restricted to a trusted family scope. Grouping is
// by exact person name; "Alice" and "alice" are different people.
package returns

import (
	"sort"
	"time"

	"moiledger/internal/ledger"
	"moiledger/internal/page"
)

// HistoryRow is one contribution history row joined with its event.
type HistoryRow struct {
	ID            string           `json:"id"`
	FamilyID      string           `json:"familyId"`
	PersonName    string           `json:"personName"`
	EventID       string           `json:"eventId"`
	TransactionID string           `json:"transactionId"`
	Amount        int64            `json:"amount"`
	Direction     ledger.Direction `json:"direction"`
	Date          time.Time        `json:"date"`
	EventTitle    string           `json:"-"`
	EventType     ledger.EventType `json:"-"`
}

type TimelineEntry struct {
	HistoryRow
	Event TimelineEvent `json:"event"`
}

type TimelineEvent struct {
	Title string           `json:"title"`
	Type  ledger.EventType `json:"type"`
}

type Person struct {
	PersonName      string          `json:"personName"`
	TotalReceived   int64           `json:"totalReceived"`
	TotalGiven      int64           `json:"totalGiven"`
	NetBalance      int64           `json:"netBalance"`
	SuggestedReturn int64           `json:"suggestedReturn"`
	LastInteraction time.Time       `json:"lastInteraction"`
	EventCount      int             `json:"eventCount"`
	Timeline        []TimelineEntry `json:"timeline"`
}

// Settled reports whether nothing is owed either way.
func (p Person) Settled() bool { return p.SuggestedReturn == 0 }

type group struct {
	person Person
	events map[string]struct{}
	rows   []HistoryRow
}

// Aggregate groups rows by person name and returns one Person per name, most
// recently active first. Ties on last interaction are ordered by name. Timelines
// are not attached.
func Aggregate(rows []HistoryRow) []Person {
	groups := aggregate(rows)
	out := make([]Person, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.person)
	}
	return out
}

func aggregate(rows []HistoryRow) []*group {
	byName := make(map[string]*group)
	var order []*group
	for _, r := range rows {
		g, ok := byName[r.PersonName]
		if !ok {
			g = &group{person: Person{PersonName: r.PersonName}, events: map[string]struct{}{}}
			byName[r.PersonName] = g
			order = append(order, g)
		}
		switch r.Direction {
		case ledger.Received:
			g.person.TotalReceived += r.Amount
		case ledger.Given:
			g.person.TotalGiven += r.Amount
		}
		if r.Date.After(g.person.LastInteraction) {
			g.person.LastInteraction = r.Date
		}
		g.events[r.EventID] = struct{}{}
		g.rows = append(g.rows, r)
	}

	for _, g := range order {
		g.person.NetBalance = g.person.TotalReceived - g.person.TotalGiven
		g.person.SuggestedReturn = g.person.NetBalance
		g.person.EventCount = len(g.events)
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := order[i].person, order[j].person
		if !a.LastInteraction.Equal(b.LastInteraction) {
			return a.LastInteraction.After(b.LastInteraction)
		}
		return a.PersonName < b.PersonName
	})
	return order
}

// Compute aggregates rows, paginates over the sorted people and attaches the full
// timeline of every person on the returned page.
func Compute(rows []HistoryRow, p page.Params) page.Result[Person] {
	all := aggregate(rows)
	groups := page.Slice(all, p)
	out := make([]Person, 0, len(groups))
	for _, g := range groups {
		person := g.person
		person.Timeline = timeline(g.rows)
		out = append(out, person)
	}
	return page.New(out, p, int64(len(all)))
}

func timeline(rows []HistoryRow) []TimelineEntry {
	out := make([]TimelineEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, TimelineEntry{
			HistoryRow: r,
			Event:      TimelineEvent{Title: r.EventTitle, Type: r.EventType},
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
