// Package analytics builds dashboard statistics over the transactions of a family
// scope.
package analytics

import (
	"sort"
	"time"

	"moiledger/internal/ledger"
)

const (
	DefaultTopN = 10
	monthLayout = "2006-01"
)

// TxRow is the part of a transaction the statistics need.
type TxRow struct {
	ContributorName string
	Amount          int64
	Direction       ledger.Direction
	CreatedAt       time.Time
}

type Contributor struct {
	Name  string `json:"name"`
	Total int64  `json:"total"`
}

type Month struct {
	Month    string `json:"month"`
	Received int64  `json:"received"`
	Given    int64  `json:"given"`
}

type Report struct {
	TotalReceived    int64         `json:"totalReceived"`
	TotalGiven       int64         `json:"totalGiven"`
	NetBalance       int64         `json:"netBalance"`
	EventCount       int64         `json:"eventCount"`
	TransactionCount int64         `json:"transactionCount"`
	TopContributors  []Contributor `json:"topContributors"`
	MonthlyData      []Month       `json:"monthlyData"`
}

// Empty is the report of a scope with no families.
func Empty() Report {
	return Report{TopContributors: []Contributor{}, MonthlyData: []Month{}}
}

// Summarize computes the whole report. eventCount is counted separately because
// events without transactions still count.
func Summarize(rows []TxRow, eventCount int64, topN int) Report {
	r := Empty()
	r.EventCount = eventCount
	r.TransactionCount = int64(len(rows))
	for _, row := range rows {
		switch row.Direction {
		case ledger.Received:
			r.TotalReceived += row.Amount
		case ledger.Given:
			r.TotalGiven += row.Amount
		}
	}
	r.NetBalance = r.TotalReceived - r.TotalGiven
	r.TopContributors = TopContributors(rows, topN)
	r.MonthlyData = Monthly(rows)
	return r
}

// TopContributors ranks contributor names by total received, largest first, ties by
// name. n <= 0 returns every contributor.
func TopContributors(rows []TxRow, n int) []Contributor {
	totals := map[string]int64{}
	for _, row := range rows {
		if row.Direction == ledger.Received {
			totals[row.ContributorName] += row.Amount
		}
	}
	out := make([]Contributor, 0, len(totals))
	for name, total := range totals {
		out = append(out, Contributor{Name: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Monthly buckets rows by the UTC calendar month of CreatedAt, ascending. Months
// without activity are left out.
func Monthly(rows []TxRow) []Month {
	buckets := map[string]*Month{}
	for _, row := range rows {
		key := row.CreatedAt.UTC().Format(monthLayout)
		m, ok := buckets[key]
		if !ok {
			m = &Month{Month: key}
			buckets[key] = m
		}
		switch row.Direction {
		case ledger.Received:
			m.Received += row.Amount
		case ledger.Given:
			m.Given += row.Amount
		}
	}
	out := make([]Month, 0, len(buckets))
	for _, m := range buckets {
		if m.Received == 0 && m.Given == 0 {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
