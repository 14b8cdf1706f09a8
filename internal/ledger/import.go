package ledger

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"moiledger/internal/apperr"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Row is one spreadsheet line. Keys are matched against several header spellings.
type Row map[string]any

var (
	nameKeys      = []string{"Contributor Name", "contributorName", "name"}
	amountKeys    = []string{"Amount", "amount"}
	directionKeys = []string{"Direction", "direction"}
	notesKeys     = []string{"Notes", "notes"}
	paidKeys      = []string{"Paid", "paidStatus"}
)

type ImportResult struct {
	Message  string   `json:"message"`
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// Import records every valid row against one event. Each row commits on its own,
// so a bad row is reported and skipped without affecting the others.
func (r *Recorder) Import(ctx context.Context, userID, familyID, eventID string, rows []Row) (*ImportResult, error) {
	if strings.TrimSpace(familyID) == "" {
		return nil, apperr.Invalid("familyId", "family is required")
	}
	if strings.TrimSpace(eventID) == "" {
		return nil, apperr.Invalid("eventId", "event is required")
	}
	if len(rows) == 0 {
		return nil, apperr.Invalid("entries", "no entries to import")
	}
	if _, err := r.Families.RequireMember(ctx, userID, familyID); err != nil {
		return nil, err
	}
	ev, err := loadEventInFamily(ctx, r.DB, eventID, familyID)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Errors: []string{}}
	for i, row := range rows {
		n := i + 1
		e, err := row.Entry()
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", n, err))
			continue
		}
		err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := insert(tx, userID, ev, e)
			return err
		})
		if err != nil {
			r.Log.WithError(err).WithFields(logrus.Fields{"event_id": ev.ID, "row": n}).Error("import row failed")
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: error importing %q", n, e.ContributorName))
			continue
		}
		res.Imported++
	}
	res.Message = fmt.Sprintf("Imported %d of %d entries", res.Imported, len(rows))
	return res, nil
}

// Entry converts the row to a validated Entry.
func (row Row) Entry() (Entry, error) {
	var e Entry

	name, _ := row.lookup(nameKeys)
	e.ContributorName = strings.TrimSpace(stringify(name))
	if e.ContributorName == "" {
		return e, errors.New("missing contributor name")
	}

	raw, ok := row.lookup(amountKeys)
	if !ok {
		return e, fmt.Errorf("missing amount for %q", e.ContributorName)
	}
	amount, err := parseAmount(raw)
	if err != nil || amount <= 0 {
		return e, fmt.Errorf("invalid amount for %q", e.ContributorName)
	}
	e.Amount = amount

	e.Direction = Received
	if v, ok := row.lookup(directionKeys); ok {
		if s := strings.TrimSpace(stringify(v)); s != "" {
			d, ok := ParseDirection(s)
			if !ok {
				return e, fmt.Errorf("invalid direction %q for %q", s, e.ContributorName)
			}
			e.Direction = d
		}
	}

	if v, ok := row.lookup(notesKeys); ok {
		s := stringify(v)
		e.Notes = trimmedOrNil(&s)
	}

	if v, ok := row.lookup(paidKeys); ok {
		e.PaidStatus = parsePaid(v)
	}
	return e, nil
}

func (row Row) lookup(keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func parseAmount(v any) (int64, error) {
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.Abs(x) > math.MaxInt64/2 {
			return 0, errors.New("not an integer")
		}
		return int64(x), nil
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case json.Number:
		return x.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	}
	return 0, errors.New("unsupported amount")
}

func parsePaid(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		return s == "yes" || s == "true"
	}
	return false
}

// ReadCSV turns a CSV document with a header line into rows keyed by header.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return []Row{}, nil
	}
	if err != nil {
		return nil, apperr.Invalid("file", "malformed CSV header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	rows := []Row{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Invalid("file", fmt.Sprintf("malformed CSV: %v", err))
		}
		if blank(rec) {
			continue
		}
		row := Row{}
		for i, v := range rec {
			if i < len(header) && header[i] != "" {
				row[header[i]] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
