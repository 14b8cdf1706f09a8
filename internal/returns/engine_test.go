package returns

import (
	"context"
	"fmt"
	"testing"
	"time"

	"moiledger/internal/db"
	"moiledger/internal/ledger"
	"moiledger/internal/page"
)

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func row(id, name string, amount int64, dir ledger.Direction, eventID string, date time.Time) HistoryRow {
	return HistoryRow{
		ID: id, FamilyID: "f1", PersonName: name, EventID: eventID, TransactionID: "t" + id,
		Amount: amount, Direction: dir, Date: date, EventTitle: "Event " + eventID, EventType: ledger.EventWedding,
	}
}

func TestAggregateAliceBob(t *testing.T) {
	rows := []HistoryRow{
		row("1", "Alice", 5000, ledger.Received, "e1", day(10)),
		row("2", "Alice", 3000, ledger.Received, "e1", day(10)),
		row("3", "Alice", 1000, ledger.Given, "e1", day(10)),
		row("4", "Bob", 2000, ledger.Received, "e1", day(10)),
	}
	got := Aggregate(rows)
	want := map[string][4]int64{
		"Alice": {8000, 1000, 7000, 7000},
		"Bob":   {2000, 0, 2000, 2000},
	}
	if len(got) != 2 {
		t.Fatalf("Aggregate() = %d people, want 2", len(got))
	}
	for _, p := range got {
		w := want[p.PersonName]
		if p.TotalReceived != w[0] || p.TotalGiven != w[1] || p.NetBalance != w[2] || p.SuggestedReturn != w[3] {
			t.Errorf("%s = %+v, want %v", p.PersonName, p, w)
		}
		if p.EventCount != 1 {
			t.Errorf("%s EventCount = %d, want 1", p.PersonName, p.EventCount)
		}
	}
	// Same last interaction: ordered by name.
	if got[0].PersonName != "Alice" || got[1].PersonName != "Bob" {
		t.Errorf("order = %s, %s", got[0].PersonName, got[1].PersonName)
	}
}

func TestAggregateInvariants(t *testing.T) {
	rows := []HistoryRow{
		row("1", "Chitra", 700, ledger.Received, "e1", day(1)),
		row("2", "Chitra", 700, ledger.Given, "e2", day(5)),
		row("3", "Dev", 100, ledger.Given, "e1", day(3)),
		row("4", "dev", 100, ledger.Received, "e3", day(4)),
		row("5", "Dev", 50, ledger.Given, "e2", day(2)),
	}
	got := Aggregate(rows)

	names := []string{}
	for _, p := range got {
		names = append(names, p.PersonName)
		if p.NetBalance != p.TotalReceived-p.TotalGiven || p.SuggestedReturn != p.NetBalance {
			t.Errorf("%s balance mismatch: %+v", p.PersonName, p)
		}
	}
	if fmt.Sprint(names) != "[Chitra dev Dev]" {
		t.Errorf("order = %v, want most recent first with exact-name groups", names)
	}

	chitra := got[0]
	if !chitra.Settled() || chitra.SuggestedReturn != 0 {
		t.Errorf("Chitra should be settled: %+v", chitra)
	}
	if chitra.EventCount != 2 || !chitra.LastInteraction.Equal(day(5)) {
		t.Errorf("Chitra = %+v", chitra)
	}
	dev := got[2]
	if dev.TotalGiven != 150 || dev.SuggestedReturn != -150 || dev.EventCount != 2 || !dev.LastInteraction.Equal(day(3)) {
		t.Errorf("Dev = %+v", dev)
	}
}

func TestComputePagination(t *testing.T) {
	var rows []HistoryRow
	for i := 1; i <= 7; i++ {
		name := fmt.Sprintf("P%d", i)
		rows = append(rows, row(name+"a", name, int64(i*100), ledger.Received, "e1", day(i)))
		rows = append(rows, row(name+"b", name, 10, ledger.Given, "e2", day(i)))
	}
	all := Aggregate(rows)

	var concat []string
	for pg := 1; pg <= 3; pg++ {
		res := Compute(rows, page.Params{Page: pg, Limit: 3})
		if res.Meta.Total != 7 || res.Meta.TotalPages != 3 || res.Meta.Page != pg || res.Meta.Limit != 3 {
			t.Fatalf("page %d meta = %+v", pg, res.Meta)
		}
		for _, p := range res.Data {
			concat = append(concat, p.PersonName)
			if len(p.Timeline) != 2 {
				t.Errorf("%s timeline = %d entries, want 2", p.PersonName, len(p.Timeline))
			}
		}
	}
	if len(concat) != len(all) {
		t.Fatalf("concatenated pages = %v", concat)
	}
	for i := range all {
		if concat[i] != all[i].PersonName {
			t.Fatalf("concatenated pages = %v, want unpaginated order", concat)
		}
	}

	past := Compute(rows, page.Params{Page: 9, Limit: 3})
	if past.Data == nil || len(past.Data) != 0 || past.Meta.Total != 7 || past.Meta.TotalPages != 3 {
		t.Fatalf("page past end = %+v", past)
	}
}

func TestTimelineSortedNewestFirst(t *testing.T) {
	rows := []HistoryRow{
		row("1", "Alice", 100, ledger.Received, "e1", day(2)),
		row("2", "Alice", 200, ledger.Given, "e2", day(9)),
		row("3", "Alice", 300, ledger.Received, "e3", day(5)),
		row("4", "Bob", 1, ledger.Received, "e1", day(1)),
	}
	res := Compute(rows, page.Params{Page: 1, Limit: 1})
	if len(res.Data) != 1 || res.Data[0].PersonName != "Alice" {
		t.Fatalf("data = %+v", res.Data)
	}
	tl := res.Data[0].Timeline
	if len(tl) != 3 || tl[0].ID != "2" || tl[1].ID != "3" || tl[2].ID != "1" {
		t.Fatalf("timeline = %+v", tl)
	}
	if tl[0].Event.Title != "Event e2" || tl[0].Event.Type != ledger.EventWedding {
		t.Errorf("timeline event = %+v", tl[0].Event)
	}
}

func TestComputeEmpty(t *testing.T) {
	res := Compute(nil, page.Params{Page: 1, Limit: 20})
	if res.Data == nil || len(res.Data) != 0 || res.Meta.Total != 0 || res.Meta.TotalPages != 0 {
		t.Fatalf("Compute(nil) = %+v", res)
	}
}

type fixedScope map[string][]string

func (f fixedScope) Scope(_ context.Context, userID, _ string) ([]string, error) {
	return f[userID], nil
}

func TestServiceWithStore(t *testing.T) {
	gdb, err := db.Connect("sqlite", ":memory:", nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := gdb.AutoMigrate(&ledger.Event{}, &ledger.Transaction{}, &ledger.ContributionHistory{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ev := ledger.Event{FamilyID: "f1", Title: "Housewarming", Type: ledger.EventHousewarming, Date: day(20), CreatedBy: "u1", Status: ledger.StatusOpen}
	other := ledger.Event{FamilyID: "f2", Title: "Elsewhere", Type: ledger.EventCustom, Date: day(21), CreatedBy: "u2", Status: ledger.StatusOpen}
	gdb.Create(&ev)
	gdb.Create(&other)
	for _, tx := range []ledger.Transaction{
		{EventID: ev.ID, FamilyID: "f1", ContributorName: "Alice", Amount: 5000, Direction: ledger.Received, CreatedBy: "u1"},
		{EventID: ev.ID, FamilyID: "f1", ContributorName: "Alice", Amount: 1000, Direction: ledger.Given, CreatedBy: "u1"},
		{EventID: other.ID, FamilyID: "f2", ContributorName: "Alice", Amount: 999, Direction: ledger.Received, CreatedBy: "u2"},
	} {
		tx := tx
		if err := gdb.Create(&tx).Error; err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	svc := &Service{Source: &Store{DB: gdb}, Families: fixedScope{"u1": {"f1"}}}
	res, err := svc.Get(context.Background(), "u1", "", page.Params{Page: 1, Limit: 20})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(res.Data) != 1 {
		t.Fatalf("Get() = %+v", res)
	}
	alice := res.Data[0]
	if alice.TotalReceived != 5000 || alice.TotalGiven != 1000 || alice.SuggestedReturn != 4000 {
		t.Errorf("Alice = %+v", alice)
	}
	if !alice.LastInteraction.Equal(day(20)) || len(alice.Timeline) != 2 || alice.Timeline[0].Event.Title != "Housewarming" {
		t.Errorf("Alice timeline = %+v", alice.Timeline)
	}

	none, err := svc.Get(context.Background(), "nobody", "", page.Params{Page: 1, Limit: 20})
	if err != nil || len(none.Data) != 0 || none.Meta.Total != 0 {
		t.Fatalf("Get(no families) = %+v, %v", none, err)
	}
}
