package analytics

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvanek/faceattend/internal/attendance"
)

// writeLedger creates an attendance CSV with the given rows and opens a
// ledger over it.
func writeLedger(t *testing.T, rows [][]string) *attendance.Ledger {
	t.Helper()

	path := filepath.Join(t.TempDir(), "attendance.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := csv.NewWriter(f)
	w.Write([]string{"Date", "Time", "Name", "Confidence", "Status"})
	for _, row := range rows {
		w.Write(row)
	}
	w.Flush()
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	l, err := attendance.New(path)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestDaily(t *testing.T) {
	l := writeLedger(t, [][]string{
		{"2026-03-02", "09:00:00", "Alice", "0.900", "Present"},
		{"2026-03-02", "09:05:00", "Bob", "0.800", "Present"},
		{"2026-03-01", "09:00:00", "Alice", "0.850", "Present"},
	})

	r := New(l)
	r.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }

	got, err := r.Daily(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("Daily(3) returned %d days, want 3", len(got))
	}

	if got[0].Date != "2026-03-02" || got[0].Count != 2 {
		t.Errorf("day 0 = %+v, want 2026-03-02 with 2 records", got[0])
	}
	if math.Abs(got[0].AvgConfidence-0.85) > 1e-9 {
		t.Errorf("day 0 AvgConfidence = %f, want 0.85", got[0].AvgConfidence)
	}
	if got[1].Date != "2026-03-01" || got[1].Count != 1 {
		t.Errorf("day 1 = %+v, want 2026-03-01 with 1 record", got[1])
	}
	if got[2].Date != "2026-02-28" || got[2].Count != 0 {
		t.Errorf("day 2 = %+v, want 2026-02-28 with 0 records", got[2])
	}
}

func TestPeople(t *testing.T) {
	l := writeLedger(t, [][]string{
		{"2026-03-02", "09:00:00", "Alice", "0.900", "Present"},
		{"2026-03-03", "09:00:00", "Alice", "0.700", "Present"},
		{"2026-03-02", "09:05:00", "Bob", "0.800", "Present"},
	})

	r := New(l)
	got, err := r.People()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("People() returned %d entries, want 2", len(got))
	}

	alice := got[0]
	if alice.Name != "Alice" {
		t.Fatalf("first entry = %q, want Alice (most days present)", alice.Name)
	}
	if alice.DaysPresent != 2 {
		t.Errorf("Alice.DaysPresent = %d, want 2", alice.DaysPresent)
	}
	if alice.FirstSeen != "2026-03-02" || alice.LastSeen != "2026-03-03" {
		t.Errorf("Alice span = %s..%s, want 2026-03-02..2026-03-03", alice.FirstSeen, alice.LastSeen)
	}
	if alice.Records != 2 {
		t.Errorf("Alice.Records = %d, want 2", alice.Records)
	}
	if math.Abs(alice.AvgConfidence-0.8) > 1e-9 {
		t.Errorf("Alice.AvgConfidence = %f, want 0.8", alice.AvgConfidence)
	}
	if alice.MinConfidence != 0.7 || alice.MaxConfidence != 0.9 {
		t.Errorf("Alice confidence range = %f..%f, want 0.7..0.9", alice.MinConfidence, alice.MaxConfidence)
	}
	// Two days present over a two-day span is full attendance.
	if alice.AttendanceRate != 100 {
		t.Errorf("Alice.AttendanceRate = %f, want 100", alice.AttendanceRate)
	}

	if got[1].Name != "Bob" || got[1].DaysPresent != 1 {
		t.Errorf("second entry = %+v, want Bob with 1 day", got[1])
	}
}

func TestPeopleEmptyLedger(t *testing.T) {
	l := writeLedger(t, nil)

	r := New(l)
	got, err := r.People()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("People() on empty ledger = %v, want empty", got)
	}
}
