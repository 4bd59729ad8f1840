package attendance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(filepath.Join(t.TempDir(), "attendance.csv"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return l
}

func TestLedgerCreatesHeader(t *testing.T) {
	l := newTestLedger(t)

	raw, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "Date,Time,Name,Confidence,Status") {
		t.Errorf("file does not start with header: %q", string(raw))
	}
}

func TestLedgerDeduplicatesPerDay(t *testing.T) {
	l := newTestLedger(t)

	logged, err := l.Log("Alice", 0.87)
	if err != nil {
		t.Fatal(err)
	}
	if !logged {
		t.Error("first Log() = false, want true")
	}

	logged, err = l.Log("Alice", 0.91)
	if err != nil {
		t.Fatal(err)
	}
	if logged {
		t.Error("second Log() same day = true, want false")
	}

	if !l.LoggedToday("Alice") {
		t.Error("LoggedToday(Alice) = false, want true")
	}
	if l.LoggedToday("Bob") {
		t.Error("LoggedToday(Bob) = true, want false")
	}
}

func TestLedgerDayRollover(t *testing.T) {
	l := newTestLedger(t)

	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return day1 }

	if ok, _ := l.Log("Alice", 0.8); !ok {
		t.Fatal("Log() on day 1 failed")
	}
	if ok, _ := l.Log("Alice", 0.8); ok {
		t.Fatal("duplicate Log() on day 1 succeeded")
	}

	l.now = func() time.Time { return day1.AddDate(0, 0, 1) }
	if ok, _ := l.Log("Alice", 0.8); !ok {
		t.Error("Log() on day 2 = false, want true after rollover")
	}

	stats, err := l.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2", stats.TotalRecords)
	}
	if stats.TotalDays != 2 {
		t.Errorf("TotalDays = %d, want 2", stats.TotalDays)
	}
}

func TestLedgerRecords(t *testing.T) {
	l := newTestLedger(t)
	l.now = func() time.Time { return time.Date(2026, 3, 2, 9, 15, 30, 0, time.UTC) }

	if _, err := l.Log("Alice", 0.876); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Log("Bob", 0.654); err != nil {
		t.Fatal(err)
	}

	records, err := l.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("Records() returned %d rows, want 2", len(records))
	}

	got := records[0]
	want := Record{Date: "2026-03-02", Time: "09:15:30", Name: "Alice", Confidence: 0.876, Status: StatusPresent}
	if got != want {
		t.Errorf("Records()[0] = %+v, want %+v", got, want)
	}
}

func TestLedgerSeedsDedupFromExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.csv")

	l, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Log("Alice", 0.9); err != nil {
		t.Fatal(err)
	}

	// A fresh ledger over the same file must not log Alice again today.
	reopened, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if logged, _ := reopened.Log("Alice", 0.9); logged {
		t.Error("Log() after reopen = true, want false")
	}
	if logged, _ := reopened.Log("Bob", 0.7); !logged {
		t.Error("Log() for new name after reopen = false, want true")
	}
}

func TestLedgerToday(t *testing.T) {
	l := newTestLedger(t)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Log("Alice", 0.9)
	l.Log("Bob", 0.8)

	// Yesterday's rows must not show up in Today.
	l.now = func() time.Time { return now.AddDate(0, 0, 1) }
	l.Log("Carol", 0.7)

	names, err := l.Today()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "Carol" {
		t.Errorf("Today() = %v, want [Carol]", names)
	}
}
