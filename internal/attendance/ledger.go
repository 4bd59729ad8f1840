// Package attendance keeps the daily attendance log as a CSV file. A person
// is logged at most once per calendar day.
package attendance

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"

	StatusPresent = "Present"
)

var csvHeader = []string{"Date", "Time", "Name", "Confidence", "Status"}

// Record is one attendance row.
type Record struct {
	Date       string
	Time       string
	Name       string
	Confidence float64
	Status     string
}

// Stats summarizes the ledger.
type Stats struct {
	TodayCount   int
	TodayNames   []string
	TotalDays    int
	TotalRecords int
}

// Ledger appends attendance records to a CSV file and deduplicates per day.
type Ledger struct {
	mu        sync.Mutex
	path      string
	today     string
	seenToday map[string]bool
	now       func() time.Time
}

// New opens a ledger backed by the given CSV file, creating it with a header
// row when missing. Records already present for the current day are loaded
// into the dedup set.
func New(path string) (*Ledger, error) {
	l := &Ledger{
		path:      path,
		seenToday: make(map[string]bool),
		now:       time.Now,
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("creating attendance directory: %w", err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("creating attendance file: %w", err)
		}
		w := csv.NewWriter(f)
		if err := w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("writing attendance header: %w", err)
		}
		w.Flush()
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("closing attendance file: %w", err)
		}
	}

	l.today = l.now().Format(dateLayout)
	records, err := l.Records()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Date == l.today {
			l.seenToday[r.Name] = true
		}
	}

	return l, nil
}

// ensureToday resets the dedup set when the calendar day rolls over. Caller
// holds the lock.
func (l *Ledger) ensureToday() {
	today := l.now().Format(dateLayout)
	if today != l.today {
		l.today = today
		l.seenToday = make(map[string]bool)
	}
}

// Log appends an attendance record for name unless one exists for today.
// Returns true when a record was written.
func (l *Ledger) Log(name string, confidence float64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ensureToday()
	if l.seenToday[name] {
		log.Debugf("Attendance for %s already logged today", name)
		return false, nil
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return false, fmt.Errorf("opening attendance file: %w", err)
	}
	ts := l.now()
	w := csv.NewWriter(f)
	row := []string{
		ts.Format(dateLayout),
		ts.Format(timeLayout),
		name,
		fmt.Sprintf("%.3f", confidence),
		StatusPresent,
	}
	if err := w.Write(row); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("writing attendance record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("flushing attendance record: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("closing attendance file: %w", err)
	}

	l.seenToday[name] = true
	log.Infof("Attendance logged for %s (%.3f)", name, confidence)
	return true, nil
}

// LoggedToday reports whether name already has a record for today.
func (l *Ledger) LoggedToday(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureToday()
	return l.seenToday[name]
}

// Today returns the names logged today, in file order.
func (l *Ledger) Today() ([]string, error) {
	l.mu.Lock()
	l.ensureToday()
	today := l.today
	l.mu.Unlock()

	records, err := l.Records()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, r := range records {
		if r.Date == today {
			names = append(names, r.Name)
		}
	}
	return names, nil
}

// Records reads every attendance row from the CSV file. Malformed rows are
// skipped with a warning.
func (l *Ledger) Records() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening attendance file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading attendance file: %w", err)
	}

	var records []Record
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == csvHeader[0] {
			continue
		}
		if len(row) < 5 {
			log.Warnf("Skipping malformed attendance row %d", i+1)
			continue
		}
		conf, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			log.Warnf("Skipping attendance row %d with bad confidence %q", i+1, row[3])
			continue
		}
		records = append(records, Record{
			Date:       row[0],
			Time:       row[1],
			Name:       row[2],
			Confidence: conf,
			Status:     row[4],
		})
	}
	return records, nil
}

// Stats computes ledger-wide counters.
func (l *Ledger) Stats() (Stats, error) {
	l.mu.Lock()
	l.ensureToday()
	today := l.today
	l.mu.Unlock()

	records, err := l.Records()
	if err != nil {
		return Stats{}, err
	}

	days := make(map[string]bool)
	var s Stats
	for _, r := range records {
		days[r.Date] = true
		if r.Date == today {
			s.TodayCount++
			s.TodayNames = append(s.TodayNames, r.Name)
		}
	}
	s.TotalDays = len(days)
	s.TotalRecords = len(records)
	return s, nil
}

// Path returns the ledger's CSV file location.
func (l *Ledger) Path() string {
	return l.path
}
