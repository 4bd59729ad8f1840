// Package analytics derives daily and per-person summaries from the
// attendance ledger.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mvanek/faceattend/internal/attendance"
)

const dateLayout = "2006-01-02"

// DayStats is the attendance summary for one calendar day.
type DayStats struct {
	Date          string
	Count         int
	Names         []string
	AvgConfidence float64
}

// PersonStats is the attendance history of one person.
type PersonStats struct {
	Name           string
	Records        int
	DaysPresent    int
	FirstSeen      string
	LastSeen       string
	AttendanceRate float64 // percent of working days in the seen span
	AvgConfidence  float64
	MinConfidence  float64
	MaxConfidence  float64
}

// Reporter computes summaries over a ledger.
type Reporter struct {
	ledger *attendance.Ledger
	now    func() time.Time
}

func New(ledger *attendance.Ledger) *Reporter {
	return &Reporter{ledger: ledger, now: time.Now}
}

// Daily returns per-day summaries for the last n days, most recent first.
// Days with no records are included with a zero count.
func (r *Reporter) Daily(n int) ([]DayStats, error) {
	if n <= 0 {
		n = 7
	}

	records, err := r.ledger.Records()
	if err != nil {
		return nil, fmt.Errorf("reading attendance records: %w", err)
	}

	byDay := make(map[string][]attendance.Record)
	for _, rec := range records {
		byDay[rec.Date] = append(byDay[rec.Date], rec)
	}

	today := r.now()
	out := make([]DayStats, 0, n)
	for i := 0; i < n; i++ {
		date := today.AddDate(0, 0, -i).Format(dateLayout)
		day := DayStats{Date: date}
		var confSum float64
		for _, rec := range byDay[date] {
			day.Names = append(day.Names, rec.Name)
			confSum += rec.Confidence
		}
		day.Count = len(day.Names)
		if day.Count > 0 {
			day.AvgConfidence = confSum / float64(day.Count)
		}
		out = append(out, day)
	}
	return out, nil
}

// People returns per-person attendance histories, sorted by days present
// descending, then by name.
func (r *Reporter) People() ([]PersonStats, error) {
	records, err := r.ledger.Records()
	if err != nil {
		return nil, fmt.Errorf("reading attendance records: %w", err)
	}

	type acc struct {
		days     map[string]bool
		first    string
		last     string
		confSum  float64
		confMin  float64
		confMax  float64
		rows     int
	}
	byName := make(map[string]*acc)
	for _, rec := range records {
		a := byName[rec.Name]
		if a == nil {
			a = &acc{
				days:    make(map[string]bool),
				first:   rec.Date,
				last:    rec.Date,
				confMin: rec.Confidence,
				confMax: rec.Confidence,
			}
			byName[rec.Name] = a
		}
		a.days[rec.Date] = true
		if rec.Date < a.first {
			a.first = rec.Date
		}
		if rec.Date > a.last {
			a.last = rec.Date
		}
		a.confSum += rec.Confidence
		a.confMin = math.Min(a.confMin, rec.Confidence)
		a.confMax = math.Max(a.confMax, rec.Confidence)
		a.rows++
	}

	out := make([]PersonStats, 0, len(byName))
	for name, a := range byName {
		out = append(out, PersonStats{
			Name:           name,
			Records:        a.rows,
			DaysPresent:    len(a.days),
			FirstSeen:      a.first,
			LastSeen:       a.last,
			AttendanceRate: attendanceRate(len(a.days), a.first, a.last),
			AvgConfidence:  a.confSum / float64(a.rows),
			MinConfidence:  a.confMin,
			MaxConfidence:  a.confMax,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DaysPresent != out[j].DaysPresent {
			return out[i].DaysPresent > out[j].DaysPresent
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// attendanceRate estimates presence as a percentage of working days between
// the first and last record, approximating a five-day week.
func attendanceRate(daysPresent int, first, last string) float64 {
	f, err1 := time.Parse(dateLayout, first)
	l, err2 := time.Parse(dateLayout, last)
	if err1 != nil || err2 != nil {
		return 0
	}

	span := int(l.Sub(f).Hours()/24) + 1
	working := math.Max(1, float64(span)*5/7)
	rate := float64(daysPresent) / working * 100
	return math.Min(rate, 100)
}
