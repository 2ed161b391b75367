package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Semester is a civil half year: period 1 runs January to June, period 2
// July to December.
type Semester struct {
	Year   int
	Period int
}

// ParseSemester accepts "2024.1" and "2024/1".
func ParseSemester(s string) (Semester, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "./_")
	if sep < 0 {
		return Semester{}, fmt.Errorf("invalid semester %q", s)
	}
	year, err := strconv.Atoi(s[:sep])
	if err != nil {
		return Semester{}, fmt.Errorf("invalid semester year %q: %w", s, err)
	}
	period, err := strconv.Atoi(s[sep+1:])
	if err != nil {
		return Semester{}, fmt.Errorf("invalid semester period %q: %w", s, err)
	}
	if period != 1 && period != 2 {
		return Semester{}, fmt.Errorf("invalid semester period %q", s)
	}
	return Semester{Year: year, Period: period}, nil
}

func SemesterFromDate(t time.Time) Semester {
	period := 1
	if t.Month() > time.June {
		period = 2
	}
	return Semester{Year: t.Year(), Period: period}
}

func (s Semester) String() string {
	return fmt.Sprintf("%d.%d", s.Year, s.Period)
}

func (s Semester) Next() Semester {
	if s.Period == 1 {
		return Semester{Year: s.Year, Period: 2}
	}
	return Semester{Year: s.Year + 1, Period: 1}
}

func (s Semester) Previous() Semester {
	if s.Period == 2 {
		return Semester{Year: s.Year, Period: 1}
	}
	return Semester{Year: s.Year - 1, Period: 2}
}

func (s Semester) Compare(other Semester) int {
	if s.Year != other.Year {
		return s.Year - other.Year
	}
	return s.Period - other.Period
}

// SortSemesters parses and sorts semester keys, skipping invalid ones.
func SortSemesters(keys []string) []Semester {
	out := make([]Semester, 0, len(keys))
	for _, k := range keys {
		s, err := ParseSemester(k)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, Semester.Compare)
	return slices.Compact(out)
}

func FirstSemester(keys []string) (Semester, bool) {
	sorted := SortSemesters(keys)
	if len(sorted) == 0 {
		return Semester{}, false
	}
	return sorted[0], true
}

func LastSemester(keys []string) (Semester, bool) {
	sorted := SortSemesters(keys)
	if len(sorted) == 0 {
		return Semester{}, false
	}
	return sorted[len(sorted)-1], true
}

// RecentSemesters returns the n semesters ending with the current one, most
// recent first.
func RecentSemesters(now time.Time, n int) []Semester {
	out := make([]Semester, 0, n)
	s := SemesterFromDate(now)
	for i := 0; i < n; i++ {
		out = append(out, s)
		s = s.Previous()
	}
	return out
}
