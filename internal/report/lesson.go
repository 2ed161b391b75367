package report

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"suapreport/lib/textutil"
)

const (
	// MinutesPerBlock is the length of a teaching block.
	MinutesPerBlock = 45
	// WeeksPerTerm divides a semester's blocks into a weekly load.
	WeeksPerTerm = 20
)

// Row is a lesson as read from a diary, before any interpretation.
type Row struct {
	// Section identifies the diary (class group) the row was read from.
	Section string `json:"section,omitempty"`
	Program string `json:"program,omitempty"`
	Course  string `json:"course,omitempty"`

	Date string `json:"date"`
	// Blocks is either a number or text like "2 Hora(s)/Aula", empty counts
	// as a single block.
	Blocks string `json:"blocks,omitempty"`
	Topic  string `json:"topic,omitempty"`
	// Professor is empty for diaries taught by a single professor.
	Professor string `json:"professor,omitempty"`
}

type Lesson struct {
	Section   string    `json:"section,omitempty"`
	Program   string    `json:"program,omitempty"`
	Course    string    `json:"course,omitempty"`
	Date      time.Time `json:"date"`
	Blocks    int       `json:"blocks"`
	Topic     string    `json:"topic,omitempty"`
	Professor string    `json:"professor,omitempty"`
	Semester  string    `json:"semester"`
	Eligible  bool      `json:"isEligible"`
}

var dateLayouts = []string{"02/01/2006", "2006-01-02", "02/01/06"}

var datePattern = regexp.MustCompile(`\d{1,4}[/-]\d{1,2}[/-]\d{1,4}`)

// ParseDate reads the first date in s.
func ParseDate(s string) (time.Time, bool) {
	m := datePattern.FindString(s)
	if m == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, m)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var blocksPattern = regexp.MustCompile(`\d+`)

// ParseBlocks reads the block count in s.
func ParseBlocks(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1
	}
	m := blocksPattern.FindString(s)
	if m == "" {
		return 1
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 1
	}
	return n
}

// Eligible reports whether a lesson recorded under label counts for the
// professor known by names. Unlabeled lessons always count.
func Eligible(label string, names ...string) bool {
	if strings.TrimSpace(label) == "" {
		return true
	}
	for _, name := range names {
		if textutil.SameName(name, label) {
			return true
		}
	}
	return false
}

// ParseRows turns raw rows into lessons. Rows without content and rows whose
// date cannot be read are dropped, skipped counts the latter.
func ParseRows(rows []Row, names ...string) (lessons []Lesson, skipped int) {
	lessons = []Lesson{}
	for _, row := range rows {
		if strings.TrimSpace(row.Date) == "" && strings.TrimSpace(row.Topic) == "" {
			continue
		}
		date, ok := ParseDate(row.Date)
		if !ok {
			skipped++
			continue
		}
		lessons = append(lessons, Lesson{
			Section:   row.Section,
			Program:   row.Program,
			Course:    row.Course,
			Date:      date,
			Blocks:    ParseBlocks(row.Blocks),
			Topic:     strings.TrimSpace(row.Topic),
			Professor: strings.TrimSpace(row.Professor),
			Semester:  SemesterFromDate(date).String(),
			Eligible:  Eligible(row.Professor, names...),
		})
	}
	return lessons, skipped
}
