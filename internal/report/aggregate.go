package report

import (
	"slices"
)

// Stats is the workload of a set of lessons.
type Stats struct {
	Blocks float64 `json:"blocks"`
	Hours  float64 `json:"hours"`
	Weekly float64 `json:"weekly"`
}

func StatsFromBlocks(blocks float64) Stats {
	return Stats{
		Blocks: blocks,
		Hours:  blocks * MinutesPerBlock / 60,
		Weekly: blocks / WeeksPerTerm,
	}
}

// Section is one class group's workload for a course in a semester.
type Section struct {
	Program string
	Course  string
	Stats   Stats
}

// CourseSummary averages the sections of one course, Quantity is the number
// of sections.
type CourseSummary struct {
	Program  string `json:"program"`
	Course   string `json:"course"`
	Quantity int    `json:"quantity"`
	Stats
}

type Totals struct {
	// Classes is the number of sections.
	Classes int `json:"classes"`
	// Components is the number of distinct courses.
	Components    int     `json:"components"`
	Weekly        float64 `json:"weekly"`
	SemesterHours float64 `json:"semesterHours"`
}

type SemesterSummary struct {
	Semester      string          `json:"semester"`
	Lessons       []Lesson        `json:"lessons"`
	TotalBlocks   int             `json:"totalBlocks"`
	TotalHours    float64         `json:"totalHours"`
	WeeklyAverage float64         `json:"weeklyAverage"`
	Courses       []CourseSummary `json:"courses"`
	Totals        Totals          `json:"totals"`
}

// CombineSections averages sections sharing program and course, keeping the
// order in which courses first appear.
func CombineSections(sections []Section) ([]CourseSummary, Totals) {
	type key struct{ program, course string }

	order := []key{}
	groups := map[key][]Stats{}
	for _, s := range sections {
		k := key{s.Program, s.Course}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s.Stats)
	}

	courses := make([]CourseSummary, 0, len(order))
	totals := Totals{}
	for _, k := range order {
		group := groups[k]
		var sum Stats
		for _, s := range group {
			sum.Blocks += s.Blocks
			sum.Hours += s.Hours
			sum.Weekly += s.Weekly
		}
		n := float64(len(group))
		course := CourseSummary{
			Program:  k.program,
			Course:   k.course,
			Quantity: len(group),
			Stats: Stats{
				Blocks: sum.Blocks / n,
				Hours:  sum.Hours / n,
				Weekly: sum.Weekly / n,
			},
		}
		courses = append(courses, course)

		totals.Classes += course.Quantity
		totals.Weekly += course.Weekly * n
		totals.SemesterHours += course.Hours * n
	}
	totals.Components = len(courses)
	return courses, totals
}

// Aggregate turns raw lesson rows into per-semester workload for the
// professor known by name (and aliases, such as a usual name). Semesters
// without an eligible lesson are left out, the result is sorted by semester.
func Aggregate(rows []Row, name string, aliases ...string) []SemesterSummary {
	names := append([]string{name}, aliases...)
	lessons, _ := ParseRows(rows, names...)

	type sectionKey struct{ section, program, course string }

	bySemester := map[string]*SemesterSummary{}
	sectionBlocks := map[string]map[sectionKey]int{}
	sectionOrder := map[string][]sectionKey{}

	for _, l := range lessons {
		if !l.Eligible {
			continue
		}
		summary, ok := bySemester[l.Semester]
		if !ok {
			summary = &SemesterSummary{Semester: l.Semester, Lessons: []Lesson{}}
			bySemester[l.Semester] = summary
			sectionBlocks[l.Semester] = map[sectionKey]int{}
		}
		summary.Lessons = append(summary.Lessons, l)
		summary.TotalBlocks += l.Blocks

		k := sectionKey{l.Section, l.Program, l.Course}
		if _, ok := sectionBlocks[l.Semester][k]; !ok {
			sectionOrder[l.Semester] = append(sectionOrder[l.Semester], k)
		}
		sectionBlocks[l.Semester][k] += l.Blocks
	}

	keys := make([]string, 0, len(bySemester))
	for k := range bySemester {
		keys = append(keys, k)
	}

	out := []SemesterSummary{}
	for _, semester := range SortSemesters(keys) {
		key := semester.String()
		summary := bySemester[key]

		totals := StatsFromBlocks(float64(summary.TotalBlocks))
		summary.TotalHours = totals.Hours
		summary.WeeklyAverage = totals.Weekly

		sections := []Section{}
		for _, k := range sectionOrder[key] {
			sections = append(sections, Section{
				Program: k.program,
				Course:  k.course,
				Stats:   StatsFromBlocks(float64(sectionBlocks[key][k])),
			})
		}
		summary.Courses, summary.Totals = CombineSections(sections)

		slices.SortStableFunc(summary.Lessons, func(a, b Lesson) int {
			return a.Date.Compare(b.Date)
		})
		out = append(out, *summary)
	}
	return out
}
