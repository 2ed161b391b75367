package report

// BookReport is the workload found in a single diary.
type BookReport struct {
	Lessons         []Lesson         `json:"lessons"`
	EligibleLessons []Lesson         `json:"eligibleLessons"`
	Semesters       map[string]Stats `json:"semesters"`
	// Skipped counts rows whose date could not be read.
	Skipped int `json:"skipped,omitempty"`
}

// NewBookReport interprets one diary's rows for the professor known by
// names. Only semesters listed in semesters are kept, all of them when it is
// empty.
func NewBookReport(rows []Row, semesters []string, names ...string) BookReport {
	lessons, skipped := ParseRows(rows, names...)

	wanted := map[string]bool{}
	for _, s := range SortSemesters(semesters) {
		wanted[s.String()] = true
	}

	out := BookReport{
		Lessons:         []Lesson{},
		EligibleLessons: []Lesson{},
		Semesters:       map[string]Stats{},
		Skipped:         skipped,
	}
	blocks := map[string]int{}
	for _, l := range lessons {
		if len(wanted) > 0 && !wanted[l.Semester] {
			continue
		}
		out.Lessons = append(out.Lessons, l)
		if !l.Eligible {
			continue
		}
		out.EligibleLessons = append(out.EligibleLessons, l)
		blocks[l.Semester] += l.Blocks
	}
	for semester, n := range blocks {
		out.Semesters[semester] = StatsFromBlocks(float64(n))
	}
	return out
}
