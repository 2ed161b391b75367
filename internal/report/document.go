package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
	"time"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var documentTemplate = template.Must(
	template.New("document.html.tmpl").
		Funcs(template.FuncMap{
			"num":   FormatNumber,
			"month": MonthName,
			"join":  strings.Join,
		}).
		ParseFS(templateFS, "templates/*.html.tmpl"),
)

type DocumentProfessor struct {
	Name  string `json:"name"`
	Siape string `json:"siape"`
}

// DocumentBook is a diary as sent back by the client once its report was
// fetched.
type DocumentBook struct {
	Program   string `json:"program"`
	Book      string `json:"book"`
	Component string `json:"component"`
	Report    struct {
		Semesters map[string]Stats `json:"semesters"`
	} `json:"report"`
}

type DocumentRequest struct {
	Professor DocumentProfessor `json:"professor"`
	Semesters []string          `json:"semesters"`
	Books     []DocumentBook    `json:"books"`
}

type ProgramGroup struct {
	Program string
	Courses []CourseSummary
}

type DocumentSemester struct {
	Semester string
	Programs []ProgramGroup
	Courses  []CourseSummary
	Totals   Totals
}

type Document struct {
	Professor DocumentProfessor
	Semesters []DocumentSemester
	City      string
	Signatory string
	Date      time.Time
}

func (d Document) SemesterKeys() []string {
	out := make([]string, 0, len(d.Semesters))
	for _, s := range d.Semesters {
		out = append(out, s.Semester)
	}
	return out
}

type DocumentOptions struct {
	City      string
	Signatory string
}

// BuildDocument lays out the certified workload document. Within each
// requested semester, diaries of the same course are averaged. Semesters
// without diaries are left out.
func BuildDocument(req DocumentRequest, opts DocumentOptions, now time.Time) Document {
	doc := Document{
		Professor: req.Professor,
		City:      opts.City,
		Signatory: opts.Signatory,
		Date:      now,
	}

	for _, semester := range SortSemesters(req.Semesters) {
		key := semester.String()

		sections := []Section{}
		for _, book := range req.Books {
			stats, ok := lookupSemester(book.Report.Semesters, semester)
			if !ok {
				continue
			}
			course := book.Component
			if course == "" {
				course = book.Book
			}
			sections = append(sections, Section{
				Program: book.Program,
				Course:  course,
				Stats:   stats,
			})
		}
		if len(sections) == 0 {
			continue
		}

		courses, totals := CombineSections(sections)
		doc.Semesters = append(doc.Semesters, DocumentSemester{
			Semester: key,
			Programs: groupByProgram(courses),
			Courses:  courses,
			Totals:   totals,
		})
	}
	return doc
}

func lookupSemester(semesters map[string]Stats, semester Semester) (Stats, bool) {
	for k, v := range semesters {
		parsed, err := ParseSemester(k)
		if err == nil && parsed == semester {
			return v, true
		}
	}
	return Stats{}, false
}

func groupByProgram(courses []CourseSummary) []ProgramGroup {
	groups := []ProgramGroup{}
	index := map[string]int{}
	for _, c := range courses {
		i, ok := index[c.Program]
		if !ok {
			i = len(groups)
			index[c.Program] = i
			groups = append(groups, ProgramGroup{Program: c.Program})
		}
		groups[i].Courses = append(groups[i].Courses, c)
	}
	return groups
}

// HTML renders the document.
func (d Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return buf.String(), nil
}

// FormatNumber prints v with up to two decimals and a decimal comma.
func FormatNumber(v float64) string {
	v = math.Round(v*100) / 100
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}

var months = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return months[m-1]
}

// Filename names a generated document, report_<timestamp>_<identifier>.<ext>.
func Filename(now time.Time, identifier, ext string) string {
	return fmt.Sprintf("report_%s_%s.%s", now.Format("2006-01-02-15-04-05"), identifier, ext)
}
