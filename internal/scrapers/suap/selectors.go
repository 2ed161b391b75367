package suap

import (
	"suapreport/internal/evalbridge"
)

// Selectors names where each piece of data lives on the portal. Paths are
// relative to the portal's base url, {id} and {semester} are substituted.
type Selectors struct {
	ProfessorSearch ProfessorSearchSelectors `json:"professor_search"`
	Books           BookSelectors            `json:"books"`
	Lessons         LessonSelectors          `json:"lessons"`
	UsualName       UsualNameSelectors       `json:"usual_name"`
}

type ProfessorSearchSelectors struct {
	Path  string `json:"path"`
	Ready string `json:"ready"`
	// Rows holding no Require match are headers or separators.
	Rows    string             `json:"rows"`
	Require string             `json:"require"`
	Fields  []evalbridge.Field `json:"fields"`
}

type BookSelectors struct {
	Path    string             `json:"path"`
	Ready   string             `json:"ready"`
	Rows    string             `json:"rows"`
	Require string             `json:"require"`
	Fields  []evalbridge.Field `json:"fields"`
}

type LessonSelectors struct {
	Path  string `json:"path"`
	Ready string `json:"ready"`
	Table string `json:"table"`
	// Header labels locating each column, matched case and accent
	// insensitively against the table header.
	DateHeader      string `json:"date_header"`
	QuantityHeader  string `json:"quantity_header"`
	ProfessorHeader string `json:"professor_header"`
	TopicHeader     string `json:"topic_header"`
}

type UsualNameSelectors struct {
	Path  string `json:"path"`
	Ready string `json:"ready"`
	Rows  string `json:"rows"`
	Label string `json:"label"`
	Value string `json:"value"`
	// Match is the label text of the usual name row.
	Match string `json:"match"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		ProfessorSearch: ProfessorSearchSelectors{
			Path:    "admin/edu/professor/?vinculo__setor__uo={campus}&q={query}&tab=tab_any_data",
			Ready:   "table#result_list tr",
			Rows:    "table#result_list tr",
			Require: "td.field-get_dados_gerais dd",
			Fields: []evalbridge.Field{
				{Name: "id", Selector: "th a.icon-view", Attr: "href", Pattern: `/edu/professor/(\d+)/`},
				{Name: "name", Selector: "td.field-get_dados_gerais dd", Index: 0},
				{Name: "cpf", Selector: "td.field-get_dados_gerais dd", Index: 1},
				{Name: "email", Selector: "td.field-get_dados_gerais dd", Index: 3},
				{Name: "siape", Selector: "td.field-display_matricula"},
				{Name: "picture", Selector: "td.field-get_foto img", Attr: "src"},
			},
		},
		Books: BookSelectors{
			Path:    "edu/professor/{id}/?tab=disciplinas&ano-periodo={semester}",
			Ready:   "#content",
			Rows:    "div#disciplinas table tbody tr",
			Require: `a[href*="/edu/meu_diario/"]`,
			Fields: []evalbridge.Field{
				{Name: "id", Selector: `a[href*="/edu/meu_diario/"]`, Attr: "href", Pattern: `/edu/meu_diario/(\d+)/`},
				{Name: "link", Selector: `a[href*="/edu/meu_diario/"]`, Attr: "href"},
				{Name: "class", Selector: "td", Index: 1},
				{Name: "book", Selector: "td", Index: 2},
				{Name: "component", Selector: "td", Index: 2, Pattern: `^(?:[\w.]+ - )?(.+)$`},
				{Name: "program", Selector: "td", Index: 3},
			},
		},
		Lessons: LessonSelectors{
			Path:            "edu/meu_diario/{id}/1/?tab=aulas",
			Ready:           "#content",
			Table:           "div#aulas table",
			DateHeader:      "Data",
			QuantityHeader:  "Quantidade",
			ProfessorHeader: "Professor",
			TopicHeader:     "Conteúdo",
		},
		UsualName: UsualNameSelectors{
			Path:  "edu/professor/{id}/",
			Ready: "#content",
			Rows:  "table.info tr",
			Label: "td",
			Value: "td",
			Match: "Nome Usual",
		},
	}
}
