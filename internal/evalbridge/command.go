package evalbridge

import (
	"fmt"
	"regexp"
)

type Op string

const (
	// OpRecords reads one record per row matching Rows, skipping rows
	// without a Require match.
	OpRecords Op = "records"
	// OpTable reads the header cells and the body cell texts of the first
	// table matching Selector.
	OpTable Op = "table"
	// OpTexts reads the text of every node matching Selector.
	OpTexts Op = "texts"
	// OpLinks reads the text and absolute href of every anchor matching Selector.
	OpLinks Op = "links"
)

// Field describes where a record field is read from, relative to its row.
type Field struct {
	Name string `json:"name"`
	// Selector is matched inside the row, the row itself is read when empty.
	Selector string `json:"selector,omitempty"`
	// Index picks the nth match of Selector.
	Index int `json:"index,omitempty"`
	// Attr reads an attribute instead of the text. href and src are
	// resolved to absolute urls.
	Attr string `json:"attr,omitempty"`
	// Pattern is applied to the value, the first capture group (or the whole
	// match) is kept. A value that does not match becomes empty.
	Pattern string `json:"pattern,omitempty"`
}

// Command is a data-only description of an extraction. It is the only thing
// that crosses the automation boundary, the code interpreting it is fixed.
type Command struct {
	Op       Op      `json:"op"`
	Selector string  `json:"selector,omitempty"`
	Rows     string  `json:"rows,omitempty"`
	Require  string  `json:"require,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
}

// Record maps field names to their extracted values.
type Record map[string]string

type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Result holds the output of exactly one Op.
type Result struct {
	Records []Record `json:"records,omitempty"`
	Table   *Table   `json:"table,omitempty"`
	Texts   []string `json:"texts,omitempty"`
	Links   []Link   `json:"links,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Validate rejects commands the dispatcher cannot interpret.
func (c Command) Validate() error {
	switch c.Op {
	case OpRecords:
		if c.Rows == "" {
			return fmt.Errorf("%w: records command without a row selector", ErrSerialization)
		}
		if len(c.Fields) == 0 {
			return fmt.Errorf("%w: records command without fields", ErrSerialization)
		}
		seen := map[string]struct{}{}
		for _, f := range c.Fields {
			if f.Name == "" {
				return fmt.Errorf("%w: field without a name", ErrSerialization)
			}
			if _, ok := seen[f.Name]; ok {
				return fmt.Errorf("%w: duplicate field %q", ErrSerialization, f.Name)
			}
			seen[f.Name] = struct{}{}
			if f.Index < 0 {
				return fmt.Errorf("%w: field %q has a negative index", ErrSerialization, f.Name)
			}
			if f.Pattern != "" {
				if _, err := regexp.Compile(f.Pattern); err != nil {
					return fmt.Errorf("%w: field %q: %v", ErrSerialization, f.Name, err)
				}
			}
		}
	case OpTable, OpTexts, OpLinks:
		if c.Selector == "" {
			return fmt.Errorf("%w: %s command without a selector", ErrSerialization, c.Op)
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrSerialization, c.Op)
	}
	return nil
}

func applyPattern(pattern, value string) string {
	if pattern == "" {
		return value
	}
	re := regexp.MustCompile(pattern)
	m := re.FindStringSubmatch(value)
	if m == nil {
		return ""
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}
