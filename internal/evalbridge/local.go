package evalbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"suapreport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// LocalDispatcher interprets commands over a parsed HTML document, producing
// the same results the remote dispatcher would.
type LocalDispatcher struct {
	Doc *goquery.Document
	// BaseURL resolves relative href and src attributes.
	BaseURL string
}

func NewLocalDispatcher(html []byte, baseURL string) (LocalDispatcher, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return LocalDispatcher{}, err
	}
	return LocalDispatcher{Doc: doc, BaseURL: baseURL}, nil
}

// Eval implements Evaluator. script is ignored, arg must be a Command or
// its json encoding.
func (d LocalDispatcher) Eval(ctx context.Context, script string, arg any) (json.RawMessage, error) {
	var cmd Command
	switch v := arg.(type) {
	case Command:
		cmd = v
	case json.RawMessage:
		if err := json.Unmarshal(v, &cmd); err != nil {
			return nil, err
		}
	case []byte:
		if err := json.Unmarshal(v, &cmd); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported argument %T", arg)
	}
	return json.Marshal(d.Dispatch(cmd))
}

// Dispatch runs cmd, failures are reported in Result.Error.
func (d LocalDispatcher) Dispatch(cmd Command) Result {
	if err := cmd.Validate(); err != nil {
		return Result{Error: err.Error()}
	}

	switch cmd.Op {
	case OpRecords:
		records := []Record{}
		d.Doc.Find(cmd.Rows).Each(func(_ int, row *goquery.Selection) {
			if cmd.Require != "" && row.Find(cmd.Require).Length() == 0 {
				return
			}
			record := Record{}
			for _, f := range cmd.Fields {
				record[f.Name] = d.pick(row, f)
			}
			records = append(records, record)
		})
		return Result{Records: records}

	case OpTable:
		table := &Table{Headers: []string{}, Rows: [][]string{}}
		sel := d.Doc.Find(cmd.Selector).First()
		sel.Find("thead th").Each(func(_ int, th *goquery.Selection) {
			table.Headers = append(table.Headers, htmlutil.SelectionText(th))
		})
		sel.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
			cells := []string{}
			tr.Find("td").Each(func(_ int, td *goquery.Selection) {
				cells = append(cells, htmlutil.SelectionText(td))
			})
			table.Rows = append(table.Rows, cells)
		})
		return Result{Table: table}

	case OpTexts:
		texts := []string{}
		d.Doc.Find(cmd.Selector).Each(func(_ int, s *goquery.Selection) {
			texts = append(texts, htmlutil.SelectionText(s))
		})
		return Result{Texts: texts}

	case OpLinks:
		links := []Link{}
		for _, a := range htmlutil.Anchors(context.Background(), d.Doc.Find(cmd.Selector), d.BaseURL) {
			links = append(links, Link{Text: a.Text, Href: a.Href})
		}
		return Result{Links: links}
	}
	return Result{Error: fmt.Sprintf("unknown op: %s", cmd.Op)}
}

func (d LocalDispatcher) pick(row *goquery.Selection, f Field) string {
	el := row
	if f.Selector != "" {
		el = row.Find(f.Selector)
	}
	el = el.Eq(f.Index)
	if el.Length() == 0 {
		return ""
	}

	var value string
	switch f.Attr {
	case "":
		value = htmlutil.SelectionText(el)
	case "href", "src":
		value = htmlutil.ResolveURL(d.BaseURL, el.AttrOr(f.Attr, ""))
	default:
		value = el.AttrOr(f.Attr, "")
	}
	return applyPattern(f.Pattern, value)
}
