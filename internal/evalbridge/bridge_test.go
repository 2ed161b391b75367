package evalbridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"suapreport/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

const professorsHTML = `
<html><body>
<table id="result_list">
  <thead><tr><th>view</th><th>dados</th></tr></thead>
  <tbody>
    <tr>
      <th><a class="icon-view" href="/edu/professor/1234/">ver</a></th>
      <td class="field-get_dados_gerais"><dl>
        <dd> Maria   Silva Souza </dd><dd>000.000.000-00</dd><dd>x</dd><dd>maria@ifsul.edu.br</dd>
      </dl></td>
      <td class="field-display_matricula">1234567</td>
      <td class="field-get_foto"><img src="/media/fotos/1234.jpg"></td>
    </tr>
    <tr><td colspan="4">separator</td></tr>
  </tbody>
</table>
<ul id="links"><li><a href="diarios/?ano=2024">Diários 2024</a></li></ul>
</body></html>`

func professorCommand() Command {
	return Command{
		Op:      OpRecords,
		Rows:    "table#result_list tr",
		Require: "td.field-get_dados_gerais dd",
		Fields: []Field{
			{Name: "id", Selector: "th a.icon-view", Attr: "href", Pattern: `/edu/professor/(\d+)/`},
			{Name: "name", Selector: "td.field-get_dados_gerais dd", Index: 0},
			{Name: "email", Selector: "td.field-get_dados_gerais dd", Index: 3},
			{Name: "siape", Selector: "td.field-display_matricula"},
			{Name: "picture", Selector: "td.field-get_foto img", Attr: "src"},
			{Name: "missing", Selector: "td.nope"},
		},
	}
}

func TestLocalDispatcherRecords(t *testing.T) {
	d, err := NewLocalDispatcher([]byte(professorsHTML), "https://suap.ifsul.edu.br/admin/edu/professor/")
	require.NoError(t, err)

	result, err := New(telemetry.NewRecorder()).Evaluate(context.Background(), d, professorCommand())
	require.NoError(t, err)
	require.Equal(t, []Record{{
		"id":      "1234",
		"name":    "Maria Silva Souza",
		"email":   "maria@ifsul.edu.br",
		"siape":   "1234567",
		"picture": "https://suap.ifsul.edu.br/media/fotos/1234.jpg",
		"missing": "",
	}}, result.Records)
}

func TestLocalDispatcherTableTextsLinks(t *testing.T) {
	d, err := NewLocalDispatcher([]byte(professorsHTML), "https://suap.ifsul.edu.br/edu/")
	require.NoError(t, err)
	bridge := New(telemetry.NewRecorder())

	result, err := bridge.Evaluate(context.Background(), d, Command{Op: OpTable, Selector: "#result_list"})
	require.NoError(t, err)
	require.Equal(t, []string{"view", "dados"}, result.Table.Headers)
	require.Len(t, result.Table.Rows, 2)
	require.Equal(t, "1234567", result.Table.Rows[0][1])

	result, err = bridge.Evaluate(context.Background(), d, Command{Op: OpTexts, Selector: "td.field-display_matricula"})
	require.NoError(t, err)
	require.Equal(t, []string{"1234567"}, result.Texts)

	result, err = bridge.Evaluate(context.Background(), d, Command{Op: OpLinks, Selector: "#links a"})
	require.NoError(t, err)
	require.Equal(t, []Link{{Text: "Diários 2024", Href: "https://suap.ifsul.edu.br/edu/diarios/?ano=2024"}}, result.Links)

	result, err = bridge.Evaluate(context.Background(), d, Command{Op: OpTable, Selector: "#absent"})
	require.NoError(t, err)
	require.Empty(t, result.Table.Rows)
}

func TestValidateRejectsMalformedCommands(t *testing.T) {
	cases := []Command{
		{Op: "exec"},
		{Op: OpRecords, Fields: []Field{{Name: "a"}}},
		{Op: OpRecords, Rows: "tr"},
		{Op: OpRecords, Rows: "tr", Fields: []Field{{Name: ""}}},
		{Op: OpRecords, Rows: "tr", Fields: []Field{{Name: "a"}, {Name: "a"}}},
		{Op: OpRecords, Rows: "tr", Fields: []Field{{Name: "a", Index: -1}}},
		{Op: OpRecords, Rows: "tr", Fields: []Field{{Name: "a", Pattern: "("}}},
		{Op: OpTexts},
	}
	for _, c := range cases {
		err := c.Validate()
		require.ErrorIs(t, err, ErrSerialization, "%+v", c)
		require.ErrorIs(t, err, ErrExtraction)
	}
	require.NoError(t, professorCommand().Validate())
}

type scriptedEvaluator struct {
	script string
	arg    any
	raw    json.RawMessage
	err    error
}

func (s *scriptedEvaluator) Eval(ctx context.Context, script string, arg any) (json.RawMessage, error) {
	s.script = script
	s.arg = arg
	return s.raw, s.err
}

func TestEvaluateShipsOnlyDataAndTheFixedDispatcher(t *testing.T) {
	ev := &scriptedEvaluator{raw: json.RawMessage(`{"texts":["a"]}`)}
	result, err := New(telemetry.NewRecorder()).Evaluate(context.Background(), ev, Command{Op: OpTexts, Selector: "p"})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, result.Texts)

	require.Equal(t, DispatcherJS, ev.script)
	require.True(t, strings.HasPrefix(strings.TrimSpace(ev.script), "function (cmd)"))
	require.JSONEq(t, `{"op":"texts","selector":"p"}`, string(ev.arg.(json.RawMessage)))
}

func TestEvaluateFailures(t *testing.T) {
	rec := telemetry.NewRecorder()
	bridge := New(rec)
	cmd := Command{Op: OpTexts, Selector: "p"}

	_, err := bridge.Evaluate(context.Background(), &scriptedEvaluator{err: errors.New("target closed")}, cmd)
	require.ErrorIs(t, err, ErrExtraction)
	require.NotErrorIs(t, err, ErrSerialization)
	require.ErrorContains(t, err, "target closed")

	_, err = bridge.Evaluate(context.Background(), &scriptedEvaluator{raw: json.RawMessage(`{"error":"querySelectorAll: bad selector"}`)}, cmd)
	require.ErrorIs(t, err, ErrExtraction)
	require.ErrorContains(t, err, "bad selector")

	_, err = bridge.Evaluate(context.Background(), &scriptedEvaluator{raw: json.RawMessage(`"fn:() => 1"`)}, cmd)
	require.ErrorIs(t, err, ErrSerialization)

	_, err = bridge.Evaluate(context.Background(), nil, cmd)
	require.ErrorIs(t, err, ErrExtraction)

	require.Len(t, rec.Reports("warning"), 4)
}
