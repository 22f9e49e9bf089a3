package harness

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/ledger"
	"github.com/roach88/previa/internal/workorder"
)

// AssertionError provides detailed information about a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s assertion failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// amountTolerance absorbs float noise when comparing amounts.
const amountTolerance = 0.005

// Evaluate checks one assertion against a finished run.
func Evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertJob:
		return assertJob(r, a)
	case AssertQuote:
		return assertQuote(r, a)
	case AssertResult:
		return assertResult(r, a)
	case AssertCount:
		return assertCount(r, a)
	case AssertRecords:
		return assertRecords(r, a)
	case AssertBalance:
		return assertBalance(r, a)
	case AssertDirectory:
		return assertDirectory(r, a)
	case AssertDefaultState:
		return assertDefaultState(r)
	case AssertTraceCount:
		return assertTraceCount(r.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(r.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertJob matches the job bound to ref, extended with its computed
// "paid" and "due" amounts.
func assertJob(r *Result, a Assertion) error {
	id := r.Refs[a.Ref]
	i := r.State.FindJob(id)
	if i < 0 {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("job %s (%s)", a.Ref, id), Actual: "job not found"}
	}
	job := r.State.Jobs[i]
	v, err := toJSONValue(job)
	if err != nil {
		return err
	}
	m := v.(map[string]interface{})
	m["paid"] = workorder.Paid(r.State, job.ID)
	m["due"] = workorder.Due(r.State, job)
	if err := matchFields("", a.Expect, m); err != nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("job %s matching %v", a.Ref, a.Expect), Actual: err.Error()}
	}
	return nil
}

func assertQuote(r *Result, a Assertion) error {
	id := r.Refs[a.Ref]
	i := r.State.FindQuote(id)
	if i < 0 {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("quote %s (%s)", a.Ref, id), Actual: "quote not found"}
	}
	v, err := toJSONValue(r.State.Quotes[i])
	if err != nil {
		return err
	}
	if err := matchFields("", a.Expect, v); err != nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("quote %s matching %v", a.Ref, a.Expect), Actual: err.Error()}
	}
	return nil
}

// assertResult matches what the step bound to ref returned, whether or
// not it captured an id.
func assertResult(r *Result, a Assertion) error {
	ev, ok := r.Event(a.Ref)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("step %s", a.Ref), Actual: "step not in trace"}
	}
	if err := matchFields("", a.Expect, ev.Result); err != nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("result of %s matching %v", a.Ref, a.Expect), Actual: err.Error()}
	}
	return nil
}

// records returns the collection's records matching where.
func records(r *Result, a Assertion) ([]interface{}, error) {
	v, err := toJSONValue(r.State)
	if err != nil {
		return nil, err
	}
	list, _ := v.(map[string]interface{})[a.Collection].([]interface{})
	var out []interface{}
	for _, rec := range list {
		if matchFields("", a.Where, rec) == nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func assertCount(r *Result, a Assertion) error {
	matched, err := records(r, a)
	if err != nil {
		return err
	}
	if len(matched) != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s where %s", *a.Count, a.Collection, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d", len(matched)),
		}
	}
	return nil
}

// assertRecords requires at least one matching record and checks that
// every match has the expected fields.
func assertRecords(r *Result, a Assertion) error {
	matched, err := records(r, a)
	if err != nil {
		return err
	}
	if len(matched) == 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("record in %s where %s", a.Collection, formatWhere(a.Where)),
			Actual:   "record not found",
		}
	}
	for i, rec := range matched {
		if err := matchFields("", a.Expect, rec); err != nil {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s where %s matching %v", a.Collection, formatWhere(a.Where), a.Expect),
				Actual:   fmt.Sprintf("record %d: %v", i, err),
			}
		}
	}
	return nil
}

func assertBalance(r *Result, a Assertion) error {
	got := ledger.Balance(r.State)
	if math.Abs(got-*a.Value) > amountTolerance {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%.2f", *a.Value), Actual: fmt.Sprintf("%.2f", got)}
	}
	return nil
}

func assertDirectory(r *Result, a Assertion) error {
	got := r.State.Directory.Clients
	if a.Kind == "supplier" {
		got = r.State.Directory.Suppliers
	}
	want := a.Names
	if want == nil {
		want = []string{}
	}
	if !reflect.DeepEqual(append([]string{}, got...), want) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s names %v", a.Kind, want), Actual: fmt.Sprintf("%v", got)}
	}
	return nil
}

func assertDefaultState(r *Result) error {
	got, err := toJSONValue(r.State)
	if err != nil {
		return err
	}
	want, err := toJSONValue(domain.NewDefaultState())
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(got, want) {
		return &AssertionError{Type: AssertDefaultState, Expected: "the default state", Actual: fmt.Sprintf("%v", got)}
	}
	return nil
}

// assertTraceCount checks the action appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Action == a.Action {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, a.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
		}
	}
	return nil
}

// assertTraceOrder checks the first occurrences of the actions appear in
// the given order.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int, len(a.Actions))
	for i, ev := range trace {
		if _, seen := positions[ev.Action]; !seen {
			positions[ev.Action] = i + 1
		}
	}
	for _, action := range a.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
			}
		}
	}
	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual:   fmt.Sprintf("%s (pos %d) should be before %s (pos %d)", prev, positions[prev], curr, positions[curr]),
			}
		}
	}
	return nil
}

// matchFields checks every expected field against actual with subset
// semantics: nested maps recurse, numbers compare within a cent.
func matchFields(path string, expected map[string]interface{}, actual interface{}) error {
	m, ok := actual.(map[string]interface{})
	if !ok {
		if len(expected) == 0 {
			return nil
		}
		return fmt.Errorf("%s: expected an object, got %v", pathOr(path), actual)
	}
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := k
		if path != "" {
			p = path + "." + k
		}
		got, present := m[k]
		if !present {
			return fmt.Errorf("%s: missing", p)
		}
		if err := matchValue(p, expected[k], got); err != nil {
			return err
		}
	}
	return nil
}

func matchValue(path string, want, got interface{}) error {
	switch w := want.(type) {
	case map[string]interface{}:
		return matchFields(path, w, got)
	case []interface{}:
		g, ok := got.([]interface{})
		if !ok || len(g) != len(w) {
			return fmt.Errorf("%s: expected %v, got %v", path, w, got)
		}
		for i := range w {
			if err := matchValue(fmt.Sprintf("%s[%d]", path, i), w[i], g[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if wn, ok := toFloat(want); ok {
		gn, ok := toFloat(got)
		if !ok || math.Abs(wn-gn) > amountTolerance {
			return fmt.Errorf("%s: expected %v, got %v", path, want, got)
		}
		return nil
	}
	if want == nil {
		if got != nil {
			return fmt.Errorf("%s: expected null, got %v", path, got)
		}
		return nil
	}
	if fmt.Sprint(want) != fmt.Sprint(got) {
		return fmt.Errorf("%s: expected %v, got %v", path, want, got)
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func pathOr(p string) string {
	if p == "" {
		return "value"
	}
	return p
}

// formatWhere renders a where clause deterministically.
func formatWhere(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(all)"
	}
	parts := make([]string, 0, len(where))
	for k, v := range where {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, " AND ")
}
