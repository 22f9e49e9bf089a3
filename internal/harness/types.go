package harness

import "github.com/roach88/previa/internal/domain"

// OutcomeSuccess is the output case of a step that returned no error.
// Failed steps report the engine error code instead.
const OutcomeSuccess = "Success"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq        int    `json:"seq"`
	Action     string `json:"action"`
	Ref        string `json:"ref,omitempty"`
	OutputCase string `json:"output_case"`

	// Result is the value the operation returned, kept for expect and
	// assertion matching. It is not part of the golden trace because it
	// carries generated ids and timestamps.
	Result interface{} `json:"-"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists setup and flow steps in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectation messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Refs maps the names bound with `as:` to the ids they captured.
	Refs map[string]string `json:"refs,omitempty"`

	// State is the final application state.
	State *domain.AppState `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Refs:   map[string]string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(action, ref, outputCase string, result interface{}) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:        len(r.Trace) + 1,
		Action:     action,
		Ref:        ref,
		OutputCase: outputCase,
		Result:     result,
	})
}

// Event returns the last trace event bound to ref.
func (r *Result) Event(ref string) (TraceEvent, bool) {
	for i := len(r.Trace) - 1; i >= 0; i-- {
		if r.Trace[i].Ref == ref {
			return r.Trace[i], true
		}
	}
	return TraceEvent{}, false
}
