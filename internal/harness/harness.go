package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/roach88/previa/internal/engine"
	"github.com/roach88/previa/internal/store"
	"github.com/roach88/previa/internal/testutil"
)

// Harness runs one scenario against a fresh engine.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	result *Result
}

// Option configures a harness run.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

// WithLogger sends engine logs to l. Runs are silent by default.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// stepping clock and sequential ids so traces are reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database, seeded with the scenario snapshot
// 2. Load the engine state from it
// 3. Execute setup steps, which must succeed
// 4. Execute flow steps with expect validation
// 5. Evaluate assertions against the trace and the final state
//
// The returned error reports a broken scenario or harness failure. A
// scenario whose expectations do not hold returns a Result with Pass false.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	h, err := newHarness(ctx, scenario, o)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	if _, err := h.engine.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	for i, step := range scenario.Setup {
		if err := h.execute(ctx, step, true); err != nil {
			return nil, fmt.Errorf("setup step %d (%s): %w", i, step.Invoke, err)
		}
	}
	for i, step := range scenario.Flow {
		if err := h.execute(ctx, step, false); err != nil {
			return nil, fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}
	}

	h.result.State = h.engine.Snapshot()
	for i, a := range scenario.Assertions {
		if err := Evaluate(h.result, a); err != nil {
			h.result.AddError(fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return h.result, nil
}

func newHarness(ctx context.Context, scenario *Scenario, o options) (*Harness, error) {
	start := testutil.DefaultEpoch
	if scenario.Now != "" {
		t, err := time.Parse(time.RFC3339, scenario.Now)
		if err != nil {
			return nil, fmt.Errorf("invalid now: %w", err)
		}
		start = t
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	if scenario.Snapshot != "" {
		if err := st.Put(ctx, engine.DefaultStorageKey, []byte(scenario.Snapshot)); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to seed snapshot: %w", err)
		}
	}

	eng := engine.New(store.NewFallback(st, store.WithLogger(o.logger)),
		engine.WithClock(testutil.NewSteppingClock(start, time.Minute)),
		engine.WithIDGenerator(testutil.NewSequenceIDs("id")),
		engine.WithLogger(o.logger),
	)
	return &Harness{store: st, engine: eng, result: NewResult()}, nil
}

// execute runs one step. Only harness problems are returned; a failed
// expectation is recorded on the result. In setup any failure is fatal.
func (h *Harness) execute(ctx context.Context, step Step, setup bool) error {
	op := operations[step.Invoke]
	if op == nil {
		return fmt.Errorf("unknown operation %q", step.Invoke)
	}
	args, err := h.resolve(step.Args)
	if err != nil {
		return err
	}

	var argErr error
	decode := func(v interface{}) error {
		argErr = decodeArgs(args, v)
		return argErr
	}
	out, opErr := op(ctx, h.engine, decode)
	if argErr != nil {
		return fmt.Errorf("invalid args: %w", argErr)
	}

	outputCase := OutcomeSuccess
	if opErr != nil {
		outputCase = string(engine.CodeOf(opErr))
		if outputCase == "" {
			outputCase = string(engine.CodeInternal)
		}
	}

	var result interface{}
	if out != nil {
		if result, err = toJSONValue(out); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}
	h.result.AddTrace(step.Invoke, step.As, outputCase, result)

	if setup && opErr != nil {
		return opErr
	}
	if step.As != "" && opErr == nil {
		if id := idOf(result); id != "" {
			h.result.Refs[step.As] = id
		}
	}

	expectedCase := OutcomeSuccess
	if step.Expect != nil {
		expectedCase = step.Expect.Case
	}
	if outputCase != expectedCase {
		msg := fmt.Sprintf("%s: expected case %s, got %s", step.Invoke, expectedCase, outputCase)
		if opErr != nil {
			msg += ": " + opErr.Error()
		}
		h.result.AddError(msg)
		return nil
	}
	if step.Expect != nil && len(step.Expect.Result) > 0 {
		if err := matchFields("", step.Expect.Result, result); err != nil {
			h.result.AddError(fmt.Sprintf("%s: result mismatch: %v", step.Invoke, err))
		}
	}
	return nil
}

// resolve replaces "$name" strings with the ids bound by earlier steps.
func (h *Harness) resolve(args map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, "$") {
			out[k] = v
			continue
		}
		id, bound := h.result.Refs[strings.TrimPrefix(s, "$")]
		if !bound {
			return nil, fmt.Errorf("args.%s: unbound reference %s", k, s)
		}
		out[k] = id
	}
	return out, nil
}

// decodeArgs re-encodes args and decodes them into v with strict field
// checking, so a misspelled argument fails the scenario.
func decodeArgs(args map[string]interface{}, v interface{}) error {
	data, err := yaml.Marshal(args)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}

// toJSONValue converts v to its generic JSON shape.
func toJSONValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func idOf(v interface{}) string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := m["id"].(string)
	return id
}
