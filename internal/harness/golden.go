package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/previa/internal/domain"
	"github.com/roach88/previa/internal/ledger"
)

// TraceSnapshot captures the trace and resulting shape of a scenario
// execution. It carries no generated ids or timestamps, so it is stable
// across runs.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Summary      StateSummary `json:"summary"`
}

// StateSummary counts the records of the final state.
type StateSummary struct {
	Jobs         int     `json:"jobs"`
	Payments     int     `json:"payments"`
	Lines        int     `json:"lines"`
	Purchases    int     `json:"purchases"`
	Movements    int     `json:"movements"`
	Quotes       int     `json:"quotes"`
	QuoteCounter int     `json:"quote_counter"`
	Balance      float64 `json:"balance"`
}

// Summarize counts the records of s.
func Summarize(s *domain.AppState) StateSummary {
	if s == nil {
		return StateSummary{}
	}
	return StateSummary{
		Jobs:         len(s.Jobs),
		Payments:     len(s.JobPayments),
		Lines:        len(s.JobLines),
		Purchases:    len(s.PurchaseLines),
		Movements:    len(s.Movements),
		Quotes:       len(s.Quotes),
		QuoteCounter: s.QuoteCounter,
		Balance:      ledger.Balance(s),
	}
}

// GoldenBytes renders the golden form of result: indented JSON with a
// trailing newline.
func GoldenBytes(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Summary:      Summarize(result.State),
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := GoldenBytes(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
