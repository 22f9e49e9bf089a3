package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		file := file
		t.Run(strings.TrimSuffix(filepath.Base(file), ".yaml"), func(t *testing.T) {
			scenario, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_BindsRefsAndTraces(t *testing.T) {
	s := mustParse(t, `
name: refs
description: refs resolve to generated ids
flow:
  - invoke: create_job
    as: job
    args: { title: Bagno, client: Rossi, job_code: A1, agreed_total: 300 }
  - invoke: create_payment
    args: { job: $job, amount: 100 }
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, "create_job", result.Trace[0].Action)
	assert.Equal(t, "job", result.Trace[0].Ref)
	assert.Equal(t, OutcomeSuccess, result.Trace[1].OutputCase)
	assert.Equal(t, result.State.Jobs[0].ID, result.Refs["job"])
	assert.Equal(t, result.Refs["job"], result.State.JobPayments[0].JobID)
}

func TestRun_UnexpectedCaseFails(t *testing.T) {
	s := mustParse(t, `
name: wrong_case
description: payment on a missing job
flow:
  - invoke: create_payment
    args: { job: nope, amount: 100 }
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected case Success, got NOT_FOUND")
}

func TestRun_ExpectedFailurePasses(t *testing.T) {
	s := mustParse(t, `
name: not_found
description: payment on a missing job
flow:
  - invoke: create_payment
    args: { job: nope, amount: 100 }
    expect: { case: NOT_FOUND }
assertions:
  - type: count
    collection: movements
    count: 0
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ResultMismatch(t *testing.T) {
	s := mustParse(t, `
name: mismatch
description: result subset mismatch
flow:
  - invoke: create_job
    args: { title: Bagno, client: Rossi, job_code: A1, agreed_total: 300 }
    expect:
      case: Success
      result: { agreedTotal: 301 }
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "agreedTotal")
}

func TestRun_FailedAssertion(t *testing.T) {
	s := mustParse(t, `
name: failed_assertion
description: balance does not match
flow:
  - invoke: set_opening_balance
    args: { amount: 50 }
assertions:
  - type: balance
    value: 40
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "balance assertion failed: expected 40.00, got 50.00")
}

func TestRun_UnknownArgumentIsHarnessError(t *testing.T) {
	s := mustParse(t, `
name: typo
description: misspelled argument
flow:
  - invoke: create_job
    args: { titel: Bagno }
`)
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid args")
}

func TestRun_SetupMustSucceed(t *testing.T) {
	s := mustParse(t, `
name: bad_setup
description: setup step fails
setup:
  - invoke: archive_job
    args: { job: missing }
flow:
  - invoke: reset
`)
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (archive_job)")
}

func TestRun_UnboundReference(t *testing.T) {
	s := mustParse(t, `
name: unbound
description: reference never bound
flow:
  - invoke: archive_job
    args: { job: $ghost }
`)
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbound reference $ghost")
}

func TestRun_TraceAssertions(t *testing.T) {
	s := mustParse(t, `
name: trace
description: trace order and count
flow:
  - invoke: create_quote
    as: q
    args: { client: Rossi, job_code: Q1 }
  - invoke: lock_quote
    args: { quote: $q }
  - invoke: unlock_quote
    args: { quote: $q }
assertions:
  - type: trace_order
    actions: [unlock_quote, lock_quote]
  - type: trace_count
    action: lock_quote
    count: 1
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unlock_quote (pos 3) should be before lock_quote (pos 2)")
}
