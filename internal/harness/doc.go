// Package harness runs behavioral scenarios against the engine.
//
// A scenario seeds an in-memory store, drives engine operations step by
// step and validates outcomes as executable contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	snapshot: '{"openingBalance": 100}'
//	setup:
//	  - invoke: create_job
//	    as: job
//	    args: { title: Bagno, client: Rossi, job_code: A1, agreed_total: 1000 }
//	flow:
//	  - invoke: create_payment
//	    args: { job: $job, amount: 1000 }
//	    expect:
//	      case: Success
//	      result: { amount: 1000 }
//	assertions:
//	  - type: job
//	    ref: job
//	    expect: { status: closed, due: 0 }
//	  - type: count
//	    collection: movements
//	    where: { direction: in }
//	    count: 1
//
// Arguments are decoded strictly: an unknown argument fails the scenario.
// Strings of the form "$name" resolve to the id captured by the step bound
// with `as: name`.
//
// # Assertion Types
//
//   - job: subset match on a job plus its computed paid and due amounts
//   - quote: subset match on a quote, totals included
//   - result: subset match on what a step returned
//   - count: number of records in a collection matching where
//   - records: every record matching where has the expected fields
//   - balance: the ledger balance
//   - directory: the client or supplier names, in order
//   - default_state: the state equals the empty default state
//   - trace_count, trace_order: operations in the trace
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite store, a clock stepping one
// minute per read from testutil.DefaultEpoch (or the scenario's now) and
// sequential ids. Golden files are the trace plus a count summary of the
// final state, so they stay stable across runs.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/payment_closes_job.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
package harness
