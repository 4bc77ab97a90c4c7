// Package harness runs conformance scenarios against the auth service.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	catalog: packages.cue      # optional, relative to the scenario file
//	signup_grant: 3            # optional
//	flow:
//	  - invoke: register
//	    args: { name: Ana, email: ana@x.com, credential: pw }
//	    expect:
//	      case: ok
//	      result: { tokens: 3 }
//	  - invoke: purchase
//	    args: { amount: 7 }
//	    expect:
//	      case: validation
//	assertions:
//	  - type: balance
//	    email: ana@x.com
//	    tokens: 3
//	  - type: session
//	    state: authenticated
//
// Operations are register, login, logout, purchase, use_token, current and
// restart. Restart replaces the service with a new one over the same store
// and restores the persisted session, as a new process would.
//
// Each step's outcome case is ok, or the lowercased service error code:
// validation, conflict, auth or persistence. Failed steps report the error
// message as result.message.
//
// # Assertion Types
//
//   - balance: stored token balance of an account
//   - purchase_count, consumption_count: history records, optionally per account
//   - session: state of the live session, and its account
//   - trace_contains: an operation appears in the trace with matching args
//   - trace_order: operations appear in the given order
//   - trace_count: an operation appears exactly N times
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory store, testutil.DeterministicClock and
// testutil.SequenceIDGenerator, so traces are identical across runs and can
// be compared against golden files with RunWithGolden. Credentials are
// masked in recorded args.
package harness
