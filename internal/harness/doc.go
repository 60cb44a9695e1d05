// Package harness runs step scenarios against a scripted device session.
//
// A scenario lists steps, programs the session's responses, and asserts
// on the session calls, output, step outcomes and final System Variable
// State. Steps go through the real engine.Worker and engine.Executor, so
// a scenario exercises queueing, log-and-continue, high-level lowering
// and the execution log exactly as a run does.
//
// # Scenario Format
//
//	name: boot_and_command
//	description: "Boot to the OS and run a command"
//	vars: { logdir: /tmp/logs }
//	session:
//	  reply:
//	    - call: "execute[OS] false"
//	      exit_code: 1
//	  check:
//	    - call: "check_power_state S5"
//	      ok: false
//	steps:
//	  - "Boot to: OS"
//	  - "Execute Command: false"
//	assertions:
//	  - type: call_order
//	    calls: ["ac OFF", "ac ON", "wait_for OS"]
//	  - type: step_failed
//	    step: 2
//	    error: "exited with 1"
//	  - type: final_state
//	    expect: { environment: OS }
//
// Session rules match recorded calls by prefix, in the format of
// device.DryRun ("boot_to OS", "execute[OS] ls"). Later rules win.
//
// # Assertion Types
//
//   - call_contains: a call starting with the prefix was made
//   - call_order: calls appear in the given order
//   - call_count: exactly N calls start with the prefix
//   - step_failed, step_succeeded: outcome of the Nth step
//   - output_contains: the output contains the text
//   - final_state: environment, itplib, os, in_prepare
//
// # Deterministic Testing
//
// The worker uses testutil.DeterministicClock and a fixed run ID
// ("scenario-<name>" unless run_id is set), and each scenario records to
// a fresh in-memory SQLite store. Traces are identical across runs and
// compared with golden files in testdata/golden.
package harness
