// Package harness runs SOS queue scenarios end to end.
//
// A scenario drives a real engine.Engine against an in-process command
// center (receiver.Server behind backend.Client) and records every step as a
// trace. Assertions check the trace and the final rows of both databases;
// golden files pin the full trace.
//
// # Scenario Format
//
//	name: offline_then_online
//	description: "Reports saved offline are uploaded once the network returns"
//	online: false
//	flow:
//	  - save: { lat: 12.9716, lon: 77.5946, type: SOS, message: "chest pain" }
//	    expect: { stats: { pending: 1, synced: 0 } }
//	  - set_online: true
//	  - sync: {}
//	    expect: { result: { synced: 1, failed: 0 } }
//	  - server: fail
//	assertions:
//	  - type: trace_contains
//	    action: upload
//	    args: { offline_id: sos-0001 }
//	  - type: final_state
//	    table: sos_records
//	    where: { id: sos-0001 }
//	    expect: { synced: 1 }
//
// # Steps
//
// Each flow step performs exactly one action:
//
//   - save: queue a draft (lat, lon, type, message, optional timestamp)
//   - set_online: change reachability; passes are only run by sync steps
//   - sync: run one pass, optionally with force: true
//   - mark_synced: flag a record id directly
//   - server: switch the command center between ok, fail and drop_ack
//     (report stored but the response lost)
//   - advance: move the wall clock by a Go duration
//
// Steps run synchronously in order, so traces are deterministic: record ids
// are <id_prefix>-0001, <id_prefix>-0002, ... and the clock starts at
// 2023-11-14T22:13:20Z.
//
// # Assertions
//
//   - trace_contains: an event with the action and a subset of args
//   - trace_order: the first occurrences of actions appear in order
//   - trace_count: number of events with the action (and args subset)
//   - final_state: exactly one row of sos_records or sos_reports matches
//     where and contains expect
//   - row_count: number of rows matching where
package harness
