// Package harness runs scripted scenarios through the mutation workflow.
//
// A scenario seeds an in-memory ERP, runs commands through a real
// engine.Workflow backed by an in-memory SQLite store, and checks each
// command's outcome and the final state.
//
// # Scenario Format
//
//	name: material_price_change
//	description: "What this scenario validates"
//	today: 2026-10-18
//	advisor: fail            # none | ok | fail
//	ttl: 24h                 # optional
//	erp:
//	  order_lines:
//	    - {order_id: PO-1, line_no: 10, promised_date: 2026-11-01, unit_price: 100, quantity: 20}
//	  receipts: []
//	commands:
//	  - actor: buyer@example.com
//	    key: key-1
//	    reason: supplier increase
//	    price_change: {order_id: PO-1, line_no: 10, new_price: 115}
//	    advance: 1h          # optional, before the command
//	    fail_erp: set_price  # optional, fails that ERP write once
//	    expect: {outcome: ok, material: true}
//	assertions:
//	  - {type: erp_writes, op: set_price, count: 1}
//	  - {type: audit_count, count: 1}
//	  - {type: audit_contains, action: price_change.applied, target: PO-1/10}
//	  - {type: idempotency_count, count: 1}
//	  - {type: needs_review_count, count: 0}
//
// Change blocks are date_change, price_change, quantity_change, receipt and
// return; each command carries exactly one. A command without expect must
// succeed.
//
// # Deterministic Testing
//
// The clock starts at 12:00:00 UTC on the scenario's day and moves one
// second per command. Generated correlation ids run corr-0001, corr-0002 and
// so on. Identical scenarios therefore produce identical audit ledgers, which
// RunWithGolden compares against testdata/golden/{name}.golden.
package harness
