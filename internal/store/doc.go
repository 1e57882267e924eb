// Package store provides SQLite-backed durable storage for the mutation
// pipeline.
//
// Two append-only tables live in one database file:
//   - idempotency_records: the canonical response of each keyed command
//   - audit_entries: one row per ERP mutation that succeeded
//
// # Idempotency
//
// The PRIMARY KEY on idempotency_records.key is the only mutual exclusion
// between concurrent commands that share a key. RecordIdempotency inserts
// first and, when the key is taken, re-reads the winner's row in the same
// transaction. It never checks before inserting.
//
// Expired records are invisible: LookupIdempotency deletes them on sight and
// RecordIdempotency replaces them.
//
// # Unit of Work
//
// WithTx scopes one transaction. The workflow records the idempotency
// response and appends the audit entry through the same Tx, so readers see
// both or neither.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - a single pooled connection, so transactions serialise
//
// Row updates are rejected by triggers. Rows leave only through
// PurgeIdempotencyBefore and PurgeAuditBefore.
package store
