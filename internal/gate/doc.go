// Package gate accepts or rejects proposed ERP changes against the current
// state of the entity they touch.
//
// There is one validator per mutation kind. Validators are pure: they read
// only their arguments, never call the ERP and never mutate the snapshot. A
// Verdict either rejects the change, naming the offending field and a human
// readable reason, or accepts it and reports whether the change is material
// (large enough to deserve a second look from the advisor).
//
// Rules are evaluated in a fixed order and the first violation wins, so the
// same input always yields the same field and reason.
package gate
