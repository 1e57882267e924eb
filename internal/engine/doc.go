// Package engine implements the erpgate mutation workflow.
//
// The Workflow receives one Command per mutating request and drives it
// through the pipeline:
//
//  1. Received: actor required, correlation id generated when missing.
//  2. CacheCheck: only for commands with an idempotency key. A hit returns
//     the cached response without validation, ERP call or audit entry.
//  3. Validating: fetch the current snapshot from the ERP and run the gate
//     validator for the change kind. A rejection writes nothing.
//  4. Mutating: one ERP write. A failure writes nothing, so the caller may
//     retry.
//  5. Persisting: record the response under the key (if any) and append the
//     audit entry in one store transaction.
//  6. Completed: the Result is decoded from the canonical response bytes,
//     the same bytes a later replay returns.
//
// KNOWN GAP:
// If the process dies between Mutating and Persisting, the ERP holds the
// change but no idempotency record exists, and a retry with the same key
// applies it again. Persisting ignores caller cancellation to keep that
// window as small as possible; it cannot close it.
//
// Two commands racing on one key both reach the ERP. The store's PRIMARY KEY
// lets exactly one record its response; the other observes AlreadyExists and
// returns the stored response if it matches, or a ConflictError with its
// audit entry flagged for review if it does not.
//
// ERRORS:
// Execute returns a Result or one of ValidationError, NotFoundError,
// ExternalServiceError, ConflictError. Advisor failures are the only
// failures that are logged and swallowed.
package engine
