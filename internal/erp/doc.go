// Package erp defines the ERP collaborator the mutation pipeline drives.
//
// The ERP is the system of record for purchase order lines, goods receipts
// and returns. It offers no idempotency and no transactions, so callers must
// assume any write may be observed twice unless something upstream prevents
// it. Client is the narrow surface the pipeline consumes: one read per entity
// kind and one write per mutation kind, each returning the resulting snapshot.
//
// Memory is an in-process Client used by the scenario harness, the CLI and
// tests.
package erp
