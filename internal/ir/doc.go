// Package ir provides the payload representation shared by the erpgate
// pipeline: a sealed value model for ERP snapshots, RFC 8785 canonical JSON,
// response fingerprints and the records persisted by the store.
//
// This package imports nothing internal. Every other internal package may
// import ir; ir never imports them.
//
// Key design constraints:
//   - Integral numbers are IRInt, fractional numbers IRFloat (see Number)
//   - Anything persisted or compared goes through MarshalCanonical
//   - All JSON tags use snake_case
package ir
