// Package orchestrate implements the venture run state machine.
//
// Run states:
//   - draft -> running -> awaiting_approval -> running -> ... -> completed
//   - blocked and failed are terminal; awaiting_approval resolves through
//     a checkpoint decision.
//
// A run is seeded with the full fixed step topology at creation time.
// Steps advance through RecordStepOutput; checkpoint gates are enforced
// by CanExecute against approved records, and decisions are write-once.
//
// Auditing:
//   - Every successful mutation emits exactly one audit record inside
//     the same transaction.
//   - Rejected mutations emit nothing.
package orchestrate
