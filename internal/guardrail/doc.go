// Package guardrail evaluates research source batches against layered
// compliance policy.
//
// Policy lives at two scopes, global and per-run, both stored as
// partial records. Resolve merges them field by field over the system
// defaults; Evaluate scores a batch against the merged policy and, on
// a hard block, stops the run and raises a risk flag.
package guardrail
