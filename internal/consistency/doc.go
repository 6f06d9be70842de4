// Package consistency reconciles the values one field takes across the
// sessions of a batch.
//
// Reconcile compares observations under a schema.ConsistencyRule: strings
// and booleans must agree exactly, numbers must stay within the error and
// warning tolerances (per index for sequences). Sequence length mismatches
// and mixed scalar/sequence reports are distinct mismatch kinds. Every
// inconsistency carries a verbose message with a statistical summary and a
// concise message with only the range. TallyValues exposes the majority and
// range computation for report synthesis.
package consistency
