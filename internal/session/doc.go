// Package session models one acquisition metadata document and the values it
// carries.
//
// Value is a tagged variant (number, string, boolean, numeric sequence, or
// invalid) decoded from JSON with integer-ness preserved, so integer rules and
// cross-session comparisons see exactly what the source document declared.
package session
