// Package schema defines the static rule tables that drive validation.
//
// Tables hold the field rules for the three passes (major, required,
// recommended), the applicability condition of each field, and the
// cross-session consistency rules. Rules are plain data decoded from YAML
// (an embedded default document, optionally replaced by a file named in the
// configuration) and compiled into ordered checks that the fieldcheck
// interpreter evaluates. Compiled tables are read-only.
package schema
