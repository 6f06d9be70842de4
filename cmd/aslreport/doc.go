// Package main hosts the aslreport CLI entrypoint and command graph.
//
// The Cobra command tree validates ASL metadata from disk, lists the rule
// tables, browses the run history kept in SQLite, scaffolds configuration
// and runs the HTTP server. Configuration resolution and logger setup live in
// context.go so subcommands only deal with presentation.
//
// Keep this package lean: new behavior belongs in the internal packages and
// is surfaced here through commands or flags.
package main
