// Package store persists validation runs in SQLite.
//
// Each run records the submitted file names, finding counts, the report text
// and the full JSON result so that earlier runs can be listed and re-read by
// the CLI and the HTTP server. Artifact files live on disk next to the
// database; the store only tracks their directory.
//
// The database is local bookkeeping, not an archive. Schema changes bump the
// version in schema.go; users delete the database to adopt the new schema.
package store
