// Package model holds the records describing a download run.
//
// RunReport and DigestOutcome are produced by the pipeline, persisted by
// the database package and rendered by the report package. Keeping them
// here lets those packages share the types without importing each other.
package model
