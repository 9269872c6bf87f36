// Package database provides the SQLite run history for digestfetch.
//
// HistoryDB records every run (archive, output directory, start and end
// time, outcome counts) and the outcome of each digest with its size and
// checksum. It implements pipeline.Recorder and backs the history command.
//
// The history is informational. Runs always re-fetch every digest; nothing
// here is consulted to skip downloads.
//
// SQLite is accessed through modernc.org/sqlite, which needs no cgo.
package database
