// Package pipeline drives a complete download run.
//
// A run logs in, lists the archive and then fetches and stores each digest
// strictly one after another. Each reference ends up with exactly one
// outcome in the run report: stored, missing, failed or filtered.
//
// Missing months are normal and never fail a run. Other per-digest failures
// are handled by the failure policy: PolicySkip continues and makes Run
// return an error wrapping ErrIncomplete at the end, PolicyAbort stops at
// the first failure. Context cancellation is checked between digests.
//
// Progress reporting and run history are optional collaborators passed as
// options, so the pipeline itself has no terminal or database dependency.
package pipeline
