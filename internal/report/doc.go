// Package report renders download runs and run history.
//
// Three formats are provided: SimpleWriter for the terminal (optionally
// coloured), MarkdownWriter for files kept next to the digests, and
// JSONWriter for scripts.
package report
