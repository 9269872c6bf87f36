// Package main provides the entry point for the digestfetch CLI.
//
// digestfetch logs into a password-protected mailing-list archive and
// downloads every monthly digest into a local directory.
//
// Usage:
//
//	digestfetch -u USER -p PASS [-v] OUT_DIR
//	digestfetch history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
