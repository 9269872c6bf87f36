package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nao1215/digestfetch/internal/database"
	"github.com/nao1215/digestfetch/internal/report"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show previous download runs",
		Long: `History lists previous download runs recorded in the history database,
newest first. With a RUN_ID it shows every digest of that run.

Examples:
  # List the last 20 runs
  digestfetch history

  # Show one run as Markdown
  digestfetch history --markdown 42

  # Export the whole history as JSON
  digestfetch history --limit 0 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown (mutually exclusive with --json)")
	cmd.Flags().BoolP("json", "j", false, "Output JSON (mutually exclusive with --markdown)")
	cmd.MarkFlagsMutuallyExclusive("markdown", "json")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	dir, err := cmd.Flags().GetString("history-dir")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	w, err := historyWriter(cmd, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	var runID int64
	if len(args) == 1 {
		runID, err = strconv.ParseInt(args[0], 10, 64)
		if err != nil || runID <= 0 {
			return fmt.Errorf("invalid run id %q", args[0])
		}
	}

	// Listing an empty history is not an error; opening would create the file.
	if _, err := os.Stat(filepath.Join(dir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		if runID != 0 {
			return fmt.Errorf("run %d: %w", runID, database.ErrRunNotFound)
		}
		_, err := w.WriteHistory(nil)
		return err
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dir, opts)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := commandContext(cmd)

	if runID != 0 {
		run, err := db.GetRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("run %d: %w", runID, err)
		}
		_, err = w.WriteRun(run)
		return err
	}

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	_, err = w.WriteHistory(runs)
	return err
}

// historyWriter selects the output format from the command flags.
func historyWriter(cmd *cobra.Command, out io.Writer) (report.Writer, error) {
	markdown, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	switch {
	case markdown:
		return report.NewMarkdownWriter(out), nil
	case asJSON:
		return report.NewJSONWriter(out, report.WithPrettyPrint()), nil
	default:
		return report.NewSimpleWriter(out,
			report.WithColor(isTerminal(out)),
			report.WithVerbose(getVerboseFlag(cmd)),
		), nil
	}
}
