package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/digestfetch/internal/config"
	"github.com/nao1215/digestfetch/internal/log"
)

// NewRootCmd creates the root command. Running it without a subcommand
// downloads digests into OUT_DIR.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digestfetch [flags] OUT_DIR",
		Short: "Download monthly digests from a members-only mailing-list archive",
		Long: `digestfetch logs into a password-protected mailing-list archive and saves
every monthly digest as one file in OUT_DIR.

Files are named <prefix>YYYY-MM<extension> (by default
wggf-monthly-digest-YYYY-MM.html), so rerunning the command refreshes the
same files instead of creating duplicates. OUT_DIR is only created once the
first digest has been downloaded.

Examples:
  # Download every digest of the default archive
  digestfetch -u you@example.org -p secret ./digests

  # Show debug logs instead of the progress bar
  digestfetch -v -u you@example.org -p secret ./digests

  # Use a profile from the configuration file and only fetch recent years
  digestfetch -l westfalengen --filter "year >= 2020" ./digests

  # Write a Markdown report next to the digests
  digestfetch -u you@example.org -p secret --report ./digests/REPORT.md ./digests`,
		Version:       getVersion(),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRootCmd,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging (disables the progress bar)")
	cmd.PersistentFlags().String("history-dir", config.XDGDataDir(), "Directory holding the run history database")

	// Credentials
	cmd.Flags().StringP("username", "u", "", "Archive member username (usually an email address)")
	cmd.Flags().StringP("password", "p", "", "Archive member password")

	// Archive selection
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .digestfetch in current or home directory)")
	cmd.Flags().StringP("list", "l", "", "Archive profile name from the configuration file")
	cmd.Flags().String("login-url", config.DefaultLoginURL, "URL the login form is posted to")
	cmd.Flags().String("archive-url", config.DefaultArchiveURL, "Archive index URL")
	cmd.Flags().String("mode", config.ListModeIndex, "How months are discovered: index or probe")
	cmd.Flags().Int("start-year", config.DefaultStartYear, "First year tried in probe mode")

	// Run behavior
	cmd.Flags().String("on-error", config.FailurePolicySkip, "What a failed digest does: skip or abort")
	cmd.Flags().String("filter", "", `Only download months matching this expression (e.g. "year >= 2020")`)
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (e.g. 127.0.0.1:9050)")

	// Output
	cmd.Flags().Bool("no-progress", false, "Do not draw a progress bar")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
	cmd.Flags().StringP("report", "o", "", "Write a run report to this file (.json for JSON, otherwise Markdown)")

	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runRootCmd executes a download run.
func runRootCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runDownload(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the config file and flags,
// in increasing order of precedence. Flags only override when given.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	listName, err := cmd.Flags().GetString("list")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// Otherwise run on built-in defaults when no file exists.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if listName != "" && !file.HasList(listName) {
			return nil, fmt.Errorf("list %q is not defined in %s", listName, configPath)
		}
		cfg.ApplyArchive(file.GetArchiveConfig(listName))
		cfg.ListName = listName
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	case listName != "":
		return nil, fmt.Errorf("list %q requested but no configuration file found", listName)
	}

	flags := cmd.Flags()
	stringFlags := map[string]*string{
		"username":    &cfg.Username,
		"password":    &cfg.Password,
		"login-url":   &cfg.LoginURL,
		"archive-url": &cfg.ArchiveURL,
		"mode":        &cfg.ListMode,
		"on-error":    &cfg.FailurePolicy,
		"filter":      &cfg.Filter,
		"proxy":       &cfg.ProxyAddress,
		"report":      &cfg.ReportFile,
		"history-dir": &cfg.HistoryDir,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	if flags.Changed("start-year") {
		if cfg.StartYear, err = flags.GetInt("start-year"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}

	noProgress, err := flags.GetBool("no-progress")
	if err != nil {
		return nil, err
	}
	cfg.ShowProgress = !noProgress

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory

	cfg.Verbose = getVerboseFlag(cmd)

	if len(args) > 0 {
		cfg.OutDir = args[0]
	}

	return cfg, nil
}
