package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/nao1215/digestfetch/internal/archive"
	"github.com/nao1215/digestfetch/internal/config"
	"github.com/nao1215/digestfetch/internal/database"
	"github.com/nao1215/digestfetch/internal/model"
	"github.com/nao1215/digestfetch/internal/pipeline"
	"github.com/nao1215/digestfetch/internal/report"
	"github.com/nao1215/digestfetch/internal/transport"
	"github.com/nao1215/digestfetch/internal/ui"
)

// runDownload performs one download run and prints its summary to out.
// The returned error is the run error; report and history problems are
// only logged unless the run itself succeeded.
func runDownload(ctx context.Context, cfg *config.Config, logger *slog.Logger, out, errOut io.Writer) error {
	logger.Debug("starting run",
		"archive", cfg.ArchiveURL,
		"mode", cfg.ListMode,
		"outDir", cfg.OutDir,
		"onError", cfg.FailurePolicy,
		"saveHistory", cfg.SaveHistory,
	)

	p, cleanup, err := createPipeline(ctx, cfg, logger, errOut)
	if err != nil {
		return err
	}
	defer cleanup()

	run, runErr := p.Run(ctx)
	if run == nil {
		return runErr
	}

	w := report.NewSimpleWriter(out,
		report.WithColor(isTerminal(out)),
		report.WithVerbose(cfg.Verbose),
	)
	if _, err := w.WriteRun(run); err != nil {
		logger.Warn("failed to print summary", "error", err)
	}

	switch {
	case cfg.ReportFile == "":
	case run.Summary().Stored == 0 && insideMissingDir(cfg.ReportFile, cfg.OutDir):
		// Writing the report would create OUT_DIR for a run that stored nothing.
		logger.Warn("report not written: output directory does not exist", "path", cfg.ReportFile, "outDir", cfg.OutDir)
	default:
		if err := writeReportFile(cfg.ReportFile, run); err != nil {
			if runErr == nil {
				return err
			}
			logger.Error("failed to write report", "path", cfg.ReportFile, "error", err)
		}
	}

	return runErr
}

// createPipeline wires the archive client, store, progress bar and history
// database into a pipeline. cleanup releases the history database.
func createPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, errOut io.Writer) (*pipeline.Pipeline, func(), error) {
	httpClient, err := transport.NewHTTPClient(transport.Options{
		Timeout:      cfg.Timeout,
		ProxyAddress: cfg.ProxyAddress,
		UserAgent:    cfg.UserAgent,
		Headers:      cfg.Headers,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if cfg.ProxyAddress != "" {
		if err := transport.CheckProxy(ctx, cfg.ProxyAddress); err != nil {
			return nil, nil, fmt.Errorf("proxy check failed (make sure a SOCKS5 proxy is running at %s): %w",
				cfg.ProxyAddress, err)
		}
		logger.Debug("SOCKS5 proxy verified", "address", cfg.ProxyAddress)
	}

	client := archive.NewClient(httpClient, cfg.LoginURL, cfg.ArchiveURL,
		archive.WithFormFields(cfg.UsernameField, cfg.PasswordField),
		archive.WithListMode(archive.ListMode(cfg.ListMode), cfg.StartYear),
		archive.WithDigestPath(cfg.DigestPath),
		archive.WithMissingMarker(cfg.MissingMarker),
		archive.WithNormalizeUTF8(cfg.NormalizeUTF8),
		archive.WithMaxBodySize(cfg.MaxBodySize),
		archive.WithLogger(logger),
	)

	store := archive.NewDirStore(cfg.OutDir, archive.Namer{
		Prefix:    cfg.FilenamePrefix,
		Extension: cfg.FileExtension,
	})

	filter, err := pipeline.NewFilter(cfg.Filter)
	if err != nil {
		return nil, nil, err
	}
	policy, err := pipeline.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return nil, nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithFailurePolicy(policy),
		pipeline.WithFilter(filter),
	}

	if f, ok := errOut.(*os.File); ok && cfg.ShowProgress && ui.Enabled(f, cfg.Verbose, false) {
		opts = append(opts, pipeline.WithProgress(ui.New(errOut, ui.WithName(progressName(cfg)))))
	}

	cleanup := func() {}
	if cfg.SaveHistory {
		// The history is informational; a broken database never blocks a download.
		db, err := database.Open(cfg.HistoryDir, database.DefaultOptions())
		if err != nil {
			logger.Warn("run history disabled", "dir", cfg.HistoryDir, "error", err)
		} else {
			opts = append(opts, pipeline.WithRecorder(db))
			cleanup = func() {
				if err := db.Close(); err != nil {
					logger.Warn("failed to close history database", "error", err)
				}
			}
		}
	}

	creds := pipeline.Credentials{Username: cfg.Username, Password: cfg.Password}
	return pipeline.New(client, store, creds, opts...), cleanup, nil
}

// writeReportFile writes the run report to path. A .json extension selects
// JSON, anything else Markdown.
func writeReportFile(path string, run *model.RunReport) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	// Reports name the member account, so keep them private.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	var w report.Writer
	if strings.EqualFold(filepath.Ext(path), ".json") {
		w = report.NewJSONWriter(f, report.WithPrettyPrint())
	} else {
		w = report.NewMarkdownWriter(f)
	}
	if _, err := w.WriteRun(run); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

// progressName labels the progress bar with the selected profile.
func progressName(cfg *config.Config) string {
	if cfg.ListName != "" {
		return cfg.ListName
	}
	return "digests"
}

// insideMissingDir reports whether path lies in dir and dir does not exist yet.
func insideMissingDir(path, dir string) bool {
	if _, err := os.Stat(dir); !errors.Is(err, fs.ErrNotExist) {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// isTerminal reports whether w is a terminal, for colour decisions.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
