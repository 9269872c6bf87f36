package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/digestfetch/internal/archive"
	"github.com/nao1215/digestfetch/internal/model"
)

// Archive is the part of archive.Client the pipeline drives.
type Archive interface {
	Authenticate(ctx context.Context, username, password string) (*archive.Session, error)
	ListDigests(ctx context.Context, s *archive.Session) (*archive.Listing, error)
	FetchDigest(ctx context.Context, s *archive.Session, ref archive.Reference) (*archive.Digest, error)
	ArchiveURL() string
	ListMode() archive.ListMode
}

// Store persists digests. archive.DirStore implements it.
type Store interface {
	StoreDigest(ref archive.Reference, content []byte) (string, error)
	Dir() string
}

// Progress receives one Increment per reference.
type Progress interface {
	Start(total int)
	Increment(ref string, status model.OutcomeStatus)
	Finish()
}

// Recorder persists runs and outcomes, for example to the history database.
// Recorder failures are logged and never fail the run.
type Recorder interface {
	BeginRun(ctx context.Context, report *model.RunReport) error
	RecordOutcome(ctx context.Context, runID int64, outcome model.DigestOutcome) error
	FinishRun(ctx context.Context, report *model.RunReport) error
}

// FailurePolicy decides what happens after a digest fails.
type FailurePolicy string

const (
	// PolicySkip records the failure and continues with the next reference.
	PolicySkip FailurePolicy = "skip"

	// PolicyAbort stops the run at the first failed digest.
	PolicyAbort FailurePolicy = "abort"
)

// ParseFailurePolicy validates a policy name. Empty means PolicySkip.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch FailurePolicy(name) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, name)
	}
}

// Credentials are the member credentials used to log in.
type Credentials struct {
	Username string
	Password string
}

// Pipeline downloads every digest of an archive into a store.
type Pipeline struct {
	archive Archive
	store   Store
	creds   Credentials

	policy   FailurePolicy
	filter   *Filter
	progress Progress
	recorder Recorder

	logger *slog.Logger
	now    func() time.Time
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithFailurePolicy sets what happens after a digest fails. Default is PolicySkip.
func WithFailurePolicy(policy FailurePolicy) Option {
	return func(p *Pipeline) {
		p.policy = policy
	}
}

// WithFilter restricts the run to references matching f.
func WithFilter(f *Filter) Option {
	return func(p *Pipeline) {
		p.filter = f
	}
}

// WithProgress reports progress per reference.
func WithProgress(progress Progress) Option {
	return func(p *Pipeline) {
		p.progress = progress
	}
}

// WithRecorder persists the run.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithClock overrides the time source for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a pipeline.
func New(a Archive, store Store, creds Credentials, opts ...Option) *Pipeline {
	p := &Pipeline{
		archive:  a,
		store:    store,
		creds:    creds,
		policy:   PolicySkip,
		progress: nopProgress{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// Run authenticates, lists and downloads every digest in order.
//
// Authentication and listing failures end the run before anything is
// written. Per-digest failures follow the failure policy; when the run
// completes with failures the returned error wraps ErrIncomplete. The
// report is returned in every case and describes what was done.
func (p *Pipeline) Run(ctx context.Context) (*model.RunReport, error) {
	report := model.NewRunReport(p.archive.ArchiveURL(), p.store.Dir(), p.now())
	report.Username = p.creds.Username
	report.ListMode = string(p.archive.ListMode())

	p.beginRun(ctx, report)

	err := p.run(ctx, report)
	report.FinishedAt = p.now()
	if err != nil {
		report.Error = err.Error()
	}

	p.finishRun(ctx, report)
	return report, err
}

func (p *Pipeline) run(ctx context.Context, report *model.RunReport) error {
	p.logger.Debug("authenticating", "username", p.creds.Username)
	session, err := p.archive.Authenticate(ctx, p.creds.Username, p.creds.Password)
	if err != nil {
		return err
	}

	listing, err := p.archive.ListDigests(ctx, session)
	if err != nil {
		return err
	}
	p.logger.Info("listed digests", "count", listing.Len(), "mode", report.ListMode)

	p.progress.Start(listing.Len())
	defer p.progress.Finish()

	for ref := range listing.All() {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("run cancelled", "next", ref.String(), "reason", err)
			return err
		}

		outcome, err := p.process(ctx, session, ref)
		outcome.At = p.now()
		report.Add(outcome)
		p.record(ctx, report.ID, outcome)
		p.progress.Increment(outcome.Ref, outcome.Status)

		if err != nil {
			return err
		}
	}

	summary := report.Summary()
	p.logger.Info("run finished",
		"stored", summary.Stored,
		"missing", summary.Missing,
		"failed", summary.Failed,
		"filtered", summary.Filtered,
	)
	if summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d digests failed", ErrIncomplete, summary.Failed, summary.Total)
	}
	return nil
}

// process handles one reference. A non-nil error ends the run.
func (p *Pipeline) process(ctx context.Context, session *archive.Session, ref archive.Reference) (model.DigestOutcome, error) {
	outcome := model.DigestOutcome{Ref: ref.String()}

	ok, err := p.filter.Match(ref)
	if err != nil {
		outcome.Status = model.OutcomeFailed
		outcome.Error = err.Error()
		return outcome, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	if !ok {
		p.logger.Debug("digest filtered", "ref", ref.String())
		outcome.Status = model.OutcomeFiltered
		return outcome, nil
	}

	digest, err := p.archive.FetchDigest(ctx, session, ref)
	switch {
	case errors.Is(err, archive.ErrDigestMissing):
		p.logger.Debug("digest missing", "ref", ref.String())
		outcome.Status = model.OutcomeMissing
		return outcome, nil
	case err != nil:
		return p.fail(outcome, err)
	}

	path, err := p.store.StoreDigest(ref, digest.Body)
	if err != nil {
		return p.fail(outcome, err)
	}

	sum := sha3.Sum256(digest.Body)
	outcome.Status = model.OutcomeStored
	outcome.Path = path
	outcome.Size = int64(len(digest.Body))
	outcome.Checksum = hex.EncodeToString(sum[:])
	p.logger.Debug("digest stored", "ref", ref.String(), "path", path, "bytes", outcome.Size)
	return outcome, nil
}

// fail records a failed outcome and decides whether the run continues.
// A rejected session ends the run under every policy since no later
// request can succeed.
func (p *Pipeline) fail(outcome model.DigestOutcome, err error) (model.DigestOutcome, error) {
	outcome.Status = model.OutcomeFailed
	outcome.Error = err.Error()
	p.logger.Warn("digest failed", "ref", outcome.Ref, "error", err)

	if errors.Is(err, archive.ErrSessionRejected) {
		return outcome, err
	}
	if p.policy == PolicyAbort {
		return outcome, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return outcome, nil
}

func (p *Pipeline) beginRun(ctx context.Context, report *model.RunReport) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.BeginRun(ctx, report); err != nil {
		p.logger.Warn("failed to record run start", "error", err)
	}
}

func (p *Pipeline) record(ctx context.Context, runID int64, outcome model.DigestOutcome) {
	if p.recorder == nil || runID == 0 {
		return
	}
	if err := p.recorder.RecordOutcome(ctx, runID, outcome); err != nil {
		p.logger.Warn("failed to record outcome", "ref", outcome.Ref, "error", err)
	}
}

func (p *Pipeline) finishRun(ctx context.Context, report *model.RunReport) {
	if p.recorder == nil || report.ID == 0 {
		return
	}
	// The run context may already be cancelled; the record is still wanted.
	if err := p.recorder.FinishRun(context.WithoutCancel(ctx), report); err != nil {
		p.logger.Warn("failed to record run end", "error", err)
	}
}

// nopProgress discards progress updates.
type nopProgress struct{}

func (nopProgress) Start(int)                            {}
func (nopProgress) Increment(string, model.OutcomeStatus) {}
func (nopProgress) Finish()                              {}
