package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/digestfetch/internal/archive"
	"github.com/nao1215/digestfetch/internal/archive/archivetest"
	"github.com/nao1215/digestfetch/internal/model"
)

const (
	testUser = "member@example.org"
	testPass = "s3cret"
)

func testDigests() map[string][]byte {
	return map[string][]byte{
		"2023-01": bytes.Repeat([]byte("January digest line\n"), 20),
		"2023-02": bytes.Repeat([]byte("February digest line\n"), 20),
		"2023-04": bytes.Repeat([]byte("April digest line\n"), 20),
	}
}

func newClient(srv *archivetest.Server, opts ...archive.ClientOption) *archive.Client {
	return archive.NewClient(&http.Client{Timeout: 5 * time.Second}, srv.LoginURL(), srv.ArchiveURL(), opts...)
}

// recordingProgress captures progress calls.
type recordingProgress struct {
	total    int
	refs     []string
	finished bool
}

func (r *recordingProgress) Start(total int) { r.total = total }
func (r *recordingProgress) Increment(ref string, _ model.OutcomeStatus) {
	r.refs = append(r.refs, ref)
}
func (r *recordingProgress) Finish() { r.finished = true }

// memoryRecorder is an in-memory Recorder.
type memoryRecorder struct {
	mu       sync.Mutex
	began    int
	outcomes []model.DigestOutcome
	finished *model.RunReport
	fail     bool
}

func (m *memoryRecorder) BeginRun(_ context.Context, r *model.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.began++
	r.ID = 42
	return nil
}

func (m *memoryRecorder) RecordOutcome(_ context.Context, runID int64, o model.DigestOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if runID != 42 {
		return errors.New("unexpected run id")
	}
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *memoryRecorder) FinishRun(_ context.Context, r *model.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = r
	return nil
}

// failingStore fails for one reference and delegates otherwise.
type failingStore struct {
	*archive.DirStore
	failRef string
}

func (f *failingStore) StoreDigest(ref archive.Reference, content []byte) (string, error) {
	if ref.String() == f.failRef {
		return "", &archive.IOError{Ref: ref, Path: f.Dir(), Err: errors.New("no space left on device")}
	}
	return f.DirStore.StoreDigest(ref, content)
}

func statuses(r *model.RunReport) map[string]string {
	out := make(map[string]string, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out[o.Ref] = o.Status.String()
	}
	return out
}

func TestRunStoresEveryDigest(t *testing.T) {
	t.Parallel()

	digests := testDigests()
	srv := archivetest.New(testUser, testPass, digests, archivetest.WithMissing("2023-03"))
	defer srv.Close()

	outDir := filepath.Join(t.TempDir(), "out")
	store := archive.NewDirStore(outDir, archive.Namer{Extension: ".mbox"})
	progress := &recordingProgress{}
	recorder := &memoryRecorder{}

	p := New(newClient(srv), store, Credentials{Username: testUser, Password: testPass},
		WithProgress(progress), WithRecorder(recorder))

	report, err := p.Run(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"2023-01": "stored",
		"2023-02": "stored",
		"2023-03": "missing",
		"2023-04": "stored",
	}
	if diff := cmp.Diff(want, statuses(report)); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}

	for ref, body := range digests {
		got, err := os.ReadFile(filepath.Join(outDir, ref+".mbox"))
		if err != nil {
			t.Errorf("%s: %v", ref, err)
			continue
		}
		if !bytes.Equal(got, body) {
			t.Errorf("%s: content mismatch", ref)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "2023-03.mbox")); !os.IsNotExist(err) {
		t.Error("missing month must not produce a file")
	}

	if progress.total != 4 || len(progress.refs) != 4 || !progress.finished {
		t.Errorf("unexpected progress: %+v", progress)
	}
	if recorder.began != 1 || len(recorder.outcomes) != 4 || recorder.finished == nil {
		t.Errorf("unexpected recorder state: began=%d outcomes=%d", recorder.began, len(recorder.outcomes))
	}
	if report.ID != 42 {
		t.Errorf("expected run id from recorder, got %d", report.ID)
	}
	if report.ListMode != "index" || report.Username != testUser || report.OutDir != outDir {
		t.Errorf("unexpected report header: %+v", report)
	}

	for _, o := range report.Outcomes {
		if o.Status == model.OutcomeStored && len(o.Checksum) != 64 {
			t.Errorf("%s: expected hex SHA3-256 checksum, got %q", o.Ref, o.Checksum)
		}
	}
}

func TestRunTwiceIsByteIdentical(t *testing.T) {
	t.Parallel()

	srv := archivetest.New(testUser, testPass, testDigests())
	defer srv.Close()

	outDir := t.TempDir()
	namer := archive.Namer{Prefix: archive.DefaultFilenamePrefix, Extension: archive.DefaultFileExtension}

	snapshot := func() map[string]string {
		t.Helper()
		entries, err := os.ReadDir(outDir)
		if err != nil {
			t.Fatal(err)
		}
		files := make(map[string]string, len(entries))
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(outDir, e.Name()))
			if err != nil {
				t.Fatal(err)
			}
			files[e.Name()] = string(data)
		}
		return files
	}

	var first map[string]string
	for i := range 2 {
		p := New(newClient(srv), archive.NewDirStore(outDir, namer), Credentials{Username: testUser, Password: testPass})
		if _, err := p.Run(t.Context()); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
		if i == 0 {
			first = snapshot()
		}
	}

	if len(first) != 3 {
		t.Fatalf("expected 3 files, got %d", len(first))
	}
	if diff := cmp.Diff(first, snapshot()); diff != "" {
		t.Errorf("second run changed the output directory (-first +second):\n%s", diff)
	}
}

func TestRunAuthenticationFailure(t *testing.T) {
	t.Parallel()

	srv := archivetest.New(testUser, testPass, testDigests())
	defer srv.Close()

	outDir := filepath.Join(t.TempDir(), "out")
	p := New(newClient(srv), archive.NewDirStore(outDir, archive.Namer{Extension: ".html"}),
		Credentials{Username: testUser, Password: "wrong"})

	report, err := p.Run(t.Context())

	var authErr *archive.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *archive.AuthError, got %T: %v", err, err)
	}
	if len(report.Outcomes) != 0 {
		t.Errorf("expected no outcomes, got %d", len(report.Outcomes))
	}
	if report.Error == "" || report.FinishedAt.IsZero() {
		t.Error("expected failed report to be finished with an error")
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Error("output directory must not be created when login fails")
	}
	for _, req := range srv.Requests() {
		if req != "POST /mm/private/westfalengen/" {
			t.Errorf("unexpected request after failed login: %s", req)
		}
	}
}

func TestRunFailurePolicy(t *testing.T) {
	t.Parallel()

	t.Run("skip continues and reports incomplete", func(t *testing.T) {
		t.Parallel()

		srv := archivetest.New(testUser, testPass, testDigests(), archivetest.WithBroken("2023-03"))
		defer srv.Close()

		p := New(newClient(srv), archive.NewDirStore(t.TempDir(), archive.Namer{Extension: ".html"}),
			Credentials{Username: testUser, Password: testPass})

		report, err := p.Run(t.Context())
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("expected ErrIncomplete, got %v", err)
		}

		want := map[string]string{
			"2023-01": "stored",
			"2023-02": "stored",
			"2023-03": "failed",
			"2023-04": "stored",
		}
		if diff := cmp.Diff(want, statuses(report)); diff != "" {
			t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
		}
		if report.Succeeded() {
			t.Error("report must not be successful")
		}
	})

	t.Run("abort stops at the first failure", func(t *testing.T) {
		t.Parallel()

		srv := archivetest.New(testUser, testPass, testDigests(), archivetest.WithBroken("2023-02"))
		defer srv.Close()

		p := New(newClient(srv), archive.NewDirStore(t.TempDir(), archive.Namer{Extension: ".html"}),
			Credentials{Username: testUser, Password: testPass},
			WithFailurePolicy(PolicyAbort))

		report, err := p.Run(t.Context())
		if !errors.Is(err, ErrAborted) {
			t.Fatalf("expected ErrAborted, got %v", err)
		}
		var fetchErr *archive.FetchError
		if !errors.As(err, &fetchErr) {
			t.Errorf("expected wrapped *archive.FetchError, got %v", err)
		}
		if len(report.Outcomes) != 2 {
			t.Errorf("expected to stop after 2 outcomes, got %d", len(report.Outcomes))
		}
	})

	t.Run("store failure follows the policy", func(t *testing.T) {
		t.Parallel()

		srv := archivetest.New(testUser, testPass, testDigests())
		defer srv.Close()

		store := &failingStore{
			DirStore: archive.NewDirStore(t.TempDir(), archive.Namer{Extension: ".html"}),
			failRef:  "2023-02",
		}
		p := New(newClient(srv), store, Credentials{Username: testUser, Password: testPass})

		report, err := p.Run(t.Context())
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("expected ErrIncomplete, got %v", err)
		}
		if s := report.Summary(); s.Stored != 2 || s.Failed != 1 {
			t.Errorf("unexpected summary %+v", s)
		}
	})

	t.Run("rejected session ends the run", func(t *testing.T) {
		t.Parallel()

		srv := archivetest.New(testUser, testPass, testDigests())
		defer srv.Close()

		client := newClient(srv)
		expiring := &expiringArchive{Client: client, srv: srv}
		p := New(expiring, archive.NewDirStore(t.TempDir(), archive.Namer{Extension: ".html"}),
			Credentials{Username: testUser, Password: testPass})

		report, err := p.Run(t.Context())
		if !errors.Is(err, archive.ErrSessionRejected) {
			t.Fatalf("expected ErrSessionRejected, got %v", err)
		}
		if len(report.Outcomes) != 1 {
			t.Errorf("expected the run to stop at the first rejected fetch, got %d outcomes", len(report.Outcomes))
		}
	})
}

// expiringArchive expires the server session right after listing.
type expiringArchive struct {
	*archive.Client
	srv *archivetest.Server
}

func (e *expiringArchive) ListDigests(ctx context.Context, s *archive.Session) (*archive.Listing, error) {
	l, err := e.Client.ListDigests(ctx, s)
	e.srv.Expire()
	return l, err
}

func TestRunFilter(t *testing.T) {
	t.Parallel()

	srv := archivetest.New(testUser, testPass, testDigests())
	defer srv.Close()

	filter, err := NewFilter(`month >= 2`)
	if err != nil {
		t.Fatal(err)
	}

	p := New(newClient(srv), archive.NewDirStore(t.TempDir(), archive.Namer{Extension: ".html"}),
		Credentials{Username: testUser, Password: testPass}, WithFilter(filter))

	report, err := p.Run(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"2023-01": "filtered",
		"2023-02": "stored",
		"2023-04": "stored",
	}
	if diff := cmp.Diff(want, statuses(report)); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCancellation(t *testing.T) {
	t.Parallel()

	srv := archivetest.New(testUser, testPass, testDigests())
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	progress := &cancelAfterFirst{cancel: cancel}

	p := New(newClient(srv), archive.NewDirStore(t.TempDir(), archive.Namer{Extension: ".html"}),
		Credentials{Username: testUser, Password: testPass}, WithProgress(progress))

	report, err := p.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Outcomes) != 1 {
		t.Errorf("expected run to stop after the first digest, got %d outcomes", len(report.Outcomes))
	}
}

// cancelAfterFirst cancels the run once the first digest is done.
type cancelAfterFirst struct {
	cancel context.CancelFunc
}

func (c *cancelAfterFirst) Start(int)                             {}
func (c *cancelAfterFirst) Increment(string, model.OutcomeStatus) { c.cancel() }
func (c *cancelAfterFirst) Finish()                               {}

func TestRunRecorderFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	srv := archivetest.New(testUser, testPass, testDigests())
	defer srv.Close()

	recorder := &memoryRecorder{fail: true}
	p := New(newClient(srv), archive.NewDirStore(t.TempDir(), archive.Namer{Extension: ".html"}),
		Credentials{Username: testUser, Password: testPass}, WithRecorder(recorder))

	report, err := p.Run(t.Context())
	if err != nil {
		t.Fatalf("recorder failure must not fail the run: %v", err)
	}
	if report.ID != 0 || len(recorder.outcomes) != 0 {
		t.Error("outcomes must not be recorded without a run id")
	}
}

func TestParseFailurePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    FailurePolicy
		wantErr bool
	}{
		{input: "", want: PolicySkip},
		{input: "skip", want: PolicySkip},
		{input: "abort", want: PolicyAbort},
		{input: "retry", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFailurePolicy(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("%q: expected ErrInvalidPolicy, got %v", tt.input, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%q: got %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
}
