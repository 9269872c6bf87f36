package ui

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/digestfetch/internal/model"
)

// syncBuffer is a bytes.Buffer safe for the render goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// finishWithin fails the test if Finish blocks.
func finishWithin(t *testing.T, b *Bar, d time.Duration) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		b.Finish()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("Finish did not return")
	}
}

func TestBar(t *testing.T) {
	t.Parallel()

	t.Run("counts outcomes", func(t *testing.T) {
		t.Parallel()

		b := New(io.Discard, WithName("westfalengen"))
		b.Start(4)
		b.Increment("2023-01", model.OutcomeStored)
		b.Increment("2023-02", model.OutcomeStored)
		b.Increment("2023-03", model.OutcomeMissing)
		b.Increment("2023-04", model.OutcomeFailed)
		finishWithin(t, b, 5*time.Second)

		if got := b.counts[model.OutcomeStored]; got != 2 {
			t.Errorf("stored = %d, want 2", got)
		}
		if got := b.counts[model.OutcomeMissing]; got != 1 {
			t.Errorf("missing = %d, want 1", got)
		}
		if got := b.counts[model.OutcomeFailed]; got != 1 {
			t.Errorf("failed = %d, want 1", got)
		}
	})

	t.Run("run ended early", func(t *testing.T) {
		t.Parallel()

		var buf syncBuffer
		b := New(&buf)
		b.Start(10)
		b.Increment("2023-01", model.OutcomeStored)
		b.Increment("2023-02", model.OutcomeFailed)
		finishWithin(t, b, 5*time.Second)

		if out := buf.String(); !strings.Contains(out, "stopped after 2 of 10 digests (1 failed)") {
			t.Errorf("expected stop line, got %q", out)
		}
	})

	t.Run("empty listing", func(t *testing.T) {
		t.Parallel()

		b := New(io.Discard)
		b.Start(0)
		b.Increment("2023-01", model.OutcomeStored)
		finishWithin(t, b, time.Second)
		if got := b.done(); got != 1 {
			t.Errorf("done = %d, want 1", got)
		}
	})

	t.Run("finish without start", func(t *testing.T) {
		t.Parallel()

		finishWithin(t, New(io.Discard), time.Second)
	})

	t.Run("reused for a second run", func(t *testing.T) {
		t.Parallel()

		b := New(io.Discard)
		b.Start(1)
		b.Increment("2023-01", model.OutcomeMissing)
		finishWithin(t, b, 5*time.Second)

		b.Start(1)
		b.Increment("2023-02", model.OutcomeStored)
		finishWithin(t, b, 5*time.Second)

		if got := b.counts[model.OutcomeMissing]; got != 0 {
			t.Errorf("counts not reset: missing = %d", got)
		}
		if got := b.counts[model.OutcomeStored]; got != 1 {
			t.Errorf("stored = %d, want 1", got)
		}
	})
}

func TestEnabled(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	tests := []struct {
		name     string
		f        *os.File
		verbose  bool
		disabled bool
	}{
		{"regular file", f, false, false},
		{"verbose", f, true, false},
		{"disabled", f, false, true},
		{"nil file", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if Enabled(tt.f, tt.verbose, tt.disabled) {
				t.Error("expected progress to be disabled")
			}
		})
	}
}
