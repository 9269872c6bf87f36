package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/nao1215/digestfetch/internal/model"
)

// barWidth is the width of the bar itself, decorators excluded.
const barWidth = 40

// Bar shows one progress bar for a download run.
// It is safe for concurrent use and may be reused for several runs.
type Bar struct {
	out  io.Writer
	name string

	mu       sync.Mutex
	progress *mpb.Progress
	bar      *mpb.Bar
	current  string
	total    int
	counts   map[model.OutcomeStatus]int
}

// Option configures a Bar.
type Option func(*Bar)

// WithName sets the label printed before the bar.
func WithName(name string) Option {
	return func(b *Bar) {
		b.name = name
	}
}

// New returns a Bar that renders to out.
func New(out io.Writer, opts ...Option) *Bar {
	b := &Bar{
		out:    out,
		name:   "digests",
		counts: make(map[model.OutcomeStatus]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enabled reports whether a progress bar should be drawn on f.
// Bars are suppressed in verbose mode, where log lines would interleave
// with the bar, and when f is not a terminal.
func Enabled(f *os.File, verbose, disabled bool) bool {
	if verbose || disabled || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start draws a bar for total references.
func (b *Bar) Start(total int) {
	b.mu.Lock()
	b.counts = make(map[model.OutcomeStatus]int)
	b.current = ""
	b.total = total
	b.mu.Unlock()
	if total <= 0 {
		return
	}

	progress := mpb.New(mpb.WithOutput(b.out), mpb.WithWidth(barWidth))
	bar := progress.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(b.name, decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Any(b.currentRef, decor.WCSyncSpace),
		),
	)

	b.mu.Lock()
	b.progress, b.bar = progress, bar
	b.mu.Unlock()
}

func (b *Bar) currentRef(decor.Statistics) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Increment advances the bar by one reference. Failures are printed above
// the bar so they stay visible after it completes.
func (b *Bar) Increment(ref string, status model.OutcomeStatus) {
	b.mu.Lock()
	b.counts[status]++
	b.current = ref
	progress, bar := b.progress, b.bar
	b.mu.Unlock()

	if bar == nil {
		return
	}
	if status == model.OutcomeFailed {
		b.logf(progress, "%s failed", ref)
	}
	bar.Increment()
}

func (b *Bar) logf(progress *mpb.Progress, format string, args ...any) {
	_, _ = progress.Write([]byte(fmt.Sprintf(format, args...) + "\n"))
}

// Finish stops the bar, aborting it when the run ended early, and waits
// for the final frame to be drawn.
func (b *Bar) Finish() {
	b.mu.Lock()
	progress, bar := b.progress, b.bar
	b.progress, b.bar = nil, nil
	done, failed, total := b.done(), b.counts[model.OutcomeFailed], b.total
	b.mu.Unlock()

	if progress == nil {
		return
	}
	if !bar.Completed() {
		b.logf(progress, "stopped after %d of %d digests (%d failed)", done, total, failed)
		bar.Abort(false)
	}
	progress.Wait()
}

// done returns how many references finished in the current run.
// The caller must hold b.mu.
func (b *Bar) done() int {
	n := 0
	for _, c := range b.counts {
		n += c
	}
	return n
}
