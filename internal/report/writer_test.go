package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/digestfetch/internal/database"
	"github.com/nao1215/digestfetch/internal/model"
)

var testStart = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// createTestReport creates a run with one outcome of every kind.
func createTestReport() *model.RunReport {
	r := model.NewRunReport("https://list.example.org/mm/archiv/westfalengen/", "/tmp/digests", testStart)
	r.Username = "member@example.org"
	r.ListMode = "index"
	r.Add(model.DigestOutcome{Ref: "2023-01", Status: model.OutcomeStored, Path: "/tmp/digests/wggf-monthly-digest-2023-01.html", Size: 2048, Checksum: strings.Repeat("ab", 32), At: testStart})
	r.Add(model.DigestOutcome{Ref: "2023-02", Status: model.OutcomeMissing, At: testStart})
	r.Add(model.DigestOutcome{Ref: "2023-03", Status: model.OutcomeFailed, Error: "unexpected status 500", At: testStart})
	r.Add(model.DigestOutcome{Ref: "2023-04", Status: model.OutcomeFiltered, At: testStart})
	r.FinishedAt = testStart.Add(3 * time.Second)
	r.Error = "1 digest(s) failed"
	return r
}

func createTestHistory() []database.RunRecord {
	return []database.RunRecord{
		{
			ID:         2,
			ArchiveURL: "https://list.example.org/mm/archiv/westfalengen/",
			OutDir:     "/tmp/digests",
			Username:   "member@example.org",
			ListMode:   "index",
			StartedAt:  testStart.Add(time.Hour),
			FinishedAt: testStart.Add(time.Hour + time.Minute),
			Summary:    model.RunSummary{Total: 3, Stored: 3, Bytes: 4096},
		},
		{
			ID:         1,
			ArchiveURL: "https://list.example.org/mm/archiv/westfalengen/",
			OutDir:     "/tmp/digests",
			Username:   "member@example.org",
			ListMode:   "probe",
			StartedAt:  testStart,
			Error:      "archive: session rejected",
			Summary:    model.RunSummary{Total: 2, Stored: 1, Failed: 1},
		},
	}
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes summary and failures only", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteRun(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := buf.String()
		for _, want := range []string{
			"digestfetch run",
			"https://list.example.org/mm/archiv/westfalengen/",
			"stored   1 (2.0 KiB)",
			"missing  1",
			"failed   1",
			"filtered 1",
			"2023-03 failed   unexpected status 500",
			"Error: 1 digest(s) failed",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "2023-01 stored") {
			t.Error("stored digest listed without verbose")
		}
		if strings.Contains(out, "\x1b[") {
			t.Error("colour codes written with colour disabled")
		}
	})

	t.Run("verbose lists every digest", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).WriteRun(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "2023-01 stored   /tmp/digests/wggf-monthly-digest-2023-01.html") {
			t.Errorf("stored digest not listed:\n%s", out)
		}
		if !strings.Contains(out, "2023-04 filtered") {
			t.Errorf("filtered digest not listed:\n%s", out)
		}
	})

	t.Run("colour", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithColor(true)).WriteRun(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\x1b[") {
			t.Error("expected ANSI escape codes")
		}
	})

	t.Run("history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).WriteHistory(createTestHistory()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 4 {
			t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
		}
		if !strings.HasPrefix(lines[0], "ID") {
			t.Errorf("header = %q", lines[0])
		}
		if !strings.HasPrefix(lines[1], "2 ") || !strings.HasPrefix(lines[2], "1 ") {
			t.Errorf("runs out of order:\n%s", buf.String())
		}
		if !strings.Contains(lines[3], "session rejected") {
			t.Errorf("verbose error line = %q", lines[3])
		}
	})

	t.Run("empty history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteHistory(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if buf.String() != "No runs recorded.\n" {
			t.Errorf("output = %q", buf.String())
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("run report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).WriteRun(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Error("expected non-zero length")
		}

		out := buf.String()
		for _, want := range []string{
			"# Digest Download Report",
			"## Summary",
			"## Digests",
			"```mermaid",
			"pie",
			"Digest Outcomes",
			"⚠️ Incomplete",
			"[!WARNING]",
			"2023-03 error",
			"`ababababababa...`",
			"*Report generated by digestfetch*",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("complete run gets a tip", func(t *testing.T) {
		t.Parallel()

		r := model.NewRunReport("https://list.example.org/a/", "/tmp/d", testStart)
		r.Add(model.DigestOutcome{Ref: "2023-01", Status: model.OutcomeStored, Size: 10})

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteRun(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "[!TIP]") || !strings.Contains(out, "✅ Complete") {
			t.Errorf("expected tip and complete status:\n%s", out)
		}
	})

	t.Run("aborted run gets a caution", func(t *testing.T) {
		t.Parallel()

		r := model.NewRunReport("https://list.example.org/a/", "/tmp/d", testStart)
		r.Error = "archive: invalid credentials"

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteRun(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "[!CAUTION]") || !strings.Contains(out, "No digests were processed.") {
			t.Errorf("expected caution:\n%s", out)
		}
		if strings.Contains(out, "```mermaid") {
			t.Error("empty run should have no chart")
		}
	})

	t.Run("history", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteHistory(createTestHistory()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "# Download History") || !strings.Contains(out, "4.0 KiB") {
			t.Errorf("unexpected history:\n%s", out)
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("run includes summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteRun(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got struct {
			ArchiveURL string                `json:"archive_url"`
			Outcomes   []model.DigestOutcome `json:"outcomes"`
			Summary    model.RunSummary      `json:"summary"`
		}
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
		}
		want := model.RunSummary{Total: 4, Stored: 1, Missing: 1, Failed: 1, Filtered: 1, Bytes: 2048}
		if diff := cmp.Diff(want, got.Summary); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
		if len(got.Outcomes) != 4 || got.Outcomes[2].Status != model.OutcomeFailed {
			t.Errorf("outcomes = %+v", got.Outcomes)
		}
		if !strings.Contains(buf.String(), `"status":"missing"`) {
			t.Error("status not encoded as text")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).WriteHistory(createTestHistory()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  {") {
			t.Errorf("expected indented output:\n%s", buf.String())
		}

		var got []historyJSON
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 2 || got[1].FinishedAt != "" || got[0].StartedAt != "2024-03-01T11:00:00Z" {
			t.Errorf("history = %+v", got)
		}
	})
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	if got := truncateString("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateString("abcdefghij", 8); got != "abcde..." {
		t.Errorf("got %q", got)
	}
	if got := truncateString("abcdef", 2); got != "ab" {
		t.Errorf("got %q", got)
	}
}
