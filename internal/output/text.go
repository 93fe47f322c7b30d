package output

import (
	"fmt"
	"io"
	"strings"
)

// TextWriter outputs a human-readable text report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *Report) error {
	ew := &errWriter{w: w}

	ew.printf("prguard content check: %s %s\n", strings.ReplaceAll(report.Mode, "_", " "), report.Target)
	if report.Title != "" {
		ew.printf("Title: %s\n", report.Title)
	}
	ew.println(strings.Repeat("─", 60))

	if report.DryRun {
		writePlan(ew, report)
		return ew.err
	}

	v := report.Verdict
	if v == nil || v.Skipped {
		ew.println("Nothing to analyze.")
		return ew.err
	}

	ew.printf("Files: %d (+%d -%d) in %d batch(es)\n", v.Files, v.Additions, v.Deletions, v.BatchCount)
	ew.printf("Session: %s\n", v.SessionID)
	if report.Redacted > 0 {
		ew.printf("Redacted: %d item(s) removed before sending\n", report.Redacted)
	}
	if report.ReviewComments > 0 {
		ew.printf("Review comments: %d\n", report.ReviewComments)
	}
	ew.println(strings.Repeat("─", 60))

	if v.Flagged {
		ew.println("Result: FLAGGED")
	} else {
		ew.println("Result: passed")
	}
	for _, id := range v.PolicyIDs() {
		icon := "[ok]"
		if v.Policies[id].Flagged {
			icon = "[!!]"
		}
		ew.printf("  %s %s\n", icon, policyLabel(id, v))
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Completed in %dms (fetch: %dms, check: %dms)\n",
		report.Timing.TotalMs, report.Timing.FetchMs, report.Timing.CheckMs)

	return ew.err
}

func writePlan(ew *errWriter, report *Report) {
	p := report.Plan
	if p == nil {
		ew.println("No plan.")
		return
	}
	ew.printf("Dry run: %d file(s) in %d batch(es)\n", report.Files, len(p.Batches))
	ew.printf("Overhead: %d units, available per batch: %d units\n", p.Overhead, p.Available)
	for _, b := range p.Batches {
		note := ""
		if b.Oversized(p.Available) {
			note = " (oversized)"
		}
		ew.printf("\n  Batch %d: %d file(s), %d units%s\n", b.Index+1, len(b.Blocks), b.Units, note)
		for _, blk := range b.Blocks {
			ew.printf("    %s (%d)\n", blk.Path, blk.Units)
		}
	}
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}
