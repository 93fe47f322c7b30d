package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/prguard/internal/batch"
	"github.com/dshills/prguard/internal/session"
)

// Modes of a check run.
const (
	ModePullRequest = "pull_request"
	ModeRange       = "range"
)

// Report is everything known about one check run.
type Report struct {
	Tool    string           `json:"tool"`
	Version string           `json:"version"`
	Mode    string           `json:"mode"`
	Target  string           `json:"target"`
	Title   string           `json:"title,omitempty"`
	DryRun  bool             `json:"dry_run,omitempty"`
	Verdict *session.Verdict `json:"verdict,omitempty"`
	Plan    *batch.Plan      `json:"plan,omitempty"`
	Files   int              `json:"files"`
	// Redacted counts secrets and whole files removed before sending.
	Redacted int `json:"redacted,omitempty"`
	// ReviewComments is the number of review comments on a pull request.
	ReviewComments int    `json:"review_comments,omitempty"`
	Timing         Timing `json:"timing"`
}

// Timing records where the run spent its time.
type Timing struct {
	FetchMs int64 `json:"fetch_ms"`
	CheckMs int64 `json:"check_ms"`
	TotalMs int64 `json:"total_ms"`
}

// Run outcomes as reported by Status.
const (
	StatusSuccess = "success"
	StatusFlagged = "flagged"
	StatusSkipped = "skipped"
	StatusPlanned = "planned"
	StatusFailed  = "failed"
)

// Status summarizes the report in one word.
func (r *Report) Status() string {
	switch {
	case r.DryRun:
		return StatusPlanned
	case r.Verdict == nil || r.Verdict.Skipped:
		return StatusSkipped
	case r.Verdict.Flagged:
		return StatusFlagged
	default:
		return StatusSuccess
	}
}

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *Report) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown":
		return &MarkdownWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the report to the specified output (file path or stdout).
func WriteReport(report *Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, report)
}

func policyLabel(id string, v *session.Verdict) string {
	if name := v.Policies[id].Name; name != "" && name != id {
		return fmt.Sprintf("%s (%s)", name, id)
	}
	return id
}
