package output

import (
	"fmt"
	"os"
	"strings"
)

// SanitizeOutputValue makes s safe for a single key=value line: newlines
// become spaces and carriage returns are dropped.
func SanitizeOutputValue(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", " ")
}

// AppendActionsOutput appends status and message lines to the GitHub Actions
// output file at path. An empty path is a no-op.
func AppendActionsOutput(path, status, message string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening GITHUB_OUTPUT: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "status=%s\nmessage=%s\n",
		SanitizeOutputValue(status), SanitizeOutputValue(message)); err != nil {
		return fmt.Errorf("writing GITHUB_OUTPUT: %w", err)
	}
	return nil
}

// ActionsMessage is the one-line message recorded next to the report's status.
func ActionsMessage(r *Report) string {
	switch r.Status() {
	case StatusPlanned:
		return fmt.Sprintf("Planned %s with %d files into %d batches", r.Target, r.Files, planBatches(r))
	case StatusSkipped:
		return "No content to analyze"
	case StatusFlagged:
		return fmt.Sprintf("Content policy violation in %s: %s",
			r.Target, strings.Join(r.Verdict.FlaggedPolicyIDs(), ", "))
	default:
		v := r.Verdict
		return fmt.Sprintf("Analyzed %s with %d files and %d line changes",
			r.Target, v.Files, v.Additions+v.Deletions)
	}
}
