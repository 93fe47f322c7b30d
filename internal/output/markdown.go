package output

import (
	"io"
	"strings"
)

// MarkdownWriter outputs the report as a pull-request comment.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *Report) error {
	ew := &errWriter{w: w}
	ew.printf("## prguard content check\n\n")

	if report.DryRun {
		ew.printf("Dry run for `%s`: %d file(s) planned into %d batch(es). No content was sent.\n",
			report.Target, report.Files, planBatches(report))
		return ew.err
	}

	v := report.Verdict
	if v == nil || v.Skipped {
		ew.println("Nothing to analyze.")
		return ew.err
	}

	if v.Flagged {
		ew.printf(":x: **Content policy violation detected.**\n\n")
	} else {
		ew.printf(":white_check_mark: **No content policy violations.**\n\n")
	}

	ew.printf("| Files | Additions | Deletions | Batches |\n")
	ew.printf("|-------|-----------|-----------|---------|\n")
	ew.printf("| %d | +%d | -%d | %d |\n\n", v.Files, v.Additions, v.Deletions, v.BatchCount)

	if ids := v.PolicyIDs(); len(ids) > 0 {
		ew.printf("<details>\n<summary>Policies (%d)</summary>\n\n", len(ids))
		ew.printf("| Policy | Result |\n")
		ew.printf("|--------|--------|\n")
		for _, id := range ids {
			result := ":green_circle: passed"
			if v.Policies[id].Flagged {
				result = ":red_circle: flagged"
			}
			ew.printf("| %s | %s |\n", escapeCell(policyLabel(id, v)), result)
		}
		ew.printf("\n</details>\n\n")
	}

	ew.printf("<sub>Session `%s`</sub>\n", v.SessionID)
	return ew.err
}

// escapeCell keeps service-supplied text inside a single table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

func planBatches(report *Report) int {
	if report.Plan == nil {
		return 0
	}
	return len(report.Plan.Batches)
}
