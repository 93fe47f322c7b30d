package batch

import (
	"strings"
)

const preamble = `Analyze the following pull request for content policy violations.
The pull request may be split across several messages that share one session; evaluate each part in that context.
`

const filesHeader = "\n## Changed files\n\n"

// Preamble returns the fixed text that opens every request.
func Preamble() string {
	return preamble
}

// CommitSection renders the commit messages section, or "" when there are
// no commit messages.
func CommitSection(commitMsgs string) string {
	msgs := strings.TrimSpace(commitMsgs)
	if msgs == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n## Commit messages\n\n")
	b.WriteString(msgs)
	b.WriteString("\n")
	return b.String()
}

// BuildContent assembles the user message for one batch: the preamble, the
// commit section and the batch's blocks separated by blank lines.
func BuildContent(commitMsgs string, b Batch) string {
	var sb strings.Builder
	sb.WriteString(preamble)
	sb.WriteString(CommitSection(commitMsgs))
	if len(b.Blocks) > 0 {
		sb.WriteString(filesHeader)
		for i, blk := range b.Blocks {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(blk.Text)
		}
	}
	return sb.String()
}
