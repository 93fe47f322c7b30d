package batch

import (
	"fmt"
	"strings"

	"github.com/dshills/prguard/internal/tokenizer"
)

const (
	// MinUsefulUnits is the smallest content allowance worth sending. Below
	// it the content section is omitted entirely.
	MinUsefulUnits = 100
	// FormatReserve absorbs tokenizer merges across section boundaries.
	FormatReserve = 10

	noDiffMarker       = "_No diff available (binary or oversized file)._\n"
	contentOpen        = "\nFull content:\n```\n"
	contentClose       = "\n```\n"
	diffOpen, diffShut = "```diff\n", "\n```\n"
)

// Formatter renders change records into blocks measured by a tokenizer.
type Formatter struct {
	Tokenizer tokenizer.Tokenizer
}

// Format renders rec. maxUnits is the candidate budget for the whole block;
// a value <= 0 means no budget was supplied and content is never included.
// The diff section is always kept in full.
func (f Formatter) Format(rec ChangeRecord, maxUnits int) Block {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s (%s, +%d -%d)\n", rec.Path, rec.Status, rec.Additions, rec.Deletions)

	if rec.HasDiff() {
		b.WriteString(diffOpen)
		b.WriteString(strings.TrimRight(rec.Diff, "\n"))
		b.WriteString(diffShut)
	} else {
		b.WriteString(noDiffMarker)
	}

	if rec.HasContent() && maxUnits > 0 {
		consumed := f.Tokenizer.Count(b.String())
		remaining := maxUnits - consumed - f.contentOverhead()
		if remaining > MinUsefulUnits {
			content := f.Tokenizer.Truncate(rec.Content, remaining-FormatReserve)
			b.WriteString(contentOpen)
			b.WriteString(strings.TrimRight(content, "\n"))
			b.WriteString(contentClose)
		}
	}

	text := b.String()
	return Block{
		Path:  rec.Path,
		Text:  text,
		Units: f.Tokenizer.Count(text),
	}
}

func (f Formatter) contentOverhead() int {
	return f.Tokenizer.Count(contentOpen) + f.Tokenizer.Count(contentClose)
}
