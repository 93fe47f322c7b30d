package tokenizer

// Approx estimates tokens as ceil(bytes / BytesPerToken). It never
// undercounts relative to itself, which is all the planner needs, but it is
// only an estimate of what the safety service will measure.
type Approx struct {
	BytesPerToken int
}

func (a Approx) bpt() int {
	if a.BytesPerToken <= 0 {
		return 4
	}
	return a.BytesPerToken
}

// Count returns the estimated token count of text.
func (a Approx) Count(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	bpt := a.bpt()
	return (n + bpt - 1) / bpt
}

// Truncate cuts text on a rune boundary so that the prefix plus
// TruncationMarker fits in maxUnits.
func (a Approx) Truncate(text string, maxUnits int) string {
	if maxUnits <= 0 {
		return ""
	}
	if a.Count(text) <= maxUnits {
		return text
	}
	keep := maxUnits*a.bpt() - len(TruncationMarker)
	if keep <= 0 {
		return ""
	}
	return trimPartialRune(text[:keep]) + TruncationMarker
}
