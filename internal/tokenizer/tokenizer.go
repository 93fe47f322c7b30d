// Package tokenizer measures text in the units the safety service budgets
// against, and truncates text to fit a unit budget.
//
// Two implementations are provided: BPE, an exact subword tokenizer backed by
// tiktoken encodings, and Approx, a bytes-per-token estimator for deployments
// whose tokenizer is unknown. Both satisfy the same contract: Count("") is 0,
// Count(Truncate(s, n)) <= n for every n >= 0, and Truncate returns s unchanged
// when it already fits.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncationMarker is appended to text that Truncate had to cut.
const TruncationMarker = "\n... [truncated]"

// ApproxEncoding selects the Approx estimator in New.
const ApproxEncoding = "approx"

// Tokenizer counts and truncates text in budget units.
type Tokenizer interface {
	Count(text string) int
	Truncate(text string, maxUnits int) string
}

// New returns a tokenizer for the named encoding. ApproxEncoding returns a
// 4-bytes-per-token estimator; any other name is resolved as a tiktoken
// encoding such as "cl100k_base" or "o200k_base".
func New(encoding string) (Tokenizer, error) {
	switch strings.TrimSpace(encoding) {
	case "":
		return nil, fmt.Errorf("tokenizer: encoding name is empty")
	case ApproxEncoding:
		return Approx{BytesPerToken: 4}, nil
	default:
		return NewBPE(encoding)
	}
}

// trimPartialRune drops a trailing incomplete UTF-8 sequence left behind when
// a token prefix ends in the middle of a multi-byte rune.
func trimPartialRune(s string) string {
	for i := 0; i < utf8.UTFMax && s != ""; i++ {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			break
		}
		s = s[:len(s)-size]
	}
	return s
}
