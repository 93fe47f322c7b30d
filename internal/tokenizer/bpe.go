package tokenizer

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

var loaderOnce sync.Once

// BPE is an exact tokenizer over a tiktoken byte-pair encoding. Encoding
// tables are embedded in the binary, so no network access is needed.
type BPE struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewBPE loads the named tiktoken encoding.
func NewBPE(encoding string) (*BPE, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: loading encoding %q: %w", encoding, err)
	}
	return &BPE{name: encoding, enc: enc}, nil
}

// Name returns the encoding name.
func (b *BPE) Name() string { return b.name }

// Count returns the number of tokens in text. Special-token strings are
// counted as ordinary text.
func (b *BPE) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(b.encode(text))
}

// Truncate returns text unchanged when it fits in maxUnits tokens. Otherwise
// it returns the longest byte prefix of text, cut on a rune boundary, that
// still fits once TruncationMarker is appended, or "" when not even the
// marker fits.
func (b *BPE) Truncate(text string, maxUnits int) string {
	if maxUnits <= 0 {
		return ""
	}
	toks := b.encode(text)
	if len(toks) <= maxUnits {
		return text
	}

	keep := maxUnits - b.Count(TruncationMarker)
	if keep <= 0 {
		return ""
	}
	cut := runeCut(text, b.prefixLen(text, toks, keep))
	for cut > 0 {
		out := text[:cut] + TruncationMarker
		if b.Count(out) <= maxUnits {
			return out
		}
		// Re-encoding across the cut can merge differently; back off one rune.
		cut = runeCut(text, cut-1)
	}
	return ""
}

// prefixLen returns the byte length of the prefix of text covered by its
// first keep tokens. Invalid UTF-8 is re-encoded as U+FFFD by the encoder, so
// when the decoded tokens are not a byte prefix of text the length is found
// by measuring prefixes of text directly.
func (b *BPE) prefixLen(text string, toks []int, keep int) int {
	if decoded := b.enc.Decode(toks[:keep]); strings.HasPrefix(text, decoded) {
		return len(decoded)
	}
	lo, hi := 0, len(text)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b.Count(text[:mid]) <= keep {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// runeCut moves i back to the start of the rune it falls inside, so text[:i]
// never ends with a partial multi-byte sequence of a valid rune.
func runeCut(text string, i int) int {
	if i >= len(text) {
		return len(text)
	}
	for k := 0; k < utf8.UTFMax-1 && i > 0 && !utf8.RuneStart(text[i]); k++ {
		i--
	}
	return i
}

func (b *BPE) encode(text string) []int {
	return b.enc.Encode(text, nil, nil)
}
