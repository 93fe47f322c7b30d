package tokenizer

import (
	"strings"
	"testing"
)

var samples = []string{
	"",
	"hello world",
	"func main() {\n\tfmt.Println(\"hi\")\n}\n",
	strings.Repeat("diff --git a/x b/x\n+added line with some words\n", 40),
	strings.Repeat("日本語のテキストと絵文字 🚀🔥 ", 30),
	"contains a special token <|endoftext|> in the middle",
	"ab\xff\xfe" + strings.Repeat("hello world ", 20),
	"\x80\x80" + strings.Repeat("x y ", 30) + "\xc3",
	strings.Repeat("ok \xe2\x82 ", 25),
}

func newBPE(t *testing.T) *BPE {
	t.Helper()
	b, err := NewBPE("cl100k_base")
	if err != nil {
		t.Fatalf("NewBPE error: %v", err)
	}
	return b
}

func tokenizers(t *testing.T) map[string]Tokenizer {
	return map[string]Tokenizer{
		"bpe":      newBPE(t),
		"approx-1": Approx{BytesPerToken: 1},
		"approx-4": Approx{BytesPerToken: 4},
	}
}

func TestCount_Empty(t *testing.T) {
	for name, tok := range tokenizers(t) {
		if got := tok.Count(""); got != 0 {
			t.Errorf("%s: Count(\"\") = %d, want 0", name, got)
		}
	}
}

func TestBPE_CountKnownText(t *testing.T) {
	b := newBPE(t)
	if got := b.Count("hello world"); got != 2 {
		t.Errorf("Count(%q) = %d, want 2", "hello world", got)
	}
}

func TestTruncate_NeverExceedsBudget(t *testing.T) {
	for name, tok := range tokenizers(t) {
		for _, s := range samples {
			for n := 0; n <= 60; n++ {
				out := tok.Truncate(s, n)
				if got := tok.Count(out); got > n {
					t.Fatalf("%s: Count(Truncate(%.20q, %d)) = %d", name, s, n, got)
				}
			}
		}
	}
}

func TestTruncate_Idempotent(t *testing.T) {
	for name, tok := range tokenizers(t) {
		for _, s := range samples {
			for _, n := range []int{0, 1, 5, 10, 25, 100, 10000} {
				once := tok.Truncate(s, n)
				twice := tok.Truncate(once, n)
				if once != twice {
					t.Errorf("%s: Truncate not idempotent for n=%d: %q vs %q", name, n, once, twice)
				}
			}
		}
	}
}

func TestTruncate_PrefixWithMarker(t *testing.T) {
	for name, tok := range tokenizers(t) {
		s := samples[3]
		out := tok.Truncate(s, 30)
		if !strings.HasSuffix(out, TruncationMarker) {
			t.Fatalf("%s: truncated text should end with marker, got %q", name, out)
		}
		prefix := strings.TrimSuffix(out, TruncationMarker)
		if !strings.HasPrefix(s, prefix) {
			t.Errorf("%s: %q is not a prefix of the input", name, prefix)
		}
	}
}

func TestTruncate_AlwaysPrefix(t *testing.T) {
	for name, tok := range tokenizers(t) {
		for _, s := range samples {
			for n := 0; n <= 80; n++ {
				out := tok.Truncate(s, n)
				if out == s {
					continue
				}
				prefix := strings.TrimSuffix(out, TruncationMarker)
				if !strings.HasPrefix(s, prefix) {
					t.Fatalf("%s: Truncate(%.20q, %d) = %q, not a prefix of the input", name, s, n, out)
				}
			}
		}
	}
}

func TestTruncate_FitsUnchanged(t *testing.T) {
	for name, tok := range tokenizers(t) {
		s := "short text"
		if got := tok.Truncate(s, 1000); got != s {
			t.Errorf("%s: Truncate of fitting text = %q, want unchanged", name, got)
		}
	}
}

func TestTruncate_MultiByteBoundary(t *testing.T) {
	tok := Approx{BytesPerToken: 1}
	s := strings.Repeat("é", 100) // 2 bytes each
	out := tok.Truncate(s, len(TruncationMarker)+3)
	prefix := strings.TrimSuffix(out, TruncationMarker)
	if prefix != "é" {
		t.Errorf("prefix = %q, want a single whole rune", prefix)
	}
}

func TestTrimPartialRune(t *testing.T) {
	full := "ab🚀"
	tests := []struct {
		in   string
		want string
	}{
		{full, full},
		{full[:len(full)-1], "ab"},
		{full[:len(full)-3], "ab"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := trimPartialRune(tt.in); got != tt.want {
			t.Errorf("trimPartialRune(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	tok, err := New(ApproxEncoding)
	if err != nil {
		t.Fatalf("New(approx) error: %v", err)
	}
	if _, ok := tok.(Approx); !ok {
		t.Errorf("New(approx) = %T, want Approx", tok)
	}

	tok, err = New("cl100k_base")
	if err != nil {
		t.Fatalf("New(cl100k_base) error: %v", err)
	}
	if b, ok := tok.(*BPE); !ok || b.Name() != "cl100k_base" {
		t.Errorf("New(cl100k_base) = %T", tok)
	}

	if _, err := New(""); err == nil {
		t.Error("New(\"\") should fail")
	}
	if _, err := New("no_such_encoding"); err == nil {
		t.Error("New with unknown encoding should fail")
	}
}
