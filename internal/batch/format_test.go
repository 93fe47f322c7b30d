package batch

import (
	"strings"
	"testing"

	"github.com/dshills/prguard/internal/tokenizer"
)

// byteTok counts one unit per byte, which keeps budgets easy to reason about.
var byteTok = tokenizer.Approx{BytesPerToken: 1}

func TestFormat_DiffAndHeader(t *testing.T) {
	f := Formatter{Tokenizer: byteTok}
	blk := f.Format(ChangeRecord{
		Path:      "main.go",
		Status:    StatusModified,
		Diff:      "@@ -1 +1 @@\n-old\n+new\n",
		Additions: 1,
		Deletions: 1,
	}, 0)

	if !strings.HasPrefix(blk.Text, "### main.go (modified, +1 -1)\n") {
		t.Errorf("header missing, got %q", blk.Text)
	}
	if !strings.Contains(blk.Text, "```diff\n@@ -1 +1 @@\n-old\n+new\n```\n") {
		t.Errorf("diff section missing, got %q", blk.Text)
	}
	if blk.Path != "main.go" {
		t.Errorf("Path = %q, want main.go", blk.Path)
	}
}

func TestFormat_NoDiffMarker(t *testing.T) {
	f := Formatter{Tokenizer: byteTok}
	blk := f.Format(ChangeRecord{Path: "logo.png", Status: StatusAdded}, 1000)
	if !strings.Contains(blk.Text, "No diff available") {
		t.Errorf("expected no-diff marker, got %q", blk.Text)
	}
	if blk.Units == 0 {
		t.Error("a record with neither diff nor content must still render")
	}
}

func TestFormat_UnitsMatchCount(t *testing.T) {
	toks := map[string]tokenizer.Tokenizer{"bytes": byteTok, "approx4": tokenizer.Approx{BytesPerToken: 4}}
	recs := []ChangeRecord{
		{Path: "a.go", Status: StatusAdded, Diff: "+package a\n", Content: "package a\n"},
		{Path: "b.go", Status: StatusModified, Diff: strings.Repeat("+x\n", 500), Content: strings.Repeat("y", 5000)},
		{Path: "c.bin", Status: StatusRemoved},
	}
	for name, tok := range toks {
		f := Formatter{Tokenizer: tok}
		for _, rec := range recs {
			for _, budget := range []int{0, 50, 500, 5000} {
				blk := f.Format(rec, budget)
				if got := tok.Count(blk.Text); got != blk.Units {
					t.Errorf("%s %s budget %d: Units = %d, Count(Text) = %d", name, rec.Path, budget, blk.Units, got)
				}
			}
		}
	}
}

func TestFormat_ContentOmittedWithoutBudget(t *testing.T) {
	f := Formatter{Tokenizer: byteTok}
	blk := f.Format(ChangeRecord{Path: "a.go", Status: StatusModified, Diff: "+x\n", Content: "package a\n"}, 0)
	if strings.Contains(blk.Text, "Full content:") {
		t.Error("content must not be included when no budget is supplied")
	}
}

func TestFormat_ContentOmittedBelowThreshold(t *testing.T) {
	f := Formatter{Tokenizer: byteTok}
	rec := ChangeRecord{Path: "a.go", Status: StatusModified, Diff: "+x\n", Content: strings.Repeat("z", 1000)}
	header := f.Format(ChangeRecord{Path: rec.Path, Status: rec.Status, Diff: rec.Diff}, 0)

	// Exactly MinUsefulUnits remaining is not enough: the rule is strictly greater.
	budget := header.Units + f.contentOverhead() + MinUsefulUnits
	blk := f.Format(rec, budget)
	if strings.Contains(blk.Text, "Full content:") {
		t.Errorf("content included with only %d units remaining", MinUsefulUnits)
	}

	blk = f.Format(rec, budget+1)
	if !strings.Contains(blk.Text, "Full content:") {
		t.Errorf("content omitted with %d units remaining", MinUsefulUnits+1)
	}
}

func TestFormat_ContentTruncatedToBudget(t *testing.T) {
	f := Formatter{Tokenizer: byteTok}
	rec := ChangeRecord{
		Path:    "big.go",
		Status:  StatusModified,
		Diff:    "+one line\n",
		Content: strings.Repeat("content line\n", 1000),
	}
	blk := f.Format(rec, 2000)
	if !strings.Contains(blk.Text, tokenizer.TruncationMarker) {
		t.Error("oversized content should carry the truncation marker")
	}
	if blk.Units > 2000 {
		t.Errorf("Units = %d, want <= 2000", blk.Units)
	}
	if !strings.Contains(blk.Text, "+one line") {
		t.Error("diff must be kept when content is truncated")
	}
}

func TestFormat_DiffNeverTruncated(t *testing.T) {
	f := Formatter{Tokenizer: byteTok}
	diff := strings.Repeat("+long diff line\n", 400)
	blk := f.Format(ChangeRecord{Path: "x.go", Status: StatusAdded, Diff: diff, Content: "body"}, 100)
	if !strings.Contains(blk.Text, strings.TrimRight(diff, "\n")) {
		t.Error("diff should be rendered in full even when it exceeds the budget")
	}
	if strings.Contains(blk.Text, "Full content:") {
		t.Error("no room should be left for content")
	}
	if blk.Units <= 100 {
		t.Errorf("Units = %d, expected the oversized diff to exceed the budget", blk.Units)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"added", StatusAdded},
		{"A", StatusAdded},
		{"copied", StatusAdded},
		{"removed", StatusRemoved},
		{"D", StatusRemoved},
		{"renamed", StatusRenamed},
		{"R", StatusRenamed},
		{"modified", StatusModified},
		{"changed", StatusModified},
		{"", StatusModified},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
