package redact

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/prguard/internal/batch"
)

const placeholder = "[REDACTED]"

// pathPlaceholder replaces both diff and body of a path-redacted file.
const pathPlaceholder = placeholder + " (file redacted by path policy)"

var secretPatterns = []*regexp.Regexp{
	// key = "..." style API keys
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`),
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	// connection strings with inline credentials
	regexp.MustCompile(`(?i)\b(postgres(ql)?|mysql|mongodb(\+srv)?|redis|amqp)://[^\s:/@]+:[^\s@]+@`),
	regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`),
}

// Secrets replaces detected secrets in text with [REDACTED].
func Secrets(text string) string {
	out, _ := secrets(text)
	return out
}

func secrets(text string) (string, int) {
	n := 0
	for _, pat := range secretPatterns {
		text = pat.ReplaceAllStringFunc(text, func(string) string {
			n++
			return placeholder
		})
	}
	return text, n
}

// ShouldRedactPath checks if a file path matches any of the redaction path patterns.
func ShouldRedactPath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		// "**/.env" also matches a bare ".env" at any depth
		cleanPattern := strings.TrimPrefix(pattern, "**/")
		if cleanPattern != pattern {
			matched, err = filepath.Match(cleanPattern, filepath.Base(path))
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// Stats counts what a redaction pass changed.
type Stats struct {
	Secrets int
	Files   int
}

// Record returns rec with secrets removed from its diff and content. A path
// matching redactPaths has both replaced by a placeholder; line counts and
// status are kept.
func Record(rec batch.ChangeRecord, redactPaths []string) (batch.ChangeRecord, Stats) {
	if ShouldRedactPath(rec.Path, redactPaths) {
		if rec.HasDiff() {
			rec.Diff = pathPlaceholder
		}
		if rec.HasContent() {
			rec.Content = pathPlaceholder
		}
		return rec, Stats{Files: 1}
	}
	var st Stats
	var n int
	rec.Diff, n = secrets(rec.Diff)
	st.Secrets += n
	rec.Content, n = secrets(rec.Content)
	st.Secrets += n
	return rec, st
}

// Records applies Record to every record, returning a new slice.
func Records(recs []batch.ChangeRecord, redactPaths []string) ([]batch.ChangeRecord, Stats) {
	out := make([]batch.ChangeRecord, len(recs))
	var total Stats
	for i, rec := range recs {
		var st Stats
		out[i], st = Record(rec, redactPaths)
		total.Secrets += st.Secrets
		total.Files += st.Files
	}
	return out, total
}
