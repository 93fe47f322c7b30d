package gitctx

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dshills/prguard/internal/batch"
)

// Options controls which files are read and how much of each.
type Options struct {
	Include         []string
	Exclude         []string
	MaxContentBytes int
}

// Result holds the records and commit text for a revision range.
type Result struct {
	Records        []batch.ChangeRecord
	CommitMessages string
	Range          string
	Repo           RepoMeta
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// GetRepoMeta collects repository metadata from git.
func GetRepoMeta() (RepoMeta, error) {
	root, err := gitOutput("rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := gitOutput("rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// revs splits a revision range into its base and tip. A single revision is
// compared against HEAD.
func revs(revRange string) (base, tip string) {
	if i := strings.Index(revRange, "..."); i >= 0 {
		base, tip = revRange[:i], revRange[i+3:]
	} else if i := strings.Index(revRange, ".."); i >= 0 {
		base, tip = revRange[:i], revRange[i+2:]
	} else {
		base = revRange
	}
	if base == "" {
		base = "HEAD"
	}
	if tip == "" {
		tip = "HEAD"
	}
	return base, tip
}

// Range returns a record for every file changed in revRange, in git's order,
// and the messages of the commits in the range, oldest first. With mergeBase
// the diff is taken from the merge base of the two ends, as a pull request
// shows it.
func Range(revRange string, mergeBase bool, opts Options) (Result, error) {
	base, tip := revs(revRange)
	diffRange := base + ".." + tip
	if mergeBase {
		diffRange = base + "..." + tip
	}

	nameStatus, err := gitOutput("diff", "--name-status", "-M", diffRange, "--")
	if err != nil {
		return Result{}, fmt.Errorf("git diff --name-status %s: %w", revRange, err)
	}
	numstat, err := gitOutput("diff", "--numstat", "-z", "-M", diffRange, "--")
	if err != nil {
		return Result{}, fmt.Errorf("git diff --numstat %s: %w", revRange, err)
	}
	stats := parseNumstatZ(numstat)

	var records []batch.ChangeRecord
	for _, ch := range parseNameStatus(nameStatus) {
		if len(opts.Include) > 0 && !MatchesAny(ch.Path, opts.Include) {
			continue
		}
		if MatchesAny(ch.Path, opts.Exclude) {
			continue
		}

		st := stats[ch.Path]
		rec := batch.ChangeRecord{
			Path:      ch.Path,
			Status:    ch.Status,
			Additions: st.Additions,
			Deletions: st.Deletions,
		}

		args := []string{"diff", "-M", diffRange, "--"}
		if ch.OldPath != "" {
			args = append(args, ch.OldPath)
		}
		args = append(args, ch.Path)
		diff, err := gitOutput(args...)
		if err != nil {
			return Result{}, fmt.Errorf("git diff %s -- %s: %w", revRange, ch.Path, err)
		}
		rec.Diff = hunks(diff)

		if ch.Status != batch.StatusRemoved && !st.Binary {
			rec.Content = fileAt(tip, ch.Path, opts.MaxContentBytes)
		}
		records = append(records, rec)
	}

	msgs, err := commitMessages(base, tip)
	if err != nil {
		return Result{}, err
	}

	meta, err := GetRepoMeta()
	if err != nil {
		meta = RepoMeta{}
	}
	return Result{
		Records:        records,
		CommitMessages: msgs,
		Range:          revRange,
		Repo:           meta,
	}, nil
}

type nameStatusEntry struct {
	Status  batch.Status
	Path    string
	OldPath string
}

// parseNameStatus parses `git diff --name-status -M` output. Renames and
// copies carry a similarity score and two paths.
func parseNameStatus(out string) []nameStatusEntry {
	var entries []nameStatusEntry
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		code := fields[0][:1]
		e := nameStatusEntry{Status: batch.ParseStatus(code), Path: fields[len(fields)-1]}
		if (code == "R" || code == "C") && len(fields) >= 3 {
			e.Path = fields[2]
			if code == "R" {
				e.OldPath = fields[1]
			}
		}
		entries = append(entries, e)
	}
	return entries
}

type fileStat struct {
	Additions int
	Deletions int
	Binary    bool
}

// parseNumstatZ parses `git diff --numstat -z` output, keyed by new path.
// A rename record has an empty path field followed by the old and new paths
// as separate NUL-terminated fields.
func parseNumstatZ(out string) map[string]fileStat {
	stats := make(map[string]fileStat)
	fields := strings.Split(out, "\x00")
	for i := 0; i < len(fields); i++ {
		parts := strings.SplitN(fields[i], "\t", 3)
		if len(parts) != 3 {
			continue
		}
		var st fileStat
		if parts[0] == "-" && parts[1] == "-" {
			st.Binary = true
		} else {
			st.Additions, _ = strconv.Atoi(parts[0])
			st.Deletions, _ = strconv.Atoi(parts[1])
		}
		path := parts[2]
		if path == "" && i+2 < len(fields) {
			path = fields[i+2]
			i += 2
		}
		stats[path] = st
	}
	return stats
}

// hunks drops the file header of a single-file diff and returns the hunks,
// the same shape GitHub reports as a file's patch. Diffs without hunks
// (binary or mode-only changes) yield "".
func hunks(diff string) string {
	if strings.HasPrefix(diff, "@@") {
		return strings.TrimRight(diff, "\n")
	}
	i := strings.Index(diff, "\n@@")
	if i < 0 {
		return ""
	}
	return strings.TrimRight(diff[i+1:], "\n")
}

// fileAt returns the text of path at rev, or "" when it is missing, binary or
// larger than maxBytes.
func fileAt(rev, path string, maxBytes int) string {
	out, err := gitOutput("show", rev+":"+path)
	if err != nil {
		return ""
	}
	if maxBytes > 0 && len(out) > maxBytes {
		return ""
	}
	if !utf8.ValidString(out) || strings.ContainsRune(out, 0) {
		return ""
	}
	return out
}

// commitMessages returns the full messages of commits reachable from tip but
// not base, oldest first, separated by newlines.
func commitMessages(base, tip string) (string, error) {
	out, err := gitOutput("log", "--reverse", "--format=%B%x00", base+".."+tip)
	if err != nil {
		return "", fmt.Errorf("git log %s..%s: %w", base, tip, err)
	}
	var msgs []string
	for _, m := range strings.Split(out, "\x00") {
		if m = strings.TrimSpace(m); m != "" {
			msgs = append(msgs, m)
		}
	}
	return strings.Join(msgs, "\n"), nil
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		if strings.HasSuffix(pattern, "/**") && strings.HasPrefix(path, strings.TrimSuffix(pattern, "**")) {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
			if strings.HasSuffix(clean, "/**") && strings.Contains("/"+path, "/"+strings.TrimSuffix(clean, "**")) {
				return true
			}
		}
	}
	return false
}

func gitOutput(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}
