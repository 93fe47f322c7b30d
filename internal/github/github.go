package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	gh "github.com/google/go-github/github"
	"golang.org/x/oauth2"

	"github.com/dshills/prguard/internal/apperr"
	"github.com/dshills/prguard/internal/batch"
	"github.com/dshills/prguard/internal/httpretry"
)

const (
	// DefaultAPIURL is the public GitHub REST endpoint.
	DefaultAPIURL = "https://api.github.com"
	// DefaultMaxContentBytes is the largest file body fetched per file.
	DefaultMaxContentBytes = 100000

	perPage = 100
)

// ErrNotPullRequest is returned by LoadEvent for events without a pull request.
var ErrNotPullRequest = errors.New("not a pull request event")

// Client provides access to the GitHub REST API.
type Client struct {
	api             *gh.Client
	maxContentBytes int
	logger          *slog.Logger
}

type options struct {
	base            http.RoundTripper
	retryAttempts   int
	timeout         time.Duration
	maxContentBytes int
	logger          *slog.Logger
}

// Option is a function that configures a Client.
type Option func(*options)

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransport sets the transport beneath the retry and auth layers.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// WithRetryAttempts sets the number of attempts per API request.
func WithRetryAttempts(n int) Option {
	return func(o *options) {
		o.retryAttempts = n
	}
}

// WithMaxContentBytes sets the largest file body fetched; larger files are
// represented by their patch alone.
func WithMaxContentBytes(n int) Option {
	return func(o *options) {
		o.maxContentBytes = n
	}
}

// NewClient creates a GitHub client for token. An empty apiURL selects
// DefaultAPIURL.
func NewClient(token, apiURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperr.Configf("github", "GitHub token is not set (GITHUB_TOKEN or INPUT_GITHUB_TOKEN)")
	}
	o := options{
		base:            http.DefaultTransport,
		timeout:         60 * time.Second,
		maxContentBytes: DefaultMaxContentBytes,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	base, err := url.Parse(strings.TrimRight(apiURL, "/") + "/")
	if err != nil {
		return nil, apperr.Configf("github", "invalid API URL %q: %v", apiURL, err)
	}

	httpClient := &http.Client{
		Timeout: o.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   httpretry.New(o.base, o.retryAttempts, o.logger),
		},
	}
	api := gh.NewClient(httpClient)
	api.BaseURL = base

	return &Client{
		api:             api,
		maxContentBytes: o.maxContentBytes,
		logger:          o.logger,
	}, nil
}

// PullRequest fetches a pull request.
func (c *Client) PullRequest(ctx context.Context, owner, repo string, number int) (*gh.PullRequest, error) {
	pr, _, err := c.api.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, apiError(err, "fetching PR #%d in %s/%s", number, owner, repo)
	}
	return pr, nil
}

// ChangeRecords returns one record per file changed in pr, in the order
// GitHub lists them. Bodies are read at pr's head commit for files that still
// exist and fit within the content limit.
func (c *Client) ChangeRecords(ctx context.Context, owner, repo string, pr *gh.PullRequest) ([]batch.ChangeRecord, error) {
	number := pr.GetNumber()
	headSHA := pr.GetHead().GetSHA()

	var files []*gh.CommitFile
	opt := &gh.ListOptions{PerPage: perPage}
	for {
		page, resp, err := c.api.PullRequests.ListFiles(ctx, owner, repo, number, opt)
		if err != nil {
			return nil, apiError(err, "listing files of PR #%d in %s/%s", number, owner, repo)
		}
		files = append(files, page...)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	records := make([]batch.ChangeRecord, 0, len(files))
	for _, f := range files {
		rec := batch.ChangeRecord{
			Path:      f.GetFilename(),
			Status:    batch.ParseStatus(f.GetStatus()),
			Diff:      f.GetPatch(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
		}
		if rec.Status != batch.StatusRemoved && headSHA != "" {
			rec.Content = c.fileContent(ctx, owner, repo, rec.Path, headSHA)
		}
		records = append(records, rec)
	}
	c.logger.Debug("pull request files", "owner", owner, "repo", repo, "number", number, "files", len(records))
	return records, nil
}

// fileContent returns the text of path at ref, or "" when the body is too
// large, binary or unavailable. A missing body is not an error: the patch
// alone is still analyzed.
func (c *Client) fileContent(ctx context.Context, owner, repo, path, ref string) string {
	fc, _, _, err := c.api.Repositories.GetContents(ctx, owner, repo, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		c.logger.Warn("file content unavailable", "path", path, "error", err)
		return ""
	}
	if fc == nil {
		return ""
	}
	if c.maxContentBytes > 0 && fc.GetSize() > c.maxContentBytes {
		c.logger.Debug("file content skipped", "path", path, "size", fc.GetSize(), "limit", c.maxContentBytes)
		return ""
	}
	text, err := fc.GetContent()
	if err != nil {
		c.logger.Warn("file content undecodable", "path", path, "error", err)
		return ""
	}
	if !utf8.ValidString(text) || strings.ContainsRune(text, 0) {
		c.logger.Debug("binary file content skipped", "path", path)
		return ""
	}
	return text
}

// CommitMessages returns the messages of the pull request's commits, oldest
// first, separated by newlines.
func (c *Client) CommitMessages(ctx context.Context, owner, repo string, number int) (string, error) {
	var msgs []string
	opt := &gh.ListOptions{PerPage: perPage}
	for {
		commits, resp, err := c.api.PullRequests.ListCommits(ctx, owner, repo, number, opt)
		if err != nil {
			return "", apiError(err, "listing commits of PR #%d in %s/%s", number, owner, repo)
		}
		for _, rc := range commits {
			if m := strings.TrimSpace(rc.GetCommit().GetMessage()); m != "" {
				msgs = append(msgs, m)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return strings.Join(msgs, "\n"), nil
}

// ReviewCommentCount returns the number of review comments on the pull
// request's diff.
func (c *Client) ReviewCommentCount(ctx context.Context, owner, repo string, number int) (int, error) {
	n := 0
	opt := &gh.PullRequestListCommentsOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	for {
		comments, resp, err := c.api.PullRequests.ListComments(ctx, owner, repo, number, opt)
		if err != nil {
			return 0, apiError(err, "listing review comments of PR #%d in %s/%s", number, owner, repo)
		}
		n += len(comments)
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return n, nil
}

// PostComment adds an issue comment to the pull request.
func (c *Client) PostComment(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := c.api.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{Body: gh.String(body)})
	if err != nil {
		return apiError(err, "posting comment on PR #%d in %s/%s", number, owner, repo)
	}
	return nil
}

func apiError(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch er.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Transportf("github", nil, "%s: authentication failed (status %d): %s",
				msg, er.Response.StatusCode, er.Message)
		case http.StatusNotFound:
			return apperr.Transportf("github", nil, "%s: not found", msg)
		default:
			return apperr.Transportf("github", nil, "%s: API error (status %d): %s",
				msg, er.Response.StatusCode, er.Message)
		}
	}
	return apperr.Transportf("github", err, "%s", msg)
}

// LoadEvent reads a GitHub Actions event payload. Payloads without a pull
// request yield ErrNotPullRequest.
func LoadEvent(path string) (*gh.PullRequestEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Configf("github", "reading event file: %v", err)
	}
	var ev gh.PullRequestEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, apperr.Configf("github", "parsing event file %s: %v", path, err)
	}
	if ev.PullRequest == nil {
		return nil, ErrNotPullRequest
	}
	return &ev, nil
}

// ParseRepository splits "owner/name" as found in GITHUB_REPOSITORY.
func ParseRepository(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", apperr.Configf("github", "invalid repository %q, want owner/name", s)
	}
	return owner, repo, nil
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// DetectRepo parses owner/repo from the git remote origin URL.
func DetectRepo() (owner, repo string, err error) {
	out, err := exec.Command("git", "remote", "get-url", "origin").Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	remote = strings.TrimSuffix(remote, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", remote)
}
