package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/prguard/internal/apperr"
	"github.com/dshills/prguard/internal/batch"
	"github.com/dshills/prguard/internal/config"
	"github.com/dshills/prguard/internal/github"
	"github.com/dshills/prguard/internal/gitctx"
	"github.com/dshills/prguard/internal/output"
	"github.com/dshills/prguard/internal/redact"
	"github.com/dshills/prguard/internal/safety"
	"github.com/dshills/prguard/internal/session"
	"github.com/dshills/prguard/internal/tokenizer"
	"github.com/spf13/cobra"
)

// Shared check flags
var (
	flagFormat    string
	flagOut       string
	flagMaxTokens int
	flagPaths     string
	flagExclude   string
	flagDryRun    bool
	flagNoComment bool
	flagNoRedact  bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the pull request of the current GitHub Actions event",
	Long: "Without a subcommand, check reads GITHUB_REPOSITORY and GITHUB_EVENT_PATH and checks the " +
		"pull request that triggered the workflow. Events without a pull request are skipped.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventPath := os.Getenv("GITHUB_EVENT_PATH")
		if eventPath == "" {
			fail(apperr.Configf("actions", "GITHUB_EVENT_PATH is not set; use 'check pr' or 'check range' outside GitHub Actions"))
			return nil
		}
		event, err := github.LoadEvent(eventPath)
		if errors.Is(err, github.ErrNotPullRequest) {
			fmt.Fprintln(os.Stderr, "This action only works on pull request events")
			appendActionsOutput(output.StatusSkipped, "Not a pull request event")
			return nil
		}
		if err != nil {
			fail(err)
			return nil
		}
		owner, repo, err := github.ParseRepository(os.Getenv("GITHUB_REPOSITORY"))
		if err != nil {
			fail(err)
			return nil
		}
		checkPullRequest(cmd.Context(), owner, repo, event.GetPullRequest().GetNumber())
		return nil
	},
}

var (
	flagOwner string
	flagRepo  string
)

var checkPRCmd = &cobra.Command{
	Use:   "pr <number>",
	Short: "Check a GitHub pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil || number <= 0 {
			fail(fmt.Errorf("invalid PR number: %s", args[0]))
			return nil
		}

		owner, repo := flagOwner, flagRepo
		if owner == "" || repo == "" {
			detOwner, detRepo, err := github.DetectRepo()
			if err != nil {
				fail(fmt.Errorf("cannot detect repository (use --owner and --repo): %w", err))
				return nil
			}
			if owner == "" {
				owner = detOwner
			}
			if repo == "" {
				repo = detRepo
			}
		}

		checkPullRequest(cmd.Context(), owner, repo, number)
		return nil
	},
}

var flagMergeBase bool

var checkRangeCmd = &cobra.Command{
	Use:   "range <revRange>",
	Short: "Check a local revision range",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fail(err)
			return nil
		}
		logger := newLogger(cfg.LogLevel)

		start := time.Now()
		res, err := gitctx.Range(args[0], flagMergeBase, buildGitOpts(cfg))
		if err != nil {
			fail(err)
			return nil
		}
		logger.Debug("collected range", "range", res.Range, "files", len(res.Records), "head", res.Repo.Head)

		tgt := target{
			mode:       output.ModeRange,
			name:       res.Range,
			title:      res.Repo.Branch,
			records:    res.Records,
			commitMsgs: res.CommitMessages,
			fetched:    time.Since(start),
		}
		report, err := analyze(cmd.Context(), cfg, tgt, logger)
		if err != nil {
			fail(err)
			return nil
		}
		if err := publish(cmd.Context(), report, tgt.records, cfg, nil); err != nil {
			fail(err)
		}
		return nil
	},
}

// target is what one check run analyzes.
type target struct {
	mode       string
	name       string
	title      string
	records    []batch.ChangeRecord
	commitMsgs string
	comments   int
	fetched    time.Duration
}

// checkPullRequest runs a full check of one pull request and records the
// outcome in exitCode.
func checkPullRequest(ctx context.Context, owner, repo string, number int) {
	cfg, err := loadConfig()
	if err != nil {
		fail(err)
		return
	}
	logger := newLogger(cfg.LogLevel)

	client, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.APIURL,
		github.WithLogger(logger),
		github.WithRetryAttempts(cfg.Safety.RetryAttempts),
		github.WithMaxContentBytes(cfg.Budget.MaxContentBytes),
	)
	if err != nil {
		fail(err)
		return
	}

	start := time.Now()
	pr, err := client.PullRequest(ctx, owner, repo, number)
	if err != nil {
		fail(err)
		return
	}
	records, err := client.ChangeRecords(ctx, owner, repo, pr)
	if err != nil {
		fail(err)
		return
	}
	commitMsgs, err := client.CommitMessages(ctx, owner, repo, number)
	if err != nil {
		fail(err)
		return
	}
	comments, err := client.ReviewCommentCount(ctx, owner, repo, number)
	if err != nil {
		fail(err)
		return
	}

	opts := buildGitOpts(cfg)
	tgt := target{
		mode:       output.ModePullRequest,
		name:       fmt.Sprintf("%s/%s#%d", owner, repo, number),
		title:      pr.GetTitle(),
		records:    filterRecords(records, opts.Include, opts.Exclude),
		commitMsgs: commitMsgs,
		comments:   comments,
		fetched:    time.Since(start),
	}
	logger.Debug("collected pull request", "target", tgt.name, "files", len(records), "kept", len(tgt.records))

	report, err := analyze(ctx, cfg, tgt, logger)
	if err != nil {
		fail(err)
		return
	}

	post := func(ctx context.Context, body string) error {
		return client.PostComment(ctx, owner, repo, number, body)
	}
	if err := publish(ctx, report, tgt.records, cfg, post); err != nil {
		fail(err)
	}
}

// analyze redacts the target's records, then either plans the batches
// (--dry-run) or sends them to the safety service.
func analyze(ctx context.Context, cfg config.Config, tgt target, logger *slog.Logger) (*output.Report, error) {
	report := &output.Report{
		Tool:    "prguard",
		Version: version,
		Mode:    tgt.mode,
		Target:  tgt.name,
		Title:   tgt.title,
		DryRun:  flagDryRun,
		Files:   len(tgt.records),

		ReviewComments: tgt.comments,
	}
	report.Timing.FetchMs = tgt.fetched.Milliseconds()

	records := tgt.records
	if cfg.Privacy.RedactSecrets && !flagNoRedact {
		var st redact.Stats
		records, st = redact.Records(records, cfg.Privacy.RedactPaths)
		report.Redacted = st.Secrets + st.Files
		if report.Redacted > 0 {
			logger.Info("redacted content before sending", "secrets", st.Secrets, "files", st.Files)
		}
	}

	tok, err := tokenizer.New(cfg.Budget.Encoding)
	if err != nil {
		return nil, apperr.Configf("tokenizer", "%v", err)
	}

	start := time.Now()
	if flagDryRun {
		planner := batch.Planner{
			Tokenizer:    tok,
			MaxUnits:     cfg.Budget.MaxTokens,
			SafetyMargin: cfg.Budget.SafetyMargin,
		}
		plan, err := planner.PlanRecords(records, tgt.commitMsgs)
		if err != nil {
			return nil, err
		}
		report.Plan = &plan
	} else {
		client, err := safety.New(safety.Options{
			Endpoint:      cfg.Safety.Endpoint,
			APIKey:        cfg.Safety.APIKey,
			APIVersion:    cfg.Safety.APIVersion,
			Timeout:       time.Duration(cfg.Safety.TimeoutSeconds) * time.Second,
			RetryAttempts: cfg.Safety.RetryAttempts,
		}, safety.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		o, err := session.New(session.Config{
			DeploymentID: cfg.Safety.DeploymentID,
			MaxUnits:     cfg.Budget.MaxTokens,
			SafetyMargin: cfg.Budget.SafetyMargin,
			Tokenizer:    tok,
		}, client, session.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		verdict, err := o.Analyze(ctx, records, tgt.commitMsgs)
		if err != nil {
			return nil, err
		}
		report.Verdict = verdict
	}
	report.Timing.CheckMs = time.Since(start).Milliseconds()
	report.Timing.TotalMs = report.Timing.FetchMs + report.Timing.CheckMs
	return report, nil
}

// publish writes the report, posts it as a comment when post is set, prints
// the run summary and records the outcome for GitHub Actions.
func publish(ctx context.Context, report *output.Report, records []batch.ChangeRecord, cfg config.Config, post func(context.Context, string) error) error {
	if err := output.WriteReport(report, cfg.Format, flagOut); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	status := report.Status()
	if post != nil && cfg.Comment && !flagNoComment && (status == output.StatusSuccess || status == output.StatusFlagged) {
		var buf bytes.Buffer
		if err := (&output.MarkdownWriter{}).Write(&buf, report); err != nil {
			return fmt.Errorf("rendering comment: %w", err)
		}
		if err := post(ctx, buf.String()); err != nil {
			return err
		}
	}

	printSummary(os.Stderr, report, records)
	appendActionsOutput(status, output.ActionsMessage(report))
	if status == output.StatusFlagged {
		exitCode = ExitFlagged
	}
	return nil
}

func printSummary(w io.Writer, report *output.Report, records []batch.ChangeRecord) {
	var additions, deletions int
	for _, rec := range records {
		additions += rec.Additions
		deletions += rec.Deletions
	}
	batches := 0
	switch {
	case report.Verdict != nil:
		batches = report.Verdict.BatchCount
	case report.Plan != nil:
		batches = len(report.Plan.Batches)
	}
	comments := ""
	if report.Mode == output.ModePullRequest {
		comments = fmt.Sprintf(", %d review comments", report.ReviewComments)
	}
	fmt.Fprintf(w, "prguard: %s: %d files, +%d -%d lines, %d batches%s, %s\n",
		report.Target, len(records), additions, deletions, batches, comments, report.Status())
}

// fail reports a fatal error and fails the run.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	appendActionsOutput(output.StatusFailed, "Check failed: "+err.Error())
	exitCode = ExitFailure
}

func appendActionsOutput(status, message string) {
	if err := output.AppendActionsOutput(os.Getenv("GITHUB_OUTPUT"), status, message); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig, buildOverrides())
	if err != nil {
		return cfg, err
	}
	if flagDryRun {
		return cfg, cfg.ValidateLocal()
	}
	return cfg, cfg.Validate()
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagMaxTokens > 0 {
		m["budget.max_tokens"] = strconv.Itoa(flagMaxTokens)
	}
	if flagDebug {
		m["log_level"] = "debug"
	}
	return m
}

func buildGitOpts(cfg config.Config) gitctx.Options {
	opts := gitctx.Options{
		Include:         cfg.Include,
		Exclude:         cfg.Exclude,
		MaxContentBytes: cfg.Budget.MaxContentBytes,
	}
	if flagPaths != "" {
		opts.Include = splitComma(flagPaths)
	}
	if flagExclude != "" {
		opts.Exclude = append(append([]string(nil), opts.Exclude...), splitComma(flagExclude)...)
	}
	return opts
}

// filterRecords keeps the records whose path is included and not excluded.
func filterRecords(records []batch.ChangeRecord, include, exclude []string) []batch.ChangeRecord {
	var out []batch.ChangeRecord
	for _, rec := range records {
		if len(include) > 0 && !gitctx.MatchesAny(rec.Path, include) {
			continue
		}
		if gitctx.MatchesAny(rec.Path, exclude) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func init() {
	checkCmd.PersistentFlags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown)")
	checkCmd.PersistentFlags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	checkCmd.PersistentFlags().IntVar(&flagMaxTokens, "max-tokens", 0, "Token budget of one request")
	checkCmd.PersistentFlags().StringVar(&flagPaths, "paths", "", "Include file path globs (comma-separated)")
	checkCmd.PersistentFlags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs (comma-separated)")
	checkCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Plan batches without calling the safety service")
	checkCmd.PersistentFlags().BoolVar(&flagNoComment, "no-comment", false, "Do not post the verdict as a PR comment")
	checkCmd.PersistentFlags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")

	checkPRCmd.Flags().StringVar(&flagOwner, "owner", "", "Repository owner (default: from git remote)")
	checkPRCmd.Flags().StringVar(&flagRepo, "repo", "", "Repository name (default: from git remote)")
	checkRangeCmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Diff from the merge base of the range")

	checkCmd.AddCommand(checkPRCmd)
	checkCmd.AddCommand(checkRangeCmd)
}
