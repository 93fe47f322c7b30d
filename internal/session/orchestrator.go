package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/prguard/internal/apperr"
	"github.com/dshills/prguard/internal/batch"
	"github.com/dshills/prguard/internal/safety"
	"github.com/dshills/prguard/internal/tokenizer"
)

// Classifier checks one batch. *safety.Client implements it.
type Classifier interface {
	Check(ctx context.Context, req safety.Request) (safety.Response, error)
}

// Config is the run configuration.
type Config struct {
	DeploymentID string
	MaxUnits     int
	SafetyMargin int
	Tokenizer    tokenizer.Tokenizer
}

// State is a step of a run.
type State int

const (
	StateInit State = iota
	StateFormatting
	StatePlanning
	StateSending
	StateAggregated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFormatting:
		return "formatting"
	case StatePlanning:
		return "planning"
	case StateSending:
		return "sending"
	case StateAggregated:
		return "aggregated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Orchestrator runs analyses. It holds no state between runs.
type Orchestrator struct {
	cfg        Config
	classifier Classifier
	logger     *slog.Logger
	newID      func() string
}

// Option is a function that configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithSessionIDFunc replaces the session id generator.
func WithSessionIDFunc(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newID = fn
	}
}

// New creates an Orchestrator.
func New(cfg Config, classifier Classifier, opts ...Option) (*Orchestrator, error) {
	if strings.TrimSpace(cfg.DeploymentID) == "" {
		return nil, apperr.Configf("session", "deployment id is not set")
	}
	if cfg.Tokenizer == nil {
		return nil, apperr.Configf("session", "tokenizer is not set")
	}
	if cfg.MaxUnits <= 0 {
		return nil, apperr.Configf("session", "token budget must be positive, got %d", cfg.MaxUnits)
	}
	o := &Orchestrator{
		cfg:        cfg,
		classifier: classifier,
		logger:     slog.Default(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Planner returns the batch planner for the orchestrator's budget.
func (o *Orchestrator) Planner() batch.Planner {
	return batch.Planner{
		Tokenizer:    o.cfg.Tokenizer,
		MaxUnits:     o.cfg.MaxUnits,
		SafetyMargin: o.cfg.SafetyMargin,
	}
}

// Plan formats and packs records without contacting the safety service.
func (o *Orchestrator) Plan(records []batch.ChangeRecord, commitMsgs string) (batch.Plan, error) {
	return o.Planner().PlanRecords(records, commitMsgs)
}

// Analyze runs a full analysis of one pull request. With no records and no
// commit text it returns a skipped verdict without any request. With commit
// text but no records, a single batch holding only the commit messages is
// sent.
func (o *Orchestrator) Analyze(ctx context.Context, records []batch.ChangeRecord, commitMsgs string) (*Verdict, error) {
	sessionID := o.newID()
	r := &run{logger: o.logger.With("session_id", sessionID), state: StateInit}

	if len(records) == 0 && strings.TrimSpace(commitMsgs) == "" {
		r.logger.Info("nothing to analyze")
		return &Verdict{
			SessionID: sessionID,
			Skipped:   true,
			Policies:  map[string]safety.Policy{},
		}, nil
	}

	r.transition(StateFormatting, "records", len(records))
	r.transition(StatePlanning)
	plan, err := o.Plan(records, commitMsgs)
	if err != nil {
		r.fail(err)
		return nil, err
	}
	batches := plan.Batches
	if len(batches) == 0 {
		batches = []batch.Batch{{}}
	}

	r.transition(StateSending, "batches", len(batches), "overhead", plan.Overhead, "available", plan.Available)
	v, err := o.Run(ctx, batches, commitMsgs, sessionID)
	if err != nil {
		r.fail(err)
		return nil, err
	}
	for _, rec := range records {
		v.Files++
		v.Additions += rec.Additions
		v.Deletions += rec.Deletions
	}
	r.transition(StateAggregated, "flagged", v.Flagged, "policies", len(v.Policies))
	return v, nil
}

// Run sends batches in order under one session id and aggregates the
// responses. Only the policies of flagged batches are merged into the
// verdict. The first failed batch aborts the run; no verdict is returned.
func (o *Orchestrator) Run(ctx context.Context, batches []batch.Batch, commitMsgs, sessionID string) (*Verdict, error) {
	v := &Verdict{
		SessionID: sessionID,
		Policies:  map[string]safety.Policy{},
	}
	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Transportf("session", err, "batch %d of %d not sent", i+1, len(batches))
		}
		req := safety.Request{
			DeploymentID:      o.cfg.DeploymentID,
			InternalSessionID: sessionID,
			Messages: []safety.Message{{
				Role:    safety.RoleUser,
				Content: batch.BuildContent(commitMsgs, b),
			}},
		}
		o.logger.Debug("sending batch",
			"session_id", sessionID,
			"batch", i+1,
			"of", len(batches),
			"files", len(b.Blocks),
			"units", b.Units,
		)
		resp, err := o.classifier.Check(ctx, req)
		if err != nil {
			if apperr.IsTransport(err) || apperr.IsConfig(err) {
				return nil, fmt.Errorf("batch %d of %d: %w", i+1, len(batches), err)
			}
			return nil, apperr.Transportf("session", err, "batch %d of %d", i+1, len(batches))
		}
		if resp.Flagged {
			v.Flagged = true
			MergePolicies(v.Policies, resp.Policies)
		}
		if resp.Raw != nil {
			v.Responses = append(v.Responses, resp.Raw)
		}
		v.BatchCount++
	}
	return v, nil
}

type run struct {
	logger *slog.Logger
	state  State
}

func (r *run) transition(next State, attrs ...any) {
	args := append([]any{"from", r.state.String(), "to", next.String()}, attrs...)
	r.logger.Debug("session state", args...)
	r.state = next
}

func (r *run) fail(err error) {
	r.logger.Error("session failed", "state", r.state.String(), "error", err)
	r.state = StateFailed
}
