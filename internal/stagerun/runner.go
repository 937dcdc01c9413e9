// Package stagerun executes pipeline stages: it selects eligible hearings,
// dispatches them to the bound worker, persists the outcome, and routes any
// emitted entity references through matching into the review queue.
package stagerun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"gavel/internal/config"
	"gavel/internal/hearings"
	"gavel/internal/logging"
	"gavel/internal/matching"
	"gavel/internal/registry"
	"gavel/internal/review"
	"gavel/internal/stage"
	"gavel/internal/workers"
)

// Runner drives worker-backed stage execution.
type Runner struct {
	store    *hearings.Store
	queue    *review.Queue
	matcher  *matching.Matcher
	policy   *matching.Policy
	registry *registry.Store
	clients  map[string]workers.Client
	logger   *slog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClient overrides the worker client for one stage op. Used by tests and
// by the daemon when a worker needs special transport settings.
func WithClient(name string, client workers.Client) Option {
	return func(r *Runner) {
		r.clients[name] = client
	}
}

// New builds a runner with HTTP clients for every configured worker.
func New(cfg *config.Config, store *hearings.Store, queue *review.Queue, matcher *matching.Matcher, policy *matching.Policy, registryStore *registry.Store, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Workers.RequestTimeout) * time.Second
	clients := map[string]workers.Client{
		stage.OpDiscover: workers.NewHTTPClient(stage.OpDiscover, cfg.Workers.DiscoverURL, timeout),
		"download":       workers.NewHTTPClient("download", cfg.Workers.DownloadURL, timeout),
		"transcribe":     workers.NewHTTPClient("transcribe", cfg.Workers.TranscribeURL, timeout),
		"analyze":        workers.NewHTTPClient("analyze", cfg.Workers.AnalyzeURL, timeout),
		"extract":        workers.NewHTTPClient("extract", cfg.Workers.ExtractURL, timeout),
	}

	runner := &Runner{
		store:    store,
		queue:    queue,
		matcher:  matcher,
		policy:   policy,
		registry: registryStore,
		clients:  clients,
		logger:   logging.NewComponentLogger(logger, "stagerun"),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Outcome summarizes one stage sweep.
type Outcome struct {
	Op        string
	Eligible  int
	Processed int
	Failed    int
	Cost      float64
}

// RunStage processes every eligible hearing for one stage op, sequentially,
// optionally narrowed to explicit hearing ids or state codes. An empty
// eligible set is a successful no-op. Worker failures mark the affected
// hearing errored and the sweep continues; cancellation stops it.
//
// A non-nil gate runs before each hearing with the outcome so far; a gate
// error stops the sweep and is returned with the partial outcome. The
// orchestrator uses it to hold while paused and to enforce run ceilings.
func (r *Runner) RunStage(ctx context.Context, op stage.Op, hearingIDs []int64, states []string, limit int, gate func(Outcome) error) (*Outcome, error) {
	eligible, err := r.store.EligibleForStage(ctx, op.From, limit)
	if err != nil {
		return nil, err
	}
	eligible = selectHearings(eligible, hearingIDs, states)

	outcome := &Outcome{Op: op.Name, Eligible: len(eligible)}
	for _, hearing := range eligible {
		if gate != nil {
			if gateErr := gate(*outcome); gateErr != nil {
				return outcome, gateErr
			}
		}
		cost, procErr := r.ProcessHearing(ctx, op, hearing)
		outcome.Cost += cost
		if procErr != nil {
			if errors.Is(procErr, context.Canceled) {
				return outcome, procErr
			}
			outcome.Failed++
			continue
		}
		outcome.Processed++
	}

	r.logger.InfoContext(ctx, "stage sweep finished",
		logging.String(logging.FieldStage, op.Name),
		logging.Int("eligible", outcome.Eligible),
		logging.Int("processed", outcome.Processed),
		logging.Int("failed", outcome.Failed),
		logging.Float64("cost", outcome.Cost))
	return outcome, nil
}

// selectHearings narrows an eligible set to the requested hearing ids and
// state codes. Empty selectors keep the whole set.
func selectHearings(eligible []*hearings.Hearing, hearingIDs []int64, states []string) []*hearings.Hearing {
	wantID := make(map[int64]struct{}, len(hearingIDs))
	for _, id := range hearingIDs {
		wantID[id] = struct{}{}
	}
	wantState := make(map[string]struct{}, len(states))
	for _, state := range states {
		wantState[strings.ToUpper(strings.TrimSpace(state))] = struct{}{}
	}

	selected := eligible[:0]
	for _, hearing := range eligible {
		if len(wantID) > 0 {
			if _, ok := wantID[hearing.ID]; !ok {
				continue
			}
		}
		if len(wantState) > 0 {
			if _, ok := wantState[hearing.StateCode]; !ok {
				continue
			}
		}
		selected = append(selected, hearing)
	}
	return selected
}

// ProcessHearing runs one hearing through one stage op. The hearing is
// marked running for the duration; failure persists the error and returns
// it, success advances the stage and settles any emitted candidates.
func (r *Runner) ProcessHearing(ctx context.Context, op stage.Op, hearing *hearings.Hearing) (float64, error) {
	client, ok := r.clients[op.Name]
	if !ok {
		return 0, fmt.Errorf("%w: no worker bound for stage %s", workers.ErrValidation, op.Name)
	}
	if hearing.Stage != op.From || hearing.Status != hearings.StatusPending {
		return 0, fmt.Errorf("%w: hearing %d is %s/%s, not eligible for %s",
			workers.ErrConflict, hearing.ID, hearing.Stage, hearing.Status, op.Name)
	}

	ctx = workers.WithHearingID(ctx, hearing.ID)
	ctx = workers.WithStage(ctx, op.Name)
	ctx = workers.WithRequestID(ctx, uuid.NewString())
	log := logging.WithContext(ctx, r.logger)

	hearing.Status = hearings.StatusRunning
	if err := r.store.Update(ctx, hearing); err != nil {
		return 0, err
	}

	result, err := client.Run(ctx, workers.RunRequest{
		HearingID: hearing.ID,
		StateCode: hearing.StateCode,
		SourceURL: hearing.SourceURL,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown or stop, not a worker fault. Leave the hearing
			// selectable for the next run.
			hearing.Status = hearings.StatusPending
			if updateErr := r.store.Update(context.WithoutCancel(ctx), hearing); updateErr != nil {
				return 0, updateErr
			}
			return 0, err
		}
		details := workers.Describe(err)
		hearing.SetFailed(details.Message)
		if updateErr := r.store.Update(ctx, hearing); updateErr != nil {
			return 0, updateErr
		}
		log.WarnContext(ctx, "worker failed",
			logging.Error(err),
			logging.Bool("retryable", workers.IsRetryable(err)))
		return 0, err
	}

	if result.Cost > 0 {
		if err := r.store.AddCost(ctx, hearing.ID, result.Cost); err != nil {
			return result.Cost, err
		}
		hearing.Cost += result.Cost
	}

	if op.EmitsCandidates {
		if err := r.settleReferences(ctx, hearing, result.References); err != nil {
			hearing.SetFailed(workers.Describe(err).Message)
			if updateErr := r.store.Update(ctx, hearing); updateErr != nil {
				return result.Cost, updateErr
			}
			return result.Cost, err
		}
	}

	hearing.Stage = op.To
	hearing.Status = hearings.StatusPending
	hearing.LastError = ""
	if err := r.store.Update(ctx, hearing); err != nil {
		return result.Cost, err
	}

	if op.EmitsCandidates {
		if err := r.queue.MaybeAdvance(ctx, hearing.ID); err != nil {
			return result.Cost, err
		}
	}

	log.InfoContext(ctx, "stage advanced",
		logging.String("to", string(op.To)),
		logging.Int("references", len(result.References)),
		logging.Float64("cost", result.Cost))
	return result.Cost, nil
}

// settleReferences scores each emitted reference and records it as a
// candidate: auto-accepted ones link immediately, the rest wait for review.
func (r *Runner) settleReferences(ctx context.Context, hearing *hearings.Hearing, references []workers.Reference) error {
	for _, ref := range references {
		entityType, ok := registry.ParseEntityType(ref.EntityType)
		if !ok {
			r.logger.WarnContext(ctx, "worker emitted unknown entity type",
				logging.Int64(logging.FieldHearingID, hearing.ID),
				logging.String("entity_type", ref.EntityType))
			continue
		}

		match, err := r.matcher.Match(ctx, entityType, ref.RawText, ref.Context)
		if err != nil {
			return err
		}
		decision, reason := r.policy.Classify(entityType, match)

		candidate := &review.Candidate{
			HearingID:      hearing.ID,
			EntityType:     entityType,
			RawText:        ref.RawText,
			Normalized:     match.Normalized,
			Classification: match.Classification,
			Confidence:     match.Confidence,
			Suggestions:    match.Suggestions,
			ReviewReason:   reason,
		}
		switch decision {
		case matching.DecisionAutoAccept:
			candidate.Status = review.CandidateApproved
			candidate.EntityID = match.Entity.ID
		case matching.DecisionAutoReject:
			candidate.Status = review.CandidateRejected
		default:
			candidate.Status = review.CandidatePending
		}

		if _, err := r.queue.Store().Create(ctx, candidate); err != nil {
			return err
		}
		if decision == matching.DecisionAutoAccept {
			if err := r.registry.IncrementMention(ctx, match.Entity.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Discover asks the discovery worker for new hearings within the scoped
// states and records the previously unseen ones.
func (r *Runner) Discover(ctx context.Context, stateCodes []string) (sources int, created int, cost float64, err error) {
	client := r.clients[stage.OpDiscover]

	seen := 0
	for _, stateCode := range stateCodes {
		result, runErr := client.Run(ctx, workers.RunRequest{StateCode: stateCode})
		if runErr != nil {
			return sources, created, cost, runErr
		}
		sources += result.Sources
		cost += result.Cost
		for _, found := range result.Discovered {
			_, wasNew, newErr := r.store.NewHearing(ctx, found.StateCode, found.Title, found.HearingDate, found.SourceURL)
			if newErr != nil {
				return sources, created, cost, newErr
			}
			seen++
			if wasNew {
				created++
			}
		}
	}

	r.logger.InfoContext(ctx, "discovery finished",
		logging.Int("sources", sources),
		logging.Int("seen", seen),
		logging.Int("created", created),
		logging.Float64("cost", cost))
	return sources, created, cost, nil
}

// Health probes every bound worker.
func (r *Runner) Health(ctx context.Context) []stage.Health {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make([]stage.Health, 0, len(names))
	for _, name := range names {
		check := stage.Health{Name: name, Ready: true}
		if probe, ok := r.clients[name].(interface{ Endpoint() string }); ok {
			check.Endpoint = probe.Endpoint()
		}
		if err := r.clients[name].Ping(ctx); err != nil {
			check.Ready = false
			check.Detail = workers.Describe(err).Message
		}
		checks = append(checks, check)
	}
	return checks
}
