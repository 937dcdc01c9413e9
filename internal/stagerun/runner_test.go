package stagerun_test

import (
	"context"
	"errors"
	"testing"

	"gavel/internal/config"
	"gavel/internal/hearings"
	"gavel/internal/matching"
	"gavel/internal/registry"
	"gavel/internal/review"
	"gavel/internal/stage"
	"gavel/internal/stagerun"
	"gavel/internal/testsupport"
	"gavel/internal/workers"
)

type fakeClient struct {
	result   workers.RunResult
	err      error
	requests []workers.RunRequest
}

func (f *fakeClient) Run(_ context.Context, req workers.RunRequest) (workers.RunResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return workers.RunResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeClient) Ping(context.Context) error { return f.err }

type runEnv struct {
	cfg      *config.Config
	store    *hearings.Store
	registry *registry.Store
	queue    *review.Queue
}

func newRunEnv(t *testing.T) *runEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reg := registry.NewStore(store.DB())
	queue := review.NewQueue(review.NewStore(store.DB()), store, reg, matching.NewPolicy(cfg), nil)
	return &runEnv{cfg: cfg, store: store, registry: reg, queue: queue}
}

func (e *runEnv) runner(t *testing.T, opts ...stagerun.Option) *stagerun.Runner {
	t.Helper()
	matcher := matching.NewMatcher(e.registry, e.cfg)
	policy := matching.NewPolicy(e.cfg)
	return stagerun.New(e.cfg, e.store, e.queue, matcher, policy, e.registry, nil, opts...)
}

func mustOp(t *testing.T, name string) stage.Op {
	t.Helper()
	op, ok := stage.OpByName(name)
	if !ok {
		t.Fatalf("unknown op %s", name)
	}
	return op
}

func TestRunStageAdvancesHearing(t *testing.T) {
	env := newRunEnv(t)
	ctx := context.Background()

	hearing := testsupport.NewHearing(t, env.store, "CA", "Session", "https://s.example/1")
	worker := &fakeClient{result: workers.RunResult{Cost: 1.25}}
	runner := env.runner(t, stagerun.WithClient("download", worker))

	outcome, err := runner.RunStage(ctx, mustOp(t, "download"), nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}
	if outcome.Eligible != 1 || outcome.Processed != 1 || outcome.Failed != 0 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Cost != 1.25 {
		t.Errorf("cost = %v", outcome.Cost)
	}
	if len(worker.requests) != 1 || worker.requests[0].HearingID != hearing.ID {
		t.Fatalf("worker requests = %+v", worker.requests)
	}

	after, err := env.store.GetByID(ctx, hearing.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Stage != hearings.StageDownloaded || after.Status != hearings.StatusPending {
		t.Errorf("hearing = %s/%s", after.Stage, after.Status)
	}
	if after.Cost != 1.25 {
		t.Errorf("hearing cost = %v", after.Cost)
	}
}

func TestRunStageEmptySetIsNoOp(t *testing.T) {
	env := newRunEnv(t)
	runner := env.runner(t, stagerun.WithClient("transcribe", &fakeClient{}))

	outcome, err := runner.RunStage(context.Background(), mustOp(t, "transcribe"), nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}
	if outcome.Eligible != 0 || outcome.Processed != 0 || outcome.Failed != 0 {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestRunStageWorkerFailureMarksOnlyAffectedHearing(t *testing.T) {
	env := newRunEnv(t)
	ctx := context.Background()

	failing := testsupport.NewHearing(t, env.store, "CA", "Bad", "https://s.example/2")
	healthy := testsupport.NewHearing(t, env.store, "CA", "Good", "https://s.example/3")

	calls := 0
	worker := &switchClient{run: func(req workers.RunRequest) (workers.RunResult, error) {
		calls++
		if req.HearingID == failing.ID {
			return workers.RunResult{}, workers.Wrap(workers.ErrWorker, "download", "run", "boom", nil)
		}
		return workers.RunResult{Cost: 0.5}, nil
	}}
	runner := env.runner(t, stagerun.WithClient("download", worker))

	outcome, err := runner.RunStage(ctx, mustOp(t, "download"), nil, nil, 0, nil)
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}
	if calls != 2 {
		t.Fatalf("worker calls = %d, want sweep to continue past failure", calls)
	}
	if outcome.Processed != 1 || outcome.Failed != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}

	failed, err := env.store.GetByID(ctx, failing.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if failed.Status != hearings.StatusError {
		t.Errorf("failed hearing status = %s", failed.Status)
	}
	if failed.Stage != hearings.StageDiscovered {
		t.Errorf("failed hearing stage = %s, want unchanged", failed.Stage)
	}
	if failed.RetryCount != 1 {
		t.Errorf("retry count = %d", failed.RetryCount)
	}
	if failed.LastError == "" {
		t.Error("expected recorded error message")
	}

	ok, err := env.store.GetByID(ctx, healthy.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if ok.Stage != hearings.StageDownloaded {
		t.Errorf("healthy hearing stage = %s", ok.Stage)
	}
}

type switchClient struct {
	run func(workers.RunRequest) (workers.RunResult, error)
}

func (s *switchClient) Run(_ context.Context, req workers.RunRequest) (workers.RunResult, error) {
	return s.run(req)
}

func (s *switchClient) Ping(context.Context) error { return nil }

func TestAnalyzeCreatesCandidatesAndHoldsForReview(t *testing.T) {
	env := newRunEnv(t)
	ctx := context.Background()

	hearing := testsupport.NewHearing(t, env.store, "CA", "Session", "https://s.example/4")
	hearing.Stage = hearings.StageTranscribed
	if err := env.store.Update(ctx, hearing); err != nil {
		t.Fatalf("Update: %v", err)
	}

	worker := &fakeClient{result: workers.RunResult{
		Cost: 2.0,
		References: []workers.Reference{
			{EntityType: "utility", RawText: "Granite State Power"},
			{EntityType: "docket", RawText: "general remarks"},
			{EntityType: "witness", RawText: "ignored type"},
		},
	}}
	runner := env.runner(t, stagerun.WithClient("analyze", worker))

	if _, err := runner.RunStage(ctx, mustOp(t, "analyze"), nil, nil, 0, nil); err != nil {
		t.Fatalf("RunStage: %v", err)
	}

	after, err := env.store.GetByID(ctx, hearing.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Stage != hearings.StageAnalyzed {
		t.Fatalf("stage = %s, want analyzed while review is pending", after.Stage)
	}

	candidates, err := env.queue.Store().ListByHearing(ctx, hearing.ID)
	if err != nil {
		t.Fatalf("ListByHearing: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2 (unknown type dropped)", len(candidates))
	}

	byType := map[registry.EntityType]*review.Candidate{}
	for _, c := range candidates {
		byType[c.EntityType] = c
	}
	if utility := byType[registry.TypeUtility]; utility == nil || utility.Status != review.CandidatePending {
		t.Errorf("utility candidate = %+v, want pending", utility)
	}
	if docket := byType[registry.TypeDocket]; docket == nil || docket.Status != review.CandidateRejected {
		t.Errorf("malformed docket candidate = %+v, want auto-rejected", docket)
	}
}

func TestAnalyzeAutoAcceptAdvancesThroughGate(t *testing.T) {
	env := newRunEnv(t)
	ctx := context.Background()

	entity, err := env.registry.Create(ctx, registry.TypeDocket, "R.24-07-011", "", registry.Metadata{})
	if err != nil {
		t.Fatalf("Create entity: %v", err)
	}

	hearing := testsupport.NewHearing(t, env.store, "CA", "Session", "https://s.example/5")
	hearing.Stage = hearings.StageTranscribed
	if err := env.store.Update(ctx, hearing); err != nil {
		t.Fatalf("Update: %v", err)
	}

	worker := &fakeClient{result: workers.RunResult{
		References: []workers.Reference{{EntityType: "docket", RawText: "R.24-07-011"}},
	}}
	runner := env.runner(t, stagerun.WithClient("analyze", worker))

	if _, err := runner.RunStage(ctx, mustOp(t, "analyze"), nil, nil, 0, nil); err != nil {
		t.Fatalf("RunStage: %v", err)
	}

	after, err := env.store.GetByID(ctx, hearing.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Stage != hearings.StageReview {
		t.Errorf("stage = %s, want review (gate advanced, nothing pending)", after.Stage)
	}

	linked, err := env.registry.GetByID(ctx, entity.ID)
	if err != nil {
		t.Fatalf("GetByID entity: %v", err)
	}
	if linked.MentionCount != 1 {
		t.Errorf("mention count = %d", linked.MentionCount)
	}
}

func TestExtractCompletesWhenNothingPending(t *testing.T) {
	env := newRunEnv(t)
	ctx := context.Background()

	hearing := testsupport.NewHearing(t, env.store, "CA", "Session", "https://s.example/6")
	hearing.Stage = hearings.StageReview
	if err := env.store.Update(ctx, hearing); err != nil {
		t.Fatalf("Update: %v", err)
	}

	worker := &fakeClient{result: workers.RunResult{Cost: 0.75}}
	runner := env.runner(t, stagerun.WithClient("extract", worker))

	if _, err := runner.RunStage(ctx, mustOp(t, "extract"), nil, nil, 0, nil); err != nil {
		t.Fatalf("RunStage: %v", err)
	}

	after, err := env.store.GetByID(ctx, hearing.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.Stage != hearings.StageComplete || after.Status != hearings.StatusComplete {
		t.Errorf("hearing = %s/%s, want complete/complete", after.Stage, after.Status)
	}
}

func TestProcessHearingRejectsIneligible(t *testing.T) {
	env := newRunEnv(t)
	ctx := context.Background()

	hearing := testsupport.NewHearing(t, env.store, "CA", "Session", "https://s.example/7")
	runner := env.runner(t, stagerun.WithClient("transcribe", &fakeClient{}))

	if _, err := runner.ProcessHearing(ctx, mustOp(t, "transcribe"), hearing); !errors.Is(err, workers.ErrConflict) {
		t.Errorf("ineligible hearing error = %v, want conflict", err)
	}
}

func TestDiscoverCreatesHearings(t *testing.T) {
	env := newRunEnv(t)
	ctx := context.Background()

	testsupport.NewHearing(t, env.store, "CA", "Known", "https://d.example/existing")

	worker := &fakeClient{result: workers.RunResult{
		Cost:    0.2,
		Sources: 3,
		Discovered: []workers.Discovered{
			{StateCode: "CA", Title: "New Session", SourceURL: "https://d.example/new"},
			{StateCode: "CA", Title: "Known", SourceURL: "https://d.example/existing"},
		},
	}}
	runner := env.runner(t, stagerun.WithClient(stage.OpDiscover, worker))

	sources, created, cost, err := runner.Discover(ctx, []string{"CA"})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if sources != 3 {
		t.Errorf("sources = %d", sources)
	}
	if created != 1 {
		t.Errorf("created = %d, want only the unseen hearing", created)
	}
	if cost != 0.2 {
		t.Errorf("cost = %v", cost)
	}

	all, err := env.store.List(ctx, hearings.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("total hearings = %d, want 2", len(all))
	}
}

func TestHealthReportsWorkerState(t *testing.T) {
	env := newRunEnv(t)
	runner := env.runner(t,
		stagerun.WithClient("download", &fakeClient{}),
		stagerun.WithClient("analyze", &fakeClient{err: workers.Wrap(workers.ErrWorker, "analyze", "ping", "worker unreachable", nil)}),
	)

	checks := runner.Health(context.Background())
	byName := map[string]stage.Health{}
	for _, check := range checks {
		byName[check.Name] = check
	}
	if !byName["download"].Ready {
		t.Error("download should be ready")
	}
	if byName["analyze"].Ready {
		t.Error("analyze should be unready")
	}
	if byName["analyze"].Detail == "" {
		t.Error("unready workers should carry a detail message")
	}
}
