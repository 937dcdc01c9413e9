package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gavel/internal/hearings"
	"gavel/internal/orchestrator"
	"gavel/internal/scheduler"
	"gavel/internal/testsupport"
	"gavel/internal/workers"
)

func newScheduleStore(t *testing.T) *scheduler.Store {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	return scheduler.NewStore(store.DB())
}

func TestScheduleValidation(t *testing.T) {
	cases := []struct {
		name     string
		schedule scheduler.Schedule
		wantErr  bool
	}{
		{"interval", scheduler.Schedule{Name: "hourly", Trigger: scheduler.TriggerInterval, Value: "1h", Target: scheduler.TargetPipeline}, false},
		{"daily", scheduler.Schedule{Name: "morning", Trigger: scheduler.TriggerDaily, Value: "06:30", Target: scheduler.TargetPipeline}, false},
		{"cron", scheduler.Schedule{Name: "weekdays", Trigger: scheduler.TriggerCron, Value: "0 7 * * 1-5", Target: scheduler.TargetAll}, false},
		{"empty value", scheduler.Schedule{Name: "x", Trigger: scheduler.TriggerInterval, Value: "", Target: scheduler.TargetPipeline}, true},
		{"bad interval", scheduler.Schedule{Name: "x", Trigger: scheduler.TriggerInterval, Value: "soon", Target: scheduler.TargetPipeline}, true},
		{"negative interval", scheduler.Schedule{Name: "x", Trigger: scheduler.TriggerInterval, Value: "-5m", Target: scheduler.TargetPipeline}, true},
		{"bad daily", scheduler.Schedule{Name: "x", Trigger: scheduler.TriggerDaily, Value: "25:99", Target: scheduler.TargetPipeline}, true},
		{"bad cron", scheduler.Schedule{Name: "x", Trigger: scheduler.TriggerCron, Value: "not cron", Target: scheduler.TargetPipeline}, true},
		{"bad trigger", scheduler.Schedule{Name: "x", Trigger: scheduler.TriggerType("weekly"), Value: "1h", Target: scheduler.TargetPipeline}, true},
		{"bad target", scheduler.Schedule{Name: "x", Trigger: scheduler.TriggerInterval, Value: "1h", Target: scheduler.Target("report")}, true},
		{"no name", scheduler.Schedule{Trigger: scheduler.TriggerInterval, Value: "1h", Target: scheduler.TargetPipeline}, true},
	}
	for _, tc := range cases {
		err := tc.schedule.Validate()
		if tc.wantErr && !errors.Is(err, workers.ErrValidation) {
			t.Errorf("%s: err = %v, want validation", tc.name, err)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected err %v", tc.name, err)
		}
	}
}

func TestNextAfter(t *testing.T) {
	ref := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)

	interval := scheduler.Schedule{Trigger: scheduler.TriggerInterval, Value: "2h"}
	next, err := interval.NextAfter(ref)
	if err != nil {
		t.Fatalf("NextAfter interval: %v", err)
	}
	if want := ref.Add(2 * time.Hour); !next.Equal(want) {
		t.Errorf("interval next = %v, want %v", next, want)
	}

	daily := scheduler.Schedule{Trigger: scheduler.TriggerDaily, Value: "06:30"}
	next, err = daily.NextAfter(ref)
	if err != nil {
		t.Fatalf("NextAfter daily: %v", err)
	}
	if want := time.Date(2026, 3, 11, 6, 30, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("daily next = %v, want tomorrow morning, got %v", next, want)
	}

	sameDay := scheduler.Schedule{Trigger: scheduler.TriggerDaily, Value: "23:00"}
	next, err = sameDay.NextAfter(ref)
	if err != nil {
		t.Fatalf("NextAfter daily same day: %v", err)
	}
	if want := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("daily same-day next = %v, want %v", next, want)
	}

	cronSched := scheduler.Schedule{Trigger: scheduler.TriggerCron, Value: "0 9 * * *"}
	next, err = cronSched.NextAfter(ref)
	if err != nil {
		t.Fatalf("NextAfter cron: %v", err)
	}
	if want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("cron next = %v, want %v", next, want)
	}
}

func TestStoreCRUD(t *testing.T) {
	store := newScheduleStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, &scheduler.Schedule{
		Name:       "hourly-ca",
		Trigger:    scheduler.TriggerInterval,
		Value:      "1h",
		Enabled:    true,
		MaxCost:    10,
		StateScope: []string{"CA", "NV"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Target != scheduler.TargetPipeline {
		t.Errorf("default target = %s", created.Target)
	}
	if created.NextRunAt == nil {
		t.Fatal("create should seed next_run_at")
	}

	if _, err := store.Create(ctx, &scheduler.Schedule{
		Name: "hourly-ca", Trigger: scheduler.TriggerInterval, Value: "2h",
	}); !errors.Is(err, workers.ErrConflict) {
		t.Errorf("duplicate name error = %v, want conflict", err)
	}

	loaded, err := store.GetByName(ctx, "hourly-ca")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if len(loaded.StateScope) != 2 || loaded.StateScope[0] != "CA" {
		t.Errorf("state scope = %v", loaded.StateScope)
	}

	loaded.Value = "30m"
	if err := store.Update(ctx, loaded); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := store.SetEnabled(ctx, loaded.ID, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	disabled, err := store.GetByID(ctx, loaded.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if disabled.Enabled {
		t.Error("schedule should be disabled")
	}

	if err := store.Delete(ctx, loaded.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, loaded.ID); !errors.Is(err, workers.ErrNotFound) {
		t.Errorf("double delete error = %v, want not found", err)
	}
}

type fakePipeline struct {
	busy    bool
	started []orchestrator.StartOptions
	err     error
}

func (f *fakePipeline) Busy() bool { return f.busy }

func (f *fakePipeline) Start(_ context.Context, opts orchestrator.StartOptions) (*hearings.PipelineRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.started = append(f.started, opts)
	return &hearings.PipelineRun{ID: int64(len(f.started))}, nil
}

func tickEnv(t *testing.T, pipeline *fakePipeline) (*scheduler.Manager, *scheduler.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	schedStore := scheduler.NewStore(store.DB())
	return scheduler.NewManager(cfg, schedStore, pipeline, nil), schedStore
}

func dueSchedule(t *testing.T, store *scheduler.Store, name string, target scheduler.Target) *scheduler.Schedule {
	t.Helper()
	schedule, err := store.Create(context.Background(), &scheduler.Schedule{
		Name:        name,
		Trigger:     scheduler.TriggerInterval,
		Value:       "1h",
		Target:      target,
		Enabled:     true,
		MaxCost:     5,
		MaxHearings: 3,
		StateScope:  []string{"CA"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return schedule
}

func TestTickFiresDueSchedule(t *testing.T) {
	pipeline := &fakePipeline{}
	manager, store := tickEnv(t, pipeline)
	ctx := context.Background()

	schedule := dueSchedule(t, store, "hourly", scheduler.TargetPipeline)

	// Not due yet.
	if err := manager.Tick(ctx, time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(pipeline.started) != 0 {
		t.Fatal("schedule fired before its time")
	}

	fireAt := schedule.NextRunAt.Add(time.Minute)
	if err := manager.Tick(ctx, fireAt); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(pipeline.started) != 1 {
		t.Fatalf("started = %d", len(pipeline.started))
	}
	opts := pipeline.started[0]
	if opts.MaxCost != 5 || opts.MaxHearings != 3 {
		t.Errorf("ceilings = %+v", opts)
	}
	if len(opts.States) != 1 || opts.States[0] != "CA" {
		t.Errorf("states = %v", opts.States)
	}
	if opts.DiscoverOnly {
		t.Error("pipeline target should not be discover-only")
	}

	after, err := store.GetByID(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.LastRunStatus != scheduler.OutcomeOK {
		t.Errorf("last run status = %q", after.LastRunStatus)
	}
	if after.LastRunAt == nil || !after.LastRunAt.Equal(fireAt) {
		t.Errorf("last run at = %v", after.LastRunAt)
	}
	if after.NextRunAt == nil || !after.NextRunAt.Equal(fireAt.Add(time.Hour)) {
		t.Errorf("next run at = %v, want measured from the firing", after.NextRunAt)
	}
}

func TestIntervalMeasuredFromRunCompletion(t *testing.T) {
	pipeline := &fakePipeline{}
	manager, store := tickEnv(t, pipeline)
	ctx := context.Background()

	schedule := dueSchedule(t, store, "hourly", scheduler.TargetPipeline)
	fireAt := schedule.NextRunAt.Add(time.Minute)
	if err := manager.Tick(ctx, fireAt); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(pipeline.started) != 1 {
		t.Fatalf("started = %d", len(pipeline.started))
	}

	// While the run is in flight the provisional next firing holds.
	pipeline.busy = true
	if err := manager.Tick(ctx, fireAt.Add(10*time.Minute)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	during, err := store.GetByID(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if during.NextRunAt == nil || !during.NextRunAt.Equal(fireAt.Add(time.Hour)) {
		t.Errorf("mid-run next = %v, want %v", during.NextRunAt, fireAt.Add(time.Hour))
	}

	// The first tick after the run finishes pushes the next firing one full
	// interval past the completion, not past the start.
	pipeline.busy = false
	idleAt := fireAt.Add(25 * time.Minute)
	if err := manager.Tick(ctx, idleAt); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	after, err := store.GetByID(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.NextRunAt == nil || !after.NextRunAt.Equal(idleAt.Add(time.Hour)) {
		t.Errorf("next run = %v, want %v", after.NextRunAt, idleAt.Add(time.Hour))
	}
	if len(pipeline.started) != 1 {
		t.Errorf("started = %d, rescheduling must not fire the pipeline", len(pipeline.started))
	}
}

func TestTickSkipsWhileBusy(t *testing.T) {
	pipeline := &fakePipeline{busy: true}
	manager, store := tickEnv(t, pipeline)
	ctx := context.Background()

	schedule := dueSchedule(t, store, "hourly", scheduler.TargetPipeline)
	fireAt := schedule.NextRunAt.Add(time.Minute)

	if err := manager.Tick(ctx, fireAt); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(pipeline.started) != 0 {
		t.Fatal("busy pipeline must not be started")
	}

	after, err := store.GetByID(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.LastRunStatus != scheduler.OutcomeSkipped {
		t.Errorf("last run status = %q, want skipped", after.LastRunStatus)
	}
	if after.NextRunAt == nil || !after.NextRunAt.After(fireAt) {
		t.Error("skipped firing must still schedule the next one")
	}

	// The skipped firing is never queued: freeing the pipeline does not
	// fire until the next due time.
	pipeline.busy = false
	if err := manager.Tick(ctx, fireAt.Add(time.Minute)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(pipeline.started) != 0 {
		t.Error("skipped schedule fired without reaching its next due time")
	}
}

func TestTickRecordsStartError(t *testing.T) {
	pipeline := &fakePipeline{err: workers.ErrConflict}
	manager, store := tickEnv(t, pipeline)
	ctx := context.Background()

	schedule := dueSchedule(t, store, "hourly", scheduler.TargetPipeline)
	if err := manager.Tick(ctx, schedule.NextRunAt.Add(time.Minute)); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	after, err := store.GetByID(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if after.LastRunStatus != scheduler.OutcomeError {
		t.Errorf("last run status = %q, want error", after.LastRunStatus)
	}
}

func TestTickScraperTargetIsDiscoverOnly(t *testing.T) {
	pipeline := &fakePipeline{}
	manager, store := tickEnv(t, pipeline)
	ctx := context.Background()

	schedule := dueSchedule(t, store, "scrape", scheduler.TargetScraper)
	if err := manager.Tick(ctx, schedule.NextRunAt.Add(time.Minute)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(pipeline.started) != 1 || !pipeline.started[0].DiscoverOnly {
		t.Errorf("scraper target should start discover-only, got %+v", pipeline.started)
	}
}

func TestDisabledScheduleNeverFires(t *testing.T) {
	pipeline := &fakePipeline{}
	manager, store := tickEnv(t, pipeline)
	ctx := context.Background()

	schedule := dueSchedule(t, store, "hourly", scheduler.TargetPipeline)
	if err := store.SetEnabled(ctx, schedule.ID, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	if err := manager.Tick(ctx, schedule.NextRunAt.Add(time.Hour)); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(pipeline.started) != 0 {
		t.Error("disabled schedule fired")
	}
}
