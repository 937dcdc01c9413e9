package main

import (
	"context"
	"strconv"
	"testing"

	"gavel/internal/matching"
	"gavel/internal/registry"
	"gavel/internal/review"
	"gavel/internal/testsupport"
)

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewHearing(t, env.store, "CA", "Rate Case Hearing", "https://example.com/cli/1")

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Daemon")
	requireContains(t, out, "Pipeline")
	requireContains(t, out, "Hearings")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	requireContains(t, out, `"running": true`)
}

func TestHearingsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	hearing := testsupport.NewHearing(t, env.store, "TX", "Grid Reliability Hearing", "https://example.com/cli/2")
	id := strconv.FormatInt(hearing.ID, 10)

	out, _, err := runCLI(t, []string{"hearings", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("hearings list: %v", err)
	}
	requireContains(t, out, "Grid Reliability Hearing")

	out, _, err = runCLI(t, []string{"hearings", "list", "--state", "wa"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("hearings list --state: %v", err)
	}
	requireContains(t, out, "No hearings found")

	out, _, err = runCLI(t, []string{"hearings", "show", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("hearings show: %v", err)
	}
	requireContains(t, out, "Grid Reliability Hearing")
	requireContains(t, out, "TX")

	if _, _, err := runCLI(t, []string{"hearings", "show", "9999"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error showing a missing hearing")
	}

	out, _, err = runCLI(t, []string{"hearings", "skip", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("hearings skip: %v", err)
	}
	requireContains(t, out, "skipped")

	out, _, err = runCLI(t, []string{"hearings", "restore", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("hearings restore: %v", err)
	}
	requireContains(t, out, "restored")

	out, _, err = runCLI(t, []string{"hearings", "retry", "--all"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("hearings retry --all: %v", err)
	}
	requireContains(t, out, "0 hearings reset")

	out, _, err = runCLI(t, []string{"hearings", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("hearings health: %v", err)
	}
	requireContains(t, out, "Total: 1")
}

func TestScheduleCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"schedule", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("schedule list: %v", err)
	}
	requireContains(t, out, "No schedules configured")

	out, _, err = runCLI(t, []string{
		"schedule", "add", "nightly",
		"--trigger", "daily", "--value", "03:15",
		"--state", "ca,tx", "--max-cost", "25",
	}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("schedule add: %v", err)
	}
	requireContains(t, out, "created")

	out, _, err = runCLI(t, []string{"schedule", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("schedule list: %v", err)
	}
	requireContains(t, out, "nightly")
	requireContains(t, out, "CA,TX")

	out, _, err = runCLI(t, []string{"schedule", "disable", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("schedule disable: %v", err)
	}
	requireContains(t, out, "disabled")

	out, _, err = runCLI(t, []string{"schedule", "remove", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("schedule remove: %v", err)
	}
	requireContains(t, out, "removed")

	if _, _, err := runCLI(t, []string{"schedule", "add", ""}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error creating a schedule without a trigger")
	}
}

func TestRunCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run list: %v", err)
	}
	requireContains(t, out, "No pipeline runs recorded")

	if _, _, err := runCLI(t, []string{"run", "stop"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error stopping an idle pipeline")
	}

	if _, _, err := runCLI(t, []string{"run", "start", "--hearing", "1"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error scoping hearings without a stage")
	}
}

func TestDaemonStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"daemon", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon status: %v", err)
	}
	requireContains(t, out, "Daemon")
	requireContains(t, out, "pid")
}

func TestReviewCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"review", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	requireContains(t, out, "Review queue is empty")

	out, _, err = runCLI(t, []string{"review", "hearings"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("review hearings: %v", err)
	}
	requireContains(t, out, "No hearings awaiting review")

	if _, _, err := runCLI(t, []string{"review", "approve", "42"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error approving a missing candidate")
	}
}

func TestReviewBulkCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	hearing := testsupport.NewHearing(t, env.store, "CA", "Wildfire Mitigation Hearing", "https://example.com/cli/3")
	id := strconv.FormatInt(hearing.ID, 10)

	candidates := review.NewStore(env.store.DB())
	if _, err := candidates.Create(context.Background(), &review.Candidate{
		HearingID:      hearing.ID,
		EntityType:     registry.TypeUtility,
		RawText:        "Pacific Gas & Electric Co.",
		Normalized:     "pacific gas electric",
		Classification: matching.ClassFuzzy,
		Confidence:     40,
		ReviewReason:   "similar registry entries",
	}); err != nil {
		t.Fatalf("Create candidate: %v", err)
	}

	out, _, err := runCLI(t, []string{"review", "bulk", id, "reject"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("review bulk reject: %v", err)
	}
	requireContains(t, out, "1 candidates resolved")

	out, _, err = runCLI(t, []string{"review", "bulk", id, "approve"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("review bulk approve: %v", err)
	}
	requireContains(t, out, "0 candidates resolved")

	if _, _, err := runCLI(t, []string{"review", "bulk", id, "promote"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for an unknown bulk verb")
	}
}
