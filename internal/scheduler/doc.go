// Package scheduler fires pipeline runs on stored timers. Interval schedules
// measure from the last completion, daily schedules fire at a wall-clock
// time, and cron schedules follow a standard five-field expression. A firing
// that finds the orchestrator busy is recorded as skipped and never queued.
package scheduler
