package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// PoolSnapshot summarizes the pool at one point in time.
type PoolSnapshot struct {
	Total   int
	Active  int
	Removed int

	// Failing counts active credentials with an open error streak.
	Failing int

	SuccessCount int64
	ErrorCount   int64
}

// Snapshot computes a PoolSnapshot from the store.
func Snapshot(ctx context.Context, store Store) (PoolSnapshot, error) {
	all, err := store.List(ctx, ListOptions{SortBy: SortByAddedAt})
	if err != nil {
		return PoolSnapshot{}, err
	}

	var snap PoolSnapshot
	snap.Total = len(all)
	for _, c := range all {
		snap.SuccessCount += c.SuccessCount
		snap.ErrorCount += c.ErrorCount
		if c.Removed {
			snap.Removed++
			continue
		}
		snap.Active++
		if c.ErrorsSinceLastSuccess > 0 {
			snap.Failing++
		}
	}
	return snap, nil
}

// SnapshotObserver receives pool snapshots, typically to export them as
// gauges.
type SnapshotObserver interface {
	ObservePool(PoolSnapshot)
}

// Reporter periodically snapshots the pool on a cron schedule, logs it and
// hands it to an observer.
type Reporter struct {
	store    Store
	observer SnapshotObserver
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewReporter creates a reporter. schedule accepts standard cron syntax and
// descriptors such as "@every 1m". observer may be nil.
func NewReporter(store Store, observer SnapshotObserver, schedule string) *Reporter {
	return &Reporter{
		store:    store,
		observer: observer,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "credentials.reporter"),
	}
}

// Start schedules the report and runs it once immediately. An empty
// schedule disables the reporter.
func (r *Reporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" {
		r.logger.Info("pool report schedule not configured, skipping")
		return nil
	}
	if r.running {
		return fmt.Errorf("reporter already running")
	}

	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.schedule, err)
	}

	if _, err := r.cron.AddFunc(r.schedule, func() { r.Report(ctx) }); err != nil {
		return fmt.Errorf("schedule pool report: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("pool reporter started", "schedule", r.schedule)

	go r.Report(ctx)

	return nil
}

// Report takes one snapshot.
func (r *Reporter) Report(ctx context.Context) {
	snap, err := Snapshot(ctx, r.store)
	if err != nil {
		r.logger.Error("pool snapshot failed", "error", err)
		return
	}

	if r.observer != nil {
		r.observer.ObservePool(snap)
	}

	level := slog.LevelInfo
	if snap.Active == 0 || snap.Failing == snap.Active {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "credential pool status",
		"total", snap.Total,
		"active", snap.Active,
		"removed", snap.Removed,
		"failing", snap.Failing,
		"successful_requests", snap.SuccessCount,
		"error_requests", snap.ErrorCount,
	)
}

// Stop stops the schedule and waits for a running report to finish.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info("pool reporter stopped")
}

// NextRun returns the next scheduled report, or nil when not running.
func (r *Reporter) NextRun() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.cron.Entries()
	if !r.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
