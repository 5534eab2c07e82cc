// Package monitoring summarizes recent extraction runs and raises webhook
// alerts when failures or the review backlog cross their thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/store"
)

// MetricsSnapshot holds a point-in-time view of extraction health.
type MetricsSnapshot struct {
	// Runs created within the lookback window.
	RunsTotal     int     `json:"runs_total"`
	RunsRunning   int     `json:"runs_running"`
	PendingReview int     `json:"pending_review"`
	Approved      int     `json:"approved"`
	Failed        int     `json:"failed"`
	FailRate      float64 `json:"fail_rate"`

	ByKind      map[model.Kind]int `json:"by_kind"`
	ByErrorKind map[string]int     `json:"by_error_kind"`

	// Fields the normalizer removed as leaked JSON.
	DroppedFields int `json:"dropped_fields"`
	// Approved runs pushed to at least one external sink.
	Pushed int `json:"pushed"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the store subset the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		ByKind:        make(map[model.Kind]int),
		ByErrorKind:   make(map[string]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for _, r := range runs {
		snap.ByKind[r.Kind]++
		switch r.Status {
		case model.RunStatusRunning:
			snap.RunsRunning++
		case model.RunStatusPendingReview:
			snap.PendingReview++
		case model.RunStatusApproved:
			snap.Approved++
		case model.RunStatusFailed:
			snap.Failed++
			kind := r.ErrorKind
			if kind == "" {
				kind = "unknown"
			}
			snap.ByErrorKind[kind]++
		}
		if r.Result != nil {
			snap.DroppedFields += len(r.Result.Dropped)
		}
		for _, p := range r.Pushes {
			if p.Sink != "store" {
				snap.Pushed++
				break
			}
		}
	}

	finished := snap.RunsTotal - snap.RunsRunning
	if finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}

	return snap, nil
}
