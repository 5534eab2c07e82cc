// Package sink writes reviewed records to their destination tables once a
// user approves a run.
package sink

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/store"
)

var (
	// ErrNotReviewable is returned when a run has no result awaiting or
	// holding approval.
	ErrNotReviewable = errors.New("run is not reviewable")
	// ErrUnknownSink is returned for a sink name that is not configured.
	ErrUnknownSink = errors.New("unknown sink")
)

// Sink writes one record to a table and returns the destination's ID for
// it. A non-empty existingID updates that record instead of creating one.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec store.Record, existingID string) (string, error)
}

// Approver pushes reviewed runs to sinks and records each push.
type Approver struct {
	store store.Store
	sinks map[string]Sink
	now   func() time.Time
}

// NewApprover creates an Approver over the given sinks.
func NewApprover(st store.Store, sinks ...Sink) *Approver {
	a := &Approver{store: st, sinks: make(map[string]Sink, len(sinks)), now: time.Now}
	for _, s := range sinks {
		a.sinks[s.Name()] = s
	}
	return a
}

// Sinks returns the configured sink names in sorted order.
func (a *Approver) Sinks() []string {
	names := make([]string, 0, len(a.sinks))
	for n := range a.sinks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Approve writes the run's record to the named sink. Re-approving a run
// reuses the ID the sink returned last time, so pushes are idempotent.
func (a *Approver) Approve(ctx context.Context, runID, sinkName string) (*model.Push, error) {
	s, ok := a.sinks[sinkName]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownSink, "%q (configured: %v)", sinkName, a.Sinks())
	}

	run, err := a.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "approve: load run %s", runID)
	}
	if !run.Reviewable() {
		return nil, eris.Wrapf(ErrNotReviewable, "run %s has status %s", runID, run.Status)
	}

	rec := store.NewRecord(run.ID, run.Result)
	existing := run.ExternalID(sinkName)

	log := zap.L().With(
		zap.String("run_id", runID),
		zap.String("sink", sinkName),
		zap.String("table", rec.Table),
		zap.String("key", rec.Key),
	)

	id, err := s.Write(ctx, rec, existing)
	if err != nil {
		log.Error("approve: sink write failed", zap.Error(err))
		return nil, eris.Wrapf(err, "approve: write to %s", sinkName)
	}

	push := model.Push{Sink: sinkName, Table: rec.Table, ExternalID: id, PushedAt: a.now().UTC()}
	if err := a.store.RecordPush(ctx, runID, push); err != nil {
		return nil, eris.Wrap(err, "approve: record push")
	}

	log.Info("approve: record written", zap.String("external_id", id), zap.Bool("update", existing != ""))
	return &push, nil
}
