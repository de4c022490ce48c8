package operations

import (
	"context"
	"time"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/jellytweak/pkg/catalog"
	"github.com/shishobooks/jellytweak/pkg/errcodes"
	"github.com/shishobooks/jellytweak/pkg/progress"
	"github.com/shishobooks/jellytweak/pkg/runlog"
)

// ApplyStats summarizes one apply phase.
type ApplyStats struct {
	Kind Kind
	// Applied counts operations whose statement executed.
	Applied int
	// Skipped counts operations whose target was gone at apply time.
	Skipped int
	// RowsUpdated counts catalog rows the statements changed.
	RowsUpdated int64
	// Errors holds statement failures. They don't stop the phase.
	Errors []error
}

// Applier writes operations back to the catalog.
type Applier struct {
	catalog *catalog.Service
	tracker *progress.Tracker
	log     *runlog.Logger
	opts    Options
	now     func() time.Time
}

func NewApplier(svc *catalog.Service, tracker *progress.Tracker, log *runlog.Logger, opts Options) *Applier {
	return &Applier{
		catalog: svc,
		tracker: tracker,
		log:     log,
		opts:    opts,
		now:     time.Now,
	}
}

// Apply prepares the UPDATE statement of kind once and executes it for every
// operation. A statement that cannot be prepared fails the phase; a failed
// execution is recorded and the phase moves on. The statement is released on
// every return path.
func Apply[T Operation](ctx context.Context, a *Applier, kind Kind, ops []T) (*ApplyStats, error) {
	stats := &ApplyStats{Kind: kind}
	if !a.opts.Enabled(kind) || len(ops) == 0 {
		return stats, nil
	}

	stmt, err := a.catalog.Prepare(ctx, kind.String(), UpdateSQL(kind, a.opts))
	if err != nil {
		return stats, err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			a.log.Error("Unable to release statement.", cerr, logger.Data{"statement": kind.String()})
			stats.Errors = append(stats.Errors, cerr)
		}
	}()

	for _, op := range ops {
		if a.tracker.Aborted(ctx) {
			return stats, errcodes.ErrAborted
		}
		a.applyOne(ctx, stmt, op, stats)
		a.tracker.Advance(1)
	}

	return stats, nil
}

func (a *Applier) applyOne(ctx context.Context, stmt *catalog.Statement, op Operation, stats *ApplyStats) {
	a.log.Info(op.Message(), nil)

	if !exists(op.Target()) {
		a.log.Warn("Path no longer exists, skipping.", logger.Data{"path": op.Target()})
		stats.Skipped++
		return
	}

	args, err := op.Args(a.opts, a.now())
	if err != nil {
		a.log.Error("Unable to bind update.", err, logger.Data{"path": op.Target()})
		stats.Errors = append(stats.Errors, err)
		return
	}

	n, err := stmt.Exec(ctx, args...)
	if err != nil {
		a.log.Error("Unable to apply update.", err, logger.Data{"path": op.Target(), "statement": stmt.Name()})
		stats.Errors = append(stats.Errors, err)
		return
	}

	stats.Applied++
	stats.RowsUpdated += n
}
