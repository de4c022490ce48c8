package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/jellytweak/pkg/backup"
	"github.com/shishobooks/jellytweak/pkg/catalog"
	"github.com/shishobooks/jellytweak/pkg/config"
	"github.com/shishobooks/jellytweak/pkg/database"
	"github.com/shishobooks/jellytweak/pkg/errcodes"
	"github.com/shishobooks/jellytweak/pkg/operations"
	"github.com/shishobooks/jellytweak/pkg/progress"
	"github.com/shishobooks/jellytweak/pkg/runlog"
	"github.com/uptrace/bun"
)

// Status messages of a run.
const (
	MessageNothingToDo = "No update operations to perform."
	MessageGenerating  = "Generating UPDATE data..."
	MessageApplying    = "Finished generating data, updating database. Please wait..."
	MessageFinished    = "Finished!"
	MessageAborted     = "Aborted operation."
	MessageUnknown     = "Unknown exception"
)

// Result is the outcome of a run.
type Result struct {
	State progress.State
	Err   error

	// Total is the counted progress units.
	Total int
	// Generated counts operations per kind.
	Generated map[operations.Kind]int
	// Applied counts executed operations.
	Applied int
	// Skipped counts operations whose path was gone at apply time.
	Skipped int
	// RowsUpdated counts changed catalog rows.
	RowsUpdated int64
	// Errors holds statement failures recorded while applying.
	Errors []error
	// BackupPath is the safety copy made before the run, if any.
	BackupPath string
}

// Runner executes one update run on its own goroutine. All catalog access of
// the run happens on that goroutine; other goroutines only read events or
// call Stop.
type Runner struct {
	config  *config.Config
	log     logger.Logger
	db      *bun.DB
	catalog *catalog.Service
	tracker *progress.Tracker
	opts    operations.Options
	now     func() time.Time

	startOnce sync.Once
	done      chan struct{}
	result    *Result
}

func New(cfg *config.Config, db *bun.DB) *Runner {
	return &Runner{
		config:  cfg,
		log:     logger.New(),
		db:      db,
		catalog: catalog.NewService(db),
		tracker: progress.NewTrackerWithEvents(cfg.EventBufferSize),
		opts:    operations.OptionsFromConfig(cfg),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Events streams the run's status. The channel is closed after the terminal
// state event.
func (r *Runner) Events() <-chan progress.Event {
	return r.tracker.Events()
}

// Detach tells the runner nobody reads Events anymore.
func (r *Runner) Detach() {
	r.tracker.Detach()
}

// Percent returns the run's completion, 0 to 100.
func (r *Runner) Percent() int {
	return r.tracker.Percent()
}

func (r *Runner) State() progress.State {
	return r.tracker.State()
}

// Start launches the run. Later calls do nothing.
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go func() {
			defer close(r.done)
			r.result = r.run(ctx)
		}()
	})
}

// Stop asks the run to stop at the next row. Rows already written stay
// written.
func (r *Runner) Stop() {
	r.tracker.Stop()
}

// Wait blocks until the run finished and returns its result.
func (r *Runner) Wait() *Result {
	<-r.done
	return r.result
}

// Run starts the run and waits for it.
func (r *Runner) Run(ctx context.Context) *Result {
	r.Start(ctx)
	return r.Wait()
}

func (r *Runner) run(ctx context.Context) (res *Result) {
	res = &Result{State: progress.StateFailed, Generated: map[operations.Kind]int{}}

	log := r.log
	if id, err := uuid.NewRandom(); err == nil {
		log = log.ID(id.String())
	}
	log = log.Root(logger.Data{"database": r.config.DatabaseFilePath})
	ctx = log.WithContext(ctx)
	rl := runlog.New(log, r.tracker)

	defer func() {
		if p := recover(); p != nil {
			rl.Fatal(MessageUnknown, errors.Errorf("%v", p), nil)
			res.State = progress.StateFailed
			res.Err = errors.New(MessageUnknown)
		}
		r.tracker.Finish(res.State)
	}()

	if err := r.pipeline(ctx, rl, res); err != nil {
		r.fail(ctx, rl, res, err)
		return res
	}

	if len(res.Errors) > 0 {
		res.State = progress.StateFailed
		res.Err = errors.Wrapf(res.Errors[0], "%d updates failed", len(res.Errors))
		rl.Error(fmt.Sprintf("Finished with %d failed updates.", len(res.Errors)), res.Err, nil)
		return res
	}

	res.State = progress.StateDone
	return res
}

func (r *Runner) fail(ctx context.Context, rl *runlog.Logger, res *Result, err error) {
	if errors.Is(err, errcodes.ErrAborted) || r.tracker.Aborted(ctx) {
		res.State = progress.StateAborted
		res.Err = errcodes.ErrAborted
		rl.Warn(MessageAborted, nil)
		return
	}
	res.State = progress.StateFailed
	res.Err = err
	rl.Error("Run failed.", err, nil)
}

func (r *Runner) pipeline(ctx context.Context, rl *runlog.Logger, res *Result) error {
	if err := database.CheckCatalog(ctx, r.db, catalog.Table); err != nil {
		return err
	}

	if r.config.BackupDatabase {
		path, err := backup.Create(r.config.DatabaseFilePath, r.config.BackupDirectory, r.now())
		if err != nil {
			return errors.Wrap(err, "failed to back up the database")
		}
		res.BackupPath = path
		rl.Info("Database backed up.", logger.Data{"backup": path})
	}

	r.tracker.SetState(progress.StateCounting)
	gen := operations.NewGenerator(r.catalog, r.tracker, rl, r.opts)
	total, err := gen.Count(ctx)
	if err != nil {
		return err
	}
	res.Total = total
	if total == 0 {
		rl.Info(MessageNothingToDo, nil)
		return nil
	}
	r.tracker.SetTotal(total)

	r.tracker.SetState(progress.StateGenerating)
	rl.Info(MessageGenerating, nil)

	playlistOps, err := gen.GeneratePlaylistImages(ctx)
	if err != nil {
		return err
	}
	res.Generated[operations.KindPlaylistImage] = len(playlistOps)

	tracklistOps, err := gen.GeneratePlaylistTracklists(ctx)
	if err != nil {
		return err
	}
	res.Generated[operations.KindPlaylistTracklist] = len(tracklistOps)

	trackOps, err := gen.GenerateTrackNumbers(ctx)
	if err != nil {
		return err
	}
	res.Generated[operations.KindTrackNumber] = len(trackOps)

	albumOps, err := gen.GenerateAlbums(ctx, playlistOps)
	if err != nil {
		return err
	}
	res.Generated[operations.KindAlbum] = len(albumOps)

	if r.tracker.Aborted(ctx) {
		return errcodes.ErrAborted
	}

	r.tracker.SetState(progress.StateApplying)
	rl.Info(MessageApplying, nil)

	applier := operations.NewApplier(r.catalog, r.tracker, rl, r.opts)
	phases := []func() (*operations.ApplyStats, error){
		func() (*operations.ApplyStats, error) {
			return operations.Apply(ctx, applier, operations.KindPlaylistImage, playlistOps)
		},
		func() (*operations.ApplyStats, error) {
			return operations.Apply(ctx, applier, operations.KindAlbum, albumOps)
		},
		func() (*operations.ApplyStats, error) {
			return operations.Apply(ctx, applier, operations.KindTrackNumber, trackOps)
		},
		func() (*operations.ApplyStats, error) {
			return operations.Apply(ctx, applier, operations.KindPlaylistTracklist, tracklistOps)
		},
	}
	for _, phase := range phases {
		stats, err := phase()
		res.add(stats)
		if err != nil {
			return err
		}
	}

	if len(res.Errors) == 0 {
		rl.Info(MessageFinished, logger.Data{"applied": res.Applied, "skipped": res.Skipped, "rows_updated": res.RowsUpdated})
	}
	return nil
}

func (res *Result) add(stats *operations.ApplyStats) {
	if stats == nil {
		return
	}
	res.Applied += stats.Applied
	res.Skipped += stats.Skipped
	res.RowsUpdated += stats.RowsUpdated
	res.Errors = append(res.Errors, stats.Errors...)
}
