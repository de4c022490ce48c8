package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/shishobooks/jellytweak/pkg/catalog"
	"github.com/shishobooks/jellytweak/pkg/config"
	"github.com/shishobooks/jellytweak/pkg/database"
	"github.com/shishobooks/jellytweak/pkg/operations"
	"github.com/shishobooks/jellytweak/pkg/progress"
	"github.com/shishobooks/jellytweak/pkg/runlog"
	"github.com/shishobooks/jellytweak/pkg/version"
	"github.com/shishobooks/jellytweak/pkg/worker"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var configFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "path of the media server's library database",
	},
	&cli.StringFlag{
		Name:  "image-name",
		Usage: "substring identifying an album's cover image file",
	},
	&cli.BoolFlag{Name: "no-images", Usage: "don't fill cover images"},
	&cli.BoolFlag{Name: "no-artists", Usage: "don't fill artists and album names"},
	&cli.BoolFlag{Name: "no-albums", Usage: "don't update album rows"},
	&cli.BoolFlag{Name: "no-track-numbers", Usage: "don't fill track numbers"},
	&cli.BoolFlag{Name: "no-tracklists", Usage: "don't fill empty playlist track lists"},
	&cli.BoolFlag{Name: "debug", Usage: "log every query"},
}

var runFlags = []cli.Flag{
	&cli.BoolFlag{Name: "no-backup", Usage: "don't copy the database before updating it"},
	&cli.StringFlag{Name: "backup-dir", Usage: "directory for the database copy (default: next to the database)"},
	&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only print warnings, errors and the result"},
}

func main() {
	log := logger.New()

	app := &cli.App{
		Name:    "jellytweak",
		Usage:   "fill missing music metadata in a media server library",
		Version: version.Version,
		Description: "Derives artists, album names, cover images, track numbers and playlist " +
			"track lists from an \"Artist - Album\" folder layout and writes them into the " +
			"library database. Only empty values are filled. Stop the media server first.",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "update the library database",
				Flags:  append(append([]cli.Flag{}, configFlags...), runFlags...),
				Action: runAction,
			},
			{
				Name:   "count",
				Usage:  "print how many rows would be updated without changing anything",
				Flags:  configFlags,
				Action: countAction,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}

// loadConfig reads the config file and environment, then applies the flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if c.IsSet("db") {
		cfg.DatabaseFilePath = c.String("db")
	}
	if c.IsSet("image-name") {
		cfg.ImageName = c.String("image-name")
	}
	if c.Bool("no-images") {
		cfg.UpdateImages = false
	}
	if c.Bool("no-artists") {
		cfg.UpdateArtists = false
	}
	if c.Bool("no-albums") {
		cfg.UpdateAlbums = false
	}
	if c.Bool("no-track-numbers") {
		cfg.UpdateTrackNumbers = false
	}
	if c.Bool("no-tracklists") {
		cfg.UpdatePlaylistTracklists = false
	}
	if c.Bool("debug") {
		cfg.DatabaseDebug = true
	}
	if c.Bool("no-backup") {
		cfg.BackupDatabase = false
	}
	if c.IsSet("backup-dir") {
		cfg.BackupDirectory = c.String("backup-dir")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.AnyUpdateEnabled() {
		return nil, errors.New("every update is disabled, nothing to do")
	}
	if _, err := os.Stat(cfg.DatabaseFilePath); err != nil {
		return nil, errors.Wrap(err, "library database not found")
	}
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*bun.DB, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open the library database")
	}
	return db, nil
}

func runAction(c *cli.Context) error {
	log := logger.New()
	log.Info("starting jellytweak", logger.Data{"version": version.Version})

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Err(err).Error("database close error")
		}
	}()

	r := worker.New(cfg, db)
	graceful := signals.Setup()

	var res *worker.Result
	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		printEvents(os.Stdout, r.Events(), c.Bool("quiet"))
		return nil
	})
	g.Go(func() error {
		res = r.Run(ctx)
		return nil
	})
	go func() {
		select {
		case <-graceful:
			log.Info("stopping after the current row")
			r.Stop()
		case <-ctx.Done():
		}
	}()
	_ = g.Wait()

	if res.BackupPath != "" {
		fmt.Printf("Backup: %s\n", res.BackupPath)
	}
	fmt.Printf("Applied %d updates (%d skipped), %d rows changed.\n", res.Applied, res.Skipped, res.RowsUpdated)

	switch res.State {
	case progress.StateDone:
		return nil
	case progress.StateAborted:
		return cli.Exit(res.Err.Error(), 2)
	default:
		return cli.Exit(res.Err.Error(), 1)
	}
}

func countAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()

	if err := database.CheckCatalog(ctx, db, catalog.Table); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// The count messages go to the log; nothing listens for events.
	tracker := progress.NewTracker()
	gen := operations.NewGenerator(catalog.NewService(db), tracker, runlog.New(logger.New(), tracker), operations.OptionsFromConfig(cfg))
	total, err := gen.Count(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("%d progress units to process.\n", total)
	return nil
}

// printEvents writes the messages of events to w until the channel closes.
// Quiet output drops info messages.
func printEvents(w io.Writer, events <-chan progress.Event, quiet bool) {
	for e := range events {
		switch e.Kind {
		case progress.EventMessage:
			if quiet && e.Level == progress.LevelInfo {
				continue
			}
			fmt.Fprintf(w, "[%3d%%] %s\n", e.Percent, e.Message)
		case progress.EventState:
			if !quiet {
				fmt.Fprintf(w, "[%3d%%] %s\n", e.Percent, e.State)
			}
		}
	}
}
