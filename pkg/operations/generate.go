package operations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/jellytweak/pkg/catalog"
	"github.com/shishobooks/jellytweak/pkg/cover"
	"github.com/shishobooks/jellytweak/pkg/errcodes"
	"github.com/shishobooks/jellytweak/pkg/naming"
	"github.com/shishobooks/jellytweak/pkg/progress"
	"github.com/shishobooks/jellytweak/pkg/runlog"
)

// Generator builds operations from catalog rows and the files on disk.
type Generator struct {
	catalog *catalog.Service
	encoder *cover.Encoder
	tracker *progress.Tracker
	log     *runlog.Logger
	opts    Options
}

func NewGenerator(svc *catalog.Service, tracker *progress.Tracker, log *runlog.Logger, opts Options) *Generator {
	return &Generator{
		catalog: svc,
		encoder: cover.NewEncoder(opts.ImageName),
		tracker: tracker,
		log:     log,
		opts:    opts,
	}
}

// Count logs and returns the progress units of all enabled kinds.
func (g *Generator) Count(ctx context.Context) (int, error) {
	total := 0
	for _, kind := range Kinds {
		if !g.opts.Enabled(kind) {
			continue
		}
		n, err := g.catalog.CountItems(ctx, kind.spec().list)
		if err != nil {
			return 0, err
		}
		g.log.Info(fmt.Sprintf(kind.spec().found, n), logger.Data{"kind": kind.String(), "count": n})
		total += n * kind.Weight()
	}
	return total, nil
}

// scan calls fn for every row of kind, stopping between rows when the run is
// aborted. The cursor is closed before scan returns.
func (g *Generator) scan(ctx context.Context, kind Kind, fn func(item *catalog.Item) error) error {
	cursor, err := g.catalog.QueryItems(ctx, kind.spec().list)
	if err != nil {
		return err
	}
	defer cursor.Close()

	for cursor.Next() {
		if g.tracker.Aborted(ctx) {
			return errcodes.ErrAborted
		}
		if err := fn(cursor.Item()); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		if g.tracker.Aborted(ctx) {
			return errcodes.ErrAborted
		}
		return err
	}
	return nil
}

// skip logs a row that yields no operation and counts all of its work.
func (g *Generator) skip(kind Kind, msg string, data logger.Data) {
	g.log.Warn(msg, data)
	g.tracker.Advance(kind.Weight())
}

// describe returns the cover descriptor of dir, or "" when images are not
// updated or the cover is missing or unusable.
func (g *Generator) describe(ctx context.Context, dir string) string {
	if !g.opts.UpdateImages {
		return ""
	}
	descriptor, err := g.encoder.Describe(ctx, dir)
	if err != nil {
		var imageErr *cover.ImageError
		if errors.As(err, &imageErr) {
			g.log.Warn(fmt.Sprintf("Unable to use image '%s'.", imageErr.Path), logger.Data{"reason": imageErr.Reason})
		} else {
			g.log.Warn(fmt.Sprintf("Unable to read images of '%s'.", dir), logger.Data{"error": err.Error()})
		}
		return ""
	}
	return descriptor
}

// GeneratePlaylistImages derives the album metadata of every playlist that
// lacks images, artists or album.
func (g *Generator) GeneratePlaylistImages(ctx context.Context) ([]*PlaylistImageOperation, error) {
	if !g.opts.Enabled(KindPlaylistImage) {
		return nil, nil
	}

	var ops []*PlaylistImageOperation
	err := g.scan(ctx, KindPlaylistImage, func(item *catalog.Item) error {
		path := item.PathValue()
		if !exists(path) {
			g.skip(KindPlaylistImage, fmt.Sprintf("Playlist path '%s' doesn't exist!", path), logger.Data{"path": path})
			return nil
		}

		g.log.Info(fmt.Sprintf("Generate metadata information of playlist '%s'.", filepath.Base(path)), nil)

		dir := filepath.Dir(path)
		stem := naming.Stem(path)
		artist, album := naming.AlbumMetadata(stem, filepath.Base(dir), stem)
		ops = append(ops, &PlaylistImageOperation{
			Path:            path,
			ImageDescriptor: g.describe(ctx, dir),
			Artist:          artist,
			Album:           album,
		})
		g.tracker.Advance(KindPlaylistImage.spec().generateUnits)
		return nil
	})
	return ops, err
}

// GenerateAlbums derives the metadata of album rows. An album whose directory
// holds exactly one playlist operation reuses that playlist's metadata.
func (g *Generator) GenerateAlbums(ctx context.Context, playlistOps []*PlaylistImageOperation) ([]*PlaylistImageOperation, error) {
	if !g.opts.Enabled(KindAlbum) {
		return nil, nil
	}

	byDir := make(map[string][]*PlaylistImageOperation, len(playlistOps))
	for _, op := range playlistOps {
		byDir[op.Dir()] = append(byDir[op.Dir()], op)
	}

	var ops []*PlaylistImageOperation
	err := g.scan(ctx, KindAlbum, func(item *catalog.Item) error {
		path := item.PathValue()
		if !exists(path) {
			g.skip(KindAlbum, fmt.Sprintf("Album path '%s' doesn't exist!", path), logger.Data{"path": path})
			return nil
		}

		name := filepath.Base(path)
		g.log.Info(fmt.Sprintf("Generate metadata information of album '%s'.", name), nil)

		shared := byDir[filepath.Clean(path)]
		if len(shared) == 1 {
			ops = append(ops, NewAlbumOperation(path, shared[0].ImageDescriptor, shared[0].Artist, shared[0].Album))
			g.tracker.Advance(KindAlbum.spec().generateUnits)
			return nil
		}
		if len(shared) > 1 {
			g.log.Warn(fmt.Sprintf("Album '%s' is shared by %d playlists, deriving its metadata from the folder.", name, len(shared)), logger.Data{"path": path})
		}

		artist, album := naming.AlbumMetadata(name, name)
		ops = append(ops, NewAlbumOperation(path, g.describe(ctx, path), artist, album))
		g.tracker.Advance(KindAlbum.spec().generateUnits)
		return nil
	})
	return ops, err
}

// GenerateTrackNumbers derives the number of every track that lacks one.
func (g *Generator) GenerateTrackNumbers(ctx context.Context) ([]*TrackNumberOperation, error) {
	if !g.opts.Enabled(KindTrackNumber) {
		return nil, nil
	}

	var ops []*TrackNumberOperation
	err := g.scan(ctx, KindTrackNumber, func(item *catalog.Item) error {
		path := item.PathValue()
		if !exists(path) {
			g.skip(KindTrackNumber, fmt.Sprintf("Track path '%s' doesn't exist!", path), logger.Data{"path": path})
			return nil
		}

		n, err := naming.ParseTrackNumber(path)
		if err != nil {
			g.skip(KindTrackNumber, fmt.Sprintf("Track path '%s' split error!", path), logger.Data{"path": path, "error": err.Error()})
			return nil
		}

		ops = append(ops, &TrackNumberOperation{Path: path, TrackNumber: n})
		g.tracker.Advance(KindTrackNumber.spec().generateUnits)
		return nil
	})
	return ops, err
}

// GeneratePlaylistTracklists lists the tracks beside every playlist with an
// empty track list, then resolves the catalog id of each track. A track
// missing from the catalog fails the generation.
func (g *Generator) GeneratePlaylistTracklists(ctx context.Context) ([]*PlaylistTracksOperation, error) {
	if !g.opts.Enabled(KindPlaylistTracklist) {
		return nil, nil
	}

	var ops []*PlaylistTracksOperation
	err := g.scan(ctx, KindPlaylistTracklist, func(item *catalog.Item) error {
		path := item.PathValue()
		dir := filepath.Dir(path)
		if !exists(dir) {
			g.skip(KindPlaylistTracklist, fmt.Sprintf("Playlist folder '%s' doesn't exist!", dir), logger.Data{"path": path})
			return nil
		}

		tracks, err := naming.ListTracks(dir)
		if err != nil {
			g.skip(KindPlaylistTracklist, fmt.Sprintf("Unable to list tracks of '%s'.", dir), logger.Data{"path": path, "error": err.Error()})
			return nil
		}

		ops = append(ops, &PlaylistTracksOperation{Path: path, OrderedTracks: tracks})
		return nil
	})
	if err != nil {
		return ops, err
	}

	// The row cursor is closed, so the lookups can use the connection.
	lookup, err := g.catalog.NewTrackIDLookup(ctx)
	if err != nil {
		return ops, err
	}
	defer func() {
		if cerr := lookup.Close(); cerr != nil {
			g.log.Error("Unable to close the track id lookup.", cerr, nil)
		}
	}()

	for _, op := range ops {
		if g.tracker.Aborted(ctx) {
			return ops, errcodes.ErrAborted
		}

		g.log.Info(fmt.Sprintf("Generate track information of playlist '%s'.", filepath.Base(op.Path)), nil)

		op.TrackIDs = make([]string, 0, len(op.OrderedTracks))
		for _, track := range op.OrderedTracks {
			id, err := lookup.Lookup(ctx, track)
			if err != nil {
				return ops, err
			}
			op.TrackIDs = append(op.TrackIDs, id)
		}
		g.tracker.Advance(KindPlaylistTracklist.spec().generateUnits)
	}

	return ops, nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
