package catalog

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// ListItemsOptions selects catalog rows. Rows without a path are never
// returned since nothing can be derived for them.
type ListItemsOptions struct {
	Type *string
	Path *string

	// MissingMetadata matches rows lacking images, album or artists.
	MissingMetadata bool
	// MissingIndexNumber matches rows without a track number.
	MissingIndexNumber bool
	// EmptyTracklist matches playlists whose payload was never written.
	EmptyTracklist bool
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) DB() *bun.DB {
	return svc.db
}

// CountItems returns how many rows match opts.
func (svc *Service) CountItems(ctx context.Context, opts ListItemsOptions) (int, error) {
	count, err := svc.selectItems(opts).Count(ctx)
	return count, errors.WithStack(err)
}

// QueryItems returns a cursor over the rows matching opts, ordered by path.
// The cursor holds the database connection until it is closed, so no other
// query can run while it is open.
func (svc *Service) QueryItems(ctx context.Context, opts ListItemsOptions) (*Cursor, error) {
	rows, err := svc.selectItems(opts).Rows(ctx) //nolint:sqlclosecheck // closed by Cursor.Close
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Cursor{ctx: ctx, db: svc.db, rows: rows}, nil
}

func (svc *Service) selectItems(opts ListItemsOptions) *bun.SelectQuery {
	q := svc.db.
		NewSelect().
		Model((*Item)(nil)).
		Where("tbi.Path IS NOT NULL").
		Order("tbi.Path ASC")

	if opts.Type != nil {
		q = q.Where("tbi.type = ?", *opts.Type)
	}
	if opts.Path != nil {
		q = q.Where("tbi.Path = ?", *opts.Path)
	}
	if opts.MissingMetadata {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("tbi.Images IS NULL").
				WhereOr("tbi.Album IS NULL").
				WhereOr("tbi.Artists IS NULL")
		})
	}
	if opts.MissingIndexNumber {
		q = q.Where("tbi.IndexNumber IS NULL")
	}
	if opts.EmptyTracklist {
		q = q.Where("tbi.data = ?", EmptyTracklist)
	}

	return q
}

// Cursor walks query results one row at a time.
type Cursor struct {
	ctx  context.Context
	db   *bun.DB
	rows *sql.Rows
	item *Item
	err  error
}

// Next advances to the next row. It returns false when the rows are exhausted
// or scanning failed; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	item := &Item{}
	if err := c.db.ScanRow(c.ctx, c.rows, item); err != nil {
		c.err = errors.WithStack(err)
		return false
	}
	c.item = item
	return true
}

// Item returns the row Next advanced to.
func (c *Cursor) Item() *Item {
	return c.item
}

func (c *Cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return errors.WithStack(c.rows.Err())
}

// Close releases the rows. It is safe to call more than once.
func (c *Cursor) Close() error {
	return errors.WithStack(c.rows.Close())
}
