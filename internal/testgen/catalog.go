package testgen

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shishobooks/jellytweak/pkg/config"
	"github.com/shishobooks/jellytweak/pkg/database"
	"github.com/uptrace/bun"
)

// catalogSchema is the subset of the media server's item table the pipeline
// reads and writes.
const catalogSchema = `CREATE TABLE TypedBaseItems (
	guid GUID PRIMARY KEY NOT NULL,
	type TEXT NOT NULL,
	data BLOB NULL,
	Name TEXT NULL,
	Path TEXT NULL,
	Images TEXT NULL,
	Album TEXT NULL,
	Artists TEXT NULL,
	AlbumArtists TEXT NULL,
	MediaType TEXT NULL,
	IndexNumber INT NULL,
	PresentationUniqueKey TEXT NULL
)`

// CatalogRow is a row of the test catalog. Unset pointer fields are NULL.
type CatalogRow struct {
	bun.BaseModel `bun:"table:TypedBaseItems"`

	GUID                  []byte  `bun:"guid"`
	Type                  string  `bun:"type"`
	Data                  []byte  `bun:"data"`
	Path                  *string `bun:"Path"`
	Images                *string `bun:"Images"`
	Album                 *string `bun:"Album"`
	Artists               *string `bun:"Artists"`
	AlbumArtists          *string `bun:"AlbumArtists"`
	MediaType             *string `bun:"MediaType"`
	IndexNumber           *int    `bun:"IndexNumber"`
	PresentationUniqueKey *string `bun:"PresentationUniqueKey"`
}

// NewCatalog returns an in-memory database holding an empty item table.
func NewCatalog(t *testing.T) *bun.DB {
	t.Helper()
	return openCatalog(t, config.NewForTest())
}

// NewCatalogFile creates an item table in a database file inside dir and
// returns its path along with the open handle.
func NewCatalogFile(t *testing.T, dir string) (string, *bun.DB) {
	t.Helper()
	cfg := config.NewForTest()
	cfg.DatabaseFilePath = filepath.Join(dir, "library.db")
	return cfg.DatabaseFilePath, openCatalog(t, cfg)
}

func openCatalog(t *testing.T, cfg *config.Config) *bun.DB {
	t.Helper()
	db, err := database.New(cfg)
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	if _, err := db.Exec(catalogSchema); err != nil {
		t.Fatalf("failed to create catalog schema: %v", err)
	}
	return db
}

// InsertRow adds row to the catalog, assigning a random guid when it has none.
func InsertRow(t *testing.T, db *bun.DB, row *CatalogRow) *CatalogRow {
	t.Helper()
	if row.GUID == nil {
		id := uuid.New()
		row.GUID = id[:]
	}
	if _, err := db.NewInsert().Model(row).Exec(context.Background()); err != nil {
		t.Fatalf("failed to insert catalog row %v: %v", row.Path, err)
	}
	return row
}

// GetRow returns the row of the given type at path.
func GetRow(t *testing.T, db *bun.DB, path, typ string) *CatalogRow {
	t.Helper()
	row := &CatalogRow{}
	err := db.NewSelect().
		Model(row).
		Where("Path = ?", path).
		Where("type = ?", typ).
		Scan(context.Background())
	if err != nil {
		t.Fatalf("failed to get catalog row %s: %v", path, err)
	}
	return row
}

// ListRows returns every row of the given type ordered by path.
func ListRows(t *testing.T, db *bun.DB, typ string) []*CatalogRow {
	t.Helper()
	var rows []*CatalogRow
	err := db.NewSelect().
		Model(&rows).
		Where("type = ?", typ).
		Order("Path ASC").
		Scan(context.Background())
	if err != nil {
		t.Fatalf("failed to list catalog rows: %v", err)
	}
	return rows
}
