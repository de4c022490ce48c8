package catalog

import (
	"context"
	"testing"

	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/shishobooks/jellytweak/internal/testgen"
	"github.com/shishobooks/jellytweak/pkg/errcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCatalog(t *testing.T, svc *Service) {
	t.Helper()
	db := svc.DB()
	testgen.InsertRow(t, db, &testgen.CatalogRow{
		Type: TypePlaylist,
		Path: pointerutil.String("/music/B - Two/two.m3u"),
		Data: EmptyTracklist,
	})
	testgen.InsertRow(t, db, &testgen.CatalogRow{
		Type:    TypePlaylist,
		Path:    pointerutil.String("/music/A - One/one.m3u"),
		Data:    []byte(`{"LinkedChildren":[{"Path":"x.mp3"}]}`),
		Images:  pointerutil.String("img"),
		Album:   pointerutil.String("One"),
		Artists: pointerutil.String("A"),
	})
	testgen.InsertRow(t, db, &testgen.CatalogRow{
		Type:        TypeAudio,
		Path:        pointerutil.String("/music/A - One/01 - First.mp3"),
		MediaType:   pointerutil.String(MediaTypeAudio),
		IndexNumber: pointerutil.Int(1),
		Images:      pointerutil.String("img"),
		Album:       pointerutil.String("One"),
		Artists:     pointerutil.String("A"),
	})
	testgen.InsertRow(t, db, &testgen.CatalogRow{
		Type:      TypeAudio,
		Path:      pointerutil.String("/music/A - One/02 - Second.mp3"),
		MediaType: pointerutil.String(MediaTypeAudio),
		Album:     pointerutil.String("One"),
	})
	testgen.InsertRow(t, db, &testgen.CatalogRow{
		Type: TypeAudio,
	})
}

func TestCountItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(testgen.NewCatalog(t))
	seedCatalog(t, svc)

	tests := []struct {
		name     string
		opts     ListItemsOptions
		expected int
	}{
		{"all rows with a path", ListItemsOptions{}, 4},
		{"by type", ListItemsOptions{Type: pointerutil.String(TypeAudio)}, 2},
		{"missing metadata", ListItemsOptions{Type: pointerutil.String(TypePlaylist), MissingMetadata: true}, 1},
		{"missing index number", ListItemsOptions{Type: pointerutil.String(TypeAudio), MissingIndexNumber: true}, 1},
		{"empty tracklist", ListItemsOptions{Type: pointerutil.String(TypePlaylist), EmptyTracklist: true}, 1},
		{"exact path", ListItemsOptions{Path: pointerutil.String("/music/A - One/01 - First.mp3")}, 1},
		{"no match", ListItemsOptions{Type: pointerutil.String(TypeArtist)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := svc.CountItems(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, count)
		})
	}
}

func TestQueryItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(testgen.NewCatalog(t))
	seedCatalog(t, svc)

	cursor, err := svc.QueryItems(ctx, ListItemsOptions{Type: pointerutil.String(TypeAudio)})
	require.NoError(t, err)

	var paths []string
	for cursor.Next() {
		item := cursor.Item()
		assert.Equal(t, TypeAudio, item.Type)
		assert.Len(t, item.GUID, 16)
		paths = append(paths, item.PathValue())
	}
	require.NoError(t, cursor.Err())
	require.NoError(t, cursor.Close())
	require.NoError(t, cursor.Close())

	assert.Equal(t, []string{"/music/A - One/01 - First.mp3", "/music/A - One/02 - Second.mp3"}, paths)

	// The connection is released once the cursor is closed.
	count, err := svc.CountItems(ctx, ListItemsOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestQueryItems_ScansNullableColumns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(testgen.NewCatalog(t))
	seedCatalog(t, svc)

	cursor, err := svc.QueryItems(ctx, ListItemsOptions{
		Type:               pointerutil.String(TypeAudio),
		MissingIndexNumber: true,
	})
	require.NoError(t, err)
	defer cursor.Close()

	require.True(t, cursor.Next())
	item := cursor.Item()
	assert.Nil(t, item.IndexNumber)
	assert.Nil(t, item.Images)
	assert.Nil(t, item.Artists)
	require.NotNil(t, item.Album)
	assert.Equal(t, "One", *item.Album)
	require.NotNil(t, item.MediaType)
	assert.Equal(t, MediaTypeAudio, *item.MediaType)
	assert.False(t, cursor.Next())
	require.NoError(t, cursor.Err())
}

func TestStatement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := NewService(testgen.NewCatalog(t))
	seedCatalog(t, svc)

	stmt, err := svc.Prepare(ctx, "track numbers", "UPDATE TypedBaseItems SET IndexNumber = ? WHERE Path = ? AND IndexNumber IS NULL")
	require.NoError(t, err)
	assert.Equal(t, "track numbers", stmt.Name())

	n, err := stmt.Exec(ctx, 2, "/music/A - One/02 - Second.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Rebinding the same statement for a row that no longer matches.
	n, err = stmt.Exec(ctx, 9, "/music/A - One/02 - Second.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, stmt.Close())
	require.NoError(t, stmt.Close())

	row := testgen.GetRow(t, svc.DB(), "/music/A - One/02 - Second.mp3", TypeAudio)
	require.NotNil(t, row.IndexNumber)
	assert.Equal(t, 2, *row.IndexNumber)
}

func TestPrepare_InvalidSQL(t *testing.T) {
	t.Parallel()
	svc := NewService(testgen.NewCatalog(t))

	ctx := context.Background()

	// Depending on the driver the statement is compiled when prepared or on
	// first execution; either way the failure is a store error.
	stmt, err := svc.Prepare(ctx, "broken", "UPDATE NoSuchTable SET x = ?")
	if err == nil {
		defer stmt.Close()
		_, err = stmt.Exec(ctx, 1)
	}
	require.Error(t, err)
	assert.True(t, errcodes.IsStore(err))
	assert.Contains(t, err.Error(), "failed for broken")
}
