package cover

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shishobooks/jellytweak/internal/testgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponents(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		x, y          int
	}{
		{"square", 600, 600, 5, 5},
		{"landscape 2:1", 1000, 500, 5, 2},
		{"landscape under 2:1", 700, 500, 5, 5},
		{"portrait 1:3", 200, 600, 1, 5},
		{"very wide", 1200, 100, 5, 1},
		{"very tall", 10, 1000, 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := Components(tt.width, tt.height)
			assert.Equal(t, tt.x, x)
			assert.Equal(t, tt.y, y)
		})
	}
}

func TestTicks(t *testing.T) {
	assert.Equal(t, int64(621355968000000000), Ticks(0))
	// 2024-01-01T00:00:00Z
	assert.Equal(t, int64(638396640000000000), Ticks(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "/m/Frontal.jpg*42*Primary*100*50*LEHV6n", Format("/m/Frontal.jpg", 42, 100, 50, "LEHV6n"))
}

func TestResample(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 800))
	dst := Resample(src, 160)
	assert.Equal(t, 80, dst.Bounds().Dx())
	assert.Equal(t, 160, dst.Bounds().Dy())

	small := image.NewRGBA(image.Rect(0, 0, 40, 40))
	assert.Same(t, small, Resample(small, 160))
}

func TestChannelCount(t *testing.T) {
	r := image.Rect(0, 0, 2, 2)
	opaque := image.NewPaletted(r, color.Palette{color.RGBA{1, 2, 3, 255}})
	translucent := image.NewPaletted(r, color.Palette{color.RGBA{0, 0, 0, 0}})

	assert.Equal(t, 3, channelCount(image.NewRGBA(r)))
	assert.Equal(t, 3, channelCount(image.NewYCbCr(r, image.YCbCrSubsampleRatio420)))
	assert.Equal(t, 3, channelCount(opaque))
	assert.Equal(t, 4, channelCount(translucent))
	assert.Equal(t, 4, channelCount(image.NewNRGBA(r)))
	assert.Equal(t, 4, channelCount(image.NewCMYK(r)))
	assert.Equal(t, 1, channelCount(image.NewGray(r)))
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()
	dir := testgen.CreateAlbum(t, testgen.TempMusicDir(t), testgen.AlbumOptions{
		Name:        "Pink Floyd - The Wall",
		Tracks:      []string{"1-01 - In The Flesh.mp3"},
		Cover:       "Frontal.jpg",
		CoverWidth:  300,
		CoverHeight: 200,
	})
	coverPath := filepath.Join(dir, "Frontal.jpg")
	mtime := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, os.Chtimes(coverPath, mtime, mtime))

	enc := NewEncoder("Frontal")
	descriptor, err := enc.Describe(ctx, dir)
	require.NoError(t, err)

	canonical, err := Canonical(coverPath)
	require.NoError(t, err)

	parts := strings.Split(descriptor, "*")
	require.Len(t, parts, 6)
	assert.Equal(t, canonical, parts[0])
	assert.Equal(t, strconv.FormatInt(Ticks(mtime.UnixMilli()), 10), parts[1])
	assert.Equal(t, "Primary", parts[2])
	assert.Equal(t, "300", parts[3])
	assert.Equal(t, "200", parts[4])
	assert.NotEmpty(t, parts[5])

	again, err := enc.Describe(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, descriptor, again)
}

func TestDescribe_NoCover(t *testing.T) {
	dir := testgen.CreateAlbum(t, testgen.TempMusicDir(t), testgen.AlbumOptions{
		Name:   "A - B",
		Tracks: []string{"01 - a.mp3"},
		Cover:  "folder.jpg",
	})

	descriptor, err := NewEncoder("Frontal").Describe(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, descriptor)
}

func TestDescribe_UnusableCover(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   []byte
	}{
		{name: "translucent", format: "image/png+alpha"},
		{name: "grayscale", format: "image/png+gray"},
		{name: "not an image", data: []byte("definitely not a picture")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testgen.TempMusicDir(t)
			data := tt.data
			if data == nil {
				data = testgen.GenerateImage(t, tt.format, 20, 20)
			}
			testgen.WriteFile(t, dir, "Frontal.png", data)

			descriptor, err := NewEncoder("Frontal").Describe(context.Background(), dir)
			assert.Empty(t, descriptor)

			var imageErr *ImageError
			require.ErrorAs(t, err, &imageErr)
			assert.Equal(t, filepath.Join(dir, "Frontal.png"), imageErr.Path)
		})
	}
}

func TestDescribeFile_NoDecoder(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
		mime string
	}{
		{"tiff", "Frontal.tiff", []byte("II*\x00\x08\x00\x00\x00\x00\x00\x00\x00"), "image/tiff"},
		{"svg", "Frontal.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"></svg>`), "image/svg+xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testgen.TempMusicDir(t)
			path := testgen.WriteFile(t, dir, tt.file, tt.data)

			descriptor, err := DescribeFile(path)
			assert.Empty(t, descriptor)

			var imageErr *ImageError
			require.ErrorAs(t, err, &imageErr)
			assert.True(t, strings.HasPrefix(imageErr.Reason, "no decoder for image type "+tt.mime), imageErr.Reason)
		})
	}
}

func TestFind_FirstMatchInNameOrder(t *testing.T) {
	dir := testgen.TempMusicDir(t)
	testgen.WriteFile(t, dir, "b-Frontal.png", nil)
	testgen.WriteFile(t, dir, "a-Frontal.jpg", nil)
	testgen.CreateSubDir(t, dir, "0-Frontal")

	path, err := NewEncoder("Frontal").Find(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a-Frontal.jpg"), path)

	path, err = NewEncoder("").Find(dir)
	require.NoError(t, err)
	assert.Empty(t, path)
}
