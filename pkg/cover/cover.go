// Package cover computes the image descriptor the media server stores for an
// album's primary image: its path, modification time, size and blurhash.
package cover

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	// Register decoders for every format the media server accepts as cover art.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/buckket/go-blurhash"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxComponents is the blurhash component count of the longer side.
	MaxComponents = 5

	// rowsPerComponent sets the height images are reduced to before hashing.
	rowsPerComponent = 32

	// epochTicks is 1970-01-01 in 100ns ticks since 0001-01-01.
	epochTicks = 621355968000000000

	imageType = "Primary"
)

// ImageError reports a cover that was found but could not be used.
type ImageError struct {
	Path   string
	Reason string
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("cover %s: %s", e.Path, e.Reason)
}

// decodableTypes are the image types with a registered decoder.
var decodableTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp"}

func decodable(mtype *mimetype.MIME) bool {
	for _, t := range decodableTypes {
		if mtype.Is(t) {
			return true
		}
	}
	return false
}

type Encoder struct {
	// ImageName is matched as a substring of file names in the album directory.
	ImageName string
}

func NewEncoder(imageName string) *Encoder {
	return &Encoder{ImageName: imageName}
}

// Find returns the path of the first file in dir, in name order, whose name
// contains the image name, or "" when there is none.
func (e *Encoder) Find(dir string) (string, error) {
	if e.ImageName == "" {
		return "", nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.WithStack(err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), e.ImageName) {
			continue
		}
		return filepath.Join(dir, entry.Name()), nil
	}
	return "", nil
}

// Describe returns the descriptor of the cover image in dir. It returns ""
// without an error when dir has no cover. A cover that cannot be decoded or is
// not plain RGB is reported as an *ImageError.
func (e *Encoder) Describe(ctx context.Context, dir string) (string, error) {
	path, err := e.Find(dir)
	if err != nil || path == "" {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", errors.WithStack(err)
	}
	return DescribeFile(path)
}

// DescribeFile returns the descriptor of the image at path.
func DescribeFile(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", &ImageError{Path: path, Reason: "unable to load image of type " + mtype.String()}
	}
	if !decodable(mtype) {
		return "", &ImageError{Path: path, Reason: "no decoder for image type " + mtype.String()}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", &ImageError{Path: path, Reason: "unable to load image: " + err.Error()}
	}
	if n := channelCount(img); n != 3 {
		return "", &ImageError{Path: path, Reason: fmt.Sprintf("couldn't decode to 3 channel RGB, image has %d channels", n)}
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return "", &ImageError{Path: path, Reason: "image is empty"}
	}

	x, y := Components(width, height)
	hash, err := blurhash.Encode(x, y, Resample(img, x*rowsPerComponent))
	if err != nil {
		return "", errors.WithStack(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	canonical, err := Canonical(path)
	if err != nil {
		return "", err
	}

	return Format(canonical, Ticks(info.ModTime().UnixMilli()), width, height, hash), nil
}

// Format assembles a descriptor string.
func Format(path string, ticks int64, width, height int, hash string) string {
	return fmt.Sprintf("%s*%d*%s*%d*%d*%s", path, ticks, imageType, width, height, hash)
}

// Ticks converts Unix milliseconds to 100ns ticks since 0001-01-01.
func Ticks(unixMillis int64) int64 {
	return unixMillis*10000 + epochTicks
}

// Canonical returns the absolute path of p with symlinks resolved.
func Canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.WithStack(err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return resolved, nil
}

// Components returns the blurhash grid for an image of the given size. The
// longer side gets MaxComponents and the shorter side MaxComponents divided
// by the whole aspect ratio, never less than one.
func Components(width, height int) (x, y int) {
	switch {
	case width == height:
		return MaxComponents, MaxComponents
	case width > height:
		return MaxComponents, max(MaxComponents/(width/height), 1)
	default:
		return max(MaxComponents/(height/width), 1), MaxComponents
	}
}

// Resample reduces img to the given height with proportional width. Images
// no taller than height are returned unchanged.
func Resample(img image.Image, height int) image.Image {
	bounds := img.Bounds()
	if height <= 0 || bounds.Dy() <= height {
		return img
	}
	width := max(bounds.Dx()*height/bounds.Dy(), 1)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// channelCount returns how many channels the decoded image carries. Decoders
// produce RGBA and RGBA64 only for sources without an alpha channel.
func channelCount(img image.Image) int {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16, *image.Alpha, *image.Alpha16:
		return 1
	case *image.CMYK, *image.NRGBA, *image.NRGBA64, *image.NYCbCrA:
		return 4
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return 4
			}
		}
		return 3
	default:
		return 3
	}
}
