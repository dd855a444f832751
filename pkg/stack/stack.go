// Package stack loads a directory of 2D slice images as a 3D volume.
//
// Slices are ordered by the number embedded in their filenames, so
// slice_2.png precedes slice_10.png. JPEG, PNG and TIFF files are accepted;
// all slices must share the same size.
package stack

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	_ "golang.org/x/image/tiff"
	"golang.org/x/sync/errgroup"

	"warpresample/internal/models"
	"warpresample/pkg/geom"
	"warpresample/pkg/raster"
	"warpresample/pkg/source"
	"warpresample/pkg/transform"
)

var (
	// ErrNoImages is returned when a directory holds no slice images.
	ErrNoImages = errors.New("stack: no slice images found")

	// ErrSizeMismatch is returned when slices differ in size.
	ErrSizeMismatch = errors.New("stack: slices differ in size")
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true,
}

// LoadDir reads all slice images in dir, sorted by the number in their
// filenames. Slices are decoded concurrently by up to workers goroutines
// (at least one). Slice positions are index * sliceGap.
func LoadDir(ctx context.Context, dir string, sliceGap float64, workers int) ([]models.Slice, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	// Filter image files
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}

	// Numeric order keeps slice_2 before slice_10; ties fall back to the name
	sort.SliceStable(names, func(i, j int) bool {
		ni, nj := extractNumber(names[i]), extractNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})

	slices := make([]models.Slice, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := loadImage(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("failed to load image %s: %w", name, err)
			}
			slices[i] = models.Slice{
				Image:    img,
				Index:    i,
				Filename: name,
				Position: float64(i) * sliceGap,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := slices[0].Image.Bounds()
	for _, s := range slices[1:] {
		if s.Image.Bounds().Dx() != b.Dx() || s.Image.Bounds().Dy() != b.Dy() {
			return nil, fmt.Errorf("%w: %s is %dx%d, %s is %dx%d", ErrSizeMismatch,
				slices[0].Filename, b.Dx(), b.Dy(), s.Filename, s.Image.Bounds().Dx(), s.Image.Bounds().Dy())
		}
	}

	log.FromContext(ctx).Info("loaded slices", "count", len(slices), "width", b.Dx(), "height", b.Dy(), "dir", dir)
	return slices, nil
}

// extractNumber returns the digits of a filename read as one number, or 0
// when it has none.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() > 0 {
		if n, err := strconv.Atoi(digits.String()); err == nil {
			return n
		}
	}
	return 0
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// ToRaster stacks the slices into a width x height x depth raster. Samples
// are the red channel scaled to [0, 1].
func ToRaster(slices []models.Slice) (*raster.Raster, error) {
	if len(slices) == 0 {
		return nil, ErrNoImages
	}
	b := slices[0].Image.Bounds()
	w, h := b.Dx(), b.Dy()
	r := raster.New(geom.FromDimensions(int64(w), int64(h), int64(len(slices))))
	data := r.Data()
	size := w * h
	for z, s := range slices {
		sb := s.Image.Bounds()
		if sb.Dx() != w || sb.Dy() != h {
			return nil, fmt.Errorf("%w: slice %d", ErrSizeMismatch, z)
		}
		imageToFloat(s.Image, data[z*size:(z+1)*size])
	}
	return r, nil
}

// imageToFloat writes the red channel of img into dst in row-major order.
func imageToFloat(img image.Image, dst []float64) {
	b := img.Bounds()
	width := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dst[y*width+x] = float64(r) / 65535.0
		}
	}
}

// NewSource wraps the slices as a single-timepoint source placed in
// physical space by the voxel size.
func NewSource(name string, slices []models.Slice, voxel models.VoxelSize) (*source.ArraySource, error) {
	r, err := ToRaster(slices)
	if err != nil {
		return nil, err
	}
	size := [3]float64{voxel.X, voxel.Y, voxel.Z}
	for d, v := range size {
		if v <= 0 {
			size[d] = 1
		}
	}
	placement := transform.NewScale(size[0], size[1], size[2])
	return source.NewArraySource(name,
		source.VoxelDimensions{Unit: voxel.Unit, Size: size[:]},
		[][]*raster.Raster{{r}},
		[]*transform.Affine{placement})
}
