package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"warpresample/internal/models"
	"warpresample/pkg/export"
	"warpresample/pkg/geom"
	"warpresample/pkg/raster"
)

// Viewer renders 2D sections of an exported channel. The channel is read
// through a sampling function over a 2D or 3D interval; a 2D interval is
// treated as a volume of depth one.
type Viewer struct {
	read     func(pos []int64) float64
	interval geom.Interval

	// dimensions of the volume
	width  int
	height int
	depth  int

	// window maps [lo, hi] onto the full gray range
	lo, hi float64

	pos []int64
}

// NewViewer creates a viewer over read sampled on itvl. Sample values
// between lo and hi are stretched over the gray range; lo == hi selects
// [0, 1].
func NewViewer(read func(pos []int64) float64, itvl geom.Interval, lo, hi float64) (*Viewer, error) {
	nd := itvl.NumDims()
	if nd != 2 && nd != 3 {
		return nil, fmt.Errorf("viewer needs a 2D or 3D interval, got %dD", nd)
	}
	if hi <= lo {
		lo, hi = 0, 1
	}
	v := &Viewer{
		read:     read,
		interval: itvl.Clone(),
		width:    int(itvl.Dimension(0)),
		height:   int(itvl.Dimension(1)),
		depth:    1,
		lo:       lo,
		hi:       hi,
		pos:      make([]int64, nd),
	}
	if nd == 3 {
		v.depth = int(itvl.Dimension(2))
	}
	return v, nil
}

// ChannelViewer creates a viewer over an exported channel windowed by its
// statistics. Virtual channels carry no statistics and use [0, 1].
func ChannelViewer(ch export.Channel, itvl geom.Interval) (*Viewer, error) {
	return NewViewer(ch.Reader(), itvl, ch.Stats.Min, ch.Stats.Max)
}

// at samples the volume at (x, y, z) relative to the interval minimum.
func (v *Viewer) at(x, y, z int) float64 {
	v.pos[0] = v.interval.Min[0] + int64(x)
	v.pos[1] = v.interval.Min[1] + int64(y)
	if len(v.pos) == 3 {
		v.pos[2] = v.interval.Min[2] + int64(z)
	}
	return v.read(v.pos)
}

func (v *Viewer) gray(value float64) color.Gray16 {
	n := (value - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, n*65535)))}
}

// extent returns the number of sections along axis.
func (v *Viewer) extent(axis models.Axis) int {
	switch axis {
	case models.AxisX:
		return v.width
	case models.AxisY:
		return v.height
	default:
		return v.depth
	}
}

// ExtractSlice extracts the section at position along axis. X sections
// span z by y, Y sections x by z and Z sections x by y.
func (v *Viewer) ExtractSlice(axis models.Axis, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	if n := v.extent(axis); position >= n {
		return nil, fmt.Errorf("position %d exceeds %s extent %d", position, axis, n)
	}

	var img *image.Gray16
	switch axis {
	case models.AxisX:
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.gray(v.at(position, y, z)))
			}
		}
	case models.AxisY:
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.gray(v.at(x, position, z)))
			}
		}
	default:
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.gray(v.at(x, y, position)))
			}
		}
	}
	return img, nil
}

// ExtractRegion copies the samples of sub, which must lie inside the viewed
// interval, into a raster.
func (v *Viewer) ExtractRegion(sub geom.Interval) (*raster.Raster, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if !v.interval.ContainsInterval(sub) {
		return nil, fmt.Errorf("region %v extends beyond volume %v", sub, v.interval)
	}
	r := raster.New(sub)
	r.Fill(v.read)
	return r, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every section along axis as
// slice_<axis>_<index>.jpg in outputDir.
func (v *Viewer) SaveSliceSequence(axis models.Axis, outputDir string) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	n := v.extent(axis)
	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}
	return n, nil
}

// SliceWriter persists export results as JPEG slice sequences, one
// directory per channel. It satisfies export.ResultHandler.
type SliceWriter struct {
	OutputDir string
	Axes      []models.Axis
	Logger    *log.Logger

	// Region, when set, crops every channel to its overlap with the result
	// interval before writing.
	Region *geom.Interval
}

// NewSliceWriter writes z sections into outputDir.
func NewSliceWriter(outputDir string, axes ...models.Axis) *SliceWriter {
	if len(axes) == 0 {
		axes = []models.Axis{models.AxisZ}
	}
	return &SliceWriter{OutputDir: outputDir, Axes: axes, Logger: log.Default()}
}

// HandleResult writes every channel of r.
func (w *SliceWriter) HandleResult(r *export.Result) error {
	logger := w.Logger
	if logger == nil {
		logger = log.Default()
	}
	for _, ch := range r.Channels {
		viewer, err := ChannelViewer(ch, r.Interval)
		if err != nil {
			return fmt.Errorf("channel %s: %w", ch.Name, err)
		}
		if w.Region != nil {
			if viewer, err = w.crop(viewer, ch, r.Interval); err != nil {
				return fmt.Errorf("channel %s: %w", ch.Name, err)
			}
		}
		dir := filepath.Join(w.OutputDir, ch.Name)
		for _, axis := range w.Axes {
			n, err := viewer.SaveSliceSequence(axis, dir)
			if err != nil {
				return fmt.Errorf("channel %s axis %s: %w", ch.Name, axis, err)
			}
			logger.Info("wrote slices", "channel", ch.Name, "axis", axis, "count", n, "dir", dir)
		}
	}
	return nil
}

// crop copies the part of the channel inside Region and views the copy.
func (w *SliceWriter) crop(v *Viewer, ch export.Channel, itvl geom.Interval) (*Viewer, error) {
	if w.Region.NumDims() != itvl.NumDims() {
		return nil, fmt.Errorf("%dD region for %dD result", w.Region.NumDims(), itvl.NumDims())
	}
	sub, ok := w.Region.Intersect(itvl)
	if !ok {
		return nil, fmt.Errorf("region %v does not overlap %v", *w.Region, itvl)
	}
	region, err := v.ExtractRegion(sub)
	if err != nil {
		return nil, err
	}
	return NewViewer(region.At, region.Interval(), ch.Stats.Min, ch.Stats.Max)
}
