// Package config provides configuration loading and management for warpresample.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"warpresample/internal/models"
	"warpresample/pkg/export"
	"warpresample/pkg/field"
	"warpresample/pkg/geom"
	"warpresample/pkg/transform"
)

// ErrInvalid is returned by Validate and Build for unusable settings.
var ErrInvalid = errors.New("config: invalid")

// SourceDims is the dimensionality of the slice stacks the configuration
// describes.
const SourceDims = 3

// Config represents the application configuration
type Config struct {
	// Export parameters
	Export struct {
		// NumThreads is the number of export workers
		NumThreads int `yaml:"numThreads" toml:"numThreads"`

		// Policy is "iter" or "slice"
		Policy string `yaml:"policy" toml:"policy"`

		// Interpolation is "nearest" or "linear"
		Interpolation string `yaml:"interpolation" toml:"interpolation"`

		// Virtual skips materializing the output raster
		Virtual bool `yaml:"virtual" toml:"virtual"`

		Timepoint int `yaml:"timepoint" toml:"timepoint"`

		// Resolution is the physical size of an output pixel per dimension
		Resolution []float64 `yaml:"resolution" toml:"resolution"`

		// Offset of the output field of view, in output pixels
		Offset []float64 `yaml:"offset" toml:"offset"`

		// IntervalMin and IntervalMax fix the output interval; empty derives it
		IntervalMin []int64 `yaml:"intervalMin" toml:"intervalMin"`
		IntervalMax []int64 `yaml:"intervalMax" toml:"intervalMax"`
	} `yaml:"export" toml:"export"`

	// Transform maps output (target) space into the moving image
	Transform Transform `yaml:"transform" toml:"transform"`

	// Input parameters
	Input struct {
		// Dir holds the slice images of the moving image
		Dir string `yaml:"dir" toml:"dir"`

		// Name of the moving source
		Name string `yaml:"name" toml:"name"`

		// SliceGap is the physical distance between consecutive slices
		SliceGap float64 `yaml:"sliceGap" toml:"sliceGap"`

		// PixelSize is the in-plane physical pixel size
		PixelSize float64 `yaml:"pixelSize" toml:"pixelSize"`

		Unit string `yaml:"unit" toml:"unit"`
	} `yaml:"input" toml:"input"`

	// Landmarks define the output interval when set
	Landmarks struct {
		File string `yaml:"file" toml:"file"`

		// Moving selects the moving columns instead of the target columns
		Moving bool `yaml:"moving" toml:"moving"`

		// ActiveOnly ignores landmarks flagged inactive
		ActiveOnly bool `yaml:"activeOnly" toml:"activeOnly"`
	} `yaml:"landmarks" toml:"landmarks"`

	// Output parameters
	Output struct {
		Dir string `yaml:"dir" toml:"dir"`

		// Axes lists the section axes written per channel
		Axes []string `yaml:"axes" toml:"axes"`

		// RegionMin and RegionMax crop the written sections; empty writes all
		RegionMin []int64 `yaml:"regionMin" toml:"regionMin"`
		RegionMax []int64 `yaml:"regionMax" toml:"regionMax"`
	} `yaml:"output" toml:"output"`

	// Logging parameters
	Logging struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level" toml:"level"`
	} `yaml:"logging" toml:"logging"`
}

// Transform describes the transform applied to the moving image.
type Transform struct {
	// Type is identity, translation, scale or affine
	Type string `yaml:"type" toml:"type"`

	Translation []float64 `yaml:"translation,omitempty" toml:"translation,omitempty"`
	Scale       []float64 `yaml:"scale,omitempty" toml:"scale,omitempty"`

	// Matrix is the row-packed n x (n+1) affine matrix
	Matrix []float64 `yaml:"matrix,omitempty" toml:"matrix,omitempty"`

	// Invert uses the inverse of the described transform
	Invert bool `yaml:"invert" toml:"invert"`

	// Wrap2D builds a 2D transform and applies it to each z section
	Wrap2D bool `yaml:"wrap2D" toml:"wrap2D"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default export parameters
	cfg.Export.NumThreads = runtime.NumCPU() // Use all available cores by default
	cfg.Export.Policy = export.PolicyIter.String()
	cfg.Export.Interpolation = field.NLinear.String()
	cfg.Export.Resolution = []float64{1, 1, 1}
	cfg.Export.Offset = []float64{0, 0, 0}

	cfg.Transform.Type = "identity"

	// Set default input parameters
	cfg.Input.Dir = "slices"
	cfg.Input.Name = "moving"
	cfg.Input.SliceGap = 1.0
	cfg.Input.PixelSize = 1.0
	cfg.Input.Unit = "mm"

	cfg.Landmarks.ActiveOnly = true

	// Set default output parameters
	cfg.Output.Dir = "exported_slices"
	cfg.Output.Axes = []string{"z"}

	cfg.Logging.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by
// extension. If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	if c.Export.NumThreads < 1 {
		return fmt.Errorf("%w: export.numThreads must be positive, got %d", ErrInvalid, c.Export.NumThreads)
	}
	if _, err := export.ParsePolicy(c.Export.Policy); err != nil {
		return fmt.Errorf("%w: export.policy: %w", ErrInvalid, err)
	}
	if _, err := field.ParseInterpolation(c.Export.Interpolation); err != nil {
		return fmt.Errorf("%w: export.interpolation: %w", ErrInvalid, err)
	}
	if n := len(c.Export.Resolution); n != 0 && n != SourceDims {
		return fmt.Errorf("%w: export.resolution has %d values, expected %d", ErrInvalid, n, SourceDims)
	}
	for _, r := range c.Export.Resolution {
		if r <= 0 {
			return fmt.Errorf("%w: export.resolution entries must be positive", ErrInvalid)
		}
	}
	if n := len(c.Export.Offset); n != 0 && n != SourceDims {
		return fmt.Errorf("%w: export.offset has %d values, expected %d", ErrInvalid, n, SourceDims)
	}
	if len(c.Export.IntervalMin) > 0 || len(c.Export.IntervalMax) > 0 {
		if _, err := c.OutputInterval(); err != nil {
			return err
		}
	}
	if c.Input.SliceGap <= 0 || c.Input.PixelSize <= 0 {
		return fmt.Errorf("%w: input.sliceGap and input.pixelSize must be positive", ErrInvalid)
	}
	if _, err := c.OutputAxes(); err != nil {
		return err
	}
	if _, err := c.OutputRegion(); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalid, c.Logging.Level)
	}
	return nil
}

// OutputInterval returns the configured output interval, or nil when none
// is set.
func (c *Config) OutputInterval() (*geom.Interval, error) {
	if len(c.Export.IntervalMin) == 0 && len(c.Export.IntervalMax) == 0 {
		return nil, nil
	}
	itvl, err := geom.NewInterval(c.Export.IntervalMin, c.Export.IntervalMax)
	if err != nil {
		return nil, fmt.Errorf("%w: export interval: %w", ErrInvalid, err)
	}
	return &itvl, nil
}

// OutputRegion returns the region the written sections are cropped to, or
// nil when none is set.
func (c *Config) OutputRegion() (*geom.Interval, error) {
	if len(c.Output.RegionMin) == 0 && len(c.Output.RegionMax) == 0 {
		return nil, nil
	}
	itvl, err := geom.NewInterval(c.Output.RegionMin, c.Output.RegionMax)
	if err != nil {
		return nil, fmt.Errorf("%w: output region: %w", ErrInvalid, err)
	}
	if itvl.NumDims() != SourceDims {
		return nil, fmt.Errorf("%w: output region has %d dimensions, expected %d", ErrInvalid, itvl.NumDims(), SourceDims)
	}
	return &itvl, nil
}

// OutputAxes parses Output.Axes.
func (c *Config) OutputAxes() ([]models.Axis, error) {
	axes := make([]models.Axis, 0, len(c.Output.Axes))
	for _, s := range c.Output.Axes {
		a, ok := models.ParseAxis(s)
		if !ok {
			return nil, fmt.Errorf("%w: output axis %q (must be x, y, or z)", ErrInvalid, s)
		}
		axes = append(axes, a)
	}
	return axes, nil
}

// VoxelSize returns the physical voxel size of the input slices.
func (c *Config) VoxelSize() models.VoxelSize {
	return models.VoxelSize{X: c.Input.PixelSize, Y: c.Input.PixelSize, Z: c.Input.SliceGap, Unit: c.Input.Unit}
}

// Build returns the described transform for ndims-dimensional sources.
func (t Transform) Build(ndims int) (transform.InvertibleRealTransform, error) {
	n := ndims
	if t.Wrap2D {
		if ndims != 3 {
			return nil, fmt.Errorf("%w: wrap2D needs 3D sources, got %dD", ErrInvalid, ndims)
		}
		n = 2
	}

	var xfm transform.InvertibleRealTransform
	switch strings.ToLower(t.Type) {
	case "", "identity":
		xfm = transform.NewAffine(n)
	case "translation":
		if len(t.Translation) != n {
			return nil, fmt.Errorf("%w: translation has %d values for %dD", ErrInvalid, len(t.Translation), n)
		}
		xfm = transform.NewTranslation(t.Translation...)
	case "scale":
		if len(t.Scale) != n {
			return nil, fmt.Errorf("%w: scale has %d values for %dD", ErrInvalid, len(t.Scale), n)
		}
		xfm = transform.NewScale(t.Scale...)
	case "affine":
		a, err := transform.NewAffineFromRows(n, t.Matrix)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		xfm = a
	default:
		return nil, fmt.Errorf("%w: transform type %q", ErrInvalid, t.Type)
	}

	if t.Invert {
		inv, err := xfm.Inverse()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		xfm = inv
	}
	if t.Wrap2D {
		return transform.NewWrapped2DAs3D(xfm)
	}
	return xfm, nil
}
