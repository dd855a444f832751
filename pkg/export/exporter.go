// Package export materializes an output raster by resampling transformed
// sources over an output interval in parallel.
//
// Each output pixel p is mapped to physical space by the render transform
// (resolution scale ∘ pixel offset) and sampled from every moving source. A
// fresh worker pool is created for each copy and discarded afterwards.
package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"warpresample/pkg/bounds"
	"warpresample/pkg/field"
	"warpresample/pkg/geom"
	"warpresample/pkg/raster"
	"warpresample/pkg/source"
	"warpresample/pkg/transform"
)

// Exporter resamples moving sources into an output raster. Setters may be
// called concurrently with a running export; each export works on a
// snapshot of the configuration taken when it starts.
type Exporter struct {
	sources []source.Source
	moving  []int
	target  []int
	ndims   int

	mu              sync.Mutex
	interp          field.Interpolation
	virtual         bool
	nThreads        int
	policy          Policy
	timepoint       int
	resolution      *transform.Affine
	offset          *transform.Affine
	pixelToPhysical *transform.Affine
	outputInterval  *geom.Interval
	progress        ProgressWriter
	handler         ResultHandler
	logger          *log.Logger
	closed          bool
	pools           map[*pool]struct{}
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// WithNumThreads sets the worker count.
func WithNumThreads(n int) Option {
	return func(e *Exporter) { e.nThreads = n }
}

// WithPolicy sets the parallelization policy.
func WithPolicy(p Policy) Option {
	return func(e *Exporter) { e.policy = p }
}

// WithVirtual selects a lazily evaluated result instead of a copy.
func WithVirtual(virtual bool) Option {
	return func(e *Exporter) { e.virtual = virtual }
}

// WithTimepoint selects the timepoint to export.
func WithTimepoint(t int) Option {
	return func(e *Exporter) { e.timepoint = t }
}

// WithResultHandler sets the collaborator receiving results of asynchronous
// exports.
func WithResultHandler(h ResultHandler) Option {
	return func(e *Exporter) { e.handler = h }
}

// NewExporter returns an exporter for the moving sources at movingIdx. The
// target sources at targetIdx only define the default output interval.
func NewExporter(sources []source.Source, movingIdx, targetIdx []int, interp field.Interpolation, progress ProgressWriter, opts ...Option) (*Exporter, error) {
	if len(movingIdx) == 0 {
		return nil, fmt.Errorf("%w: no moving sources", ErrInvalidConfig)
	}
	for _, list := range [][]int{movingIdx, targetIdx} {
		for _, i := range list {
			if i < 0 || i >= len(sources) || sources[i] == nil {
				return nil, fmt.Errorf("%w: source index %d out of range [0, %d)", ErrInvalidConfig, i, len(sources))
			}
		}
	}
	if progress == nil {
		progress = NopProgress
	}
	ndims := sources[movingIdx[0]].SourceTransform(0, 0).NumSourceDims()
	e := &Exporter{
		sources:         sources,
		moving:          append([]int(nil), movingIdx...),
		target:          append([]int(nil), targetIdx...),
		ndims:           ndims,
		interp:          interp,
		nThreads:        1,
		policy:          PolicyIter,
		resolution:      transform.NewAffine(ndims),
		offset:          transform.NewAffine(ndims),
		pixelToPhysical: transform.NewAffine(ndims),
		progress:        progress,
		logger:          log.Default(),
		pools:           make(map[*pool]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	return e, nil
}

func (e *Exporter) SetInterp(interp field.Interpolation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interp = interp
}

func (e *Exporter) SetVirtual(virtual bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.virtual = virtual
}

func (e *Exporter) SetParallelizationPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

func (e *Exporter) SetNumThreads(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nThreads = n
}

func (e *Exporter) SetTimepoint(t int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timepoint = t
}

// SetRenderResolution sets the physical size of an output pixel per
// dimension. Call BuildTotalRenderTransform afterwards.
func (e *Exporter) SetRenderResolution(res ...float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < len(res) && i < e.ndims; i++ {
		e.resolution.Set(i, i, res[i])
	}
}

// SetOffset sets the offset of the output field of view in pixels. Call
// BuildTotalRenderTransform afterwards.
func (e *Exporter) SetOffset(offset ...float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i < len(offset) && i < e.ndims; i++ {
		e.offset.Set(i, e.ndims, offset[i])
	}
}

// BuildTotalRenderTransform rebuilds the output-pixel-to-physical transform
// from the resolution and the offset. It is not derived automatically.
func (e *Exporter) BuildTotalRenderTransform() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pixelToPhysical.Identity()
	e.pixelToPhysical.Concatenate(e.resolution)
	e.pixelToPhysical.Concatenate(e.offset)
}

// RenderTransform returns a copy of the current output-pixel-to-physical
// transform.
func (e *Exporter) RenderTransform() *transform.Affine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pixelToPhysical.Clone()
}

// SetInterval sets the output interval in output pixel coordinates.
func (e *Exporter) SetInterval(itvl geom.Interval) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := itvl.Clone()
	e.outputInterval = &c
}

// DestinationIntervalFromLandmarks returns the smallest interval containing
// every landmark point.
func (e *Exporter) DestinationIntervalFromLandmarks(pts [][]float64) (geom.Interval, error) {
	itvl, err := geom.BoundingInterval(pts)
	if err != nil {
		return geom.Interval{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return itvl, nil
}

// Shutdown rejects all further work. Copies in flight stop submitting
// workers; exports started afterwards fail with ErrRejected.
func (e *Exporter) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for p := range e.pools {
		p.shutdown()
	}
}

func (e *Exporter) acquire(size int) (*pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrRejected
	}
	p := newPool(size)
	e.pools[p] = struct{}{}
	return p, nil
}

func (e *Exporter) release(p *pool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pools, p)
}

// settings is the configuration snapshot of one export.
type settings struct {
	interp          field.Interpolation
	virtual         bool
	nThreads        int
	policy          Policy
	timepoint       int
	pixelToPhysical *transform.Affine
	interval        *geom.Interval
	progress        ProgressWriter
	logger          *log.Logger
	closed          bool
}

func (e *Exporter) snapshot() settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := settings{
		interp:          e.interp,
		virtual:         e.virtual,
		nThreads:        e.nThreads,
		policy:          e.policy,
		timepoint:       e.timepoint,
		pixelToPhysical: e.pixelToPhysical.Clone(),
		progress:        e.progress,
		logger:          e.logger,
		closed:          e.closed,
	}
	if e.outputInterval != nil {
		c := e.outputInterval.Clone()
		s.interval = &c
	}
	return s
}

// Export runs the export synchronously. Configuration problems fail before
// any worker starts. Worker failures yield a partially filled result listing
// the failed regions.
func (e *Exporter) Export(ctx context.Context) (*Result, error) {
	return e.export(ctx, uuid.NewString())
}

func (e *Exporter) export(ctx context.Context, jobID string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := e.snapshot()
	if s.closed {
		return nil, ErrRejected
	}
	logger := s.logger.With("job", jobID)

	if s.nThreads < 1 {
		return nil, fmt.Errorf("%w: thread count %d", ErrInvalidConfig, s.nThreads)
	}
	for _, i := range e.moving {
		if !e.sources[i].IsPresent(s.timepoint) {
			return nil, fmt.Errorf("%w: source %q has no timepoint %d", ErrInvalidConfig, e.sources[i].Name(), s.timepoint)
		}
	}
	itvl, err := e.resolveInterval(s)
	if err != nil {
		return nil, err
	}

	fields := make([]field.RealField, len(e.moving))
	for k, i := range e.moving {
		f, err := renderField(e.sources[i], s)
		if err != nil {
			return nil, fmt.Errorf("source %d (%s): %w", i, e.sources[i].Name(), err)
		}
		fields[k] = f
	}

	start := time.Now()
	result := &Result{
		JobID:           jobID,
		Interval:        itvl,
		RenderTransform: s.pixelToPhysical,
		Virtual:         s.virtual,
	}
	logger.Info("export started",
		"interval", itvl.String(), "channels", len(fields), "threads", s.nThreads,
		"policy", s.policy, "interp", s.interp, "virtual", s.virtual)

	c := &copier{logger: logger, acquire: e.acquire, release: e.release}
	for k, f := range fields {
		i := e.moving[k]
		ch := Channel{Name: e.sources[i].Name(), SourceIndex: i}
		if s.virtual {
			ch.View, err = field.NewView(f, itvl)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
			}
			result.Channels = append(result.Channels, ch)
			continue
		}

		ch.Raster = raster.New(itvl)
		failures, err := c.copy(s.policy, f, ch.Raster, s.nThreads,
			channelProgress{sink: s.progress, k: k, n: len(fields)})
		for _, wf := range failures {
			wf.Channel = k
			result.Failures = append(result.Failures, wf)
		}
		if err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}
		ch.Stats = StatsOf(ch.Raster.Data())
		result.Channels = append(result.Channels, ch)
	}
	result.Elapsed = time.Since(start)

	if result.Failed() {
		logger.Warn("export finished with failed regions",
			"failures", len(result.Failures), "took", result.Elapsed)
	} else {
		logger.Info("export finished", "took", result.Elapsed)
	}
	return result, nil
}

// resolveInterval returns the configured interval, or else the bounds of the
// first target source (or, lacking one, the first moving source) in output
// pixel coordinates.
func (e *Exporter) resolveInterval(s settings) (geom.Interval, error) {
	if s.interval != nil {
		if err := s.interval.Validate(); err != nil {
			return geom.Interval{}, fmt.Errorf("%w: output interval: %w", ErrInvalidConfig, err)
		}
		if s.interval.NumDims() != e.ndims {
			return geom.Interval{}, fmt.Errorf("%w: output interval has %d dimensions, sources have %d",
				ErrInvalidConfig, s.interval.NumDims(), e.ndims)
		}
		return *s.interval, nil
	}

	ref := e.moving[0]
	if len(e.target) > 0 {
		ref = e.target[0]
	}
	src := e.sources[ref]
	native := src.Interval(s.timepoint, 0)
	if native.NumDims() == 0 {
		return geom.Interval{}, fmt.Errorf("%w: no output interval and source %q has no bounds", ErrInvalidConfig, src.Name())
	}
	physicalToPixel, err := s.pixelToPhysical.Invert()
	if err != nil {
		return geom.Interval{}, fmt.Errorf("%w: render transform: %w", ErrInvalidConfig, err)
	}
	toOutput := physicalToPixel.Concatenate(src.SourceTransform(s.timepoint, 0))
	itvl, err := bounds.EstimateBounds(toOutput, native)
	if err != nil {
		return geom.Interval{}, fmt.Errorf("%w: default output interval: %w", ErrInvalidConfig, err)
	}
	return itvl, nil
}

// renderField returns the source as a field over output pixel coordinates.
func renderField(src source.Source, s settings) (field.RealField, error) {
	f, err := src.Interpolated(s.timepoint, 0, s.interp)
	if err != nil {
		return nil, err
	}
	if st := src.SourceTransform(s.timepoint, 0); !st.IsIdentity() {
		if f, err = field.AffineReal(f, st); err != nil {
			return nil, err
		}
	}
	if f.NumDims() != s.pixelToPhysical.NumSourceDims() {
		return nil, fmt.Errorf("%w: %d-dimensional source, %d-dimensional render transform",
			ErrInvalidConfig, f.NumDims(), s.pixelToPhysical.NumSourceDims())
	}
	return field.Transformed(f, s.pixelToPhysical), nil
}

// Stats summarizes the samples of an exported channel.
type Stats struct {
	Min, Max     float64
	Mean, StdDev float64
}

// StatsOf summarizes data. The standard deviation of fewer than two samples
// is zero.
func StatsOf(data []float64) Stats {
	if len(data) == 0 {
		return Stats{}
	}
	mean, std := stat.MeanStdDev(data, nil)
	if len(data) == 1 {
		std = 0
	}
	return Stats{Min: floats.Min(data), Max: floats.Max(data), Mean: mean, StdDev: std}
}

// Channel is the export of one moving source. Exactly one of Raster and View
// is set, depending on virtual mode.
type Channel struct {
	Name        string
	SourceIndex int
	Raster      *raster.Raster
	View        *field.View
	Stats       Stats
}

// Reader returns a function sampling the channel at output pixel positions.
func (c Channel) Reader() func(pos []int64) float64 {
	if c.Raster != nil {
		return c.Raster.At
	}
	return c.View.Reader()
}

// Result is the outcome of one export.
type Result struct {
	JobID           string
	Interval        geom.Interval
	RenderTransform *transform.Affine
	Virtual         bool
	Channels        []Channel
	Failures        []WorkerFailure
	Elapsed         time.Duration
}

// Failed reports whether any worker failed.
func (r *Result) Failed() bool { return len(r.Failures) > 0 }

// FailedRegions lists the regions whose workers failed.
func (r *Result) FailedRegions() []geom.Interval {
	regions := make([]geom.Interval, 0, len(r.Failures))
	for _, f := range r.Failures {
		regions = append(regions, f.Region)
	}
	return regions
}

// Err joins the worker failures, or returns nil.
func (r *Result) Err() error {
	if !r.Failed() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
