package export

import (
	"fmt"

	"github.com/charmbracelet/log"

	"warpresample/pkg/field"
	"warpresample/pkg/geom"
	"warpresample/pkg/raster"
)

// progressInterval is the number of elements between progress reports of
// the reporting worker.
const progressInterval = 100000

// copier runs the parallel raster copy. acquire hands out a fresh pool per
// copy and release returns it.
type copier struct {
	logger  *log.Logger
	acquire func(size int) (*pool, error)
	release func(*pool)
}

func defaultCopier(l *log.Logger) *copier {
	if l == nil {
		l = log.Default()
	}
	return &copier{
		logger:  l,
		acquire: func(size int) (*pool, error) { return newPool(size), nil },
		release: func(*pool) {},
	}
}

// CopyIterOrder fills target from src using PolicyIter with nThreads workers.
// It returns the failures of individual workers; the remaining elements are
// still written.
func CopyIterOrder(src field.RealField, target *raster.Raster, nThreads int, progress ProgressWriter) ([]WorkerFailure, error) {
	return defaultCopier(nil).copy(PolicyIter, src, target, nThreads, progress)
}

// CopyBySlice fills target from src using PolicySlice with nThreads workers.
func CopyBySlice(src field.RealField, target *raster.Raster, nThreads int, progress ProgressWriter) ([]WorkerFailure, error) {
	return defaultCopier(nil).copy(PolicySlice, src, target, nThreads, progress)
}

type task struct {
	failure WorkerFailure
	run     func() error
}

func (c *copier) copy(policy Policy, src field.RealField, target *raster.Raster, nThreads int, progress ProgressWriter) ([]WorkerFailure, error) {
	if nThreads < 1 {
		return nil, fmt.Errorf("%w: thread count %d", ErrInvalidConfig, nThreads)
	}
	if src.NumDims() != target.NumDims() {
		return nil, fmt.Errorf("%w: %d-dimensional field copied into %d-dimensional raster",
			ErrInvalidConfig, src.NumDims(), target.NumDims())
	}
	if progress == nil {
		progress = NopProgress
	}

	var tasks []task
	switch policy {
	case PolicyIter:
		progress.SetProgress(0)
		tasks = iterTasks(src, target, nThreads, progress)
	case PolicySlice:
		tasks = sliceTasks(src, target, nThreads, progress)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, policy)
	}

	p, err := c.acquire(nThreads)
	if err != nil {
		return nil, err
	}
	defer c.release(p)

	errs := make([]error, len(tasks))
	var rejected error
	for i := range tasks {
		err := p.submit(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = panicError{value: r}
				}
				if err != nil {
					errs[i] = err
					f := tasks[i].failure
					c.logger.Error("export worker failed",
						"worker", f.Worker, "policy", f.Policy, "region", f.Region.String(), "err", err)
				}
			}()
			return tasks[i].run()
		})
		if err != nil {
			rejected = err
			for j := i; j < len(tasks); j++ {
				errs[j] = err
			}
			break
		}
	}
	p.wait()

	var failures []WorkerFailure
	for i, err := range errs {
		if err != nil {
			f := tasks[i].failure
			f.Err = err
			failures = append(failures, f)
		}
	}
	if rejected != nil {
		return failures, fmt.Errorf("copy with %d workers: %w", nThreads, rejected)
	}
	progress.SetProgress(1)
	return failures, nil
}

func toReal(pos []int64, dst []float64) {
	for d, p := range pos {
		dst[d] = float64(p)
	}
}

func iterTasks(src field.RealField, target *raster.Raster, nThreads int, progress ProgressWriter) []task {
	stride := int64(nThreads)
	tasks := make([]task, nThreads)
	for i := range tasks {
		offset := int64(i)
		tasks[i] = task{
			failure: WorkerFailure{
				Worker: i,
				Policy: PolicyIter,
				Region: target.Interval(),
				Offset: offset,
				Stride: stride,
			},
			run: func() error {
				access := src.RealAccess()
				pos := make([]float64, target.NumDims())
				c := target.Cursor()
				n := c.Size()
				c.JumpFwd(1 + offset)
				for j := offset; j < n; j += stride {
					toReal(c.Position(), pos)
					access.SetPosition(pos)
					c.Set(access.Get())
					c.JumpFwd(stride)

					if offset == 0 && j%(stride*progressInterval) == 0 {
						progress.SetProgress(float64(j) / float64(n))
					}
				}
				return nil
			},
		}
	}
	return tasks
}

func sliceTasks(src field.RealField, target *raster.Raster, nThreads int, progress ProgressWriter) []task {
	parts := SlicePartitions(target.Interval(), nThreads)
	tasks := make([]task, len(parts))
	for i, part := range parts {
		tasks[i] = task{
			failure: WorkerFailure{Worker: i, Policy: PolicySlice, Region: part.Interval},
			run: func() error {
				if part.Empty() {
					return nil
				}
				return copyRegion(src, target, part.Interval, part.Start == 0, progress)
			},
		}
	}
	return tasks
}

func copyRegion(src field.RealField, target *raster.Raster, region geom.Interval, report bool, progress ProgressWriter) error {
	c, err := target.SubCursor(region)
	if err != nil {
		return err
	}
	access := src.RealAccess()
	pos := make([]float64, target.NumDims())
	n := c.Size()
	for j := int64(0); c.HasNext(); j++ {
		c.Fwd()
		toReal(c.Position(), pos)
		access.SetPosition(pos)
		c.Set(access.Get())

		if report && j%progressInterval == 0 {
			progress.SetProgress(float64(j) / float64(n))
		}
	}
	return nil
}
