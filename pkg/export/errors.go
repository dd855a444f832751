package export

import (
	"errors"
	"fmt"

	"warpresample/pkg/geom"
)

var (
	// ErrInvalidConfig is returned before any worker starts when the export
	// configuration cannot produce a raster.
	ErrInvalidConfig = errors.New("export: invalid configuration")

	// ErrRejected is returned when work is submitted to a pool that was shut
	// down. Asynchronous exports treat it as cancellation.
	ErrRejected = errors.New("export: task rejected after shutdown")
)

// WorkerFailure records a worker that did not finish its share of a copy.
// The rest of the raster is still written by the other workers.
type WorkerFailure struct {
	// Channel is the index of the exported moving source.
	Channel int
	Worker  int
	Policy  Policy

	// Region is the sub-interval owned by the worker. Under PolicyIter a
	// worker owns every Stride-th element of Region starting at Offset.
	Region geom.Interval
	Offset int64
	Stride int64

	Err error
}

func (f WorkerFailure) Error() string {
	if f.Policy == PolicyIter {
		return fmt.Sprintf("channel %d worker %d (elements %d+%dk of %v): %v",
			f.Channel, f.Worker, f.Offset, f.Stride, f.Region, f.Err)
	}
	return fmt.Sprintf("channel %d worker %d (region %v): %v", f.Channel, f.Worker, f.Region, f.Err)
}

func (f WorkerFailure) Unwrap() error { return f.Err }

// panicError wraps a value recovered from a worker panic.
type panicError struct {
	value any
}

func (p panicError) Error() string { return fmt.Sprintf("worker panic: %v", p.value) }
