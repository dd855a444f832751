package export

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ResultHandler receives the result of an asynchronous export.
type ResultHandler interface {
	HandleResult(r *Result) error
}

// ResultHandlerFunc adapts a function to ResultHandler.
type ResultHandlerFunc func(r *Result) error

func (f ResultHandlerFunc) HandleResult(r *Result) error { return f(r) }

// Job is a running asynchronous export.
type Job struct {
	ID string

	done     chan struct{}
	result   *Result
	err      error
	canceled bool
}

// Done is closed when the job finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finished and returns its result. A canceled job
// returns a nil result and a nil error.
func (j *Job) Wait() (*Result, error) {
	<-j.done
	return j.result, j.err
}

// Canceled reports whether the job stopped because the exporter was shut
// down. It is only meaningful after Done is closed.
func (j *Job) Canceled() bool {
	<-j.done
	return j.canceled
}

// ExportAsync starts the export in the background and returns immediately.
// When it completes, the elapsed time is logged and the result is passed to
// the configured ResultHandler. Shutting the exporter down cancels the job
// quietly.
func (e *Exporter) ExportAsync(ctx context.Context) *Job {
	job := &Job{ID: uuid.NewString(), done: make(chan struct{})}
	e.mu.Lock()
	logger, handler := e.logger, e.handler
	e.mu.Unlock()
	logger = logger.With("job", job.ID)

	go func() {
		defer close(job.done)
		start := time.Now()
		result, err := e.export(ctx, job.ID)
		if errors.Is(err, ErrRejected) {
			logger.Debug("export canceled", "err", err)
			job.canceled = true
			return
		}
		job.result, job.err = result, err
		if err != nil {
			logger.Error("export failed", "err", err)
			return
		}
		logger.Info("async export done", "took", time.Since(start))
		if handler != nil {
			if herr := handler.HandleResult(result); herr != nil {
				logger.Error("result handler failed", "err", herr)
				job.err = herr
			}
		}
	}()
	return job
}
