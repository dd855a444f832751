package export

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// pool is a fixed-size worker pool used for a single copy. Submissions after
// shutdown are rejected with ErrRejected; tasks already running finish.
type pool struct {
	g errgroup.Group

	mu     sync.Mutex
	closed bool
}

func newPool(size int) *pool {
	p := &pool{}
	p.g.SetLimit(size)
	return p
}

func (p *pool) submit(task func() error) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrRejected
	}
	// Go blocks once size tasks are running; shutdown must not wait on it.
	p.g.Go(task)
	return nil
}

func (p *pool) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// wait blocks until every submitted task returned.
func (p *pool) wait() {
	_ = p.g.Wait()
}
