package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned when a run is submitted after Close.
var ErrPoolClosed = errors.New("dispatch pool is closed")

// PoolStats is a snapshot of dispatch pool counters.
type PoolStats struct {
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// DispatchPool bounds how many flow runs execute concurrently. Inbound
// events are acknowledged immediately and the run happens on a pool
// slot, so a burst of traffic queues instead of spawning unbounded
// goroutines.
type DispatchPool struct {
	slots  chan struct{}
	wg     sync.WaitGroup
	stats  PoolStats
	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// NewDispatchPool creates a pool running at most size flow runs at once.
func NewDispatchPool(size int) *DispatchPool {
	if size <= 0 {
		size = 1
	}
	return &DispatchPool{
		slots: make(chan struct{}, size),
		done:  make(chan struct{}),
	}
}

// Go schedules fn on a pool slot. It blocks while the pool is at
// capacity and honors ctx while waiting for a slot. The run itself
// receives the context it was submitted with.
func (p *DispatchPool) Go(ctx context.Context, fn func(ctx context.Context) error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.mu.Unlock()

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPoolClosed
	}

	// Close may have raced the slot acquisition. wg.Add must happen
	// under the lock so Close's wg.Wait cannot miss it.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return ErrPoolClosed
	}
	p.wg.Add(1)
	atomic.AddInt64(&p.stats.Active, 1)
	p.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&p.stats.Failed, 1)
			}
			atomic.AddInt64(&p.stats.Active, -1)
			<-p.slots
			p.wg.Done()
		}()

		if err := fn(ctx); err != nil {
			atomic.AddInt64(&p.stats.Failed, 1)
		} else {
			atomic.AddInt64(&p.stats.Completed, 1)
		}
	}()

	return nil
}

// Wait blocks until every scheduled run has finished.
func (p *DispatchPool) Wait() {
	p.wg.Wait()
}

// Close rejects new runs and waits for in-flight ones to finish.
func (p *DispatchPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns the current counters.
func (p *DispatchPool) Stats() PoolStats {
	return PoolStats{
		Active:    atomic.LoadInt64(&p.stats.Active),
		Completed: atomic.LoadInt64(&p.stats.Completed),
		Failed:    atomic.LoadInt64(&p.stats.Failed),
	}
}
