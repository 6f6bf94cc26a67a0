package intake

import (
	"context"
	"sync"
)

// Dispatcher serializes events per identity while letting different
// identities run concurrently. A drain goroutine exists only while an
// identity has pending events.
type Dispatcher struct {
	ctx     context.Context
	mu      sync.Mutex
	pending map[Identity][]func(context.Context)
	wg      sync.WaitGroup
}

func NewDispatcher(ctx context.Context) *Dispatcher {
	return &Dispatcher{
		ctx:     ctx,
		pending: make(map[Identity][]func(context.Context)),
	}
}

// Submit queues job behind any earlier jobs for the same identity.
func (d *Dispatcher) Submit(id Identity, job func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	queue, running := d.pending[id]
	d.pending[id] = append(queue, job)
	if !running {
		d.wg.Add(1)
		go d.drain(id)
	}
}

func (d *Dispatcher) drain(id Identity) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.pending[id]
		if len(queue) == 0 {
			delete(d.pending, id)
			d.mu.Unlock()
			return
		}
		job := queue[0]
		queue[0] = nil
		d.pending[id] = queue[1:]
		d.mu.Unlock()

		job(d.ctx)
	}
}

// Wait blocks until every queued job has run.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
