// Package worker runs jobs concurrently while keeping jobs that share a key
// strictly ordered.
package worker

import (
	"context"
	"errors"
	"sync"
)

var ErrStopped = errors.New("worker pool is stopped")

type lane[J any] struct {
	jobs []J
}

// Pool runs at most a fixed number of jobs at a time. Jobs submitted under
// the same key run one after another in submission order.
type Pool[K comparable, J any] struct {
	ctx    context.Context
	sem    chan struct{}
	handle func(context.Context, J)

	mu      sync.Mutex
	lanes   map[K]*lane[J]
	stopped bool
	wg      sync.WaitGroup
}

func NewPool[K comparable, J any](ctx context.Context, maxInFlight int, handle func(context.Context, J)) *Pool[K, J] {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Pool[K, J]{
		ctx:    ctx,
		sem:    make(chan struct{}, maxInFlight),
		handle: handle,
		lanes:  make(map[K]*lane[J]),
	}
}

// Submit queues job under key. It never blocks on running jobs.
func (p *Pool[K, J]) Submit(key K, job J) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.ctx.Err() != nil {
		return ErrStopped
	}

	if l, ok := p.lanes[key]; ok {
		l.jobs = append(l.jobs, job)
		return nil
	}

	l := &lane[J]{jobs: []J{job}}
	p.lanes[key] = l
	p.wg.Add(1)
	go p.drain(key, l)

	return nil
}

func (p *Pool[K, J]) drain(key K, l *lane[J]) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		if len(l.jobs) == 0 || p.ctx.Err() != nil {
			delete(p.lanes, key)
			p.mu.Unlock()
			return
		}
		job := l.jobs[0]
		l.jobs = l.jobs[1:]
		p.mu.Unlock()

		select {
		case p.sem <- struct{}{}:
		case <-p.ctx.Done():
			continue
		}
		func() {
			defer func() { <-p.sem }()
			p.handle(p.ctx, job)
		}()
	}
}

// Stop rejects new jobs and waits for queued ones to finish.
// Jobs still queued when the pool context is cancelled are dropped.
func (p *Pool[K, J]) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.wg.Wait()
}

// Pending returns the number of keys with queued or running jobs
func (p *Pool[K, J]) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lanes)
}
