// Package tasks runs blocking units of work (database queries, mostly) on a bounded
// set of long-lived worker goroutines and hands the outcome back to the caller.
// Request handlers never run storage work inline; they dispatch it here and wait.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrPoolClosed is returned by Submit once Close has been called.
var ErrPoolClosed = errors.New("worker pool is closed")

// Config sizes the pool. DispatchRate <= 0 disables dispatch throttling.
type Config struct {
	Workers       int     `mapstructure:"workers" validate:"min=1,max=1024"`
	QueueSize     int     `mapstructure:"queue_size" validate:"min=0"`
	DispatchRate  float64 `mapstructure:"dispatch_rate" validate:"min=0"`
	DispatchBurst int     `mapstructure:"dispatch_burst" validate:"min=0"`
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Workers   int   `json:"workers"`
	InFlight  int64 `json:"in_flight"`
	Completed int64 `json:"completed"`
	Faulted   int64 `json:"faulted"`
}

// Pool is a fixed-size worker pool. The zero value is not usable; call NewPool.
type Pool struct {
	jobs    chan func()
	limiter *rate.Limiter
	group   errgroup.Group
	log     zerolog.Logger
	workers int

	// mu guards closed and the hand-off to jobs so Close never races a sender.
	mu     sync.RWMutex
	closed bool

	inFlight  atomic.Int64
	completed atomic.Int64
	faulted   atomic.Int64
}

// NewPool validates cfg and starts cfg.Workers goroutines.
func NewPool(cfg Config, logger zerolog.Logger) (*Pool, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("worker pool config validation error: %w", err)
	}

	p := &Pool{
		jobs:    make(chan func(), cfg.QueueSize),
		log:     logger.With().Str("module", "tasks").Str("component", "pool").Logger(),
		workers: cfg.Workers,
	}
	if cfg.DispatchRate > 0 {
		burst := max(cfg.DispatchBurst, 1)
		p.limiter = rate.NewLimiter(rate.Limit(cfg.DispatchRate), burst)
	}

	for i := range cfg.Workers {
		p.spawn(i)
	}
	p.log.Info().
		Int("workers", cfg.Workers).
		Int("queue_size", cfg.QueueSize).
		Float64("dispatch_rate", cfg.DispatchRate).
		Msg("worker pool started")
	return p, nil
}

func (p *Pool) spawn(id int) {
	p.group.Go(func() error {
		p.work(id)
		return nil
	})
}

// work drains jobs until the channel is closed. A job that ends its goroutine with
// runtime.Goexit takes this worker with it, so the deferred block starts a replacement.
func (p *Pool) work(id int) {
	exited := false
	defer func() {
		if !exited {
			p.log.Warn().Int("worker", id).Msg("worker goroutine terminated abnormally, replacing it")
			p.spawn(id)
		}
	}()
	for job := range p.jobs {
		job()
	}
	exited = true
}

// Close stops accepting work, lets queued and running jobs finish and waits for the
// workers to exit. It is safe to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	err := p.group.Wait()
	p.log.Info().
		Int64("completed", p.completed.Load()).
		Int64("faulted", p.faulted.Load()).
		Msg("worker pool stopped")
	return err
}

// Stats reports the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		InFlight:  p.inFlight.Load(),
		Completed: p.completed.Load(),
		Faulted:   p.faulted.Load(),
	}
}

// dispatch hands job to a worker, waiting while every worker is busy and the queue is full.
func (p *Pool) dispatch(ctx context.Context, job func()) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
