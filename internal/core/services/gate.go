package services

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

// Priority classes for call gate admission. Interactive callers are
// admitted before batch callers whenever a slot frees up.
type Priority int

const (
	// PriorityInteractive is for live chat turns.
	PriorityInteractive Priority = iota
	// PriorityBatch is for evaluation runs and other background work.
	PriorityBatch
)

// maxCallAttempts bounds retries inside Do: one initial attempt plus
// three retries.
const maxCallAttempts = 4

// retryBaseDelay is the first retry backoff; it doubles per attempt.
const retryBaseDelay = time.Second

// CallGate is the single choke point for LLM provider calls. It
// enforces a requests-per-minute budget (token bucket), a concurrency
// ceiling, priority admission and bounded retries, so rate discipline
// lives in one place rather than in each caller.
type CallGate struct {
	cfg       domain.GateConfig
	limiter   *rate.Limiter
	retryBase time.Duration

	mu          sync.Mutex
	inFlight    int
	interactive list.List // of chan struct{}
	batch       list.List
	closed      bool
}

// NewCallGate creates a gate with the given limits. The configuration
// must already be validated.
func NewCallGate(cfg domain.GateConfig) *CallGate {
	return &CallGate{
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.Burst),
		retryBase: retryBaseDelay,
	}
}

// Acquire blocks until the caller holds a concurrency slot and a rate
// token, or fails. Batch callers observe backpressure: when the batch
// wait queue is already at the configured threshold, Acquire returns
// domain.ErrRateLimited immediately instead of queueing.
//
// Every successful Acquire must be paired with Release.
func (g *CallGate) Acquire(ctx context.Context, p Priority) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return domain.ErrGateClosed
	}

	if g.inFlight < g.cfg.MaxConcurrent && g.interactive.Len() == 0 &&
		(p == PriorityInteractive || g.batch.Len() == 0) {
		g.inFlight++
		g.mu.Unlock()
		return g.waitRate(ctx)
	}

	if p == PriorityBatch && g.batch.Len() >= g.cfg.BatchQueueThreshold {
		g.mu.Unlock()
		logger.Debug("call gate: batch queue full, rejecting")
		return domain.ErrRateLimited
	}

	// Buffered so Release can grant without blocking under the mutex.
	// A received value is a slot handover; a bare close means the gate
	// shut down while we waited.
	ready := make(chan struct{}, 1)
	var elem *list.Element
	queue := &g.interactive
	if p == PriorityBatch {
		queue = &g.batch
	}
	elem = queue.PushBack(ready)
	g.mu.Unlock()

	select {
	case _, granted := <-ready:
		if !granted {
			return domain.ErrGateClosed
		}
		// Slot was handed over by Release; inFlight already counts us.
		return g.waitRate(ctx)
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case _, granted := <-ready:
			g.mu.Unlock()
			if granted {
				// Lost the race: a slot was handed over concurrently.
				g.Release()
			}
		default:
			queue.Remove(elem)
			g.mu.Unlock()
		}
		return ctx.Err()
	}
}

// waitRate consumes a rate token, giving the slot back on failure.
func (g *CallGate) waitRate(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		g.Release()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return domain.ErrRateLimited
	}
	return nil
}

// Release returns a concurrency slot, handing it to the longest-waiting
// interactive caller first, then batch.
func (g *CallGate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		g.inFlight--
		return
	}
	if next := g.interactive.Front(); next != nil {
		g.interactive.Remove(next)
		next.Value.(chan struct{}) <- struct{}{}
		return
	}
	if next := g.batch.Front(); next != nil {
		g.batch.Remove(next)
		next.Value.(chan struct{}) <- struct{}{}
		return
	}
	g.inFlight--
}

// Close shuts the gate. Waiting callers are woken and callers holding
// slots may still Release; new Acquire calls fail with ErrGateClosed.
func (g *CallGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	for e := g.interactive.Front(); e != nil; e = e.Next() {
		close(e.Value.(chan struct{}))
	}
	g.interactive.Init()
	for e := g.batch.Front(); e != nil; e = e.Next() {
		close(e.Value.(chan struct{}))
	}
	g.batch.Init()
}

// QueueDepth reports the current wait queue sizes.
func (g *CallGate) QueueDepth() (interactive, batch int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.interactive.Len(), g.batch.Len()
}

// Do runs fn under the gate with retries. The concurrency slot is held
// across attempts; each attempt consumes a fresh rate token. Only
// transient provider failures are retried, with exponential backoff,
// up to three retries.
func (g *CallGate) Do(ctx context.Context, p Priority, fn func(ctx context.Context) error) error {
	if err := g.Acquire(ctx, p); err != nil {
		return err
	}
	defer g.Release()

	var lastErr error
	for attempt := 0; attempt < maxCallAttempts; attempt++ {
		if attempt > 0 {
			delay := g.retryBase << (attempt - 1)
			logger.Debug("call gate: retry %d after %s: %v", attempt, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if err := g.limiter.Wait(ctx); err != nil {
				return lastErr
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !transient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// transient reports whether an error is worth retrying.
func transient(err error) bool {
	if _, ok := err.(nonRetryable); ok {
		return false
	}
	var pe *driven.ProviderError
	if errors.As(err, &pe) {
		return pe.Transient()
	}
	return errors.Is(err, domain.ErrRateLimited)
}
