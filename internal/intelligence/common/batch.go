// Package common holds the generic fan-out engine used to process documents
// of a corpus in parallel.  Each item runs independently: a failure, timeout
// or panic in one item is reported on that item and never aborts the others.
package common

import (
	"context"
	stdliberrors "errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// ErrShutdown is returned by Process after Shutdown has been called.
var ErrShutdown = stdliberrors.New("batch processor is shutting down")

// ---------------------------------------------------------------------------
// ItemStatus
// ---------------------------------------------------------------------------

// ItemStatus is the outcome of a single batch item.
type ItemStatus int

const (
	ItemStatusSuccess ItemStatus = iota
	ItemStatusFailed
	ItemStatusTimeout
	ItemStatusCancelled
)

func (s ItemStatus) String() string {
	switch s {
	case ItemStatusSuccess:
		return "SUCCESS"
	case ItemStatusFailed:
		return "FAILED"
	case ItemStatusTimeout:
		return "TIMEOUT"
	case ItemStatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ---------------------------------------------------------------------------
// Generic types
// ---------------------------------------------------------------------------

// ProcessFunc processes one item.
type ProcessFunc[T, R any] func(ctx context.Context, item T) (R, error)

// ItemResult is the outcome of one item; Index is its position in the input.
// On failure Result holds whatever the last attempt returned.
type ItemResult[R any] struct {
	Index      int        `json:"index"`
	Result     R          `json:"result"`
	Error      error      `json:"-"`
	Attempts   int        `json:"attempts"`
	DurationMs float64    `json:"duration_ms"`
	Status     ItemStatus `json:"status"`
}

// BatchResult aggregates a whole run.  Results are in input order.
type BatchResult[R any] struct {
	Results         []*ItemResult[R] `json:"results"`
	TotalCount      int              `json:"total_count"`
	SuccessCount    int              `json:"success_count"`
	FailureCount    int              `json:"failure_count"`
	TotalDurationMs float64          `json:"total_duration_ms"`
}

// BatchProcessor fans a slice of items out over a bounded worker set.
type BatchProcessor[T, R any] interface {
	Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*BatchResult[R], error)
	// Shutdown refuses new batches and waits for in-flight ones.
	Shutdown(ctx context.Context) error
}

// ---------------------------------------------------------------------------
// RetryPolicy
// ---------------------------------------------------------------------------

// RetryPolicy governs how failed items are retried.
type RetryPolicy struct {
	MaxRetries        int           `json:"max_retries" mapstructure:"max_retries"`
	InitialBackoff    time.Duration `json:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `json:"max_backoff" mapstructure:"max_backoff"`
	BackoffMultiplier float64       `json:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	// Retryable decides whether err deserves another attempt.  nil retries
	// every error except context cancellation.
	Retryable func(err error) bool `json:"-" mapstructure:"-"`
}

func (p *RetryPolicy) shouldRetry(err error) bool {
	if p == nil || err == nil {
		return false
	}
	if stdliberrors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// backoff returns the delay before retry number attempt (0-based), with
// ±25 % jitter, capped at MaxBackoff.
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	if p == nil || p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 2.0
	}
	base := float64(p.InitialBackoff) * math.Pow(mult, float64(attempt))
	if p.MaxBackoff > 0 && base > float64(p.MaxBackoff) {
		base = float64(p.MaxBackoff)
	}
	d := time.Duration(base + base*0.25*(rand.Float64()*2-1))
	if d < 0 {
		return 0
	}
	return d
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

type batchConfig struct {
	maxConcurrency int
	itemTimeout    time.Duration
	retryPolicy    *RetryPolicy
	logger         logging.Logger
	onItem         func(status ItemStatus, d time.Duration)
}

// BatchOption configures a batch processor.
type BatchOption func(*batchConfig)

// WithMaxConcurrency bounds the number of items in flight.
func WithMaxConcurrency(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithItemTimeout bounds each attempt of each item.
func WithItemTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d > 0 {
			c.itemTimeout = d
		}
	}
}

// WithRetryPolicy retries failed items with exponential backoff.
func WithRetryPolicy(maxRetries int, backoff time.Duration) BatchOption {
	return func(c *batchConfig) {
		if maxRetries > 0 {
			c.retryPolicy = &RetryPolicy{
				MaxRetries:        maxRetries,
				InitialBackoff:    backoff,
				MaxBackoff:        backoff * 16,
				BackoffMultiplier: 2.0,
			}
		}
	}
}

// WithRetryPolicyFull installs a complete retry policy.
func WithRetryPolicyFull(p *RetryPolicy) BatchOption {
	return func(c *batchConfig) { c.retryPolicy = p }
}

// WithBatchLogger injects a logger.
func WithBatchLogger(l logging.Logger) BatchOption {
	return func(c *batchConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithItemObserver is called once per finished item, from the worker
// goroutine.
func WithItemObserver(fn func(status ItemStatus, d time.Duration)) BatchOption {
	return func(c *batchConfig) { c.onItem = fn }
}

// ---------------------------------------------------------------------------
// batchProcessor
// ---------------------------------------------------------------------------

type batchProcessor[T, R any] struct {
	cfg        batchConfig
	isShutdown atomic.Bool
	activeWg   sync.WaitGroup
	mu         sync.Mutex
}

// NewBatchProcessor creates a BatchProcessor.  Concurrency defaults to
// runtime.NumCPU and the item timeout to 30s.
func NewBatchProcessor[T, R any](opts ...BatchOption) BatchProcessor[T, R] {
	cfg := batchConfig{
		maxConcurrency: runtime.NumCPU(),
		itemTimeout:    30 * time.Second,
		logger:         logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &batchProcessor[T, R]{cfg: cfg}
}

func (bp *batchProcessor[T, R]) Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*BatchResult[R], error) {
	if fn == nil {
		return nil, errors.InvalidParam("process function must not be nil")
	}
	bp.mu.Lock()
	if bp.isShutdown.Load() {
		bp.mu.Unlock()
		return nil, ErrShutdown
	}
	bp.activeWg.Add(1)
	bp.mu.Unlock()
	defer bp.activeWg.Done()

	start := time.Now()
	results := make([]*ItemResult[R], len(items))
	sem := make(chan struct{}, bp.cfg.maxConcurrency)

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(idx int, item T) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = &ItemResult[R]{Index: idx, Error: ctx.Err(), Status: classifyError(ctx, ctx.Err())}
				bp.observe(results[idx])
				return
			}
			results[idx] = bp.processOne(ctx, idx, item, fn)
			bp.observe(results[idx])
		}(i, items[i])
	}
	wg.Wait()

	br := &BatchResult[R]{
		Results:         results,
		TotalCount:      len(results),
		TotalDurationMs: msSince(start),
	}
	for _, r := range results {
		if r.Status == ItemStatusSuccess {
			br.SuccessCount++
		} else {
			br.FailureCount++
		}
	}
	return br, nil
}

func (bp *batchProcessor[T, R]) Shutdown(ctx context.Context) error {
	bp.mu.Lock()
	bp.isShutdown.Store(true)
	bp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		bp.activeWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (bp *batchProcessor[T, R]) observe(r *ItemResult[R]) {
	if bp.cfg.onItem != nil {
		bp.cfg.onItem(r.Status, time.Duration(r.DurationMs*float64(time.Millisecond)))
	}
}

// processOne runs fn with retries.  A panic in fn is converted to an error
// on this item.
func (bp *batchProcessor[T, R]) processOne(ctx context.Context, idx int, item T, fn ProcessFunc[T, R]) *ItemResult[R] {
	start := time.Now()
	maxAttempts := 1
	if bp.cfg.retryPolicy != nil && bp.cfg.retryPolicy.MaxRetries > 0 {
		maxAttempts += bp.cfg.retryPolicy.MaxRetries
	}

	var (
		lastResult R
		lastErr    error
	)
	attempts := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if delay := bp.cfg.retryPolicy.backoff(attempt - 1); delay > 0 {
				select {
				case <-ctx.Done():
					return &ItemResult[R]{Index: idx, Error: ctx.Err(), Attempts: attempts,
						Status: classifyError(ctx, ctx.Err()), DurationMs: msSince(start)}
				case <-time.After(delay):
				}
			}
		}
		attempts++
		result, err := bp.call(ctx, item, fn)
		if err == nil {
			return &ItemResult[R]{Index: idx, Result: result, Attempts: attempts,
				Status: ItemStatusSuccess, DurationMs: msSince(start)}
		}
		lastResult, lastErr = result, err
		if !bp.cfg.retryPolicy.shouldRetry(err) {
			break
		}
		bp.cfg.logger.Debug("retrying batch item",
			logging.Int("index", idx), logging.Int("attempt", attempts), logging.Err(err))
	}

	return &ItemResult[R]{Index: idx, Result: lastResult, Error: lastErr, Attempts: attempts,
		Status: classifyError(ctx, lastErr), DurationMs: msSince(start)}
}

func (bp *batchProcessor[T, R]) call(ctx context.Context, item T, fn ProcessFunc[T, R]) (result R, err error) {
	itemCtx, cancel := context.WithTimeout(ctx, bp.cfg.itemTimeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf(errors.ErrCodeInternal, "batch item panicked: %v", p)
		}
	}()
	return fn(itemCtx, item)
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

func classifyError(ctx context.Context, err error) ItemStatus {
	switch {
	case err == nil:
		return ItemStatusSuccess
	case stdliberrors.Is(err, context.DeadlineExceeded):
		return ItemStatusTimeout
	case stdliberrors.Is(err, context.Canceled):
		return ItemStatusCancelled
	case ctx.Err() == context.DeadlineExceeded:
		return ItemStatusTimeout
	case ctx.Err() == context.Canceled:
		return ItemStatusCancelled
	}
	return ItemStatusFailed
}
