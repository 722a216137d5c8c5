// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/figure-engine/internal/figure"
	"github.com/pdiddy/figure-engine/pkg/types"
)

// Task is one rendered candidate queued for classification.
type Task struct {
	Candidate figure.Candidate

	// ImagePNG is the rendered composite region.
	ImagePNG []byte
}

// Result pairs a task with its verdict or terminal error. Err is set only
// when the retry budget is exhausted or a permanent failure occurred; the
// candidate is then recorded failed without aborting the pool.
type Result struct {
	Task    Task
	Verdict types.Verdict
	Err     error
}

// backoffBase controls the base duration for exponential backoff between
// retry attempts. Tests override this to avoid real sleeps.
var backoffBase = time.Second

// Pool is a fixed-size worker pool draining a shared, unordered queue of
// candidates. Each worker performs one blocking classification call at a
// time; retries are local to a single candidate and never block the others.
type Pool struct {
	backend    Backend
	workers    int
	maxRetries int
	log        zerolog.Logger
}

// NewPool builds a pool of cfg.Workers workers with cfg.MaxRetries retry
// budget per candidate.
func NewPool(backend Backend, cfg types.ClassifyConfig, log zerolog.Logger) *Pool {
	workers := cfg.Workers
	if workers < 1 {
		workers = 4
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Pool{backend: backend, workers: workers, maxRetries: maxRetries, log: log}
}

// Run classifies every task and returns one result per task, in no
// particular order. Cancellation is cooperative: once ctx is done no new
// task is dispatched, but calls already in flight are allowed to finish.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	queue := make(chan Task)
	results := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				verdict, err := p.classifyWithRetry(ctx, task)
				results <- Result{Task: task, Verdict: verdict, Err: err}
			}
		}()
	}

feed:
	for _, task := range tasks {
		select {
		case <-ctx.Done():
			break feed
		case queue <- task:
		}
	}
	close(queue)
	wg.Wait()
	close(results)

	out := make([]Result, 0, len(tasks))
	for r := range results {
		out = append(out, r)
	}
	return out
}

// classifyWithRetry calls the backend with exponential backoff on transient
// failures. Permanent failures return immediately.
func (p *Pool) classifyWithRetry(ctx context.Context, task Task) (types.Verdict, error) {
	fp := task.Candidate.Fingerprint()

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			p.log.Debug().Str("fingerprint", fp).Int("attempt", attempt).
				Dur("backoff", backoff).Msg("retrying classification")
			select {
			case <-ctx.Done():
				return types.Verdict{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		verdict, err := p.backend.Classify(ctx, task.ImagePNG, task.Candidate.Caption)
		if err == nil {
			return verdict, nil
		}
		if !IsTransient(err) {
			return types.Verdict{}, err
		}
		lastErr = err
	}

	p.log.Warn().Str("fingerprint", fp).Int("retries", p.maxRetries).
		Err(lastErr).Msg("classification retry budget exhausted")
	return types.Verdict{}, lastErr
}
