// Package batch evaluates scenario files through a worker pool.
package batch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/bsdash/internal/export"
	"github.com/dgnsrekt/bsdash/internal/maturity"
	"github.com/dgnsrekt/bsdash/internal/metrics"
	"github.com/dgnsrekt/bsdash/internal/pricing"
)

type Manager struct {
	workers int
	conv    *maturity.Converter
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

type BatchResult struct {
	Total   int
	Success int
	Failed  int
	Errors  []string
}

// NewManager creates a Manager. m may be nil.
func NewManager(workers int, m *metrics.Metrics, logger *zap.Logger) *Manager {
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		workers: workers,
		conv:    maturity.NewConverter(),
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

type indexedResult struct {
	index  int
	result TaskResult
}

// Execute evaluates every task. Results are returned in task order. Invalid
// scenarios fail individually; only cancellation fails the batch.
func (m *Manager) Execute(ctx context.Context, tasks []Task) (*BatchResult, []TaskResult, error) {
	result := &BatchResult{Total: len(tasks)}
	results := make([]TaskResult, len(tasks))

	if len(tasks) == 0 {
		return result, results, nil
	}

	jobs := make(chan int, len(tasks))
	out := make(chan indexedResult, len(tasks))
	now := m.now()

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.worker(ctx, tasks, now, jobs, out)
		}()
	}

	// Send jobs
	go func() {
		defer close(jobs)
		for i := range tasks {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	// Wait for workers and close results
	go func() {
		wg.Wait()
		close(out)
	}()

	// Collect results
	collected := 0
	for r := range out {
		results[r.index] = r.result
		collected++
		if r.result.Success() {
			result.Success++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", tasks[r.index], r.result.Error))
		}
	}

	if err := ctx.Err(); err != nil && collected < len(tasks) {
		return result, results, fmt.Errorf("batch interrupted after %d of %d scenarios: %w", collected, len(tasks), err)
	}
	return result, results, nil
}

func (m *Manager) worker(ctx context.Context, tasks []Task, now time.Time, jobs <-chan int, out chan<- indexedResult) {
	for i := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := m.processTask(tasks[i], now)

		select {
		case <-ctx.Done():
			return
		case out <- indexedResult{index: i, result: r}:
		}
	}
}

func (m *Manager) processTask(task Task, now time.Time) TaskResult {
	result := TaskResult{ID: task.Scenario.ID, Line: task.Line}
	outcome := "failed"
	defer func() {
		if m.metrics != nil {
			m.metrics.BatchTasks.WithLabelValues(outcome).Inc()
		}
	}()

	if task.decodeErr != nil {
		result.Error = task.decodeErr.Error()
		return result
	}

	opt := task.Scenario.OptionRequest
	if err := opt.Validate(); err != nil {
		result.Error = err.Error()
		return result
	}
	p, err := opt.Resolve(m.conv, now)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	price := pricing.Price(p)
	greeks := pricing.ComputeGreeks(p)
	result.Params = &p
	result.Price = &price
	result.Greeks = &greeks
	outcome = "success"

	m.logger.Debug("scenario evaluated", zap.String("task", task.String()), zap.Float64("price", price))
	return result
}

// Run reads scenarios from in, evaluates them and writes the results as JSON
// Lines to outPath atomically.
func (m *Manager) Run(ctx context.Context, in io.Reader, outPath string) (*BatchResult, error) {
	tasks, err := ReadTasks(in)
	if err != nil {
		return nil, err
	}

	m.logger.Info("evaluating scenarios", zap.Int("count", len(tasks)), zap.Int("workers", m.workers))

	summary, results, err := m.Execute(ctx, tasks)
	if err != nil {
		return summary, err
	}

	size, err := export.WriteFile(outPath, func(w io.Writer) error {
		return export.JSONL(w, results)
	})
	if err != nil {
		return summary, err
	}

	m.logger.Info("batch complete",
		zap.Int("success", summary.Success),
		zap.Int("failed", summary.Failed),
		zap.String("output", outPath),
		zap.Int64("bytes", size),
	)
	return summary, nil
}
