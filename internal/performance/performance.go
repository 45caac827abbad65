// Package performance provides the bounded worker pool and batching helpers
// used by the batch jobs.
package performance

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// MaxDefaultWorkers caps the worker count chosen when none is configured.
const MaxDefaultWorkers = 8

// DefaultWorkers returns min(MaxDefaultWorkers, NumCPU).
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > MaxDefaultWorkers {
		return MaxDefaultWorkers
	}
	return n
}

// WorkerPool runs submitted tasks on a fixed set of goroutines. Tasks queued
// before Stop are drained; cancelling the context abandons the queue.
type WorkerPool struct {
	workers    int
	taskQueue  chan func(context.Context)
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	running    atomic.Bool
	tasksTotal atomic.Uint64
	tasksDone  atomic.Uint64
}

// NewWorkerPool creates a pool bound to ctx. If workers is 0, it defaults to
// DefaultWorkers().
func NewWorkerPool(ctx context.Context, workers int) *WorkerPool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(context.Context), workers*4),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the workers.
func (p *WorkerPool) Start() {
	if p.running.Swap(true) {
		return
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

func (p *WorkerPool) run(task func(context.Context)) {
	defer p.tasksDone.Add(1)
	task(p.ctx)
}

// Submit queues a task, blocking while the queue is full. It fails when the
// pool is stopped or its context is done.
func (p *WorkerPool) Submit(task func(ctx context.Context)) error {
	if !p.running.Load() {
		return fmt.Errorf("worker pool not running")
	}

	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.taskQueue <- task:
		p.tasksTotal.Add(1)
		return nil
	}
}

// Stop closes the queue and waits for queued tasks to finish.
func (p *WorkerPool) Stop() {
	if !p.running.Swap(false) {
		return
	}

	close(p.taskQueue)
	p.wg.Wait()
	p.cancel()
}

// Cancel abandons queued tasks and waits for running ones to return.
func (p *WorkerPool) Cancel() {
	p.cancel()
	if p.running.Swap(false) {
		close(p.taskQueue)
	}
	p.wg.Wait()
}

// Stats returns pool statistics.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		Running:    p.running.Load(),
		TasksTotal: p.tasksTotal.Load(),
		TasksDone:  p.tasksDone.Load(),
		QueueLen:   len(p.taskQueue),
	}
}

// PoolStats contains worker pool statistics.
type PoolStats struct {
	Workers    int
	Running    bool
	TasksTotal uint64
	TasksDone  uint64
	QueueLen   int
}

// BatchProcessor groups items and hands them to processor in fixed-size
// batches.
type BatchProcessor[T any] struct {
	batchSize int
	processor func([]T) error
	items     []T
	mu        sync.Mutex
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor[T any](batchSize int, processor func([]T) error) *BatchProcessor[T] {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &BatchProcessor[T]{
		batchSize: batchSize,
		processor: processor,
		items:     make([]T, 0, batchSize),
	}
}

// Add adds an item to the batch. If the batch is full, it's processed.
func (b *BatchProcessor[T]) Add(items ...T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, item := range items {
		b.items = append(b.items, item)
		if len(b.items) >= b.batchSize {
			if err := b.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush processes any remaining items in the batch.
func (b *BatchProcessor[T]) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flush()
}

func (b *BatchProcessor[T]) flush() error {
	if len(b.items) == 0 {
		return nil
	}

	batch := make([]T, len(b.items))
	copy(batch, b.items)
	b.items = b.items[:0]
	return b.processor(batch)
}

// MemoryStats returns current memory statistics.
func MemoryStats() MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemStats{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}

// MemStats contains memory statistics.
type MemStats struct {
	Alloc      uint64
	TotalAlloc uint64
	Sys        uint64
	NumGC      uint32
	Goroutines int
}

// FormatBytes formats bytes as a human-readable string.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
