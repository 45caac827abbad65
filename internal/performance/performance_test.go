package performance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// BenchmarkWorkerPool benchmarks task throughput.
func BenchmarkWorkerPool(b *testing.B) {
	pool := NewWorkerPool(context.Background(), 4)
	pool.Start()
	defer pool.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		done := make(chan struct{})
		_ = pool.Submit(func(context.Context) { close(done) })
		<-done
	}
}

// BenchmarkBatchProcessor benchmarks batching.
func BenchmarkBatchProcessor(b *testing.B) {
	processor := NewBatchProcessor(100, func(items []int) error { return nil })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = processor.Add(i)
	}
	_ = processor.Flush()
}

func TestWorkerPoolRunsEveryTask(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 3)
	pool.Start()

	var counter atomic.Int64
	for i := 0; i < 500; i++ {
		if err := pool.Submit(func(context.Context) {
			counter.Add(1)
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for tasks to complete")
	}

	if counter.Load() != 500 {
		t.Errorf("Expected 500 tasks completed, got %d", counter.Load())
	}
	stats := pool.Stats()
	if stats.TasksTotal != 500 || stats.TasksDone != 500 || stats.Running {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestWorkerPoolSubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1)
	pool.Start()
	pool.Stop()

	if err := pool.Submit(func(context.Context) {}); err == nil {
		t.Error("Submit on a stopped pool should fail")
	}
}

func TestWorkerPoolContextStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(ctx, 1)
	pool.Start()

	started := make(chan struct{})
	_ = pool.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started
	cancel()

	err := pool.Submit(func(context.Context) {})
	for err == nil {
		// the queue may still accept a task before the select sees ctx
		err = pool.Submit(func(context.Context) {})
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	pool.Cancel()
}

func TestDefaultWorkers(t *testing.T) {
	n := DefaultWorkers()
	if n < 1 || n > MaxDefaultWorkers {
		t.Errorf("DefaultWorkers = %d", n)
	}
}

func TestBatchProcessorFunctionality(t *testing.T) {
	var batches [][]int

	processor := NewBatchProcessor(5, func(items []int) error {
		batches = append(batches, items)
		return nil
	})

	// 12 items make 2 full batches and 2 left over
	for i := 0; i < 12; i++ {
		if err := processor.Add(i); err != nil {
			t.Fatal(err)
		}
	}
	if err := processor.Flush(); err != nil {
		t.Fatal(err)
	}

	if len(batches) != 3 {
		t.Fatalf("Expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 5 || len(batches[1]) != 5 || len(batches[2]) != 2 {
		t.Error("Batch sizes incorrect")
	}
	if batches[0][0] != 0 || batches[2][1] != 11 {
		t.Errorf("batches were overwritten: %v", batches)
	}
}

func TestBatchProcessorError(t *testing.T) {
	boom := errors.New("boom")
	processor := NewBatchProcessor(2, func(items []string) error { return boom })
	if err := processor.Add("a", "b"); !errors.Is(err, boom) {
		t.Errorf("expected processor error, got %v", err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestMemoryStats(t *testing.T) {
	stats := MemoryStats()
	if stats.Alloc == 0 || stats.Goroutines == 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
