package tasks_test

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxviazov/registry-api/internal/tasks"
)

func newPool(t *testing.T, cfg tasks.Config) *tasks.Pool {
	t.Helper()
	p, err := tasks.NewPool(cfg, zerolog.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestSpawnBlocking_Outcomes(t *testing.T) {
	p := newPool(t, tasks.Config{Workers: 2})
	ctx := context.Background()

	t.Run("value", func(t *testing.T) {
		v, err := tasks.SpawnBlocking(ctx, p, func() (int, error) { return 42, nil })
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("inner error", func(t *testing.T) {
		boom := errors.New("record not found")
		_, err := tasks.SpawnBlocking(ctx, p, func() (string, error) { return "", boom })
		require.ErrorIs(t, err, boom)
		assert.False(t, tasks.IsWorkerFault(err))
	})

	t.Run("panic", func(t *testing.T) {
		_, err := tasks.SpawnBlocking(ctx, p, func() (int, error) { panic("assertion violated") })
		require.Error(t, err)
		assert.True(t, tasks.IsWorkerFault(err))
		var fault *tasks.WorkerFault
		require.ErrorAs(t, err, &fault)
		assert.Equal(t, "assertion violated", fault.Detail())
		assert.False(t, fault.Goexit)
		assert.NotEmpty(t, fault.Stack)
		assert.NotContains(t, err.Error(), "assertion violated")
	})

	t.Run("goexit", func(t *testing.T) {
		_, err := tasks.SpawnBlocking(ctx, p, func() (int, error) {
			runtime.Goexit()
			return 0, nil
		})
		var fault *tasks.WorkerFault
		require.ErrorAs(t, err, &fault)
		assert.True(t, fault.Goexit)
	})
}

func TestFuture_ResultFaulted(t *testing.T) {
	p := newPool(t, tasks.Config{Workers: 1})
	f, err := tasks.Submit(context.Background(), p, func() (int, error) { panic(errors.New("boom")) })
	require.NoError(t, err)
	res := f.Result()
	assert.True(t, res.Faulted())
	assert.Zero(t, res.Value)
}

func TestPool_SurvivesFaults(t *testing.T) {
	p := newPool(t, tasks.Config{Workers: 1})
	ctx := context.Background()

	for range 3 {
		_, err := tasks.SpawnBlocking(ctx, p, func() (int, error) { panic("x") })
		require.True(t, tasks.IsWorkerFault(err))
		_, err = tasks.SpawnBlocking(ctx, p, func() (int, error) {
			runtime.Goexit()
			return 0, nil
		})
		require.True(t, tasks.IsWorkerFault(err))
	}

	v, err := tasks.SpawnBlocking(ctx, p, func() (string, error) { return "still alive", nil })
	require.NoError(t, err)
	assert.Equal(t, "still alive", v)

	st := p.Stats()
	assert.Equal(t, int64(6), st.Faulted)
	assert.Equal(t, int64(1), st.Completed)
}

func TestPool_ConcurrentBeyondCapacity(t *testing.T) {
	const (
		workers = 4
		n       = 10
		perTask = 50 * time.Millisecond
	)
	p := newPool(t, tasks.Config{Workers: workers})

	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)
	start := time.Now()
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := tasks.SpawnBlocking(context.Background(), p, func() (int, error) {
				time.Sleep(perTask)
				return i, nil
			})
			if err == nil && v == i {
				done.Add(1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	rounds := (n + workers - 1) / workers
	assert.Equal(t, int64(n), done.Load())
	assert.GreaterOrEqual(t, elapsed, time.Duration(rounds)*perTask-5*time.Millisecond)
	assert.Less(t, elapsed, time.Duration(rounds)*perTask+250*time.Millisecond)
}

func TestFuture_AwaitAbandonDoesNotCancelWork(t *testing.T) {
	p := newPool(t, tasks.Config{Workers: 1})
	release := make(chan struct{})
	var finished atomic.Bool

	ctx, cancel := context.WithCancel(context.Background())
	f, err := tasks.Submit(ctx, p, func() (int, error) {
		<-release
		finished.Store(true)
		return 1, nil
	})
	require.NoError(t, err)

	cancel()
	_, err = f.Await(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	res := f.Result()
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Value)
	assert.True(t, finished.Load())
}

func TestSubmit_BackpressureHonoursContext(t *testing.T) {
	p := newPool(t, tasks.Config{Workers: 1})
	release := make(chan struct{})
	started := make(chan struct{})

	_, err := tasks.Submit(context.Background(), p, func() (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	require.NoError(t, err)
	<-started

	var ran atomic.Bool
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = tasks.Submit(ctx, p, func() (int, error) {
		ran.Store(true)
		return 0, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Close())
	assert.False(t, ran.Load())
}

func TestPool_CloseDrainsAndRejects(t *testing.T) {
	p, err := tasks.NewPool(tasks.Config{Workers: 2, QueueSize: 8}, zerolog.New(io.Discard))
	require.NoError(t, err)

	var count atomic.Int64
	futures := make([]*tasks.Future[int], 0, 8)
	for i := range 8 {
		f, err := tasks.Submit(context.Background(), p, func() (int, error) {
			time.Sleep(5 * time.Millisecond)
			count.Add(1)
			return i, nil
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}
	require.NoError(t, p.Close())
	assert.Equal(t, int64(8), count.Load())
	for i, f := range futures {
		assert.Equal(t, i, f.Result().Value)
	}

	_, err = tasks.Submit(context.Background(), p, func() (int, error) { return 0, nil })
	require.ErrorIs(t, err, tasks.ErrPoolClosed)
	require.NoError(t, p.Close())
}

func TestPool_DispatchRateLimit(t *testing.T) {
	p := newPool(t, tasks.Config{Workers: 4, DispatchRate: 50, DispatchBurst: 1})
	start := time.Now()
	for range 5 {
		_, err := tasks.SpawnBlocking(context.Background(), p, func() (struct{}, error) { return struct{}{}, nil })
		require.NoError(t, err)
	}
	// 50/s with burst 1: four waits of ~20ms after the first token.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestNewPool_InvalidConfig(t *testing.T) {
	_, err := tasks.NewPool(tasks.Config{Workers: 0}, zerolog.New(io.Discard))
	require.Error(t, err)
	_, err = tasks.NewPool(tasks.Config{Workers: 1, QueueSize: -1}, zerolog.New(io.Discard))
	require.Error(t, err)
}
