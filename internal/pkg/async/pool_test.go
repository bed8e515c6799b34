package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilehub/internal/pkg/async"
)

func TestPoolExecute(t *testing.T) {
	t.Run("collects every result by name", func(t *testing.T) {
		pool := async.NewPool(2)
		results := pool.Execute(context.Background(), []async.Task{
			{Name: "a", Execute: func(context.Context) (interface{}, error) { return 1, nil }},
			{Name: "b", Execute: func(context.Context) (interface{}, error) { return nil, errors.New("boom") }},
			{Name: "c", Execute: func(context.Context) (interface{}, error) { return "three", nil }},
		})

		require.Len(t, results, 3)
		assert.Equal(t, 1, results["a"].Data)
		assert.EqualError(t, results["b"].Err, "boom")
		assert.Equal(t, "three", results["c"].Data)
	})

	t.Run("bounds concurrency", func(t *testing.T) {
		var running, peak int32
		task := func(context.Context) (interface{}, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil, nil
		}

		tasks := []async.Task{}
		for _, name := range []string{"1", "2", "3", "4", "5"} {
			tasks = append(tasks, async.Task{Name: name, Execute: task})
		}
		results := async.NewPool(2).Execute(context.Background(), tasks)

		assert.Len(t, results, 5)
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	})

	t.Run("recovers panics", func(t *testing.T) {
		results := async.NewPool(1).Execute(context.Background(), []async.Task{
			{Name: "bad", Execute: func(context.Context) (interface{}, error) { panic("nope") }},
		})
		assert.Error(t, results["bad"].Err)
	})

	t.Run("cancelled context skips pending tasks", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := async.NewPool(1).Execute(ctx, []async.Task{
			{Name: "a", Execute: func(context.Context) (interface{}, error) { return 1, nil }},
			{Name: "b", Execute: func(context.Context) (interface{}, error) { return 2, nil }},
		})

		require.Len(t, results, 2)
		for _, r := range results {
			if r.Err != nil {
				assert.ErrorIs(t, r.Err, context.Canceled)
			}
		}
	})
}
