package job_scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLocalCache(t *testing.T) {
	c := NewLocalCache[string, int](2)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
}

func TestJobLocker(t *testing.T) {
	l := newJobLocker()
	id := uuid.New()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(id)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	// 没有持有者时释放
	assert.Empty(t, l.locks)
}

func TestRetryStrategy(t *testing.T) {
	testCases := []struct {
		name     string
		strategy RetryStrategy
		want     []time.Duration
	}{
		{
			name:     "fixed",
			strategy: NewFixedRetryStrategy(10*time.Millisecond, 2),
			want:     []time.Duration{10 * time.Millisecond, 10 * time.Millisecond},
		},
		{
			name:     "exponential capped",
			strategy: NewExponentialRetryStrategy(100*time.Millisecond, 300*time.Millisecond, 4),
			want:     []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond},
		},
		{
			name:     "no retry",
			strategy: NewFixedRetryStrategy(time.Second, 0),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, want := range tc.want {
				d, err := tc.strategy.Next()
				assert.NoError(t, err)
				assert.Equal(t, want, d)
			}
			_, err := tc.strategy.Next()
			assert.ErrorIs(t, err, ErrOverMaxCount)
		})
	}
}

func TestNewRetryStrategyFunc(t *testing.T) {
	_, ok := NewRetryStrategyFunc(time.Second, 0, 3)().(*FixedRetryStrategy)
	assert.True(t, ok)
	_, ok = NewRetryStrategyFunc(time.Second, time.Minute, 3)().(*ExponentialRetryStrategy)
	assert.True(t, ok)
}
