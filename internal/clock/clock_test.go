package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSource(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestClock_NowIsStrictlyIncreasing(t *testing.T) {
	c := NewWithSource(fixedSource(1000))

	first := c.Now()
	second := c.Now()
	third := c.Now()

	assert.Equal(t, int64(1000), first)
	assert.Equal(t, int64(1001), second)
	assert.Equal(t, int64(1002), third)
}

func TestClock_FollowsWallTime(t *testing.T) {
	wall := int64(1000)
	c := NewWithSource(func() time.Time { return time.UnixMilli(wall) })

	assert.Equal(t, int64(1000), c.Now())
	wall = 5000
	assert.Equal(t, int64(5000), c.Now())

	// часы ушли назад
	wall = 10
	assert.Equal(t, int64(5001), c.Now())
}

func TestClock_Observe(t *testing.T) {
	c := NewWithSource(fixedSource(1000))

	c.Observe(9000)
	assert.Equal(t, int64(9001), c.Now())

	// более старая отметка ничего не меняет
	c.Observe(5)
	assert.Equal(t, int64(9002), c.Now())
	assert.Equal(t, int64(9002), c.Last())
}

func TestClock_Concurrent(t *testing.T) {
	c := NewWithSource(fixedSource(1))

	const goroutines = 10
	const perG = 100

	var mu sync.Mutex
	seen := make(map[int64]struct{}, goroutines*perG)

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perG {
				ts := c.Now()
				mu.Lock()
				seen[ts] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*perG)
	assert.Equal(t, int64(goroutines*perG), c.Last())
}
