package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheSeenDuplicate(t *testing.T) {
	cache := NewCache(10, time.Minute)
	require.False(t, cache.IsSeen("run-1"))
	cache.MarkSeen("run-1")
	require.True(t, cache.IsSeen("run-1"))
}

func TestCacheTTLExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewCache(10, time.Minute)
	cache.now = func() time.Time { return now }

	require.True(t, cache.Add("run-2"))
	require.False(t, cache.Add("run-2"))

	now = now.Add(2 * time.Minute)
	require.False(t, cache.IsSeen("run-2"))
	require.True(t, cache.Add("run-2"))
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	cache := NewCache(1, time.Minute)
	require.True(t, cache.Add("ml engineer|deepmind"))
	require.True(t, cache.Add("data scientist|ocado"))

	require.False(t, cache.IsSeen("ml engineer|deepmind"))
	require.True(t, cache.IsSeen("data scientist|ocado"))
	require.Equal(t, 1, cache.Len())
}

func TestCacheAddConcurrent(t *testing.T) {
	cache := NewCache(100, time.Minute)

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if cache.Add(fmt.Sprintf("key-%d", i%10)) {
				fresh.Add(1)
			}
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 10, fresh.Load())
}
