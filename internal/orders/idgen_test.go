package orders

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDGenerator_Unique(t *testing.T) {
	gen := newIDGenerator()

	seen := make(map[int64]bool)
	for i := 0; i < 10_000; i++ {
		id := gen.Next()
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}

func TestIDGenerator_Monotonic(t *testing.T) {
	gen := newIDGenerator()

	prev := gen.Next()
	for i := 0; i < 5_000; i++ {
		next := gen.Next()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestIDGenerator_RandomisedCounterStart(t *testing.T) {
	// Fresh generators must not all start their counter at the same point,
	// otherwise a restart landing in the same millisecond as its predecessor
	// would replay the predecessor's ids.
	offsets := make(map[int64]bool)
	for i := 0; i < 64; i++ {
		gen := newIDGenerator()
		offsets[gen.Next()%seqPerMs] = true
	}
	require.Greater(t, len(offsets), 1)
}

func TestIDGenerator_ConcurrentUnique(t *testing.T) {
	gen := newIDGenerator()

	const workers = 8
	const perWorker = 2_000

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, gen.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				require.False(t, seen[id], "duplicate id %d", id)
				seen[id] = true
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}
