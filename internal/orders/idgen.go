package orders

import (
	"math/rand"
	"sync"
	"time"
)

// idGenerator hands out system-wide unique order ids from a millisecond clock
// and a per-millisecond counter. Ids are monotonic within a process; the
// clock never runs backwards here because a stalled or rewound wall clock
// just keeps incrementing the last observed millisecond. Each fresh
// millisecond starts the counter at a random per-process nonce rather than
// zero, so a restarted or concurrent process landing in the same millisecond
// does not replay the same sequence.
type idGenerator struct {
	mu     sync.Mutex
	lastMs int64
	seq    int64
	nonce  int64
}

const seqPerMs = 1000

func newIDGenerator() *idGenerator {
	nonce := rand.Int63n(seqPerMs)
	return &idGenerator{
		lastMs: time.Now().UnixMilli(),
		seq:    nonce,
		nonce:  nonce,
	}
}

func (g *idGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	switch {
	case now > g.lastMs:
		g.lastMs = now
		g.seq = g.nonce
	case g.seq+1 < seqPerMs:
		g.seq++
	default:
		g.lastMs++
		g.seq = 0
	}

	return g.lastMs*seqPerMs + g.seq
}
