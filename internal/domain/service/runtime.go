package service

import (
	"math/rand"
	"sync"
	"time"
)

// Random is the randomness used by fallback signals and fallback candidates.
// *rand.Rand satisfies it but is not safe for concurrent use; wrap it with
// NewLockedRandom when sharing.
type Random interface {
	Float64() float64
	Intn(n int) int
}

// Clock returns the current time.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

type lockedRandom struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRandom returns a goroutine-safe Random seeded with seed.
func NewLockedRandom(seed int64) Random {
	return &lockedRandom{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRandom) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRandom) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
