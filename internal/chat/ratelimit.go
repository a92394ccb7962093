package chat

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies a token bucket per chat author.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*authorLimiter
	rate     rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type authorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute commands per author with the given burst.
// Limiters idle for ten minutes are dropped by a background sweep; call Stop
// to end it.
func NewRateLimiter(perMinute float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*authorLimiter),
		rate:     rate.Limit(perMinute / 60),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go rl.sweepLoop(5 * time.Minute)
	return rl
}

// Allow reports whether author may run a command now.
func (rl *RateLimiter) Allow(author string) bool {
	if rl == nil {
		return true
	}

	rl.mu.Lock()
	now := rl.now()
	al, ok := rl.limiters[author]
	if !ok {
		al = &authorLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[author] = al
	}
	al.lastSeen = now
	rl.mu.Unlock()

	return al.limiter.AllowN(now, 1)
}

// Stop ends the background sweep.
func (rl *RateLimiter) Stop() {
	if rl == nil {
		return
	}
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for author, al := range rl.limiters {
		if now.Sub(al.lastSeen) > rl.idle {
			delete(rl.limiters, author)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
