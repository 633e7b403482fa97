package fetcher

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow admits at most limit requests in any rolling window.
// It is safe for concurrent use and shared by every fetch in the process.
type SlidingWindow struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	clock    Clock
	admitted []time.Time
}

func NewSlidingWindow(limit int, window time.Duration, clock Clock) *SlidingWindow {
	if limit <= 0 {
		limit = DefaultRateLimitCalls
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &SlidingWindow{
		limit:    limit,
		window:   window,
		clock:    clock,
		admitted: make([]time.Time, 0, limit),
	}
}

// Wait blocks until the window has room and records the admission.
// It returns how long the caller was held back.
func (w *SlidingWindow) Wait(ctx context.Context) (time.Duration, error) {
	var waited time.Duration

	for {
		if err := ctx.Err(); err != nil {
			return waited, err
		}

		w.mu.Lock()
		now := w.clock.Now()
		w.evict(now)

		if len(w.admitted) < w.limit {
			w.admitted = append(w.admitted, now)
			w.mu.Unlock()
			return waited, nil
		}

		delay := w.admitted[0].Add(w.window).Sub(now)
		w.mu.Unlock()

		if err := w.clock.Sleep(ctx, delay); err != nil {
			return waited, err
		}
		waited += delay
	}
}

// InFlight returns the number of admissions still inside the window.
func (w *SlidingWindow) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(w.clock.Now())
	return len(w.admitted)
}

// evict drops admissions older than the window. Callers hold mu.
func (w *SlidingWindow) evict(now time.Time) {
	cut := 0
	for cut < len(w.admitted) && now.Sub(w.admitted[cut]) >= w.window {
		cut++
	}
	if cut > 0 {
		w.admitted = append(w.admitted[:0], w.admitted[cut:]...)
	}
}
