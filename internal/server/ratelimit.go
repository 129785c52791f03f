package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/meetmind/internal/logging"
)

const (
	// defaultRateLimit is the sustained requests per second per IP on the
	// business routes when none is configured.
	defaultRateLimit = 5

	// defaultRateBurst is the per-IP burst when none is configured.
	defaultRateBurst = 10

	// staleAfter is how long an IP may stay idle before its bucket is dropped.
	staleAfter = 5 * time.Minute

	// evictEvery is the sweep interval for idle buckets.
	evictEvery = time.Minute
)

// bucket is one client's token bucket and when it was last used.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a per-IP token bucket on the routes it wraps.
// Uploads and questions are expensive (embedding, generation,
// transcription), so clients over budget get 429 with the wait in
// Retry-After instead of queuing.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*bucket
	rps      rate.Limit
	burst    int
	log      *slog.Logger
}

// newRateLimiter builds a limiter with rps sustained and burst
// instantaneous requests per IP and starts the idle-bucket sweeper. The
// returned stop function ends the sweeper.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		limiters: make(map[string]*bucket),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(evictEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				rl.evictBefore(now.Add(-staleAfter))
			}
		}
	}()

	var once sync.Once
	return rl, func() { once.Do(func() { close(done) }) }
}

// getLimiter returns the bucket for ip, creating it on first sight.
func (rl *rateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.limiters[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// evictBefore drops buckets last used before cutoff.
func (rl *rateLimiter) evictBefore(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0
	for ip, b := range rl.limiters {
		if b.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
			evicted++
		}
	}
	if evicted > 0 {
		rl.log.Debug("rate limiter: evicted idle clients",
			slog.Int("evicted", evicted),
			slog.Int("remaining", len(rl.limiters)),
		)
	}
}

// middleware admits a request when its client's bucket has a token.
// Otherwise it answers 429 with Retry-After set to the whole seconds until
// the next token.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		res := rl.getLimiter(ip).Reserve()
		if delay := res.Delay(); !res.OK() || delay > 0 {
			res.Cancel()
			retry := retryAfter(delay, res.OK())
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.Int("retry_after_s", retry),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeJSON(w, r, http.StatusTooManyRequests, errorResponse{Detail: "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfter converts a reservation delay to Retry-After seconds, at least 1.
// A reservation that can never be satisfied (burst 0) reports one minute.
func retryAfter(delay time.Duration, ok bool) int {
	if !ok || delay == rate.InfDuration {
		return int(evictEvery / time.Second)
	}
	return max(1, int(math.Ceil(delay.Seconds())))
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted; deployments behind a proxy should rate limit at the proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
