package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/atinyakov/PicTag/internal/models"
)

// sweepEvery is how often clients whose allowance has fully refilled are
// forgotten.
const sweepEvery = time.Minute

// ClientLimiter gives every client address perMinute requests that refill
// evenly over a minute. Mount it after chi's RealIP so proxied clients are
// told apart by their forwarded address.
type ClientLimiter struct {
	perSecond float64
	burst     float64
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*allowance
	swept   time.Time
}

type allowance struct {
	left float64
	at   time.Time
}

// NewClientLimiter returns a limiter allowing perMinute requests per client.
func NewClientLimiter(perMinute int) (*ClientLimiter, error) {
	if perMinute <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", perMinute)
	}
	return &ClientLimiter{
		perSecond: float64(perMinute) / 60,
		burst:     float64(perMinute),
		now:       time.Now,
		clients:   make(map[string]*allowance),
	}, nil
}

// Handler rejects requests over the limit with 429 and a Retry-After hint.
func (l *ClientLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wait := l.take(clientAddr(r)); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, models.ErrTooManyRequests.Code, models.ErrTooManyRequests.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// take spends one request of client's allowance. It returns zero on success
// and otherwise how long until the next request would be accepted.
func (l *ClientLimiter) take(client string) time.Duration {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) >= sweepEvery {
		l.sweep(now)
	}

	a, ok := l.clients[client]
	if !ok {
		a = &allowance{left: l.burst, at: now}
		l.clients[client] = a
	}
	a.left = l.refilled(a, now)
	a.at = now

	if a.left < 1 {
		return time.Duration((1 - a.left) / l.perSecond * float64(time.Second))
	}
	a.left--
	return 0
}

func (l *ClientLimiter) refilled(a *allowance, now time.Time) float64 {
	elapsed := now.Sub(a.at).Seconds()
	if elapsed <= 0 {
		return a.left
	}
	return math.Min(l.burst, a.left+elapsed*l.perSecond)
}

// sweep drops clients that are back to a full allowance; a new entry would
// start in the same state.
func (l *ClientLimiter) sweep(now time.Time) {
	for client, a := range l.clients {
		if l.refilled(a, now) >= l.burst {
			delete(l.clients, client)
		}
	}
	l.swept = now
}

// clientAddr is the host part of RemoteAddr, which RealIP has already
// replaced with the forwarded address when one was sent.
func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
