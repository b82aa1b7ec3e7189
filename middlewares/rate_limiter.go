package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter menyimpan satu token bucket per IP client.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

func NewRateLimiter(every time.Duration, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Every(every),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// NewStrictRateLimiter untuk login/register: 5 request per menit per IP.
func NewStrictRateLimiter() *RateLimiter {
	return NewRateLimiter(12*time.Second, 5)
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	// buang visitor yang sudah lama diam
	for key, other := range rl.visitors {
		if now.Sub(other.lastSeen) > rl.idleTTL {
			delete(rl.visitors, key)
		}
	}

	return v.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  false,
				"message": "Terlalu banyak percobaan, silakan tunggu beberapa saat",
			})
			return
		}
		c.Next()
	}
}
