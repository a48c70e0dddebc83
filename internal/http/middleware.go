package http

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"blog-manager/internal/domain"
)

const contextUserKey = "currentUser"

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// authMiddleware validates the bearer access token and loads the account
// into the request context. Inactive accounts are rejected the same way as
// bad tokens.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondErrorCode(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "Authentication credentials were not provided.", nil)
			c.Abort()
			return
		}

		claims, err := h.jwt.ParseAccess(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respondErrorCode(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "Invalid or expired token.", nil)
			c.Abort()
			return
		}

		uid, err := uuid.Parse(claims.Subject)
		if err != nil {
			respondErrorCode(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "Invalid or expired token.", nil)
			c.Abort()
			return
		}

		user, err := h.auth.GetUser(c.Request.Context(), uid)
		if err != nil || !user.IsActive {
			respondErrorCode(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "Invalid or expired token.", nil)
			c.Abort()
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*domain.User)
	return user
}

// ipLimiter hands out one token-bucket limiter per client IP. Entries idle
// longer than staleAfter are pruned on the way through.
type ipLimiter struct {
	mu         sync.Mutex
	visitors   map[string]*visitor
	limit      rate.Limit
	burst      int
	staleAfter time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{
		visitors:   make(map[string]*visitor),
		limit:      limit,
		burst:      burst,
		staleAfter: 3 * time.Hour,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for addr, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.staleAfter {
			delete(l.visitors, addr)
		}
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

func (l *ipLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			retry := int(1 / float64(l.limit))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retry))
			respondErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "Request was throttled.", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
