package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodstore/internal/metrics"
)

const (
	// HeaderUserID и HeaderUserRole выставляет аутентифицирующий прокси перед сервисом.
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderRequestID = "X-Request-Id"

	// RoleAdmin: роль администратора каталога. "1" — числовая роль из старых токенов.
	RoleAdmin        = "admin"
	roleAdminNumeric = "1"

	ctxUserID    = "foodstore.user_id"
	ctxUserRole  = "foodstore.user_role"
	ctxRequestID = "foodstore.request_id"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func recovery(logger *log.Entry) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.WithFields(log.Fields{
			"panic":      recovered,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(ctxRequestID),
		}).Error("handler panic")
		writeError(c, http.StatusInternalServerError, "Internal Server Error")
	})
}

func accessLog(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(log.Fields{
			"method":     c.Request.Method,
			"route":      c.FullPath(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString(ctxRequestID),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithError(c.Errors.Last().Err)
		}
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}

func observe(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		m.Observe(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// identity переносит заголовки прокси в контекст запроса.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" {
			c.Set(ctxUserID, id)
			c.Set(ctxUserRole, strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))))
		}
		c.Next()
	}
}

// RequireSignIn отвечает 401, если запрос не аутентифицирован.
func RequireSignIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID(c) == "" {
			writeError(c, http.StatusUnauthorized, "Unauthorized Access")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin отвечает 403, если пользователь не администратор.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxUserRole)
		if role != RoleAdmin && role != roleAdminNumeric {
			writeError(c, http.StatusForbidden, "Admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func rateLimit(rps float64, burst int) gin.HandlerFunc {
	limiter := newLimiter(rps, burst)
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.Header("Retry-After", "1")
			writeError(c, http.StatusTooManyRequests, "Too many payment attempts, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
