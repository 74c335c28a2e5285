package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"courier/internal/logger"
)

const ctxUserIDKey = "user_id"

// RequestLogging logs timestamp, user and path of every request.
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		incrementCounter(&totalRequests)
		start := time.Now()

		c.Next()

		user := "anonymous"
		if v, ok := c.Get(ctxUserIDKey); ok {
			if id, ok := v.(uint); ok {
				user = "user:" + strconv.FormatUint(uint64(id), 10)
			}
		}
		logger.Infof("%s - User: %s - Path: %s - Status: %d - %v",
			start.Format("2006-01-02 15:04:05"), user, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Auth validates the Bearer token and stores the user ID in the context.
func (h *Handler) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			// websocket clients cannot set headers from browsers, allow
			// the token as a query parameter there
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := h.parseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUserIDKey, claims.UserID)
		c.Next()
	}
}

// CachePage serves GET responses from the per-user response cache.
func (h *Handler) CachePage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.cfg.Cache.Enabled || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		userID := currentUserID(c)
		key := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			key += "?" + raw
		}

		if body, hit := h.pageCache.Get(userID, key); hit {
			incrementCounter(&totalCacheHits)
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			c.Abort()
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		if writer.Status() == http.StatusOK {
			h.pageCache.Put(userID, key, writer.body)
		}
	}
}

// captureWriter tees the response body so cache misses can be stored.
type captureWriter struct {
	gin.ResponseWriter
	body []byte
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.body = append(w.body, p...)
	return w.ResponseWriter.Write(p)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body = append(w.body, s...)
	return w.ResponseWriter.WriteString(s)
}
