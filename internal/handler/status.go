package handler

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	totalRequests  int64
	totalErrors    int64
	totalCacheHits int64
	startTime      = time.Now()
)

// incrementCounter safely increases a counter
func incrementCounter(counter *int64) {
	atomic.AddInt64(counter, 1)
}

// Stats reports processing counters and runtime state.
func (h *Handler) Stats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)

	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds":  int64(uptime.Seconds()),
		"total_requests":  atomic.LoadInt64(&totalRequests),
		"total_errors":    atomic.LoadInt64(&totalErrors),
		"cache_hits":      atomic.LoadInt64(&totalCacheHits),
		"cached_entries":  h.pageCache.Size(),
		"memory_usage_mb": bToMb(m.Alloc),
		"total_alloc_mb":  bToMb(m.TotalAlloc),
		"sys_memory_mb":   bToMb(m.Sys),
		"gc_runs":         m.NumGC,
		"goroutines":      runtime.NumGoroutine(),
	})
}

// bToMb converts bytes to MB
func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
