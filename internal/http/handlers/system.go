package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	intconfig "campusride/internal/config"

	"github.com/gin-gonic/gin"
)

var (
	routerMu sync.RWMutex
	router   *gin.Engine
)

// SetRouter stores the active gin engine for later inspection (e.g., /api/routes).
func SetRouter(r *gin.Engine) {
	routerMu.Lock()
	defer routerMu.Unlock()
	router = r
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "campus ride core running"})
}

// DBCheck pings MySQL when the service runs on the mysql store.
func DBCheck(c *gin.Context) {
	if intconfig.DB == nil {
		c.JSON(http.StatusOK, gin.H{"store": "memory", "message": "no database configured"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := intconfig.DB.PingContext(ctx); err != nil {
		respondError(c, http.StatusServiceUnavailable, "db_unreachable", "database ping failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"store": "mysql", "message": "database connection OK"})
}

func Routes(c *gin.Context) {
	routerMu.RLock()
	r := router
	routerMu.RUnlock()
	if r == nil {
		respondError(c, http.StatusServiceUnavailable, "router_not_ready", "router not ready", nil)
		return
	}

	routes := r.Routes()
	out := make([]gin.H, 0, len(routes))
	for _, rt := range routes {
		out = append(out, gin.H{
			"method":  rt.Method,
			"path":    rt.Path,
			"handler": rt.Handler,
		})
	}
	c.JSON(http.StatusOK, gin.H{"routes": out})
}
