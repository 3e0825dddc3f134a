package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RouterConfig collects what the HTTP surface serves.
type RouterConfig struct {
	REST    *RESTHandler
	WS      *WSHandler
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter builds the gin engine with the API, the websocket endpoint, health and metrics.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	if cfg.WS != nil {
		r.GET("/ws", gin.WrapF(cfg.WS.ServeWS))
	}
	if cfg.REST != nil {
		cfg.REST.Register(r)
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
