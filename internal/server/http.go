package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/idater/idater-backend/internal/config"
	"github.com/idater/idater-backend/internal/logger"
	"github.com/rs/cors"
)

// Registrar lets each service wire its own routes onto the engine.
type Registrar interface {
	Register(r *gin.Engine)
}

// NewRouter builds the gin engine, mounts the health probe and every
// registrar, and wraps the whole surface with permissive CORS so browser and
// app clients can call it directly.
func NewRouter(cfg *config.Config, registrars ...Registrar) http.Handler {
	if cfg.App.ENV == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	for _, reg := range registrars {
		reg.Register(engine)
	}

	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}).Handler(engine)
}

// Start blocks serving HTTP on the configured host and port.
func Start(cfg *config.Config, handler http.Handler) error {
	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	logger.Info("http server listening", "addr", addr)
	return http.ListenAndServe(addr, handler)
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}
