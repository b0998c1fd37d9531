package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"postboard/internal/posts"
)

// RegisterRoutes builds the engine: global middleware, health check and the
// posts API mounted on /api/posts.
func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(s.logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.healthHandler)

	handler := posts.NewHandler(s.store, s.logger)
	posts.RegisterRoutes(r.Group("/api/posts"), handler)

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	response := gin.H{
		"status":  "healthy",
		"service": "posts-service",
	}
	status := http.StatusOK

	if s.db != nil {
		dbHealth := s.db.Health()
		response["database"] = dbHealth
		if dbHealth["status"] != "up" {
			response["status"] = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	// The cache is optional, so a failing cache degrades but never fails the check.
	cacheHealth := map[string]string{"status": "disabled"}
	if s.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := s.cache.Ping(ctx).Err(); err != nil {
			cacheHealth["status"] = "down"
			cacheHealth["error"] = err.Error()
		} else {
			cacheHealth["status"] = "up"
		}
	}
	response["cache"] = cacheHealth

	c.JSON(status, response)
}
