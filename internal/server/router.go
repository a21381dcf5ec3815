package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/brightpath/onboardhub-backend/internal/handlers"
	"github.com/brightpath/onboardhub-backend/internal/middleware"
	"github.com/brightpath/onboardhub-backend/internal/utils"
)

type RouterConfig struct {
	QuizHandler    *handlers.QuizHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware("onboardhub-backend"))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthz", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())
	// Quiz
	api.POST("/quiz/generate", cfg.QuizHandler.GenerateQuiz)
	api.POST("/quiz/submit", cfg.QuizHandler.SubmitQuiz)
	api.GET("/quiz/:id", cfg.QuizHandler.GetQuiz)
	api.GET("/quiz/:id/attempts", cfg.QuizHandler.GetQuizAttempts)

	return router
}

func allowedOrigins() []string {
	raw := utils.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173", nil)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
