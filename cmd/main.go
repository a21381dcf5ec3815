package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brightpath/onboardhub-backend/internal/assessment"
	"github.com/brightpath/onboardhub-backend/internal/clients/openai"
	"github.com/brightpath/onboardhub-backend/internal/clients/pinecone"
	"github.com/brightpath/onboardhub-backend/internal/clients/redislock"
	"github.com/brightpath/onboardhub-backend/internal/db"
	"github.com/brightpath/onboardhub-backend/internal/handlers"
	"github.com/brightpath/onboardhub-backend/internal/middleware"
	"github.com/brightpath/onboardhub-backend/internal/observability"
	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
	"github.com/brightpath/onboardhub-backend/internal/repos"
	"github.com/brightpath/onboardhub-backend/internal/server"
	"github.com/brightpath/onboardhub-backend/internal/services"
	"github.com/brightpath/onboardhub-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "onboardhub-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})
	if shutdownOTel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(ctx)
		}()
	}

	// Assessment config
	assessmentCfg, err := assessment.LoadConfig(utils.GetEnv("ASSESSMENT_CONFIG_PATH", "", log), log)
	if err != nil {
		log.Error("Could not load assessment config", "error", err)
		os.Exit(1)
	}

	// Postgres
	dbService, err := db.New(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err = dbService.AutoMigrateAll(); err != nil {
		log.Warn("Auto migration failed", "error", err)
	}
	theDB := dbService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	moduleRepo := repos.NewModuleRepo(theDB, log)
	quizRepo := repos.NewQuizRepo(theDB, log)
	attemptRepo := repos.NewAttemptRepo(theDB, log)
	departmentRepo := repos.NewDepartmentSettingsRepo(theDB, log)
	memoryRepo := repos.NewAgentMemoryRepo(theDB, log)
	aiCallLogRepo := repos.NewAICallLogRepo(theDB, log)

	// Clients
	log.Info("Setting up Clients from main...")
	auditor := services.NewAIAuditService(aiCallLogRepo, log)
	openaiClient, err := openai.NewClient(log, auditor)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	pineconeClient, err := pinecone.New(log, pinecone.Config{
		APIKey: utils.GetEnv("PINECONE_API_KEY", "", log),
	})
	if err != nil {
		log.Error("Could not init Pinecone client", "error", err)
		os.Exit(1)
	}
	vectorStore, err := pinecone.NewVectorStore(log, pineconeClient)
	if err != nil {
		log.Error("Could not init vector store", "error", err)
		os.Exit(1)
	}
	var locker redislock.Locker
	if locker, err = redislock.New(log); err != nil {
		log.Warn("Redis unavailable, submission locking disabled", "error", err)
		locker = redislock.NopLocker{}
	}
	defer locker.Close()

	// Services
	log.Info("Setting up Services from main...")
	assessmentService := services.NewAssessmentService(
		openaiClient,
		vectorStore,
		moduleRepo,
		quizRepo,
		attemptRepo,
		departmentRepo,
		memoryRepo,
		locker,
		assessmentCfg,
		log,
	)

	// Handlers
	log.Info("Setting up Handlers from main...")
	quizHandler := handlers.NewQuizHandler(log, assessmentService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log)

	// Router
	log.Info("Setting up Router from main...")
	router := server.NewRouter(server.RouterConfig{
		QuizHandler:    quizHandler,
		AuthMiddleware: authMiddleware,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
