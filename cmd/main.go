package main

import (
	"fmt"
	"os"

	"github.com/yungbote/videonotes-backend/internal/clients/gcp"
	"github.com/yungbote/videonotes-backend/internal/db"
	"github.com/yungbote/videonotes-backend/internal/handlers"
	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/middleware"
	"github.com/yungbote/videonotes-backend/internal/repos"
	"github.com/yungbote/videonotes-backend/internal/server"
	"github.com/yungbote/videonotes-backend/internal/services"
	"github.com/yungbote/videonotes-backend/internal/utils"
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

	// Env
	log.Info("Loading environment variables from main...")
	port := utils.GetEnv("PORT", "8080", log)
	renderRate := utils.GetEnvAsFloat("RENDER_CALLS_PER_SECOND", 2, log)
	renderConcurrency := utils.GetEnvAsInt("RENDER_MAX_CONCURRENT", 4, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	analysisRepo := repos.NewAnalysisRepo(thePG, log)
	renderedNoteRepo := repos.NewRenderedNoteRepo(thePG, log)
	conversationRepo := repos.NewConversationRepo(thePG, log)
	aiCallLogRepo := repos.NewAICallLogRepo(thePG, log)

	// Providers
	log.Info("Setting up providers from main...")
	captionClient, err := gcp.NewCaptionClient(log)
	if err != nil {
		log.Error("Could not init CaptionClient", "error", err)
		os.Exit(1)
	}
	defer captionClient.Close()
	frameClient, err := gcp.NewFrameClient(log)
	if err != nil {
		log.Error("Could not init FrameClient", "error", err)
		os.Exit(1)
	}
	defer frameClient.Close()

	// Services
	log.Info("Setting up Services from main...")
	aiClient, err := services.NewAIClient(log, aiCallLogRepo)
	if err != nil {
		log.Error("Could not init AIClient", "error", err)
		os.Exit(1)
	}
	transcriptService := services.NewTranscriptService(log)
	visualService := services.NewVisualService(log)
	structureService := services.NewStructureService(log, aiClient)
	conceptService := services.NewConceptService(log, aiClient)
	templateRegistry := services.NewTemplateRegistry()
	rendererService := services.NewRendererService(log, aiClient, templateRegistry, renderRate, renderConcurrency)
	pipelineService := services.NewPipelineService(
		log,
		captionClient,
		frameClient,
		transcriptService,
		visualService,
		structureService,
		conceptService,
		rendererService,
		analysisRepo,
		renderedNoteRepo,
	)
	chatbotService := services.NewChatbotService(log, aiClient, conversationRepo)

	// Handlers
	log.Info("Setting up handlers from main...")
	pipelineHandler := handlers.NewPipelineHandler(log, pipelineService)
	notesHandler := handlers.NewNotesHandler(log, renderedNoteRepo, analysisRepo)
	chatHandler := handlers.NewChatHandler(log, chatbotService, analysisRepo)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		PipelineHandler: pipelineHandler,
		NotesHandler:    notesHandler,
		ChatHandler:     chatHandler,
		RequestLog:      middleware.NewRequestLogMiddleware(log),
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
