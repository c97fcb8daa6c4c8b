package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/echolabs/echocore/config"
	"github.com/echolabs/echocore/internal/api/handlers"
	"github.com/echolabs/echocore/internal/api/middleware"
	"github.com/echolabs/echocore/internal/api/routes"
	"github.com/echolabs/echocore/internal/cache"
	"github.com/echolabs/echocore/internal/lease"
	"github.com/echolabs/echocore/internal/logger"
	"github.com/echolabs/echocore/internal/media"
	"github.com/echolabs/echocore/internal/pipeline"
	"github.com/echolabs/echocore/internal/providers/llm"
	"github.com/echolabs/echocore/internal/providers/stt"
	mongorepo "github.com/echolabs/echocore/internal/repositories/mongo"
	pgrepo "github.com/echolabs/echocore/internal/repositories/postgres"
	"github.com/echolabs/echocore/internal/services"
	"github.com/echolabs/echocore/internal/storage"
	"github.com/echolabs/echocore/internal/workers"
)

func main() {
	_ = godotenv.Load()

	lg := logger.New()
	app := config.LoadApp()

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	lg.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	lg.Info("Redis connected")

	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	lg.Info("MongoDB connected")

	ctx := context.Background()

	if !media.Available() {
		lg.Warn("ffmpeg/ffprobe not found in PATH, rendering will fail")
	}

	buckets, err := storage.NewGCSBuckets(ctx)
	if err != nil {
		log.Fatalf("GCS init error: %v", err)
	}

	sttProvider, err := stt.NewGoogleSpeech(ctx, app.SttPricePerMinute)
	if err != nil {
		log.Fatalf("Speech init error: %v", err)
	}
	defer sttProvider.Close()

	llmProvider, err := llm.NewVertexGemini(ctx, app.GoogleProjectID, app.GoogleLocation, app.LlmModel, llm.Pricing{
		InputPer1K:  app.LlmInputPricePer1K,
		OutputPer1K: app.LlmOutputPricePer1K,
	})
	if err != nil {
		log.Fatalf("Vertex init error: %v", err)
	}
	defer llmProvider.Close()

	// Repositories
	respondents := pgrepo.NewRespondentRepo(config.PostgresDB)
	interviews := pgrepo.NewInterviewRepo(config.PostgresDB)
	reviews := pgrepo.NewReviewRepo(config.PostgresDB)
	costs := pgrepo.NewCostRepo(config.PostgresDB)
	billing := pgrepo.NewBillingRepo(config.PostgresDB)
	journal := mongorepo.NewRunJournalRepo(config.MongoDatabase())

	leases := lease.NewRedisManager(config.RedisClient)

	orchestrator := &pipeline.Orchestrator{
		Respondents: respondents,
		Interviews:  interviews,
		Journal:     journal,
		Leases:      leases,

		Fetch:      &pipeline.ChunkAssembler{Buckets: buckets},
		Transcribe: &pipeline.TranscriptionStage{STT: sttProvider, CallTimeout: app.CallTimeout},
		Score:      &pipeline.ScoringStage{LLM: llmProvider, CallTimeout: app.CallTimeout},
		Render:     &pipeline.MediaRenderer{},
		Publish: &pipeline.ResultPublisher{
			Respondents: respondents,
			Reviews:     reviews,
			Costs:       costs,
			Buckets:     buckets,
		},
		Accountant: &pipeline.Accountant{
			Billing:        billing,
			PriceDefault:   app.PriceDefault,
			PriceVoiceOnly: app.PriceVoiceOnly,
		},

		WorkspaceRoot: app.WorkspaceRoot,
		RunBudget:     app.RunBudget,
		SettleDelay:   app.SettleDelay,

		Logger: lg,
	}

	pool := &workers.RunWorkerPool{
		Redis:        config.RedisClient,
		Orchestrator: orchestrator,
		Respondents:  respondents,
		Leases:       leases,
		NumWorkers:   app.NumWorkers,
		Logger:       lg,

		Stream:         app.RunStream,
		Group:          app.RunGroup,
		ConsumerPrefix: app.ConsumerTag,
		RunBudget:      app.RunBudget,
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("worker pool start error: %v", err)
	}
	lg.Infof("worker pool started with %d consumers", app.NumWorkers)

	// Services and HTTP surface
	processSvc := services.NewProcessService(config.RedisClient, respondents, journal, leases, app.RunStream)
	billingSvc := services.NewBillingService(billing, cache.NewRedisCache(config.RedisClient, "echocore:"))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(lg))

	routes.RegisterRoutes(r, routes.Deps{
		Process: handlers.NewProcessHandler(processSvc),
		Billing: handlers.NewBillingHandler(billingSvc),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
