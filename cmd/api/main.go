package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/conversationhub/transcription-engine/pkg/validator"

	"github.com/conversationhub/transcription-engine/internal/adapter/handler"
	"github.com/conversationhub/transcription-engine/internal/adapter/repository"
	"github.com/conversationhub/transcription-engine/internal/infrastructure/cache"
	"github.com/conversationhub/transcription-engine/internal/infrastructure/database"
	"github.com/conversationhub/transcription-engine/internal/infrastructure/storage"
	"github.com/conversationhub/transcription-engine/internal/usecase/audio"
	"github.com/conversationhub/transcription-engine/internal/usecase/live"
	"github.com/conversationhub/transcription-engine/internal/usecase/session"
	"github.com/conversationhub/transcription-engine/pkg/config"
	"github.com/conversationhub/transcription-engine/pkg/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = false

	// Custom logger format
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	// Recover from panics
	e.Use(middleware.Recover())

	// CORS middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize dependencies
	log.Println("🔧 Initializing dependencies...")

	// Initialize the transcript sink database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Initialize the session store. Redis when configured, otherwise the
	// in-memory store (single-instance deployments only).
	var sessionStore session.Store
	if cfg.Redis.Host != "" {
		log.Println("📦 Connecting to Redis session store...")
		redisStore, err := cache.NewRedisSessionStore(context.Background(), cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Session.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisStore.Close()
		sessionStore = redisStore
	} else {
		log.Println("⚠️  REDIS_HOST not set; using in-memory session store (sessions do not survive restarts)")
		sessionStore = cache.NewMemorySessionStore(cfg.Session.TTL)
	}

	// Initialize transcription backends. Each may be absent; the fallback
	// chain degrades down to placeholders.
	log.Println("🎙️  Initializing transcription backends...")
	var batch live.BatchClient
	if c := stt.NewWhisperClient(cfg.Whisper); c != nil {
		batch = c
		log.Println("✅ Batch transcription backend configured")
	} else {
		log.Println("⚠️  Batch transcription backend not configured")
	}

	var pipeline live.PipelineClient
	if c := stt.NewPipelineClient(cfg.Pipeline); c != nil {
		pipeline = c
		log.Println("✅ External pipeline backend configured")
	} else {
		log.Println("⚠️  External pipeline backend not configured")
	}

	// Initialize chunk archive (optional)
	var archive live.ChunkArchiver
	var chunkArchive *storage.ChunkArchive
	if cfg.Storage.Endpoint != "" {
		log.Println("🗄️  Initializing chunk archive...")
		chunkArchive, err = storage.NewChunkArchive(cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to initialize chunk archive: %v", err)
		}
		archive = chunkArchive
	} else {
		log.Println("⚠️  STORAGE_ENDPOINT not set; raw chunks will not be archived")
	}

	// Initialize the sink repository and orchestrator
	log.Println("⚙️  Initializing transcription orchestrator...")
	sinkRepo := repository.NewTranscriptSinkRepository(db)
	segmenter := audio.NewSegmenter(filepath.Join(os.TempDir(), "transcription-chunks"), cfg.Audio.ChunkDuration, int64(cfg.Audio.MinChunkBytes))
	if removed, err := segmenter.SweepOrphans(24 * time.Hour); err == nil && removed > 0 {
		log.Printf("🧹 Removed %d orphaned chunk directories", removed)
	}

	// Retention maintenance: sweep leaked chunk directories and prune
	// archived audio past its retention window.
	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if removed, err := segmenter.SweepOrphans(24 * time.Hour); err == nil && removed > 0 {
				log.Printf("🧹 Removed %d orphaned chunk directories", removed)
			}
			if chunkArchive != nil {
				pruneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if removed, err := chunkArchive.PruneExpired(pruneCtx); err != nil {
					log.Printf("⚠️  Chunk archive prune failed: %v", err)
				} else if removed > 0 {
					log.Printf("🧹 Pruned %d archived chunks past retention", removed)
				}
				cancel()
			}
		}
	}()

	liveService := live.NewService(sessionStore, batch, pipeline, sinkRepo, archive, segmenter, logger)

	// Setup router with handlers
	log.Println("🛣️  Setting up routes...")
	liveHandler := handler.NewLiveHandler(liveService, cfg, logger)
	router := handler.NewRouter(cfg, liveHandler)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}
