package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/mylo-ta-api/internal/handler"
	"github.com/noah-isme/mylo-ta-api/internal/models"
	"github.com/noah-isme/mylo-ta-api/internal/repository"
	"github.com/noah-isme/mylo-ta-api/internal/service"
	"github.com/noah-isme/mylo-ta-api/pkg/cache"
	"github.com/noah-isme/mylo-ta-api/pkg/config"
	"github.com/noah-isme/mylo-ta-api/pkg/database"
	"github.com/noah-isme/mylo-ta-api/pkg/elevenlabs"
	"github.com/noah-isme/mylo-ta-api/pkg/jobs"
	"github.com/noah-isme/mylo-ta-api/pkg/llm"
	"github.com/noah-isme/mylo-ta-api/pkg/logger"
	"github.com/noah-isme/mylo-ta-api/pkg/pdftext"
	"github.com/noah-isme/mylo-ta-api/pkg/storage"
)

// @title Mylo Teaching Assistant API
// @version 1.0.0
// @description Conversational course management, LLM grading and voice agent context sync.
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		logr.Sugar().Fatalw("invalid configuration", "error", err)
	}
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, pending attachments will not be tracked", "error", err)
		rdb = nil
	}

	app, err := buildApp(cfg, db, rdb, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to wire application", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.ragQueue.Start(ctx)
	defer app.ragQueue.Stop()

	if cfg.Auth.TestUserID != "" {
		if err := app.auth.EnsureTestUser(ctx); err != nil {
			logr.Warn("could not ensure test user", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           newRouter(cfg, app, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "voice_agent", app.voice.Available())
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := app.cache.Close(); err != nil {
		logr.Warn("redis close failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type application struct {
	metrics  *service.MetricsService
	auth     *service.AuthService
	voice    *service.VoiceAgentService
	ragQueue *jobs.Queue
	cache    *repository.CacheRepository

	agentHandler   *handler.AgentHandler
	gradingHandler *handler.GradingHandler
	voiceHandler   *handler.VoiceAgentHandler
	debugHandler   *handler.DebugHandler
	metricsHandler *handler.MetricsHandler
}

func buildApp(cfg *config.Config, db *sqlx.DB, rdb *redis.Client, logr *zap.Logger) (*application, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logr.Warn("unknown timezone, using UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		loc = time.UTC
	}
	validate := validator.New()
	metrics := service.NewMetricsService()

	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	chatLog := repository.NewChatMessageRepository(db)
	cacheRepo := repository.NewCacheRepository(rdb, logr)

	completer := llm.NewClient(llm.Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.IntentModel,
		Timeout:      cfg.LLM.Timeout,
	}, logr.Named("llm"))

	auth := service.NewAuthService(users, logr.Named("auth"), service.AuthConfig{
		JWTSecret:     cfg.Auth.JWTSecret,
		SupabaseURL:   cfg.Auth.SupabaseURL,
		SupabaseKey:   cfg.Auth.SupabaseKey,
		VerifyTimeout: cfg.Auth.VerifyTimeout,
		TestUser: models.AuthUser{
			ID:       cfg.Auth.TestUserID,
			Email:    cfg.Auth.TestUserEmail,
			FullName: cfg.Auth.TestUserName,
			Role:     models.RoleTeacher,
			IsTest:   true,
		},
	})

	dates := service.NewDateNormalizer(loc, logr.Named("dates"))
	classifier := service.NewIntentClassifier(completer, dates, cfg.LLM.IntentModel, cfg.LLM.HistoryLimit, metrics, logr.Named("classifier"))
	actions := service.NewActionService(courses, assignments, submissions, dates, logr.Named("actions"))
	agent := service.NewAgentService(chatLog, classifier, actions, metrics, cfg.LLM.HistoryLimit, validate, logr.Named("agent"))

	files, err := storage.NewLocalStorage(cfg.Grading.StorageDir)
	if err != nil {
		return nil, err
	}
	extractor := pdftext.NewExtractor(pdftext.Options{
		MaxPages:        cfg.Grading.MaxPages,
		MaxChars:        cfg.Grading.MaxChars,
		DownloadTimeout: cfg.Grading.DownloadTimeout,
	}, logr.Named("pdf"))
	grader := service.NewGradingAgent(completer, cfg.LLM.GradingModel, cfg.Grading.DefaultMaxScore, metrics, logr.Named("grader"))
	grading := service.NewGradingService(submissions, assignments, files, extractor, grader, validate, logr.Named("grading"))
	exporter := service.NewExportService(assignments, submissions, nil, nil, logr.Named("export"))

	builder := service.NewVoiceContextBuilder(users, courses, enrollments, assignments, submissions, logr.Named("voice_context"))
	voiceClient := elevenlabs.NewClient(elevenlabs.Config{
		APIKey:  cfg.VoiceAgent.APIKey,
		BaseURL: cfg.VoiceAgent.BaseURL,
		Timeout: cfg.VoiceAgent.RequestTimeout,
	}, logr.Named("elevenlabs"))
	var pending *repository.AttachmentCacheRepository
	if cacheRepo.Enabled() {
		pending = repository.NewAttachmentCacheRepository(cacheRepo, cfg.VoiceAgent.PendingTTL)
	}
	voice := service.NewVoiceAgentService(voiceClient, builder, pendingStore(pending), metrics, service.VoiceAgentConfig{
		DefaultAgentID: cfg.VoiceAgent.AgentID,
		AttachAttempts: uint(max(cfg.VoiceAgent.AttachAttempts, 0)),
		AttachDelay:    cfg.VoiceAgent.AttachRetryDelay,
		RAGModel:       cfg.VoiceAgent.RAGModel,
	}, validate, logr.Named("voice_agent"))

	ragQueue := jobs.NewQueue("rag-index", jobs.Config{
		Workers:     cfg.Jobs.RAGWorkers,
		BufferSize:  cfg.Jobs.RAGBuffer,
		MaxAttempts: cfg.Jobs.RAGMaxRetries + 1,
		RetryDelay:  cfg.Jobs.RAGRetryDelay,
		Logger:      logr.Named("jobs"),
	})
	ragQueue.Handle(service.JobTypeRAGIndex, voice.HandleRAGJob)
	voice.SetQueue(ragQueue)

	checks := map[string]handler.Pinger{"database": db}
	if cacheRepo.Enabled() {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}

	return &application{
		metrics:        metrics,
		auth:           auth,
		voice:          voice,
		ragQueue:       ragQueue,
		cache:          cacheRepo,
		agentHandler:   handler.NewAgentHandler(agent),
		gradingHandler: handler.NewGradingHandler(grading, exporter),
		voiceHandler:   handler.NewVoiceAgentHandler(voice, builder),
		debugHandler:   handler.NewDebugHandler(cfg, auth, users, courses, completer, metrics),
		metricsHandler: handler.NewMetricsHandler(metrics, checks),
	}, nil
}

// pendingStore keeps a nil repository from becoming a non-nil interface.
func pendingStore(repo *repository.AttachmentCacheRepository) service.PendingAttachmentStore {
	if repo == nil {
		return nil
	}
	return repo
}
