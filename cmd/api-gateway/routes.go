package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/mylo-ta-api/api/swagger"
	"github.com/noah-isme/mylo-ta-api/internal/middleware"
	"github.com/noah-isme/mylo-ta-api/pkg/config"
	"github.com/noah-isme/mylo-ta-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/mylo-ta-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/mylo-ta-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, app *application, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.metrics))

	r.GET("/health", app.metricsHandler.Health)
	r.GET("/ready", app.metricsHandler.Ready)
	r.GET("/metrics", app.metricsHandler.Prometheus)

	production := cfg.Env == config.EnvProduction
	if !production {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authRequired := middleware.JWT(app.auth)
	testIdentity := middleware.TestUser(app.auth, cfg.Auth.EnableTestRoute && !production, logr)

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = "/api"
	}
	api := r.Group(prefix)

	agent := api.Group("/agent")
	agent.POST("/process", authRequired, app.agentHandler.Process)
	agent.POST("/generate-thread-title", authRequired, app.agentHandler.GenerateThreadTitle)
	agent.POST("/grade-submission", authRequired, app.gradingHandler.Grade)
	agent.GET("/assignments/:id/grades/export", authRequired, app.gradingHandler.ExportGradebook)
	agent.POST("/test", testIdentity, app.agentHandler.Process)
	agent.POST("/test/generate-thread-title", testIdentity, app.agentHandler.GenerateThreadTitle)

	voice := api.Group("/voice-agent")
	voice.GET("/health", app.voiceHandler.Health)
	voice.POST("/update-context", authRequired, app.voiceHandler.UpdateContext)
	voice.POST("/test-context", testIdentity, app.voiceHandler.UpdateContext)
	voice.GET("/context/:student_id/:course_id", authRequired, middleware.SelfOnly("student_id"), app.voiceHandler.StudentContext)
	voice.GET("/agents", authRequired, app.voiceHandler.Agents)
	voice.GET("/knowledge-base", authRequired, app.voiceHandler.KnowledgeBase)
	voice.GET("/rag-status", authRequired, app.voiceHandler.RAGStatus)
	voice.GET("/agent-config/:agent_id", authRequired, app.voiceHandler.AgentConfig)
	voice.POST("/retry-attachment/:agent_id", authRequired, app.voiceHandler.RetryAttachment)

	if !production {
		debug := r.Group("/debug")
		debug.GET("/config", app.debugHandler.Config)
		debug.GET("/test-user", app.debugHandler.TestUser)
		debug.GET("/list-data", app.debugHandler.ListData)
		debug.POST("/llm-test", app.debugHandler.LLMTest)
		debug.GET("/metrics", app.debugHandler.Metrics)
	}

	return r
}
