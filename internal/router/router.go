package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/handler"
	"github.com/certprep/certprep-backend/internal/middleware"
	"github.com/certprep/certprep-backend/internal/response"
	"github.com/certprep/certprep-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Exam   *handler.ExamHandler
	System *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	identities *service.IdentityService,
	rateStore middleware.RateStore,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.SessionHeader}
	corsConfig.ExposeHeaders = []string{
		"X-Request-ID", middleware.SessionHeader,
		"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After",
	}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	api := router.Group("/api/v1")
	api.Use(
		middleware.RateLimit(rateStore, cfg.RateLimitRequests, cfg.RateLimitWindow, log),
		middleware.NoStore(),
	)

	// ─── Accounts ──────────────────────────────────────────────────────
	auth := api.Group("/auth")
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireUser(identities), handlers.Auth.Me)
	}

	// ─── Exams (user or anonymous session) ─────────────────────────────
	exams := api.Group("/exams")
	exams.Use(middleware.Identity(identities))
	{
		exams.POST("", handlers.Exam.CreateExam)
		exams.GET("", handlers.Exam.ListExams)
		exams.GET("/:exam_id", handlers.Exam.GetExam)
		exams.DELETE("/:exam_id", handlers.Exam.DeleteExam)

		exams.POST("/:exam_id/start", handlers.Exam.StartExam)
		exams.POST("/:exam_id/pause", handlers.Exam.PauseExam)
		exams.POST("/:exam_id/resume", handlers.Exam.ResumeExam)
		exams.POST("/:exam_id/complete", handlers.Exam.CompleteExam)
		exams.POST("/:exam_id/cancel", handlers.Exam.CancelExam)

		exams.PUT("/:exam_id/answers/:question_id", handlers.Exam.SubmitAnswer)

		exams.GET("/:exam_id/results", handlers.Exam.GetExamResults)
		exams.GET("/:exam_id/analysis", handlers.Exam.GetExamAnalysis)
		exams.POST("/:exam_id/remediation", handlers.Exam.CreateRemediationExam)
	}

	return router
}
