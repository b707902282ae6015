package server

import (
	"net/http"

	"github.com/TIRP-Group3/design1/internal/artifact"
	"github.com/TIRP-Group3/design1/internal/config"
	"github.com/TIRP-Group3/design1/internal/handler"
	"github.com/TIRP-Group3/design1/internal/middleware"
	"github.com/TIRP-Group3/design1/internal/repository"
	"github.com/TIRP-Group3/design1/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	cfg    *config.Config
	store  artifact.Store
	logger *zap.Logger
	log    *logrus.Logger
}

func NewServer(db *sqlx.DB, cfg *config.Config, store artifact.Store, logger *zap.Logger, log *logrus.Logger) *Server {
	router := gin.Default()
	router.Use(middleware.CORSMiddleware())

	s := &Server{
		router: router,
		db:     db,
		cfg:    cfg,
		store:  store,
		logger: logger,
		log:    log,
	}

	// Setup routes
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	// Auth components
	authRepo := repository.NewAuthRepository(s.db, s.log)
	authService := service.NewAuthService(authRepo, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.log)

	// Pipeline components
	ledger := repository.NewLedgerRepository(s.db)
	training := service.NewTrainingPipeline(ledger, s.store, s.logger)
	inference := service.NewInferencePipeline(ledger, s.store, s.logger)
	datasetHandler := handler.NewDatasetHandler(training, inference, ledger, authRepo, s.cfg.Auth.GuestUsername, s.logger)
	dashboardHandler := handler.NewDashboardHandler(ledger, authRepo, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Authentication routes
	userGroup := s.router.Group("/users")
	userGroup.POST("/register", authHandler.Register)
	userGroup.POST("/login", authHandler.Login)

	// Public scanning routes (attributed to the guest identity)
	s.router.POST("/datasets/predict-file-public", datasetHandler.PredictFilePublic)
	s.router.GET("/datasets/scan-session-public/:id", datasetHandler.ScanSessionPublic)

	// Authenticated routes
	authRequired := s.router.Group("/")
	authRequired.Use(middleware.AuthMiddleware(s.logger))
	{
		authRequired.GET("/users/me", authHandler.Me)

		authRequired.POST("/datasets/upload", datasetHandler.Upload)
		authRequired.POST("/datasets/predict-file", datasetHandler.PredictFile)
		authRequired.GET("/datasets/prediction-history", datasetHandler.PredictionHistory)
		authRequired.GET("/datasets/prediction-sessions", datasetHandler.PredictionSessions)
		authRequired.GET("/datasets/scan-session/:id", datasetHandler.ScanSession)
		authRequired.GET("/datasets/training-sessions", datasetHandler.TrainingSessions)

		authRequired.GET("/dashboard", dashboardHandler.GetDashboard)

		admin := authRequired.Group("/")
		admin.Use(middleware.RequireAdmin())
		admin.POST("/datasets/active-model", datasetHandler.SetActiveModel)
	}
}

func (s *Server) Run(addr string) {
	s.log.Infof("Server starting on port %s...", addr)
	if err := s.router.Run(addr); err != nil {
		s.log.Fatalf("Server failed to start: %v", err)
	}
}
