package main

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/TIRP-Group3/design1/internal/artifact"
	"github.com/TIRP-Group3/design1/internal/config"
	"github.com/TIRP-Group3/design1/internal/repository"
	"github.com/TIRP-Group3/design1/internal/server"
	"github.com/TIRP-Group3/design1/internal/service"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()
	log := logrus.New()

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	service.SetJWTSecret(cfg.Auth.JWTSecret)

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Artifact store for trained model/encoder pairs
	var store artifact.Store
	switch cfg.Artifacts.Backend {
	case "s3":
		store, err = artifact.NewS3Store(artifact.S3Config{
			Endpoint:  cfg.Artifacts.S3.Endpoint,
			AccessKey: cfg.Artifacts.S3.AccessKey,
			SecretKey: cfg.Artifacts.S3.SecretKey,
			Bucket:    cfg.Artifacts.S3.Bucket,
			UseSSL:    cfg.Artifacts.S3.UseSSL,
		})
	default:
		store, err = artifact.NewFSStore(cfg.Artifacts.Dir)
	}
	if err != nil {
		logger.Fatal("Failed to initialize artifact store", zap.Error(err))
	}
	logger.Info("Artifact store initialized", zap.String("backend", cfg.Artifacts.Backend))

	// Initialize and run the server
	srv := server.NewServer(db, cfg, store, logger, log)
	srv.Run(cfg.Server.Port)
}
