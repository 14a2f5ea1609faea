package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/visitbooking/config"
	"github.com/Domenick1991/visitbooking/internal/auth"
	"github.com/Domenick1991/visitbooking/internal/bootstrap"
	"github.com/Domenick1991/visitbooking/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	if cfg.Log.Format != "console" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("build app", zap.Error(err))
	}
	defer app.Close() //nolint:errcheck

	router := bootstrap.NewRouter(app.Service, auth.NewIssuer(cfg.Auth.JWTSecret), app.Checks, zl)

	zl.Info("http server starting", zap.String("address", cfg.HTTP.Address))
	if err := bootstrap.Run(ctx, cfg, router); err != nil {
		zl.Error("server error", zap.Error(err))
		return
	}
	zl.Info("http server stopped")
}
