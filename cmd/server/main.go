package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/voicecoach/internal/api"
	"github.com/satriahrh/voicecoach/internal/auth"
	"github.com/satriahrh/voicecoach/internal/config"
)

func main() {
	mintSubject := flag.String("mint-token", "", "print an operator token for `subject` and exit")
	mintTTL := flag.Duration("ttl", 30*24*time.Hour, "lifetime of a minted operator token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if *mintSubject != "" {
		token, err := auth.GenerateOperatorToken([]byte(cfg.OperatorSecret), *mintSubject, *mintTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to mint operator token:", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	// Initialize logger
	logger, err := cfg.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.DeepgramAPIKey == "" || cfg.DeepgramProjectID == "" {
		logger.Warn("DEEPGRAM_API_KEY or DEEPGRAM_PROJECT_ID not set, token requests will fail")
	}
	if cfg.OperatorSecret == "" {
		logger.Warn("OPERATOR_JWT_SECRET not set, token endpoint is unauthenticated")
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize API routes
	api.InitRoutes(e, api.TokenConfig{
		APIKey:         cfg.DeepgramAPIKey,
		ProjectID:      cfg.DeepgramProjectID,
		OperatorSecret: []byte(cfg.OperatorSecret),
	}, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Token server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
