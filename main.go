package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	httpapi "github.com/andrewreder/solana-x402/go-api/http-api"
	"github.com/andrewreder/solana-x402/go-api/ledger"
	"github.com/andrewreder/solana-x402/go-api/x402"
)

func main() {
	logger := newLogger(os.Getenv("LOG_LEVEL"))
	slog.SetDefault(logger)

	cfg, err := x402.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid x402 configuration", "error", err)
		os.Exit(1)
	}

	verifier := x402.NewVerifier(cfg, ledger.FromConfig(cfg), x402.WithLogger(logger))
	gate := x402.NewGate(verifier)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	r, err := httpapi.NewRouter(gate, httpapi.Options{
		BaseURL:       os.Getenv("PUBLIC_BASE_URL"),
		PremiumAmount: os.Getenv("X402_PREMIUM_AMOUNT"),
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to initialize router", "error", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("starting x402 server",
		"port", port,
		"network", cfg.NetworkID(),
		"recipient", cfg.Recipient(),
		"asset", cfg.Asset(),
	)
	if err := r.Run(":" + port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
