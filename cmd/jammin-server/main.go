package main

import (
	"net/http"

	"github.com/joho/godotenv"
	"github.com/minho5235/jammin/internal/api"
	"github.com/minho5235/jammin/internal/chat"
	"github.com/minho5235/jammin/internal/config"
	"github.com/minho5235/jammin/internal/db"
	"github.com/minho5235/jammin/internal/llm"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	store := db.Open(cfg.Database.Path, logger)
	defer store.Close()

	var gateway chat.Completer
	if cfg.AI.Enabled() {
		service, err := llm.New(cfg.AI)
		if err != nil {
			logger.Fatal("failed to initialize completion service", zap.Error(err))
		}
		gateway = service
	} else {
		logger.Warn("GEMINI_API_KEY not set, completion is disabled")
		gateway = llm.NewDisabled()
	}

	ctl := chat.NewController(store, gateway, logger)

	mux := http.NewServeMux()
	api.NewHandler(ctl, logger).Register(mux)

	logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
	if err := http.ListenAndServe(cfg.Server.Addr, mux); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
