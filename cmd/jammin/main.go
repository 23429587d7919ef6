package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/minho5235/jammin/internal/chat"
	"github.com/minho5235/jammin/internal/config"
	"github.com/minho5235/jammin/internal/db"
	"github.com/minho5235/jammin/internal/llm"
	"github.com/minho5235/jammin/internal/tui"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger := newLogger()
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

	if err := tui.Run(ctl, logger); err != nil {
		logger.Fatal("terminal UI failed", zap.Error(err))
	}
}

// newLogger writes to a file, keeping stdout free for the TUI.
func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"jammin.log"}
	cfg.ErrorOutputPaths = []string{"jammin.log"}
	logger, err := cfg.Build()
	if err != nil {
		os.Exit(1)
	}
	return logger
}
