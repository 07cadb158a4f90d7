package main

import (
	"github.com/septivank/asset-tracker/internal/config"
	"github.com/septivank/asset-tracker/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
}
