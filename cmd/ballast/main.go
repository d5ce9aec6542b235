package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"ballast/internal/app"
	"ballast/internal/config"
	"ballast/internal/logger"
)

func main() {
	defaultPath := os.Getenv("BALLAST_CONFIG")
	if defaultPath == "" {
		defaultPath = "configs/config.yaml"
	}
	cfgPath := flag.String("config", defaultPath, "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("initializing log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded (env=%s, profiles=%s)", cfg.App.Env, cfg.Profiles.Path)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("initializing app failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
