package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", "error", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	app := NewApp(cfg)
	if err := app.startup(); err != nil {
		log.Fatal("startup failed", "error", err)
	}
	defer app.shutdown()

	// Scheduled syncs and migrations run until the process is stopped.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")
}
