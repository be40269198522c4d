package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"screenrec/internal/config"
	"screenrec/internal/database"
	"screenrec/internal/recordings"
	"screenrec/internal/server"
)

func gracefulShutdown(fiberServer *server.FiberServer, log *logrus.Entry, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// An active session still joins its workers and assembles its
	// temps during shutdown, so the deadline is generous.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := fiberServer.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	log := logrus.NewEntry(logrus.New())

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	for _, dir := range []string{cfg.Recording.RecordingsDir, cfg.Recording.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.WithError(err).WithField("dir", dir).Fatal("could not create directory")
		}
	}

	// Nothing can be recording yet, so every leftover temp artifact
	// is an orphan from a previous crash.
	if n := recordings.SweepOrphans(
		[]string{cfg.Recording.TempDir, cfg.Recording.RecordingsDir}, 0, log,
	); n > 0 {
		log.WithField("removed", n).Info("cleaned up leftover temp files")
	}

	db, err := database.New(cfg.Database, log.WithField("component", "database"))
	if err != nil {
		log.WithError(err).Fatal("could not connect to database")
	}

	srv, err := server.New(cfg, db, log)
	if err != nil {
		log.WithError(err).Fatal("could not build server")
	}
	srv.RegisterFiberRoutes()

	log.WithFields(logrus.Fields{
		"addr":       fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"recordings": cfg.Recording.RecordingsDir,
		"auth":       cfg.Auth.APIKey != "",
	}).Info("server starting")

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := srv.Listen(addr); err != nil {
			panic(fmt.Sprintf("http server error: %s", err))
		}
	}()

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(srv, log, done)

	// Wait for the graceful shutdown to complete
	<-done

	if err := db.Close(); err != nil {
		log.WithError(err).Warn("database close failed")
	}
	log.Info("graceful shutdown complete")
}
