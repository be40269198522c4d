package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"screenrec/internal/config"
	"screenrec/internal/database"
	"screenrec/internal/recordings"
)

func main() {
	log := logrus.NewEntry(logrus.New())
	log.Info("ensuring recording history indexes...")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := database.New(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("could not connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := recordings.EnsureIndexes(ctx, db.GetDatabase()); err != nil {
		log.WithError(err).Fatal("failed to create indexes")
	}

	log.Info("recording history indexes in place")
}
