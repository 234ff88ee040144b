// Command seedcourses embeds a course catalog and stores it in the configured index.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/adapters/loader"
	"github.com/0xcro3dile/coursebridge/internal/app"
	"github.com/0xcro3dile/coursebridge/internal/domain/usecases"
	"github.com/0xcro3dile/coursebridge/internal/infrastructure/config"
	"github.com/0xcro3dile/coursebridge/internal/infrastructure/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("COURSEBRIDGE_CONFIG"), "path to YAML config file")
	catalog := flag.String("catalog", "", "course catalog (.json, .yaml); the built-in sample catalog when empty")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Loading configuration")
	}
	log := logging.Init(cfg.LogLevel, cfg.LogFormat)

	if *catalog == "" {
		*catalog = cfg.CourseCatalog
	}
	if cfg.IndexBackend == "memory" {
		log.Fatal("Seeding the in-memory index has no lasting effect; choose sqlite or opensearch")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	courses, err := loader.LoadCourses(*catalog)
	if err != nil {
		log.WithError(err).Fatal("Loading course catalog")
	}

	index, err := app.OpenIndex(cfg)
	if err != nil {
		log.WithError(err).Fatal("Opening index")
	}
	defer index.Close()

	if err := app.EnsureSchema(ctx, index, cfg.EmbeddingDimensions); err != nil {
		log.WithError(err).Fatal("Creating index")
	}

	policy := app.Policy(cfg, log)
	seed := usecases.NewSeedUseCase(app.Embedder(cfg, policy, log), index, policy, log)

	n, err := seed.Seed(ctx, courses)
	if err != nil {
		log.WithError(err).WithField("indexed", n).Fatal("Seeding failed")
	}
	log.WithFields(logrus.Fields{"indexed": n, "backend": cfg.IndexBackend}).Info("Successfully indexed courses")
}

