// Command coursebridge serves the WhatsApp webhook and the agent function endpoint.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/0xcro3dile/coursebridge/internal/adapters/agent"
	"github.com/0xcro3dile/coursebridge/internal/adapters/archive"
	"github.com/0xcro3dile/coursebridge/internal/adapters/dedupe"
	"github.com/0xcro3dile/coursebridge/internal/adapters/filewatcher"
	"github.com/0xcro3dile/coursebridge/internal/adapters/llm"
	"github.com/0xcro3dile/coursebridge/internal/adapters/loader"
	"github.com/0xcro3dile/coursebridge/internal/adapters/whatsapp"
	"github.com/0xcro3dile/coursebridge/internal/app"
	"github.com/0xcro3dile/coursebridge/internal/domain/usecases"
	"github.com/0xcro3dile/coursebridge/internal/infrastructure/config"
	httpserver "github.com/0xcro3dile/coursebridge/internal/infrastructure/http"
	"github.com/0xcro3dile/coursebridge/internal/infrastructure/logging"
	"github.com/0xcro3dile/coursebridge/internal/infrastructure/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("COURSEBRIDGE_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Loading configuration")
	}
	log := logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("coursebridge stopped")
	}
	log.Info("coursebridge stopped")
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	recorder := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer)
	policy := app.Policy(cfg, log, recorder.ObserveRetry)

	// Retrieval
	index, err := app.OpenIndex(cfg)
	if err != nil {
		return err
	}
	defer index.Close()

	embedder := app.Embedder(cfg, policy, log)
	engine := usecases.NewRetrievalEngine(embedder, index, policy, cfg.SearchK, log)

	if cfg.IndexBackend == "memory" {
		courses, err := loader.LoadCourses(cfg.CourseCatalog)
		if err != nil {
			return err
		}
		seeded, err := usecases.NewSeedUseCase(embedder, index, policy, log).Seed(ctx, courses)
		if err != nil {
			log.WithError(err).Warn("In-memory index only partially seeded")
		}
		log.WithField("courses", seeded).Info("In-memory index seeded")
	}

	// Function dispatch
	extractor := llm.NewOllamaExtractor(cfg.OllamaURL, cfg.ExtractionModel)
	criteria := usecases.NewCriteriaExtractor(extractor, policy, log)
	dispatcher := usecases.NewDispatcher(engine, criteria, log)

	// Carousel catalog, hot reloaded
	carousel, err := loader.NewCarouselCatalog(cfg.CarouselCatalog, log)
	if err != nil {
		return err
	}
	if cfg.CarouselCatalog != "" {
		watcher, err := filewatcher.NewFSNotifyWatcher(nil, log)
		if err != nil {
			return err
		}
		defer watcher.Stop()
		if err := carousel.Watch(ctx, watcher); err != nil {
			log.WithError(err).Warn("Carousel catalog will not hot reload")
		}
	}

	// Conversation
	if cfg.AgentID == "" || cfg.AgentAliasID == "" {
		log.Warn("Agent id or alias id missing; users will receive the misconfiguration reply")
	}
	invoker, err := agent.NewBedrockInvoker(ctx, agent.Options{
		Region:   cfg.AgentRegion,
		Endpoint: cfg.AgentEndpoint,
		Timeout:  cfg.AgentTimeout,
	}, log)
	if err != nil {
		return err
	}
	sender := whatsapp.NewSender(whatsapp.Config{
		GraphURL:      cfg.GraphURL,
		APIVersion:    cfg.GraphAPIVersion,
		PhoneNumberID: cfg.OriginationNumber,
		AccessToken:   cfg.WhatsAppToken,
		RatePerSecond: cfg.SendRate,
	}, policy, log)
	renderer := usecases.NewRenderer(carousel, usecases.TemplateSettings{
		Name:           cfg.TemplateName,
		LanguageCode:   cfg.TemplateLanguage,
		BodyParameters: usecases.DefaultBodyParameters(),
	})

	settings := usecases.AgentSettings{AgentID: cfg.AgentID, AgentAliasID: cfg.AgentAliasID, EnableTrace: cfg.EnableTrace}

	opts := []usecases.ConversationOption{
		usecases.WithRecorder(recorder),
		usecases.WithWorkers(cfg.Workers),
	}

	switch cfg.ArchiveBackend {
	case "file":
		archiver, err := archive.NewFileArchiver(cfg.ArchiveDir)
		if err != nil {
			return err
		}
		opts = append(opts, usecases.WithArchiver(archiver))
	case "kafka":
		archiver := archive.NewKafkaArchiver(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer archiver.Close()
		opts = append(opts, usecases.WithArchiver(archiver))
	}

	if cfg.RedisAddr != "" {
		rdb := dedupe.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable; duplicate deliveries will be processed")
		}
		opts = append(opts, usecases.WithDeduper(dedupe.NewRedisDeduper(rdb, cfg.DedupeTTL)))
	}

	conversation := usecases.NewConversation(invoker, sender, usecases.NewNormalizer(log), renderer, settings, policy, log, opts...)

	server := httpserver.NewServer(dispatcher, conversation, recorder, cfg.ListenAddr, cfg.RequestTimeout, log)
	return server.Start(ctx)
}
