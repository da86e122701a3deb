package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mvoronkov/jobtrail/internal/config"
	"github.com/mvoronkov/jobtrail/internal/core/matching"
	"github.com/mvoronkov/jobtrail/internal/core/ports"
	"github.com/mvoronkov/jobtrail/internal/core/transition"
	"github.com/mvoronkov/jobtrail/internal/core/usecase"
	"github.com/mvoronkov/jobtrail/internal/infrastructure/cache/rediscache"
	"github.com/mvoronkov/jobtrail/internal/infrastructure/importer/xlsx"
	"github.com/mvoronkov/jobtrail/internal/infrastructure/llm/gemini"
	"github.com/mvoronkov/jobtrail/internal/infrastructure/llm/ollama"
	"github.com/mvoronkov/jobtrail/internal/infrastructure/queue/nats"
	"github.com/mvoronkov/jobtrail/internal/infrastructure/repository/postgres"
	"github.com/mvoronkov/jobtrail/internal/infrastructure/resilience"
	"github.com/mvoronkov/jobtrail/internal/infrastructure/storage/localfs"
	"github.com/mvoronkov/jobtrail/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue  ports.MessageQueue
	Emails ports.EmailRecordRepository
	Runs   ports.RunRepository

	IntakeUC  ports.EmailIntake
	ProcessUC ports.EmailProcessor
	ReviewUC  ports.ReviewQueue
	AppUC     *usecase.ApplicationUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	apps := postgres.NewApplicationRepository(db)
	emails := postgres.NewEmailRecordRepository(db)
	reviews := postgres.NewReviewRepository(db)
	history := postgres.NewHistoryRepository(db)
	runs := postgres.NewRunRepository(db)

	archive, err := localfs.New(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("init payload archive: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	provider, err := newClassifierProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	resilientProvider := ollama.NewResilientClassifier(provider, executor)

	rdb := rediscache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	cache := rediscache.New(rdb, logger)
	classify := usecase.NewClassifyEmailService(
		resilientProvider, cache, cfg.ClassificationTTL, cfg.ClassifyTimeout, logger)

	aliases, err := matching.LoadAliasTable(cfg.AliasTablePath)
	if err != nil {
		return nil, fmt.Errorf("load alias table: %w", err)
	}
	matcher := matching.NewMatcher(apps, aliases)
	engine := transition.NewEngine(transition.DefaultTables())

	intakeUC := usecase.NewReceiveEmailUseCase(runs, archive, queue)
	processUC := usecase.NewProcessEmailUseCase(runs, apps, emails, reviews, matcher, classify, engine)
	reviewUC := usecase.NewReviewQueueUseCase(reviews, emails, apps, engine)
	appUC := usecase.NewApplicationUseCase(apps, history, xlsx.NewParser())

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:  queue,
		Emails: emails,
		Runs:   runs,

		IntakeUC:  intakeUC,
		ProcessUC: processUC,
		ReviewUC:  reviewUC,
		AppUC:     appUC,

		closeFn: func() {
			queue.Close()
			_ = rdb.Close()
			_ = db.Close()
		},
	}, nil
}

func newClassifierProvider(ctx context.Context, cfg config.Config) (ports.EmailClassifier, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "gemini":
		classifier, err := gemini.NewClassifier(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("init gemini classifier: %w", err)
		}
		return classifier, nil
	case "", "ollama":
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
			RequestsPerSecond: cfg.OllamaRPS,
			Burst:             cfg.OllamaBurst,
		})
		return ollama.NewClassifier(client), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
