package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/config"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/ports"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/usecase"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/cache"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/dispatch"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/extractor/pdfreceipt"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/llm/chatapi"
	natsqueue "github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/queue/nats"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/report"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/repository/postgres"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/resilience"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/status"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/observability/logging"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.PhotoQueue
	Photos   *usecase.PhotoIngestUseCase
	Shopping *usecase.ShoppingUseCase
	Recipes  *usecase.RecipeUseCase
	Metrics  *metrics.InferenceMetrics
	Users    *dispatch.UserQueue

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	productRepo := postgres.NewProductRepository(db)
	labelRepo := postgres.NewLabelRepository(db)

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init photo queue: %w", err)
	}

	manifest, err := config.LoadProvidersManifest(cfg.ProvidersManifest)
	if err != nil {
		return nil, err
	}
	chains, err := buildChains(manifest)
	if err != nil {
		return nil, err
	}

	infMetrics := metrics.NewInferenceMetrics("foodflow-worker")
	workerMetrics := metrics.NewWorkerMetrics("foodflow-worker", infMetrics)

	executorCfg := resilience.DefaultConfig()
	executorCfg.MaxAttempts = cfg.ProviderRetryAttempts
	executorCfg.Backoff = cfg.ProviderRetryBackoff
	executor := resilience.NewExecutor(executorCfg)

	orchestrator := usecase.NewInferenceOrchestrator(chains, executor, usecase.OrchestratorOptions{
		MaxInFlight:   cfg.ProviderMaxInFlight,
		RatePerSecond: cfg.ProviderRatePerSecond,
		Defaults:      taskDefaults(manifest),
		Observer:      infMetrics,
		Logger:        logger,
	})

	resultCache := cache.NewMemoryCache()
	matcher := usecase.NewMatcher(usecase.MatcherConfig{
		StrictThreshold:     cfg.MatchStrictThreshold,
		SuggestionThreshold: cfg.MatchSuggestionThreshold,
		SuggestionLimit:     cfg.MatchSuggestionLimit,
	})

	sink := status.NewLogSink(logger)
	users := dispatch.NewUserQueue(ctx, dispatch.UserQueueOptions{
		Logger: logger,
		Reporter: func(ctx context.Context, userID string, err error) {
			sink.Report(ctx, userID, "processing failed: "+err.Error())
		},
		Observer: workerMetrics,
	})

	receiptUC := usecase.NewReceiptIngestUseCase(orchestrator, productRepo, pdfreceipt.New(), logging.ForComponent(logger, "receipts"))
	shoppingUC := usecase.NewShoppingUseCase(orchestrator, matcher, productRepo, labelRepo, report.New(), logging.ForComponent(logger, "shopping"))
	priceUC := usecase.NewPriceLookupUseCase(orchestrator)
	recipeUC := usecase.NewRecipeUseCase(orchestrator, resultCache, usecase.RecipeOptions{
		RecipeTTL:   cfg.RecipeCacheTTL,
		FreshWindow: cfg.RecipeFreshWindow,
		SummaryTTL:  cfg.FridgeSummaryTTL,
	})
	photoUC := usecase.NewPhotoIngestUseCase(queue, users, receiptUC, shoppingUC, priceUC, sink, workerMetrics, logging.ForComponent(logger, "photos"))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		Photos:   photoUC,
		Shopping: shoppingUC,
		Recipes:  recipeUC,
		Metrics:  infMetrics,
		Users:    users,

		closeFn: func() {
			users.Drain()
			queue.Close()
			resultCache.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func buildChains(manifest *config.ProvidersManifest) (map[domain.TaskKind][]ports.InferenceProvider, error) {
	clients := make(map[string]*chatapi.Client, len(manifest.Providers))
	for _, spec := range manifest.Providers {
		apiKey := ""
		if spec.APIKeyEnv != "" {
			apiKey = os.Getenv(spec.APIKeyEnv)
		}
		clients[spec.ID] = chatapi.New(spec.ID, spec.BaseURL, spec.Model, apiKey)
	}

	chains := make(map[domain.TaskKind][]ports.InferenceProvider, len(manifest.Tasks))
	for kind, task := range manifest.Tasks {
		chain := make([]ports.InferenceProvider, 0, len(task.Providers))
		for _, id := range task.Providers {
			chain = append(chain, clients[id])
		}
		chains[domain.TaskKind(kind)] = chain
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("providers manifest declares no tasks")
	}
	return chains, nil
}

// taskDefaults lifts manifest prompt/timeout overrides into orchestrator
// defaults, with a longer budget for web-augmented price search.
func taskDefaults(manifest *config.ProvidersManifest) map[domain.TaskKind]usecase.TaskDefaults {
	defaults := make(map[domain.TaskKind]usecase.TaskDefaults, len(manifest.Tasks))
	for kind, task := range manifest.Tasks {
		defaults[domain.TaskKind(kind)] = usecase.TaskDefaults{
			Prompt:  task.Prompt,
			Timeout: task.Timeout.Std(),
		}
	}
	if _, ok := defaults[domain.TaskPriceSearch]; !ok {
		defaults[domain.TaskPriceSearch] = usecase.TaskDefaults{Timeout: 60 * time.Second}
	}
	return defaults
}
