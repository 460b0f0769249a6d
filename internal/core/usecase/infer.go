package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/ports"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/resilience"
)

// InferenceObserver receives best-effort call accounting. Lost updates
// under contention are acceptable; nothing reads these for decisions.
type InferenceObserver interface {
	ObserveCall(provider, kind string, latency time.Duration)
	ObserveFailure(provider, reason string)
}

// InferenceOrchestrator walks an ordered provider chain for one task:
// each provider gets a bounded number of attempts with a fixed backoff,
// the first structurally valid JSON result wins, and exhaustion of the
// whole chain is terminal for the request. A global semaphore caps
// concurrent provider calls across all task kinds, and each provider
// carries its own rate limiter.
type InferenceOrchestrator struct {
	chains   map[domain.TaskKind][]ports.InferenceProvider
	executor *resilience.Executor
	sem      *semaphore.Weighted
	limiters map[string]*rate.Limiter
	defaults map[domain.TaskKind]TaskDefaults
	observer InferenceObserver
	logger   *slog.Logger
}

// TaskDefaults overrides the caller's prompt and timeout per task
// kind, sourced from the provider manifest.
type TaskDefaults struct {
	Prompt  string
	Timeout time.Duration
}

type OrchestratorOptions struct {
	MaxInFlight   int64
	RatePerSecond float64
	Defaults      map[domain.TaskKind]TaskDefaults
	Observer      InferenceObserver
	Logger        *slog.Logger
}

func NewInferenceOrchestrator(
	chains map[domain.TaskKind][]ports.InferenceProvider,
	executor *resilience.Executor,
	opts OrchestratorOptions,
) *InferenceOrchestrator {
	maxInFlight := opts.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 5
	}
	perSecond := opts.RatePerSecond
	if perSecond <= 0 {
		perSecond = 2
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limiters := make(map[string]*rate.Limiter)
	for _, chain := range chains {
		for _, p := range chain {
			if _, ok := limiters[p.ID()]; !ok {
				limiters[p.ID()] = rate.NewLimiter(rate.Limit(perSecond), 1)
			}
		}
	}

	return &InferenceOrchestrator{
		chains:   chains,
		executor: executor,
		sem:      semaphore.NewWeighted(maxInFlight),
		limiters: limiters,
		defaults: opts.Defaults,
		observer: opts.Observer,
		logger:   logger,
	}
}

const defaultTaskTimeout = 30 * time.Second

func (o *InferenceOrchestrator) Run(ctx context.Context, task domain.InferenceTask) (*domain.InferenceResult, error) {
	chain, ok := o.chains[task.Kind]
	if !ok || len(chain) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run inference", fmt.Errorf("no provider chain for task kind %q", task.Kind))
	}

	if def, ok := o.defaults[task.Kind]; ok {
		if def.Prompt != "" {
			task.Prompt = def.Prompt
		}
		if task.Timeout <= 0 {
			task.Timeout = def.Timeout
		}
	}
	if task.Timeout <= 0 {
		task.Timeout = defaultTaskTimeout
	}

	var lastErr error
	for _, provider := range chain {
		result, err := o.runProvider(ctx, provider, task)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Warn("provider_exhausted",
			"provider", provider.ID(),
			"kind", string(task.Kind),
			"error", err,
		)
	}

	return nil, domain.WrapError(domain.ErrProvidersExhausted, "run inference", lastErr)
}

func (o *InferenceOrchestrator) runProvider(
	ctx context.Context,
	provider ports.InferenceProvider,
	task domain.InferenceTask,
) (*domain.InferenceResult, error) {
	var result *domain.InferenceResult

	err := o.executor.Execute(ctx, provider.ID(), func(ctx context.Context) error {
		attempted, attemptErr := o.attempt(ctx, provider, task)
		if attemptErr != nil {
			return attemptErr
		}
		result = attempted
		return nil
	}, classifyProviderError)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// attempt performs one rate-limited, semaphore-gated provider call and
// validates the response body.
func (o *InferenceOrchestrator) attempt(
	ctx context.Context,
	provider ports.InferenceProvider,
	task domain.InferenceTask,
) (*domain.InferenceResult, error) {
	if limiter, ok := o.limiters[provider.ID()]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer o.sem.Release(1)

	callCtx := ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	started := time.Now()
	raw, status, err := provider.Infer(callCtx, task)
	latency := time.Since(started)

	if o.observer != nil {
		o.observer.ObserveCall(provider.ID(), string(task.Kind), latency)
	}

	if err != nil {
		o.observeFailure(provider.ID(), "transport")
		return nil, domain.WrapError(domain.ErrProviderTemporary, "provider call", err)
	}
	if status < 200 || status >= 300 {
		o.observeFailure(provider.ID(), fmt.Sprintf("status_%d", status))
		return nil, domain.WrapError(domain.ErrProviderTemporary, "provider call", fmt.Errorf("http status %d", status))
	}

	span := ExtractJSONObject(raw)
	fields := make(map[string]any)
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		o.observeFailure(provider.ID(), "malformed")
		return nil, domain.WrapError(domain.ErrMalformedResponse, "parse provider response", err)
	}

	return &domain.InferenceResult{
		ProviderID: provider.ID(),
		Raw:        span,
		Fields:     fields,
		Latency:    latency,
	}, nil
}

func (o *InferenceOrchestrator) observeFailure(provider, reason string) {
	if o.observer != nil {
		o.observer.ObserveFailure(provider, reason)
	}
}

// classifyProviderError: transient and malformed responses retry the
// same provider until its attempt budget runs out.
func classifyProviderError(err error) resilience.ErrorClassification {
	retryable := domain.IsKind(err, domain.ErrProviderTemporary) || domain.IsKind(err, domain.ErrMalformedResponse)
	return resilience.ErrorClassification{
		Retryable:     retryable,
		RecordFailure: true,
	}
}

// ExtractJSONObject strips markdown code fences and returns the
// outermost {...} span, tolerating prose around the object. Providers
// regularly wrap JSON in commentary; this tolerance is contractual.
func ExtractJSONObject(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
