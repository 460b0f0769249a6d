package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/ports"
	"github.com/mixmaster1989/foodflow-bot-sub000/internal/infrastructure/dispatch"
)

// TaskObserver mirrors worker metrics without binding the use case to
// a metrics implementation.
type TaskObserver interface {
	StartTask()
	FinishTask(kind string, duration time.Duration, err error)
}

// PhotoIngestUseCase is the glue between the photo transport and the
// per-user queue. Enqueue (bot/API side) publishes a photo event;
// HandlePhoto (worker side) lands the event on the owner's FIFO queue
// so one user's photo burst is serialized while users stay parallel.
type PhotoIngestUseCase struct {
	queue    ports.PhotoQueue
	users    *dispatch.UserQueue
	receipts *ReceiptIngestUseCase
	shopping *ShoppingUseCase
	prices   *PriceLookupUseCase
	status   ports.StatusSink
	observer TaskObserver
	logger   *slog.Logger
}

func NewPhotoIngestUseCase(
	queue ports.PhotoQueue,
	users *dispatch.UserQueue,
	receipts *ReceiptIngestUseCase,
	shopping *ShoppingUseCase,
	prices *PriceLookupUseCase,
	status ports.StatusSink,
	observer TaskObserver,
	logger *slog.Logger,
) *PhotoIngestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoIngestUseCase{
		queue:    queue,
		users:    users,
		receipts: receipts,
		shopping: shopping,
		prices:   prices,
		status:   status,
		observer: observer,
		logger:   logger,
	}
}

// Enqueue publishes the photo event. Fire and forget: completion is
// observed through the StatusSink.
func (uc *PhotoIngestUseCase) Enqueue(ctx context.Context, userID string, payload []byte, kind domain.TaskKind) error {
	if len(payload) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "enqueue photo", fmt.Errorf("empty payload"))
	}
	return uc.queue.PublishPhoto(ctx, ports.PhotoEvent{
		UserID:  userID,
		PhotoID: uuid.NewString(),
		Kind:    kind,
		Payload: payload,
	})
}

// HandlePhoto routes one consumed event onto the owner's queue.
func (uc *PhotoIngestUseCase) HandlePhoto(_ context.Context, event ports.PhotoEvent) error {
	process, err := uc.processorFor(event)
	if err != nil {
		return err
	}

	uc.users.Enqueue(event.UserID, string(event.Kind)+":"+event.PhotoID, func(ctx context.Context) error {
		started := time.Now()
		if uc.observer != nil {
			uc.observer.StartTask()
		}
		err := process(ctx)
		if uc.observer != nil {
			uc.observer.FinishTask(string(event.Kind), time.Since(started), err)
		}
		return err
	})
	return nil
}

func (uc *PhotoIngestUseCase) processorFor(event ports.PhotoEvent) (dispatch.ProcessFunc, error) {
	switch event.Kind {
	case domain.TaskReceiptOCR:
		return func(ctx context.Context) error {
			receipt, err := uc.receipts.IngestReceipt(ctx, event.UserID, event.Payload)
			if err != nil {
				return err
			}
			uc.report(ctx, event.UserID, fmt.Sprintf("receipt %s ingested", receipt.ID))
			return nil
		}, nil
	case domain.TaskLabelOCR:
		return func(ctx context.Context) error {
			if err := uc.shopping.IngestLabel(ctx, event.UserID, event.Payload); err != nil {
				return err
			}
			uc.report(ctx, event.UserID, "label saved")
			return nil
		}, nil
	case domain.TaskPriceTagOCR:
		return func(ctx context.Context) error {
			quote, err := uc.prices.LookupFromPhoto(ctx, event.Payload)
			if err != nil {
				return err
			}
			uc.report(ctx, event.UserID, fmt.Sprintf("%s: %.2f %s", quote.Store, quote.Price, quote.Currency))
			return nil
		}, nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "handle photo", fmt.Errorf("unknown task kind %q", event.Kind))
	}
}

// report is best effort: the status target may be gone by the time a
// queued item finishes.
func (uc *PhotoIngestUseCase) report(ctx context.Context, userID, message string) {
	if uc.status == nil {
		return
	}
	uc.status.Report(ctx, userID, message)
}
