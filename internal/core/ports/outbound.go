package ports

import (
	"context"
	"time"

	"github.com/mixmaster1989/foodflow-bot-sub000/internal/core/domain"
)

// InferenceProvider is one external vision/language service. Identity
// and chain position are configuration, not core logic.
type InferenceProvider interface {
	ID() string
	Infer(ctx context.Context, task domain.InferenceTask) (string, int, error)
}

// ProductRepository persists receipt-derived products.
type ProductRepository interface {
	CreateReceipt(ctx context.Context, receipt *domain.Receipt, products []domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListUnmatchedProducts(ctx context.Context, ownerID string) ([]domain.Product, error)
	// UpdateMatched sets the matched label and merged nutrients only if
	// the product is still unmatched; returns ErrRecordNotFound when the
	// row was claimed concurrently.
	UpdateMatched(ctx context.Context, productID, labelID string, nutrients domain.Nutrients) error
}

// LabelRepository persists scanned labels and their sessions.
type LabelRepository interface {
	SaveLabel(ctx context.Context, label *domain.Label) error
	ListSessionLabels(ctx context.Context, sessionID string) ([]domain.Label, error)
	EnsureOpenSession(ctx context.Context, ownerID string) (*domain.Session, error)
	// CloseSession transitions open -> closed; ErrSessionAlreadyClosed
	// when the pass already ran.
	CloseSession(ctx context.Context, sessionID string) (*domain.Session, error)
	SetLabelMatched(ctx context.Context, labelID, productID string) error
}

// ResultCache is the content-addressed TTL cache for generated
// recipe/summary results.
type ResultCache interface {
	Get(key string) (string, time.Time, error)
	Put(key string, value string, ttl time.Duration)
}

// StatusSink receives best-effort progress/error reports for one unit
// of queued work. Implementations must tolerate a vanished target.
type StatusSink interface {
	Report(ctx context.Context, userID string, message string)
}

// PhotoQueue is the transport carrying photo events from the bot/API
// side to the worker.
type PhotoQueue interface {
	PublishPhoto(ctx context.Context, event PhotoEvent) error
	SubscribePhotos(ctx context.Context, handler func(context.Context, PhotoEvent) error) error
}

// PhotoEvent is the wire payload for one captured photo.
type PhotoEvent struct {
	UserID  string          `json:"user_id"`
	PhotoID string          `json:"photo_id"`
	Kind    domain.TaskKind `json:"kind"`
	Payload []byte          `json:"payload"`
}

// ReceiptTextExtractor pulls plain text out of an e-receipt document
// so it can go through the text pipeline instead of vision.
type ReceiptTextExtractor interface {
	Extract(data []byte) (string, error)
}

// SessionReporter renders a closed session's match result into a
// user-deliverable artifact.
type SessionReporter interface {
	Render(session *domain.Session, result *domain.MatchResult) ([]byte, error)
}
