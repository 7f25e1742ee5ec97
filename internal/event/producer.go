package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	pkgkafka "github.com/AlejandroAndrade98/embipos/pkg/kafka"
	"github.com/AlejandroAndrade98/embipos/pkg/logger"
)

// Kafka topics for terminal events.
var (
	TopicCartUpdated    = pkgkafka.Topic("cart", "updated")
	TopicCartCleared    = pkgkafka.Topic("cart", "cleared")
	TopicSaleCompleted  = pkgkafka.Topic("sale", "completed")
	TopicProductUpdated = pkgkafka.Topic("product", "updated")
)

// Aggregate types.
const (
	AggregateTypeCart = "cart"
	AggregateTypeSale = "sale"
)

// SourceTerminal identifies events emitted by this service.
const SourceTerminal = "pos-terminal"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID string            `json:"session_id"`
	UserID    int64             `json:"user_id"`
	Lines     []domain.CartLine `json:"lines"`
	ItemCount int               `json:"item_count"`
	Total     float64           `json:"total"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id"`
	Reason    string `json:"reason"`
}

// Reasons a cart was cleared.
const (
	ClearReasonOperator = "operator"
	ClearReasonSale     = "sale"
)

// SaleCompletedData is the payload for a sale.completed event.
type SaleCompletedData struct {
	SaleID         int64             `json:"sale_id"`
	IdempotencyKey string            `json:"idempotency_key"`
	SessionID      string            `json:"session_id"`
	UserID         int64             `json:"user_id"`
	PaymentMethod  string            `json:"payment_method"`
	Lines          []domain.CartLine `json:"lines"`
	Total          float64           `json:"total"`
	CompletedAt    time.Time         `json:"completed_at"`
}

// Publisher sends an event to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes terminal domain events. A Producer without a
// Publisher drops every event, which is how events are disabled.
type Producer struct {
	pub    Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. pub may be nil.
func NewProducer(pub Publisher, logger *slog.Logger) *Producer {
	return &Producer{pub: pub, logger: logger}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID string, userID int64, view domain.CartView) error {
	data := CartUpdatedData{
		SessionID: sessionID,
		UserID:    userID,
		Lines:     view.Lines,
		ItemCount: view.ItemCount,
		Total:     view.Total,
	}
	return p.publish(ctx, TopicCartUpdated, sessionID, AggregateTypeCart, data)
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string, userID int64, reason string) error {
	data := CartClearedData{SessionID: sessionID, UserID: userID, Reason: reason}
	return p.publish(ctx, TopicCartCleared, sessionID, AggregateTypeCart, data)
}

// PublishSaleCompleted publishes a sale.completed event.
func (p *Producer) PublishSaleCompleted(ctx context.Context, sessionID string, userID int64, r *domain.SaleReceipt) error {
	data := SaleCompletedData{
		SaleID:         r.SaleID,
		IdempotencyKey: r.IdempotencyKey,
		SessionID:      sessionID,
		UserID:         userID,
		PaymentMethod:  r.PaymentMethod,
		Lines:          r.Lines,
		Total:          r.Total,
		CompletedAt:    r.CompletedAt,
	}
	return p.publish(ctx, TopicSaleCompleted, strconv.FormatInt(r.SaleID, 10), AggregateTypeSale, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p.pub == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceTerminal, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.pub.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
