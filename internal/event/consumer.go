package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/AlejandroAndrade98/embipos/pkg/kafka"
)

// ProductUpdatedData is the payload of a product.updated event emitted by
// the catalog backend. PreviousSKU is set when the SKU changed.
type ProductUpdatedData struct {
	ProductID   int64  `json:"product_id"`
	SKU         string `json:"sku"`
	PreviousSKU string `json:"previous_sku,omitempty"`
}

// SKUInvalidator drops cached products by SKU.
type SKUInvalidator interface {
	Invalidate(ctx context.Context, skus ...string) error
}

// ProductUpdatedHandler invalidates the cached SKUs named by a
// product.updated event.
func ProductUpdatedHandler(cache SKUInvalidator, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, event *pkgkafka.Event) error {
		var data ProductUpdatedData
		if err := event.UnmarshalData(&data); err != nil {
			return fmt.Errorf("decode %s: %w", event.EventType, err)
		}

		var skus []string
		for _, sku := range []string{data.SKU, data.PreviousSKU} {
			if sku != "" {
				skus = append(skus, sku)
			}
		}
		if len(skus) == 0 {
			return nil
		}

		if err := cache.Invalidate(ctx, skus...); err != nil {
			return fmt.Errorf("invalidate skus: %w", err)
		}

		logger.DebugContext(ctx, "invalidated cached products",
			slog.Int64("product_id", data.ProductID),
			slog.Any("skus", skus),
		)
		return nil
	}
}

// NewProductConsumer builds the consumer of product.updated. Events are
// deduplicated through store and failures go to the dead-letter topic.
func NewProductConsumer(
	reader pkgkafka.Reader,
	group string,
	cache SKUInvalidator,
	store pkgkafka.IdempotencyStore,
	dlq pkgkafka.DeadLetterPublisher,
	logger *slog.Logger,
) *pkgkafka.Consumer {
	handler := pkgkafka.IdempotentHandler(store, ProductUpdatedHandler(cache, logger), logger)
	c := pkgkafka.NewConsumerWithReader(reader, TopicProductUpdated, group, handler, logger)
	if dlq != nil {
		c.WithDLQ(dlq)
	}
	return c
}
