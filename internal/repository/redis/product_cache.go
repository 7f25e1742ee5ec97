package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
)

const skuKeyPrefix = "pos:sku:"

// ProductCache implements repository.ProductCache using Redis.
type ProductCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewProductCache creates a cache whose entries live for ttl.
func NewProductCache(client redis.UniversalClient, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

// Get returns the cached product for sku.
func (c *ProductCache) Get(ctx context.Context, sku string) (*domain.Product, error) {
	data, err := c.client.Get(ctx, skuKeyPrefix+sku).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cached product", sku)
		}
		return nil, fmt.Errorf("redis get product: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &p, nil
}

// Set caches p under sku.
func (c *ProductCache) Set(ctx context.Context, sku string, p *domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	if err := c.client.Set(ctx, skuKeyPrefix+sku, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set product: %w", err)
	}
	return nil
}

// Invalidate drops the given SKUs.
func (c *ProductCache) Invalidate(ctx context.Context, skus ...string) error {
	if len(skus) == 0 {
		return nil
	}
	keys := make([]string, len(skus))
	for i, sku := range skus {
		keys[i] = skuKeyPrefix + sku
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del products: %w", err)
	}
	return nil
}
