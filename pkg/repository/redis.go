package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/sweetshop/pkg/config"
	"github.com/example/sweetshop/pkg/models"
)

const (
	productCacheTTL = 30 * time.Minute
	orderCacheTTL   = 10 * time.Minute
)

// Cache is a read-through cache for hot catalog and order records. Every
// stock or status mutation must invalidate the matching key.
type Cache struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewCache(cfg *config.RedisConfig) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func orderKey(id string) string {
	return fmt.Sprintf("order:%s", id)
}

func (c *Cache) CacheProduct(ctx context.Context, p *models.Product) error {
	return c.SetJSON(ctx, productKey(p.ID), p, productCacheTTL)
}

func (c *Cache) GetProductCache(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	if err := c.GetJSON(ctx, productKey(productID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Cache) InvalidateProduct(ctx context.Context, productID string) error {
	return c.Del(ctx, productKey(productID))
}

func (c *Cache) CacheOrder(ctx context.Context, o *models.Order) error {
	return c.SetJSON(ctx, orderKey(o.ID), o, orderCacheTTL)
}

func (c *Cache) GetOrderCache(ctx context.Context, orderID string) (*models.Order, error) {
	var o models.Order
	if err := c.GetJSON(ctx, orderKey(orderID), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Cache) InvalidateOrder(ctx context.Context, orderID string) error {
	return c.Del(ctx, orderKey(orderID))
}
