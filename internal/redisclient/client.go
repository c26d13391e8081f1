package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stock-service/internal/models"
	"stock-service/internal/service"

	"github.com/go-redis/redis/v8"
)

var _ service.StockCache = (*Client)(nil)

const stockReportKey = "stock:report"

// Client caches the dashboard stock report. The cached snapshot is display
// data only; it never gates a mutation, so staleness within the TTL is
// acceptable.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient creates a new Redis cache client
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetStockReport returns the cached report, or (nil, nil) on a miss
func (c *Client) GetStockReport(ctx context.Context) ([]models.StockStatus, error) {
	payload, err := c.rdb.Get(ctx, stockReportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stock report: %w", err)
	}

	var rows []models.StockStatus
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("decode cached stock report: %w", err)
	}
	return rows, nil
}

// SetStockReport caches the report for the configured TTL
func (c *Client) SetStockReport(ctx context.Context, rows []models.StockStatus) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode stock report: %w", err)
	}
	if err := c.rdb.Set(ctx, stockReportKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set stock report: %w", err)
	}
	return nil
}

// InvalidateStockReport drops the cached snapshot
func (c *Client) InvalidateStockReport(ctx context.Context) error {
	return c.rdb.Del(ctx, stockReportKey).Err()
}
