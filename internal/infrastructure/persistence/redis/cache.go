package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

// Cache keeps the hot-path bid state: an advisory per-item lock, the last
// committed price for cheap bid pre-validation, and a pub/sub channel that
// broadcasts accepted bids to connected clients.
type Cache struct {
	client *redis.Client
	logger *logger.Logger
}

func NewCache(conn *Connection, log *logger.Logger) *Cache {
	client := monitoring.InstrumentRedisClient(conn.GetClient())

	return &Cache{
		client: client,
		logger: log,
	}
}

func itemLockKey(itemID string) string {
	return fmt.Sprintf("item:%s:lock", itemID)
}

func itemPriceKey(itemID string) string {
	return fmt.Sprintf("item:%s:price", itemID)
}

func itemUpdatesChannel(itemID string) string {
	return fmt.Sprintf("item:%s:updates", itemID)
}

// AcquireItemLock takes the advisory lock with SET NX. Failure to acquire is
// not an error: callers fall back to the database's conditional writes.
func (c *Cache) AcquireItemLock(ctx context.Context, itemID string, ttl time.Duration) (bool, error) {
	monitoring.RecordLockAttempt("item")

	acquired, err := c.client.SetNX(ctx, itemLockKey(itemID), "1", ttl).Result()
	if err != nil {
		monitoring.RecordLockFailure("item", "redis_error")
		return false, err
	}
	if !acquired {
		monitoring.RecordLockFailure("item", "held")
		return false, nil
	}

	monitoring.RecordLockSuccess("item")
	return true, nil
}

func (c *Cache) ReleaseItemLock(ctx context.Context, itemID string) error {
	return c.client.Del(ctx, itemLockKey(itemID)).Err()
}

func (c *Cache) GetCurrentPrice(ctx context.Context, itemID string) (decimal.Decimal, bool, error) {
	result, err := c.client.Get(ctx, itemPriceKey(itemID)).Result()
	if err != nil {
		if err == redis.Nil {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}

	price, err := decimal.NewFromString(result)
	if err != nil {
		c.logger.Warn("Dropping malformed cached price", "item_id", itemID, "value", result)
		return decimal.Zero, false, nil
	}
	return price, true, nil
}

func (c *Cache) SetCurrentPrice(ctx context.Context, itemID string, price decimal.Decimal, ttl time.Duration) error {
	return c.client.Set(ctx, itemPriceKey(itemID), price.String(), ttl).Err()
}

func (c *Cache) PublishBidUpdate(ctx context.Context, itemID string, payload []byte) error {
	return c.client.Publish(ctx, itemUpdatesChannel(itemID), payload).Err()
}
