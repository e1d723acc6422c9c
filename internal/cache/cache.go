package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/metrics"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

const defaultTTL = 5 * time.Minute

// releaseScript deletes a lock key only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Cache is a read-through cache of content and asset records in Redis,
// plus short-lived write locks.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects to Redis and pings it; ttl <= 0 means five minutes
func NewCache(host string, port int, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", client.Options().Addr, err)
	}

	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func contentKey(id string) string { return "content:" + id }
func assetKey(id string) string   { return "asset:" + id }
func lockKey(resource string) string {
	return "lock:" + resource
}

func (c *Cache) SetContent(ctx context.Context, content *models.Content) error {
	return c.put(ctx, contentKey(content.Identifier), content)
}

// GetContent returns nil, nil on a miss
func (c *Cache) GetContent(ctx context.Context, id string) (*models.Content, error) {
	return lookup[models.Content](ctx, c, "content", contentKey(id))
}

func (c *Cache) DeleteContent(ctx context.Context, id string) error {
	return c.client.Del(ctx, contentKey(id)).Err()
}

func (c *Cache) SetAsset(ctx context.Context, asset *models.Asset) error {
	return c.put(ctx, assetKey(asset.Identifier), asset)
}

// GetAsset returns nil, nil on a miss
func (c *Cache) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	return lookup[models.Asset](ctx, c, "asset", assetKey(id))
}

func (c *Cache) DeleteAsset(ctx context.Context, id string) error {
	return c.client.Del(ctx, assetKey(id)).Err()
}

func (c *Cache) put(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func lookup[T any](ctx context.Context, c *Cache, cacheType, key string) (*T, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheAccess(cacheType, false)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	metrics.RecordCacheAccess(cacheType, true)
	return &value, nil
}

// Lock is a held write lock on a resource
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// AcquireLock takes the lock on resource for ttl. It returns nil, nil when
// another holder has it.
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{client: c.client, key: lockKey(resource), token: uuid.NewString()}
	ok, err := c.client.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", resource, err)
	}
	if !ok {
		return nil, nil
	}
	return lock, nil
}

// Release frees the lock. A lock that expired and was taken by someone else
// is left alone.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release %s: %w", l.key, err)
	}
	return nil
}
