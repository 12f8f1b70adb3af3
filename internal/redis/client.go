package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eurodoor_admin/internal/models"
	"eurodoor_admin/internal/report"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned when a session or view key does not exist or has expired.
var ErrNotFound = errors.New("not found")

const (
	sessionPrefix = "session:"
	viewPrefix    = "view:"
	lockPrefix    = "lock:"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type Client struct {
	rdb *redis.Client
}

func Initialize(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Session management
func (c *Client) SetSession(ctx context.Context, session *models.AdminSession, ttl time.Duration) error {
	return c.setJSON(ctx, sessionPrefix+session.ID, session, ttl)
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.AdminSession, error) {
	var session models.AdminSession
	if err := c.getJSON(ctx, sessionPrefix+sessionID, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, sessionPrefix+sessionID).Err()
}

// View state
func (c *Client) SetView(ctx context.Context, state *report.ViewState, ttl time.Duration) error {
	return c.setJSON(ctx, viewPrefix+state.ID, state, ttl)
}

func (c *Client) GetView(ctx context.Context, viewID string) (*report.ViewState, error) {
	var state report.ViewState
	if err := c.getJSON(ctx, viewPrefix+viewID, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// TouchView restarts the expiry of a stored view.
func (c *Client) TouchView(ctx context.Context, viewID string, ttl time.Duration) error {
	ok, err := c.rdb.Expire(ctx, viewPrefix+viewID, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh %s%s: %w", viewPrefix, viewID, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (c *Client) DeleteView(ctx context.Context, viewID string) error {
	return c.rdb.Del(ctx, viewPrefix+viewID).Err()
}

// Locks
func (c *Client) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return ok, nil
}

func (c *Client) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{lockPrefix + key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, jsonData, ttl).Err()
}

func (c *Client) getJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
