package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"medtrack-service/internal/models"
	"medtrack-service/internal/refprice"

	"github.com/go-redis/redis/v8"
)

const referenceTableKey = "medtrack:reference_prices"

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// UserState is the cached purchase history for one user. Stored as a flat
// JSON payload; transactions are merged by external id on every sync.
type UserState struct {
	User         models.User          `json:"user"`
	Transactions []models.Transaction `json:"transactions"`
}

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func userStateKey(externalUserID string) string {
	safe := unsafeKeyChars.ReplaceAllString(externalUserID, "_")
	return fmt.Sprintf("medtrack:user:%s:transactions", safe)
}

// StoreUserState persists a user's cached transaction set.
func (c *Client) StoreUserState(ctx context.Context, state *UserState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal user state: %w", err)
	}
	if err := c.rdb.Set(ctx, userStateKey(state.User.ExternalUserID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store user state: %w", err)
	}
	return nil
}

// LoadUserState returns the cached transaction set for a user, or nil when
// the user has never synced.
func (c *Client) LoadUserState(ctx context.Context, externalUserID string) (*UserState, error) {
	payload, err := c.rdb.Get(ctx, userStateKey(externalUserID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user state: %w", err)
	}

	var state UserState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user state: %w", err)
	}
	return &state, nil
}

// StoreReferenceTable persists the last good reference price table so the
// stale fallback survives restarts.
func (c *Client) StoreReferenceTable(ctx context.Context, payload *refprice.TablePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal reference table: %w", err)
	}
	if err := c.rdb.Set(ctx, referenceTableKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store reference table: %w", err)
	}
	return nil
}

// LoadReferenceTable returns the persisted reference price table, or nil when
// none has been stored yet.
func (c *Client) LoadReferenceTable(ctx context.Context) (*refprice.TablePayload, error) {
	data, err := c.rdb.Get(ctx, referenceTableKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reference table: %w", err)
	}

	var payload refprice.TablePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reference table: %w", err)
	}
	return &payload, nil
}

// AcquireSyncLock takes a short-lived lock so concurrent syncs for the same
// user do not interleave their merges.
func (c *Client) AcquireSyncLock(ctx context.Context, externalUserID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("medtrack:lock:sync:%s", externalUserID), "1", ttl).Result()
}

// ReleaseSyncLock releases a sync lock.
func (c *Client) ReleaseSyncLock(ctx context.Context, externalUserID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("medtrack:lock:sync:%s", externalUserID)).Err()
}
