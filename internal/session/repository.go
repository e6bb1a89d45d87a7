// Package session keeps each shopper's cart between requests.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abgdnv/gopos/internal/cart"
	checkouterrors "github.com/abgdnv/gopos/internal/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Repository stores one cart per session.
type Repository interface {
	// Create starts a session holding an empty cart and returns its ID.
	Create(ctx context.Context) (string, error)

	// Load returns the session's cart.
	// Returns ErrSessionNotFound if the session does not exist or has expired.
	Load(ctx context.Context, sessionID string) (*cart.Cart, error)

	// Save replaces the session's cart and extends the session lifetime.
	Save(ctx context.Context, sessionID string, c *cart.Cart) error

	// Delete ends the session.
	Delete(ctx context.Context, sessionID string) error
}

// RedisRepository keeps carts as JSON documents with a sliding expiry.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func (r *RedisRepository) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := r.Save(ctx, id, cart.New()); err != nil {
		return "", err
	}
	return id, nil
}

func (r *RedisRepository) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	data, err := r.client.GetEx(ctx, sessionKey(sessionID), r.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, checkouterrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	c := cart.New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return c, nil
}

func (r *RedisRepository) Save(ctx context.Context, sessionID string, c *cart.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sessionKey(sessionID string) string {
	return "cart:session:" + sessionID
}
