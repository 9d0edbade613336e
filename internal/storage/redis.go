package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ecole-connect/authhub/internal/common/config"
)

// RedisStorage implements the Store interface using Redis. Codes and tokens
// carry a TTL derived from their expiry so Redis reaps them on its own.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(cfg *config.RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "authhub:"
	}

	return &RedisStorage{
		client: client,
		prefix: prefix,
	}, nil
}

// key prefixes for the logical collections
func (s *RedisStorage) clientKey(id string) string   { return s.prefix + "client:" + id }
func (s *RedisStorage) userKey(handle string) string { return s.prefix + "user:" + handle }
func (s *RedisStorage) codeKey(code string) string   { return s.prefix + "code:" + code }
func (s *RedisStorage) tokenKey(token string) string { return s.prefix + "token:" + token }

func (s *RedisStorage) get(ctx context.Context, key string, out any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *RedisStorage) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// expiryTTL converts an absolute expiry into a Redis TTL. Zero means no
// expiry; records already past their expiry get a minimal TTL so the write
// still succeeds and the record vanishes immediately after.
func expiryTTL(expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return 0
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return time.Millisecond
	}
	return ttl
}

// GetClient retrieves a client by ID
func (s *RedisStorage) GetClient(ctx context.Context, id string) (*Client, error) {
	var client Client
	if err := s.get(ctx, s.clientKey(id), &client); err != nil {
		return nil, err
	}
	return &client, nil
}

// SaveClient upserts a client
func (s *RedisStorage) SaveClient(ctx context.Context, client *Client) error {
	now := time.Now()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = now
	}
	client.UpdatedAt = now
	return s.set(ctx, s.clientKey(client.ID), client, 0)
}

// GetUser retrieves a user by handle
func (s *RedisStorage) GetUser(ctx context.Context, handle string) (*User, error) {
	var user User
	if err := s.get(ctx, s.userKey(handle), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveUser upserts a user
func (s *RedisStorage) SaveUser(ctx context.Context, user *User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	return s.set(ctx, s.userKey(user.Handle), user, 0)
}

// GetAuthorizationCode retrieves an authorization code
func (s *RedisStorage) GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	var record AuthorizationCode
	if err := s.get(ctx, s.codeKey(code), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// SaveAuthorizationCode upserts an authorization code
func (s *RedisStorage) SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	return s.set(ctx, s.codeKey(code.Code), code, expiryTTL(code.ExpiresAt))
}

// DeleteAuthorizationCode deletes an authorization code
func (s *RedisStorage) DeleteAuthorizationCode(ctx context.Context, code string) (bool, error) {
	deleted, err := s.client.Del(ctx, s.codeKey(code)).Result()
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

// GetAccessToken retrieves an access token
func (s *RedisStorage) GetAccessToken(ctx context.Context, token string) (*AccessToken, error) {
	var record tokenRecord
	if err := s.get(ctx, s.tokenKey(token), &record); err != nil {
		return nil, err
	}
	if record.Kind != tokenKindAccess {
		return nil, ErrNotFound
	}
	return record.access(), nil
}

// SaveAccessToken upserts an access token
func (s *RedisStorage) SaveAccessToken(ctx context.Context, token *AccessToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	record := accessRecord(token)
	return s.set(ctx, s.tokenKey(token.Token), record, expiryTTL(token.ExpiresAt))
}

// GetRefreshToken retrieves a refresh token
func (s *RedisStorage) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	var record tokenRecord
	if err := s.get(ctx, s.tokenKey(token), &record); err != nil {
		return nil, err
	}
	if record.Kind != tokenKindRefresh {
		return nil, ErrNotFound
	}
	return record.refresh(), nil
}

// SaveRefreshToken upserts a refresh token
func (s *RedisStorage) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	record := refreshRecord(token)
	return s.set(ctx, s.tokenKey(token.Token), record, expiryTTL(token.ExpiresAt))
}

// DeleteRefreshToken deletes a refresh token
func (s *RedisStorage) DeleteRefreshToken(ctx context.Context, token string) (bool, error) {
	var record tokenRecord
	if err := s.get(ctx, s.tokenKey(token), &record); err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	if record.Kind != tokenKindRefresh {
		return false, nil
	}

	deleted, err := s.client.Del(ctx, s.tokenKey(token)).Result()
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

// Close closes the Redis connection
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
