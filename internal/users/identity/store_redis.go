// Copyright (c) 2026 Atrium. All rights reserved.

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/constants"
)

// RedisStateRepository implements [StateRepository] using Redis.
//
// State tokens are single-use and short-lived; Redis TTLs handle expiry
// without any cleanup job.
type RedisStateRepository struct {
	client *redis.Client
}

// NewStateRepository creates a new Redis-backed [StateRepository].
func NewStateRepository(client *redis.Client) *RedisStateRepository {
	return &RedisStateRepository{client: client}
}

/*
SetOAuthState stores a state token bound to the provider it was issued for.

Parameters:
  - context: context.Context
  - state: string (random token)
  - provider: Provider
  - ttl: time.Duration

Returns:
  - error: Storage failures
*/
func (repository *RedisStateRepository) SetOAuthState(context context.Context, state string, provider Provider, ttl time.Duration) error {
	key := constants.RedisPrefixOAuthState + state

	if err := repository.client.Set(context, key, string(provider), ttl).Err(); err != nil {
		return fmt.Errorf("redis_oauth_state_set_failed: %w", err)
	}
	return nil
}

/*
ConsumeOAuthState atomically reads and deletes a state token.

Description: GETDEL guarantees single use even under concurrent callbacks.
Returns apperr.NotFound if the state is unknown, expired, or already consumed.

Parameters:
  - context: context.Context
  - state: string

Returns:
  - Provider: The provider the state was issued for
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisStateRepository) ConsumeOAuthState(context context.Context, state string) (Provider, error) {
	key := constants.RedisPrefixOAuthState + state

	value, err := repository.client.GetDel(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("OAuth state")
		}
		return "", fmt.Errorf("redis_oauth_state_consume_failed: %w", err)
	}

	return Provider(value), nil
}

/*
SetVerificationToken stores an email verification token for a user.

Parameters:
  - context: context.Context
  - token: string
  - userUID: string
  - ttl: time.Duration

Returns:
  - error: Storage failures
*/
func (repository *RedisStateRepository) SetVerificationToken(context context.Context, token, userUID string, ttl time.Duration) error {
	key := constants.RedisPrefixVerifyToken + token

	if err := repository.client.Set(context, key, userUID, ttl).Err(); err != nil {
		return fmt.Errorf("redis_verify_token_set_failed: %w", err)
	}
	return nil
}

/*
ConsumeVerificationToken atomically reads and deletes a verification token.

Returns:
  - string: The UID of the user being verified
  - error: apperr.NotFound when the token is invalid or expired
*/
func (repository *RedisStateRepository) ConsumeVerificationToken(context context.Context, token string) (string, error) {
	key := constants.RedisPrefixVerifyToken + token

	userUID, err := repository.client.GetDel(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("Verification token")
		}
		return "", fmt.Errorf("redis_verify_token_consume_failed: %w", err)
	}

	return userUID, nil
}
