package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/jinto-ag/emart/internal/domain"
	"github.com/redis/go-redis/v9"
)

// setIfGeneration stores the cart only if the generation key still holds
// the expected value. A missing generation key counts as 0.
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if not gen then gen = '0' end
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:        client,
		baseTTL:       15 * time.Minute,
		sessionTTL:    30 * time.Minute,
		generationTTL: 24 * time.Hour,
	}
}

type RedisCache struct {
	client        *redis.Client
	baseTTL       time.Duration
	sessionTTL    time.Duration
	generationTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	key := cacheKey(userID)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err2 := json.Unmarshal(data, &cart); err2 != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err2)
	}

	return &cart, nil
}

func (r RedisCache) Generation(ctx context.Context, userID int64) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

// Set stores the cart unless the generation moved since it was read. A
// skipped write is not an error.
func (r RedisCache) Set(ctx context.Context, userID int64, cart *domain.Cart, generation int64) error {
	jsonCart, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	keys := []string{cacheKey(userID), generationKey(userID)}
	err = setIfGeneration.Run(ctx, r.client, keys,
		strconv.FormatInt(generation, 10), string(jsonCart), ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, userID int64) error {
	genKey := generationKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cacheKey(userID))
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, r.generationTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

// Currency returns the currency chosen for the user's checkout session, or
// ErrCacheMiss when none was chosen or the session expired.
func (r RedisCache) Currency(ctx context.Context, userID int64) (domain.Currency, error) {
	val, err := r.client.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return domain.ParseCurrency(val)
}

func (r RedisCache) SetCurrency(ctx context.Context, userID int64, currency domain.Currency) error {
	if err := r.client.Set(ctx, sessionKey(userID), currency.String(), r.sessionTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

func generationKey(userID int64) string {
	return fmt.Sprintf("cart:%d:gen", userID)
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("checkout:currency:%d", userID)
}
