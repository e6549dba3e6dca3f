// Package cache keeps user profiles in Redis in front of the user
// repository (cache-aside). Counterpart lookups hit GetByID on every
// conversation-list push, so this is the hottest read path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

const keyPrefix = "relay:user:"

// Stats counts cache traffic.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

// cachedUser carries the password hash too; domain.User hides it from JSON.
type cachedUser struct {
	domain.User
	PasswordHash string `json:"password_hash"`
}

// UserCache implements repository.UserRepository.
type UserCache struct {
	next   repository.UserRepository
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
	stats  Stats
}

func NewUserCache(next repository.UserRepository, client *redis.Client, ttl time.Duration, log zerolog.Logger) *UserCache {
	return &UserCache{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "user_cache").Logger(),
	}
}

// Connect parses a redis URL ("redis://host:6379/0") or a bare "host:port"
// and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func (c *UserCache) Create(ctx context.Context, user *domain.User) error {
	return c.next.Create(ctx, user)
}

func (c *UserCache) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	data, err := c.client.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		var cu cachedUser
		if err := json.Unmarshal(data, &cu); err == nil {
			atomic.AddUint64(&c.stats.Hits, 1)
			user := cu.User
			user.PasswordHash = cu.PasswordHash
			return &user, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
	case errors.Is(err, redis.Nil):
		atomic.AddUint64(&c.stats.Misses, 1)
	default:
		// Redis being down must not take profile reads with it.
		atomic.AddUint64(&c.stats.Errors, 1)
		c.log.Warn().Err(err).Msg("cache get failed")
	}

	user, err := c.next.GetByID(ctx, id)
	if err != nil || user == nil {
		return user, err
	}
	c.store(ctx, user)
	return user, nil
}

func (c *UserCache) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return c.next.GetByEmail(ctx, email)
}

func (c *UserCache) Update(ctx context.Context, user *domain.User) error {
	if err := c.next.Update(ctx, user); err != nil {
		return err
	}
	if err := c.client.Del(ctx, key(user.ID)).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		c.log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("cache invalidate failed")
	}
	return nil
}

// Snapshot returns a copy of the counters.
func (c *UserCache) Snapshot() Stats {
	return Stats{
		Hits:   atomic.LoadUint64(&c.stats.Hits),
		Misses: atomic.LoadUint64(&c.stats.Misses),
		Errors: atomic.LoadUint64(&c.stats.Errors),
	}
}

func (c *UserCache) store(ctx context.Context, user *domain.User) {
	data, err := json.Marshal(cachedUser{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(user.ID), data, c.ttl).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		c.log.Warn().Err(err).Msg("cache set failed")
	}
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}
