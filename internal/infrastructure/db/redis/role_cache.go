package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

const roleKeyPrefix = "authz:roles:"

// RoleCache is a read-through cache in front of a RoleMappingRepository.
// Key format: authz:roles:<operation>, value: comma-joined role names.
// Unmapped operations are cached as an empty string.
type RoleCache struct {
	client *redis.Client
	source ports.RoleMappingRepository
	ttl    time.Duration
	log    zerolog.Logger
}

var _ ports.RoleMappingRepository = (*RoleCache)(nil)

func NewRoleCache(client *redis.Client, source ports.RoleMappingRepository, ttl time.Duration, log zerolog.Logger) *RoleCache {
	return &RoleCache{client: client, source: source, ttl: ttl, log: log}
}

// RolesFor serves from Redis when possible. Redis failures fall through to
// the source.
func (c *RoleCache) RolesFor(ctx context.Context, operation string) ([]string, error) {
	cached, err := c.client.Get(ctx, c.key(operation)).Result()
	switch {
	case err == nil:
		return domain.SplitRoles(cached), nil
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn().Err(err).Str("operation", operation).Msg("role cache read failed, querying source")
	}

	roles, err := c.source.RolesFor(ctx, operation)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, c.key(operation), domain.JoinRoles(roles), c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("operation", operation).Msg("role cache write failed")
	}
	return roles, nil
}

// Invalidate drops the cached mapping of the given operations, or of every
// operation when none is given.
func (c *RoleCache) Invalidate(ctx context.Context, operations ...string) error {
	if len(operations) > 0 {
		keys := make([]string, 0, len(operations))
		for _, op := range operations {
			keys = append(keys, c.key(op))
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("role cache invalidate: %w", err)
		}
		return nil
	}

	iter := c.client.Scan(ctx, 0, roleKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("role cache invalidate: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("role cache scan: %w", err)
	}
	return nil
}

func (c *RoleCache) key(operation string) string {
	return roleKeyPrefix + operation
}
