// Package commitcache caches recent commit listings in Redis. Listing commits
// means a full throwaway checkout, so repeated requests for the same project
// are served from the cache until the entry expires.
package commitcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/elskow/corona-deployments/internal/pipeline/runlog"
	"github.com/elskow/corona-deployments/internal/pipeline/types"
)

const (
	DefaultTTL   = 5 * time.Minute
	keyPrefix    = "corona:commits:"
	redisTimeout = 250 * time.Millisecond
)

// Lister performs the uncached listing.
type Lister interface {
	ListRecentCommits(ctx context.Context, project *types.Project, count int, log *runlog.Log) ([]types.Commit, error)
}

type Cache struct {
	client *redis.Client
	lister Lister
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// New returns a cache in front of lister. A nil client disables caching.
func New(client *redis.Client, lister Lister, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		client: client,
		lister: lister,
		ttl:    ttl,
		logger: logger,
	}
}

func Key(project *types.Project, count int) string {
	return fmt.Sprintf("%s%s:%d", keyPrefix, project.ID, count)
}

// Recent returns up to count commits of the project, newest first.
func (c *Cache) Recent(ctx context.Context, project *types.Project, count int) ([]types.Commit, error) {
	if c.client == nil {
		return c.list(ctx, project, count)
	}

	key := Key(project, count)
	if commits, ok := c.get(ctx, key); ok {
		return commits, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		commits, err := c.list(ctx, project, count)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, commits)
		return commits, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("shared commit listing", zap.String("key", key))
	}
	return v.([]types.Commit), nil
}

// Invalidate drops every cached listing of the project.
func (c *Cache) Invalidate(ctx context.Context, project *types.Project) error {
	if c.client == nil {
		return nil
	}

	iter := c.client.Scan(ctx, 0, fmt.Sprintf("%s%s:*", keyPrefix, project.ID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan commit cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *Cache) list(ctx context.Context, project *types.Project, count int) ([]types.Commit, error) {
	log := runlog.New(c.logger.With(zap.String("project", project.Name)))
	commits, err := c.lister.ListRecentCommits(ctx, project, count, log)
	if err != nil {
		return nil, err
	}
	if commits == nil {
		return nil, fmt.Errorf("no commits could be listed for %s", project.Name)
	}
	return commits, nil
}

func (c *Cache) get(ctx context.Context, key string) ([]types.Commit, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logRedisError("get", err)
		}
		return nil, false
	}

	var commits []types.Commit
	if err := json.Unmarshal(data, &commits); err != nil {
		c.logger.Warn("discarding malformed cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return commits, true
}

func (c *Cache) set(ctx context.Context, key string, commits []types.Commit) {
	data, err := json.Marshal(commits)
	if err != nil {
		c.logger.Error("failed to encode commits", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisTimeout)
	defer cancel()
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logRedisError("set", err)
	}
}

func (c *Cache) logRedisError(op string, err error) {
	c.logger.Warn("commit cache unavailable", zap.String("op", op), zap.Error(err))
}
