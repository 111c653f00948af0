package snapshotcache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/schemalens/schemalens-go/pkg/models"
	"github.com/schemalens/schemalens-go/utils"
)

const redisKeyPrefix = "schemalens:snapshot"

// RedisCache is a Redis-backed snapshot cache for deployments where
// several instances share one cache tier
type RedisCache struct {
	redis    *redis.Client
	versions VersionSource
	logger   *utils.Logger
}

// NewRedisCache creates a Redis-backed snapshot cache
func NewRedisCache(redisURL string, versions VersionSource) (*RedisCache, error) {
	opt, err := redis.ParseURL(fmt.Sprintf("redis://%s", redisURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		redis:    client,
		versions: versions,
		logger:   utils.GetLogger(),
	}, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.redis.Close()
}

// redisKey builds the storage key for one (mode, artifact) pair
func redisKey(mode models.GraphMode, artifact string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, artifactKey(mode, artifact))
}

// Get returns the snapshot for a mode; a missing artifact or an
// ontology version mismatch is a miss, never an error
func (c *RedisCache) Get(ctx context.Context, mode models.GraphMode) (*models.GraphSnapshot, bool, error) {
	keys := make([]string, len(artifacts))
	for i, artifact := range artifacts {
		keys[i] = redisKey(mode, artifact)
	}

	// MGET is a single atomic command, so the four artifacts are read
	// from one point in time
	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	docs := make(map[string]string, len(artifacts))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			return nil, false, nil // at least one artifact missing
		}
		docs[artifacts[i]] = raw
	}

	snapshot, err := decodeSnapshot(mode, docs)
	if err != nil {
		c.logger.Warn("discarding corrupt snapshot entry", utils.Component("snapshot-cache"),
			utils.String("mode", string(mode)), utils.Error(err))
		return nil, false, nil
	}

	current, err := c.versions.CurrentVersion(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check ontology version: %w", err)
	}
	if snapshot.OntologyVersion != current {
		return nil, false, nil
	}

	return snapshot, true, nil
}

// Put stores a snapshot, writing all four artifact keys in one
// MULTI/EXEC transaction
func (c *RedisCache) Put(ctx context.Context, mode models.GraphMode, snapshot *models.GraphSnapshot) error {
	docs, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	pipe := c.redis.TxPipeline()
	for artifact, value := range docs {
		pipe.Set(ctx, redisKey(mode, artifact), value, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// Invalidate removes the snapshot for a mode, or for all modes when
// mode is empty
func (c *RedisCache) Invalidate(ctx context.Context, mode models.GraphMode) error {
	modes := []models.GraphMode{mode}
	if mode == "" {
		modes = cacheModes
	}

	var keys []string
	for _, m := range modes {
		for _, artifact := range artifacts {
			keys = append(keys, redisKey(m, artifact))
		}
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}
	return nil
}
