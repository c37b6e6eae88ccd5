package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/snap-point/social-api/logger"
	"go.uber.org/zap"
)

const UsersFollowersCountRedisKey = "users_followers_count"
const UsersFollowingsCountRedisKey = "users_followings_count"

// usersStatsGenerationPrefix + id counts invalidations of that user.
const usersStatsGenerationPrefix = "users_stats_generation:"

// generationExpiration outlives any count computation by far, so a
// generation key never expires while a fill that read it is in flight.
const generationExpiration = 24 * time.Hour

var errStaleStats = errors.New("stats invalidated while computing")

// StatsCache keeps follower and following counts per user in two redis
// hashes keyed by user id. Entries are dropped whenever a relationship
// changes and recomputed from the store on the next read.
type StatsCache struct {
	redisClient *redis.Client
	expiration  time.Duration
}

func NewStatsCache(redisOptions *redis.Options, expiration time.Duration) *StatsCache {
	return &StatsCache{
		redisClient: redis.NewClient(redisOptions),
		expiration:  expiration,
	}
}

func (c *StatsCache) Ping(ctx context.Context) error {
	return c.redisClient.Ping(ctx).Err()
}

func (c *StatsCache) Close() error {
	return c.redisClient.Close()
}

// Get returns ok=false on a miss or when either counter is absent.
func (c *StatsCache) Get(ctx context.Context, userID uint) (followers, followings int64, ok bool) {
	key := idKey(userID)
	followers, err := c.redisClient.HGet(ctx, UsersFollowersCountRedisKey, key).Int64()
	if err != nil {
		return 0, 0, false
	}
	followings, err = c.redisClient.HGet(ctx, UsersFollowingsCountRedisKey, key).Int64()
	if err != nil {
		return 0, 0, false
	}
	return followers, followings, true
}

// Generation reads the user's invalidation counter; a missing key is 0.
func (c *StatsCache) Generation(ctx context.Context, userID uint) (int64, bool) {
	generation, err := c.redisClient.Get(ctx, generationKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.Get().Warn("Failed to read stats generation", zap.Uint("user_id", userID), zap.Error(err))
		return 0, false
	}
	return generation, true
}

// Set stores the counts only while the user's generation still equals
// generation. The generation key is watched, so an Invalidate racing the
// write aborts it.
func (c *StatsCache) Set(ctx context.Context, userID uint, generation, followers, followings int64) {
	genKey := generationKey(userID)
	key := idKey(userID)

	err := c.redisClient.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleStats
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, UsersFollowersCountRedisKey, key, followers)
			pipe.HExpire(ctx, UsersFollowersCountRedisKey, c.expiration, key)
			pipe.HSet(ctx, UsersFollowingsCountRedisKey, key, followings)
			pipe.HExpire(ctx, UsersFollowingsCountRedisKey, c.expiration, key)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleStats), errors.Is(err, redis.TxFailedErr):
		logger.Get().Debug("Skipping stale stats", zap.Uint("user_id", userID))
	default:
		logger.Get().Warn("Failed to cache stats", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// Invalidate bumps each user's generation and drops the cached counts in
// one transaction.
func (c *StatsCache) Invalidate(ctx context.Context, userIDs ...uint) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = idKey(id)
	}

	_, err := c.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Incr(ctx, generationKey(id))
			pipe.Expire(ctx, generationKey(id), generationExpiration)
		}
		pipe.HDel(ctx, UsersFollowersCountRedisKey, keys...)
		pipe.HDel(ctx, UsersFollowingsCountRedisKey, keys...)
		return nil
	})
	if err != nil {
		logger.Get().Warn("Failed to invalidate stats", zap.Uints("user_ids", userIDs), zap.Error(err))
	}
}

func idKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func generationKey(id uint) string {
	return usersStatsGenerationPrefix + idKey(id)
}

// Nop is used when no redis address is configured.
type Nop struct{}

func (Nop) Get(context.Context, uint) (int64, int64, bool) { return 0, 0, false }
func (Nop) Generation(context.Context, uint) (int64, bool) { return 0, false }
func (Nop) Set(context.Context, uint, int64, int64, int64) {}
func (Nop) Invalidate(context.Context, ...uint) {}
