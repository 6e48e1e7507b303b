package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/teilomillet/wave/config"
	"github.com/teilomillet/wave/server/conversation"
	"go.uber.org/zap"
)

// RedisStore keeps each session as a Redis list of JSON turns. A sorted set
// indexes the session keys by last use so stats and sweeps do not need SCAN.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	window int
	logger *zap.Logger
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and checks the connection with PING.
func NewRedisStore(cfg config.RedisConfig, window int, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Address, err)
	}

	return NewRedisStoreWithClient(client, cfg.Prefix, cfg.TTL, window, logger), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration, window int, logger *zap.Logger) *RedisStore {
	if window <= 0 {
		window = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

func (s *RedisStore) listKey(key string) string {
	return s.prefix + "session:" + key
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "sessions"
}

func (s *RedisStore) touch(ctx context.Context, pipe redis.Pipeliner, key string) {
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(s.now().Unix()), Member: key})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.listKey(key), s.ttl)
	}
}

func (s *RedisStore) Get(ctx context.Context, user, character string) ([]conversation.Turn, error) {
	key := Key(user, character)

	var lrange *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, s.listKey(key), 0, -1)
		s.touch(ctx, pipe, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", key, err)
	}

	raw := lrange.Val()
	turns := make([]conversation.Turn, 0, len(raw))
	for _, item := range raw {
		var t conversation.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			s.logger.Warn("skipping undecodable turn",
				zap.String("session", key),
				zap.Error(err),
			)
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) Append(ctx context.Context, user, character string, turns ...conversation.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	key := Key(user, character)

	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		values = append(values, b)
	}

	// MULTI/EXEC keeps push and trim atomic for concurrent writers.
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.listKey(key), values...)
		pipe.LTrim(ctx, s.listKey(key), -int64(s.window*2), -1)
		s.touch(ctx, pipe, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append to session %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, user, character string) (bool, error) {
	key := Key(user, character)

	var del, zrem *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.listKey(key))
		zrem = pipe.ZRem(ctx, s.indexKey(), key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("clear session %s: %w", key, err)
	}
	return del.Val() > 0 || zrem.Val() > 0, nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("list sessions: %w", err)
	}

	stats := Stats{
		TotalSessions: len(keys),
		Sessions:      make(map[string]SessionStats, len(keys)),
	}
	if len(keys) == 0 {
		return stats, nil
	}

	lens := make([]*redis.IntCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			lens[i] = pipe.LLen(ctx, s.listKey(key))
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("count session turns: %w", err)
	}

	for i, key := range keys {
		stats.Sessions[key] = SessionStats{
			MessageCount: int(lens[i].Val()),
			WindowSize:   s.window,
		}
	}
	return stats, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Sweep(ctx context.Context, idle time.Duration) (int, error) {
	if idle <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-idle).Unix()

	keys, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("find idle sessions: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(keys))
	lists := make([]string, len(keys))
	for i, key := range keys {
		members[i] = key
		lists[i] = s.listKey(key)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, lists...)
		pipe.ZRem(ctx, s.indexKey(), members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("drop idle sessions: %w", err)
	}
	return len(keys), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
