package qtable

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix is prepended to table names to form the Redis key of the hash.
const RedisKeyPrefix = "gomoku:qtable:"

// RedisStore saves each table as a Redis hash: one field per state, with the action values
// JSON encoded.
type RedisStore struct {
	client *redis.Client
	addr   string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the Redis server in uri, and checks it is reachable.
func NewRedisStore(ctx context.Context, uri string) (*RedisStore, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid redis URI")
	}
	opts.DialTimeout = 5 * time.Second
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to reach redis at %s", opts.Addr)
	}
	return &RedisStore{client: client, addr: opts.Addr}, nil
}

func (s *RedisStore) String() string { return "redis://" + s.addr }

// Save implements Store. The old hash is replaced atomically.
func (s *RedisStore) Save(ctx context.Context, name string, table *Table) error {
	snapshot := table.Snapshot()
	fields := make(map[string]any, len(snapshot))
	for key, values := range snapshot {
		encoded, err := json.Marshal(values)
		if err != nil {
			return errors.Wrapf(err, "failed to encode values of state %q", key)
		}
		fields[key] = encoded
	}
	redisKey := RedisKeyPrefix + name
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisKey)
		if len(fields) > 0 {
			pipe.HSet(ctx, redisKey, fields)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to save q-table %q to redis", name)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, name string) (*Table, error) {
	fields, err := s.client.HGetAll(ctx, RedisKeyPrefix+name).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load q-table %q from redis", name)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	values := make(map[string]Values, len(fields))
	for key, encoded := range fields {
		var v Values
		if err = json.Unmarshal([]byte(encoded), &v); err != nil {
			return nil, errors.Wrapf(err, "failed to decode values of state %q", key)
		}
		values[key] = v
	}
	return FromValues(values), nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
