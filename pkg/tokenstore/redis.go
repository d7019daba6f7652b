package tokenstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apnserrors "github.com/kart-io/apnshub/pkg/errors"
)

// RedisStore keeps one key per token, holding the JSON encoded Entry with the
// store TTL as key expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	owned  bool
}

// RedisConfig configures NewRedisStore.
type RedisConfig struct {
	URL       string
	KeyPrefix string
	TTL       time.Duration
}

// NewRedisStore connects to the Redis server at cfg.URL and checks it with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, apnserrors.Wrap(err, apnserrors.ErrTokenStore, "parse redis url")
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, apnserrors.Wrap(err, apnserrors.ErrTokenStore, "connect to redis")
	}

	s := NewRedisStoreFromClient(client, cfg.KeyPrefix, cfg.TTL)
	s.owned = true
	return s, nil
}

// NewRedisStoreFromClient uses an existing client. Close leaves the client open.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "apnshub:invalid:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

func (s *RedisStore) MarkInvalid(ctx context.Context, e Entry) error {
	if e.MarkedAt.IsZero() {
		e.MarkedAt = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return apnserrors.Wrap(err, apnserrors.ErrTokenStore, "encode entry")
	}
	if err := s.client.Set(ctx, s.key(e.Token), data, s.ttl).Err(); err != nil {
		return apnserrors.Wrapf(err, apnserrors.ErrTokenStore, "mark token %s", e.Token)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apnserrors.Wrapf(err, apnserrors.ErrTokenStore, "get token %s", token)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, apnserrors.Wrap(err, apnserrors.ErrTokenStore, "decode entry")
	}
	return &e, nil
}

func (s *RedisStore) Remove(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return apnserrors.Wrapf(err, apnserrors.ErrTokenStore, "remove token %s", token)
	}
	return nil
}

// List scans the key prefix. Entries that expire during the scan are skipped.
func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		e, err := s.Get(ctx, strings.TrimPrefix(iter.Val(), s.prefix))
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, *e)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, apnserrors.Wrap(err, apnserrors.ErrTokenStore, "scan tokens")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (s *RedisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
