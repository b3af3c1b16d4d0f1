package kvstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const opTimeout = 3 * time.Second

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

// RedisStore бэкенд на go-redis.
type RedisStore struct {
	ns  string
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisStore(conf RedisConfig, log *zap.Logger) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Password:     conf.Password,
		DB:           conf.DB,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})
	return &RedisStore{ns: conf.Namespace, rdb: rdb, log: log}
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	raw, err := r.rdb.Get(ctx, prefixed(r.ns, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.log.Warn("kv get failed", zap.String("key", key), zap.Error(err))
		return nil, errors.Wrapf(err, "kv: get %s", key)
	}
	return raw, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := r.rdb.Set(ctx, prefixed(r.ns, key), value, ttl).Err(); err != nil {
		r.log.Warn("kv set failed", zap.String("key", key), zap.Error(err))
		return errors.Wrapf(err, "kv: set %s", key)
	}
	return nil
}

func (r *RedisStore) Del(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := r.rdb.Del(ctx, prefixed(r.ns, key)).Err(); err != nil {
		r.log.Warn("kv del failed", zap.String("key", key), zap.Error(err))
		return errors.Wrapf(err, "kv: del %s", key)
	}
	return nil
}

// MGet SCAN по шаблону, затем MGET пачками.
func (r *RedisStore) MGet(ctx context.Context, pattern string) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := r.rdb.Scan(ctx, cursor, prefixed(r.ns, pattern), 200).Result()
		if err != nil {
			r.log.Warn("kv scan failed", zap.String("pattern", pattern), zap.Error(err))
			return nil, errors.Wrapf(err, "kv: scan %s", pattern)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		r.log.Warn("kv mget failed", zap.String("pattern", pattern), zap.Error(err))
		return nil, errors.Wrapf(err, "kv: mget %s", pattern)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		switch s := v.(type) {
		case string:
			out = append(out, []byte(s))
		case []byte:
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *RedisStore) Publish(ctx context.Context, channel string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := r.rdb.Publish(ctx, prefixed(r.ns, channel), msg).Err(); err != nil {
		r.log.Warn("kv publish failed", zap.String("channel", channel), zap.Error(err))
		return errors.Wrapf(err, "kv: publish %s", channel)
	}
	return nil
}

func (r *RedisStore) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	full := prefixed(r.ns, channel)
	ps := r.rdb.Subscribe(ctx, full)

	// дожидаемся подтверждения подписки, иначе первые publish теряются
	rctx, cancelRecv := context.WithTimeout(ctx, opTimeout)
	_, err := ps.Receive(rctx)
	cancelRecv()
	if err != nil {
		_ = ps.Close()
		return nil, nil, errors.Wrapf(err, "kv: subscribe %s", channel)
	}

	out := make(chan []byte, 16)
	subCtx, stop := context.WithCancel(ctx)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		in := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					r.log.Warn("kv subscriber is slow, message dropped", zap.String("channel", channel))
				}
			}
		}
	}()
	return out, stop, nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
