package kvstore

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// ErrNotFound ключа нет или истёк TTL.
var ErrNotFound = errors.New("kv: key not found")

// Store мягкое состояние: ошибки логируются и возвращаются, живой цикл от них не зависит.
// Ключи и каналы передаются без префикса, неймспейс добавляет реализация.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set ttl == 0 без истечения.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	// MGet значения всех ключей по glob-шаблону (price:*).
	MGet(ctx context.Context, pattern string) ([][]byte, error)
	Publish(ctx context.Context, channel string, msg []byte) error
	// Subscribe поток сообщений канала до ctx.Done() или вызова cancel.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
	Close() error
}

func GetJSON(ctx context.Context, s Store, key string, dst any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := sonic.Unmarshal(raw, dst); err != nil {
		return errors.Wrapf(err, "kv: decode %s", key)
	}
	return nil
}

func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "kv: encode %s", key)
	}
	return s.Set(ctx, key, raw, ttl)
}

func prefixed(ns, key string) string {
	if ns == "" {
		return key
	}
	return ns + ":" + key
}
