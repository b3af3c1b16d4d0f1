package configstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"market_monitor/internal/models"
	"market_monitor/internal/modules/kvstore"
)

const (
	DefaultPollInterval = 10 * time.Second
	sfReload            = "reload"
)

type updateMsg struct {
	Ts      int64 `json:"ts"`
	Version int64 `json:"version"`
}

// Store версионированный документ конфигурации.
// Current отдаёт кэш без похода в KV, горячая перезагрузка меняет указатель атомарно.
type Store struct {
	kv   kvstore.Store
	log  *zap.Logger
	seed Seed
	now  func() time.Time

	cur  atomic.Pointer[models.ConfigDoc]
	hash atomic.Value // string

	sf      singleflight.Group
	writeMu sync.Mutex

	subMu sync.Mutex
	subs  map[chan *models.ConfigDoc]struct{}
}

func New(kv kvstore.Store, seed Seed, log *zap.Logger) *Store {
	s := &Store{
		kv:   kv,
		log:  log,
		seed: seed,
		now:  time.Now,
		subs: make(map[chan *models.ConfigDoc]struct{}),
	}
	def := Default(seed)
	normalize(&def)
	s.cur.Store(&def)
	s.hash.Store("")
	return s
}

// Current последний известный документ. Не мутировать: для правок есть Clone и Mutate.
func (s *Store) Current() *models.ConfigDoc {
	return s.cur.Load()
}

// Load читает документ из KV; при отсутствии сеет дефолт.
// При недоступном KV возвращает последний известный документ вместе с ошибкой.
func (s *Store) Load(ctx context.Context) (*models.ConfigDoc, bool, error) {
	raw, err := s.kv.Get(ctx, kvstore.KeyConfig)
	if errors.Is(err, kvstore.ErrNotFound) {
		doc := Default(s.seed)
		doc.UpdatedAt = s.now().UnixMilli()
		normalize(&doc)
		if err := kvstore.SetJSON(ctx, s.kv, kvstore.KeyConfig, &doc, 0); err != nil {
			s.log.Warn("seed default config failed", zap.Error(err))
		} else {
			s.log.Info("default config seeded")
		}
		changed := s.swap(&doc)
		return &doc, changed, nil
	}
	if err != nil {
		return s.Current(), false, errors.Wrap(err, "config: load")
	}

	doc := Default(s.seed)
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		s.log.Error("config document is malformed, keeping last known", zap.Error(err))
		return s.Current(), false, errors.Wrap(err, "config: decode")
	}
	normalize(&doc)
	changed := s.swap(&doc)
	return &doc, changed, nil
}

// Reload Load под singleflight: pub/sub и опрос могут совпасть.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	v, err, _ := s.sf.Do(sfReload, func() (any, error) {
		_, changed, err := s.Load(ctx)
		return changed, err
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Save проверяет, поднимает версию, пишет в KV и публикует config:update.
func (s *Store) Save(ctx context.Context, doc models.ConfigDoc) (*models.ConfigDoc, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.saveLocked(ctx, doc)
}

// Mutate read-modify-write живого документа из KV. fn правит копию.
func (s *Store) Mutate(ctx context.Context, fn func(doc *models.ConfigDoc) error) (*models.ConfigDoc, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	live, _, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	doc := Clone(live)
	if err := fn(&doc); err != nil {
		return nil, err
	}
	return s.saveLocked(ctx, doc)
}

func (s *Store) saveLocked(ctx context.Context, doc models.ConfigDoc) (*models.ConfigDoc, error) {
	normalize(&doc)
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	for i := range doc.Targets {
		if doc.Targets[i].ID == "" {
			doc.Targets[i].ID = uuid.NewString()
		}
	}
	if cur := s.Current(); cur != nil && cur.Version >= doc.Version {
		doc.Version = cur.Version
	}
	doc.Version++
	doc.UpdatedAt = s.now().UnixMilli()

	if err := kvstore.SetJSON(ctx, s.kv, kvstore.KeyConfig, &doc, 0); err != nil {
		return nil, errors.Wrap(err, "config: save")
	}
	s.swap(&doc)

	msg, _ := sonic.Marshal(updateMsg{Ts: doc.UpdatedAt, Version: doc.Version})
	if err := s.kv.Publish(ctx, kvstore.ChannelConfigUpdate, msg); err != nil {
		// остальные инстансы подхватят изменения опросом
		s.log.Warn("publish config update failed", zap.Error(err))
	}
	return &doc, nil
}

// Subscribe канал изменений: буфер 1, побеждает последний документ.
func (s *Store) Subscribe() (<-chan *models.ConfigDoc, func()) {
	ch := make(chan *models.ConfigDoc, 1)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
		})
	}
}

// swap подменяет кэш, если канонический JSON изменился, и будит подписчиков.
func (s *Store) swap(doc *models.ConfigDoc) bool {
	h, err := Hash(doc)
	if err != nil {
		s.log.Error("hash config failed", zap.Error(err))
		return false
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if prev, _ := s.hash.Load().(string); prev == h {
		return false
	}
	s.hash.Store(h)
	s.cur.Store(doc)

	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- doc:
		default:
		}
	}
	return true
}

// Hash sha256 канонического JSON (ключи map отсортированы).
func Hash(doc *models.ConfigDoc) (string, error) {
	raw, err := sonic.ConfigStd.Marshal(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Clone глубокая копия через JSON.
func Clone(doc *models.ConfigDoc) models.ConfigDoc {
	var out models.ConfigDoc
	raw, err := sonic.Marshal(doc)
	if err != nil {
		return *doc
	}
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return *doc
	}
	return out
}
