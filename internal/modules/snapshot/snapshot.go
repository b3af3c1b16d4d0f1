package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"market_monitor/internal/models"
	"market_monitor/internal/modules/kvstore"
)

const DefaultFlushInterval = time.Second

// Realtime полный снимок для UI, ключ <ns>:realtime.
type Realtime struct {
	Prices    map[string]models.PricePoint      `json:"prices"`
	Positions map[string]models.PositionSummary `json:"positions"`
	Quant     *models.QuantStatus               `json:"quant,omitempty"`
	UpdatedAt int64                             `json:"updatedAt"`
}

// Snapshot последние цены, позиции и статус кванта.
// Писатели сериализуются на мьютексе, в KV зеркалится пачкой раз в flushInterval.
type Snapshot struct {
	kv  kvstore.Store
	log *zap.Logger
	now func() time.Time

	mu        sync.RWMutex
	prices    map[string]models.PricePoint
	positions map[string]models.PositionSummary
	quant     *models.QuantStatus

	dirtyPrices    map[string]struct{}
	dirtyPositions bool
	dirtyQuant     bool
}

func New(kv kvstore.Store, log *zap.Logger) *Snapshot {
	return &Snapshot{
		kv:          kv,
		log:         log,
		now:         time.Now,
		prices:      make(map[string]models.PricePoint),
		positions:   make(map[string]models.PositionSummary),
		dirtyPrices: make(map[string]struct{}),
	}
}

// SetPrice более старая точка не затирает свежую.
func (s *Snapshot) SetPrice(symbol string, price float64, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.prices[symbol]; ok && cur.Ts > ts {
		return
	}
	s.prices[symbol] = models.PricePoint{Price: price, Ts: ts}
	s.dirtyPrices[symbol] = struct{}{}
}

// SetPositions заменяет карту позиций целиком, сгруппировав по символу.
func (s *Snapshot) SetPositions(list []models.Position, ts int64) {
	next := make(map[string]models.PositionSummary, len(list))
	for _, p := range list {
		p := p
		sum := next[p.Contract]
		sum.Symbol = p.Contract
		sum.UpdatedAt = ts
		if p.Direction == models.DirectionLong {
			sum.Long = &p
		} else {
			sum.Short = &p
		}
		next[p.Contract] = sum
	}

	s.mu.Lock()
	s.positions = next
	s.dirtyPositions = true
	s.mu.Unlock()
}

func (s *Snapshot) SetQuant(st models.QuantStatus) {
	s.mu.Lock()
	s.quant = &st
	s.dirtyQuant = true
	s.mu.Unlock()
}

func (s *Snapshot) Price(symbol string) (models.PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[symbol]
	return p, ok
}

// PositionSymbols символы с открытыми позициями, по алфавиту.
func (s *Snapshot) PositionSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.positions))
	for sym := range s.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Read согласованная копия.
func (s *Snapshot) Read() Realtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

func (s *Snapshot) copyLocked() Realtime {
	out := Realtime{
		Prices:    make(map[string]models.PricePoint, len(s.prices)),
		Positions: make(map[string]models.PositionSummary, len(s.positions)),
		UpdatedAt: s.now().UnixMilli(),
	}
	for k, v := range s.prices {
		out.Prices[k] = v
	}
	for k, v := range s.positions {
		if v.Long != nil {
			l := *v.Long
			v.Long = &l
		}
		if v.Short != nil {
			sh := *v.Short
			v.Short = &sh
		}
		out.Positions[k] = v
	}
	if s.quant != nil {
		q := *s.quant
		q.Positions = append([]models.QuantPosition(nil), s.quant.Positions...)
		out.Quant = &q
	}
	return out
}

// Flush пишет изменившиеся ключи в KV. Ошибки KV не фатальны.
func (s *Snapshot) Flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.dirtyPrices) == 0 && !s.dirtyPositions && !s.dirtyQuant {
		s.mu.Unlock()
		return
	}
	prices := make(map[string]models.PricePoint, len(s.dirtyPrices))
	for sym := range s.dirtyPrices {
		prices[sym] = s.prices[sym]
	}
	view := s.copyLocked()
	writePositions, writeQuant := s.dirtyPositions, s.dirtyQuant && s.quant != nil
	s.dirtyPrices = make(map[string]struct{})
	s.dirtyPositions, s.dirtyQuant = false, false
	s.mu.Unlock()

	for sym, p := range prices {
		s.set(ctx, kvstore.KeyPrice(sym), p, kvstore.TTLPrice)
	}
	if writePositions {
		s.set(ctx, kvstore.KeyPositions, view.Positions, kvstore.TTLPositions)
	}
	if writeQuant {
		s.set(ctx, kvstore.KeyQuant, view.Quant, kvstore.TTLQuant)
	}
	s.set(ctx, kvstore.KeyRealtime, view, kvstore.TTLRealtime)
}

func (s *Snapshot) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := kvstore.SetJSON(ctx, s.kv, key, v, ttl); err != nil {
		s.log.Warn("snapshot mirror failed", zap.String("key", key), zap.Error(err))
	}
}

// Run периодический flush до отмены ctx, затем финальный.
func (s *Snapshot) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = DefaultFlushInterval
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			s.Flush(fctx)
			cancel()
			return
		case <-t.C:
			s.Flush(ctx)
		}
	}
}
