package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"market_monitor/internal/models"
)

const (
	warmupPeriod = "1min"
	parallel     = 8
)

type KlineSource interface {
	Kline(ctx context.Context, symbol, period string, size int) ([]models.Candle, error)
}

type PriceSeeder interface {
	SetPrice(symbol string, price float64, ts int64)
}

// Warmuper заполняет снапшот последним закрытием свечи, пока стрим не прислал тики.
type Warmuper struct {
	src  KlineSource
	book PriceSeeder
	log  *zap.Logger

	// ограничитель параллелизма, чтобы не словить rate limit
	sem chan struct{}
}

func NewWarmuper(src KlineSource, book PriceSeeder, log *zap.Logger) *Warmuper {
	return &Warmuper{
		src:  src,
		book: book,
		log:  log,
		sem:  make(chan struct{}, parallel),
	}
}

// Warmup возвращает число засеянных символов и первую ошибку; остальные символы
// всё равно обрабатываются.
func (w *Warmuper) Warmup(ctx context.Context, symbols []string) (int, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		seeded   int
		firstErr error
	)
	for _, sym := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			select {
			case w.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-w.sem }()

			candles, err := w.src.Kline(ctx, sym, warmupPeriod, 1)
			if err == nil && len(candles) == 0 {
				err = errors.New("no candles")
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("warmup %s: %w", sym, err)
				}
				return
			}
			c := candles[0]
			// метка свечи старше любого живого тика, поэтому стрим её перезапишет
			w.book.SetPrice(sym, c.Close, c.ID*1000)
			seeded++
		}(sym)
	}
	wg.Wait()
	return seeded, firstErr
}
