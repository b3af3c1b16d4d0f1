package service

import (
	"strconv"

	"go.uber.org/zap"

	"market_monitor/internal/models"
)

// Targets ценовые растяжки. lastNotifyTs живёт здесь, по id правила, а не в документе.
type Targets struct {
	lastNotify map[string]int64
	// fired снятые notifyOnce правила, пока документ не перечитан
	fired map[string]struct{}
	log   *zap.Logger
}

func NewTargets(log *zap.Logger) *Targets {
	return &Targets{
		lastNotify: make(map[string]int64),
		fired:      make(map[string]struct{}),
		log:        log,
	}
}

// InBand попадание цены в полосу правила.
func InBand(rule models.TargetRule, price float64) bool {
	t, r := rule.TargetPrice, rule.RangePercent
	switch rule.Direction {
	case models.TargetAbove:
		if r == 0 {
			return price >= t
		}
		return price >= t && price <= t*(1+r)
	case models.TargetBelow:
		if r == 0 {
			return price <= t
		}
		return price <= t && price >= t*(1-r)
	}
	return false
}

// ruleKey правила без id (документ правили руками) идентифицируются содержимым.
func ruleKey(r models.TargetRule) string {
	if r.ID != "" {
		return r.ID
	}
	return r.Symbol + "|" + string(r.Direction) + "|" + strconv.FormatFloat(r.TargetPrice, 'f', -1, 64) +
		"|" + strconv.FormatFloat(r.RangePercent, 'f', -1, 64)
}

func validRule(r models.TargetRule) bool {
	return r.TargetPrice > 0 && r.RangePercent >= 0 && r.NotifyIntervalSec >= 0 &&
		(r.Direction == models.TargetAbove || r.Direction == models.TargetBelow)
}

// Evaluate правила символа на тике.
func (t *Targets) Evaluate(symbol string, price float64, nowMs int64, rules []models.TargetRule) []models.TargetHit {
	var hits []models.TargetHit
	for _, r := range rules {
		if r.Symbol != symbol || !r.IsEnabled() {
			continue
		}
		if !validRule(r) {
			t.log.Warn("malformed target rule skipped", zap.String("id", r.ID), zap.String("symbol", r.Symbol))
			continue
		}
		key := ruleKey(r)
		if _, gone := t.fired[key]; gone {
			continue
		}
		if !InBand(r, price) {
			continue
		}
		last := t.lastNotify[key]
		if last != 0 && nowMs-last < r.NotifyIntervalSec*1000 {
			continue
		}
		t.lastNotify[key] = nowMs
		if r.NotifyOnce {
			t.fired[key] = struct{}{}
		}
		hits = append(hits, models.TargetHit{Rule: r, Price: price, Ts: nowMs, Once: r.NotifyOnce})
	}
	return hits
}

// Sync чистит рантайм-состояние правил, которых больше нет в документе.
func (t *Targets) Sync(rules []models.TargetRule) {
	alive := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		alive[ruleKey(r)] = struct{}{}
	}
	for id := range t.lastNotify {
		if _, ok := alive[id]; !ok {
			delete(t.lastNotify, id)
		}
	}
	for id := range t.fired {
		if _, ok := alive[id]; !ok {
			delete(t.fired, id)
		}
	}
}

// Restore снятие не удалось сохранить: правило снова активно.
func (t *Targets) Restore(r models.TargetRule) { delete(t.fired, ruleKey(r)) }

func (t *Targets) LastNotify(r models.TargetRule) int64 { return t.lastNotify[ruleKey(r)] }

// SameRule сравнение по идентичности правила.
func SameRule(a, b models.TargetRule) bool { return ruleKey(a) == ruleKey(b) }
