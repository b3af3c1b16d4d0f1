package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"market_monitor/internal/metrics"
	"market_monitor/internal/models"
	"market_monitor/pkg/signer"
)

type privateEnvelope struct {
	Op      string          `json:"op"`
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Cid     string          `json:"cid"`
	ErrCode int             `json:"err-code"`
	ErrMsg  string          `json:"err-msg"`
	Event   string          `json:"event"`
	Ts      int64           `json:"ts"`
	Data    json.RawMessage `json:"data"`
}

type wirePosition struct {
	Symbol         string  `json:"symbol"`
	ContractCode   string  `json:"contract_code"`
	Volume         float64 `json:"volume"`
	Available      float64 `json:"available"`
	CostOpen       float64 `json:"cost_open"`
	PositionMargin float64 `json:"position_margin"`
	ProfitUnreal   float64 `json:"profit_unreal"`
	ProfitRate     float64 `json:"profit_rate"`
	LeverRate      int     `json:"lever_rate"`
	LastPrice      float64 `json:"last_price"`
	Direction      string  `json:"direction"`
}

func (w wirePosition) toModel() (models.Position, bool) {
	var dir models.Direction
	switch strings.ToLower(w.Direction) {
	case "buy", "long":
		dir = models.DirectionLong
	case "sell", "short":
		dir = models.DirectionShort
	default:
		return models.Position{}, false
	}
	return models.Position{
		Contract:       strings.ToUpper(w.ContractCode),
		Direction:      dir,
		Volume:         w.Volume,
		CostOpen:       w.CostOpen,
		PositionMargin: w.PositionMargin,
		Available:      w.Available,
		ProfitUnreal:   w.ProfitUnreal,
		ProfitRate:     w.ProfitRate,
		LeverRate:      w.LeverRate,
		LastPrice:      w.LastPrice,
	}, w.ContractCode != ""
}

// snapshotEvents события, после которых список позиций полный.
var snapshotEvents = map[string]struct{}{"init": {}, "snapshot": {}}

// Private приватный стрим позиций: подписанный логин, подписка, карта позиций.
type Private struct {
	signer *signer.Signer
	host   string
	path   string
	topic  string
	out    chan<- models.PositionsUpdate
	log    *zap.Logger
	now    func() time.Time

	// ниже только горутина сессии
	authed     bool
	subscribed bool
	fresh      bool
	positions map[models.PosKey]models.Position
}

func NewPrivate(rawURL, topic string, sg *signer.Signer, out chan<- models.PositionsUpdate, log *zap.Logger) (*Private, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("private ws url: %w", err)
	}
	if topic == "" {
		topic = "positions_cross.*"
	}
	return &Private{
		signer:    sg,
		host:      u.Host,
		path:      u.Path,
		topic:     topic,
		out:       out,
		log:       log,
		now:       time.Now,
		positions: make(map[models.PosKey]models.Position),
	}, nil
}

func (p *Private) Name() string { return "private" }

func (p *Private) OnOpen(_ context.Context, c *Conn) error {
	p.authed = false
	p.subscribed = false
	p.fresh = true

	ts := signer.Timestamp(p.now())
	params := p.signer.Params(ts)
	sig := p.signer.Sign("GET", p.host, p.path, params)
	return c.WriteJSON(map[string]string{
		"op":               "auth",
		"type":             "api",
		"AccessKeyId":      p.signer.AccessKey(),
		"SignatureMethod":  signer.Method,
		"SignatureVersion": signer.Version,
		"Timestamp":        ts,
		"Signature":        sig,
	})
}

func (p *Private) OnClose() {
	p.authed = false
	p.subscribed = false
}

// Established логин принят и подписка подтверждена.
func (p *Private) Established() bool { return p.authed && p.subscribed }

func (p *Private) OnMessage(ctx context.Context, c *Conn, msg []byte) error {
	var env privateEnvelope
	if err := sonic.Unmarshal(msg, &env); err != nil {
		return fmt.Errorf("private: decode envelope: %w", err)
	}

	switch env.Op {
	case "auth":
		if env.ErrCode != 0 {
			return fmt.Errorf("private: auth rejected: %d %s", env.ErrCode, env.ErrMsg)
		}
		p.authed = true
		p.log.Info("private ws authenticated")
		return c.WriteJSON(map[string]string{"op": "sub", "cid": uuid.NewString(), "topic": p.topic})

	case "sub":
		if env.ErrCode != 0 {
			return fmt.Errorf("private: subscribe %s rejected: %d %s", env.Topic, env.ErrCode, env.ErrMsg)
		}
		p.subscribed = true
		p.log.Info("private ws subscribed", zap.String("topic", env.Topic))
		return nil

	case "notify":
		if !strings.HasPrefix(env.Topic, "positions") {
			return nil
		}
		return p.onPositions(ctx, env)

	case "close", "error":
		return fmt.Errorf("private: server %s: %d %s", env.Op, env.ErrCode, env.ErrMsg)
	}

	p.log.Debug("private ws frame ignored", zap.String("op", env.Op), zap.String("topic", env.Topic))
	return nil
}

// onPositions первый push после логина и snapshot-события пересобирают карту,
// остальные заменяют позиции только перечисленных контрактов.
func (p *Private) onPositions(ctx context.Context, env privateEnvelope) error {
	var wire []wirePosition
	if len(env.Data) > 0 {
		if err := sonic.Unmarshal(env.Data, &wire); err != nil {
			return fmt.Errorf("private: decode positions: %w", err)
		}
	}
	metrics.PositionPushes.Inc()

	_, snapshotEvent := snapshotEvents[env.Event]
	rebuild := p.fresh || snapshotEvent
	p.fresh = false

	if rebuild {
		p.positions = make(map[models.PosKey]models.Position, len(wire))
	} else {
		touched := make(map[string]struct{}, len(wire))
		for _, w := range wire {
			touched[strings.ToUpper(w.ContractCode)] = struct{}{}
		}
		for k := range p.positions {
			if _, ok := touched[k.Contract]; ok {
				delete(p.positions, k)
			}
		}
	}
	for _, w := range wire {
		pos, ok := w.toModel()
		if !ok {
			p.log.Warn("position without contract or direction skipped", zap.String("direction", w.Direction))
			continue
		}
		if pos.Volume > 0 {
			p.positions[pos.Key()] = pos
		}
	}

	upd := models.PositionsUpdate{
		Snapshot:   rebuild,
		Event:      env.Event,
		Positions:  p.list(),
		ReceivedAt: p.now(),
	}
	select {
	case p.out <- upd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Private) list() []models.Position {
	out := make([]models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Contract != out[j].Contract {
			return out[i].Contract < out[j].Contract
		}
		return out[i].Direction < out[j].Direction
	})
	return out
}
