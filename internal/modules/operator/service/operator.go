package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"market_monitor/internal/helper"
	"market_monitor/internal/models"
	"market_monitor/internal/modules/kvstore"
)

var (
	ErrPaperOnly     = errors.New("operator: reset is available in paper mode only")
	ErrUnknownAction = errors.New("operator: unknown quant action")
)

// ConfigStore чтение и запись документа с валидацией и публикацией.
type ConfigStore interface {
	Load(ctx context.Context) (*models.ConfigDoc, bool, error)
	Save(ctx context.Context, doc models.ConfigDoc) (*models.ConfigDoc, error)
}

// Operator то, что вызывает админка: конфиг и команды кванту.
type Operator struct {
	kv  kvstore.Store
	cs  ConfigStore
	log *zap.Logger
	now func() time.Time
}

func New(kv kvstore.Store, cs ConfigStore, log *zap.Logger) *Operator {
	return &Operator{kv: kv, cs: cs, log: log, now: time.Now}
}

func (o *Operator) Config(ctx context.Context) (*models.ConfigDoc, error) {
	doc, _, err := o.cs.Load(ctx)
	return doc, errors.Wrap(err, "load config")
}

func (o *Operator) SaveConfig(ctx context.Context, doc models.ConfigDoc) (*models.ConfigDoc, error) {
	saved, err := o.cs.Save(ctx, doc)
	if err != nil {
		return nil, errors.Wrap(err, "save config")
	}
	o.log.Info("config saved", zap.Int64("version", saved.Version))
	return saved, nil
}

func ParseAction(s string) (models.CommandAction, error) {
	switch a := models.CommandAction(strings.ToLower(strings.TrimSpace(s))); a {
	case models.CommandReset, models.CommandStart, models.CommandStop:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Quant кладёт одноразовую команду; трейдер заберёт её за секунду.
// Пустой symbol значит символ кванта из документа.
func (o *Operator) Quant(ctx context.Context, symbol string, action models.CommandAction) (string, error) {
	doc, err := o.Config(ctx)
	if err != nil {
		return "", err
	}
	symbol = helper.NormSymbol(symbol)
	if symbol == "" {
		symbol = doc.Quant.Symbol
	}
	if action == models.CommandReset && symbol == doc.Quant.Symbol && doc.Quant.Mode() != models.ModePaper {
		return "", ErrPaperOnly
	}
	cmd := models.Command{Action: action, Ts: o.now().UnixMilli()}
	if err := kvstore.SetJSON(ctx, o.kv, kvstore.KeyQuantCommand(symbol), cmd, kvstore.TTLCommand); err != nil {
		return "", errors.Wrap(err, "write quant command")
	}
	o.log.Info("quant command queued", zap.String("symbol", symbol), zap.String("action", string(action)))
	return symbol, nil
}

// QuantStatus последний статус, который пишет трейдер.
func (o *Operator) QuantStatus(ctx context.Context) (*models.QuantStatus, error) {
	var st models.QuantStatus
	if err := kvstore.GetJSON(ctx, o.kv, kvstore.KeyQuant, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
