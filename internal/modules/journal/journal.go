package journal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"market_monitor/internal/models"
	"market_monitor/pkg/db"
)

const writeTimeout = 3 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS quant_trades (
	id          TEXT PRIMARY KEY,
	position_id TEXT NOT NULL,
	mode        TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	direction   TEXT NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price  DOUBLE PRECISION,
	size        DOUBLE PRECISION NOT NULL,
	leverage    DOUBLE PRECISION NOT NULL,
	fee         DOUBLE PRECISION NOT NULL,
	pnl         DOUBLE PRECISION,
	roe         DOUBLE PRECISION,
	reason      TEXT,
	ts          TIMESTAMPTZ NOT NULL
)`

const insertTrade = `
INSERT INTO quant_trades
	(id, position_id, mode, symbol, side, direction, entry_price, exit_price, size, leverage, fee, pnl, roe, reason, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO NOTHING`

// Journal журнал сделок кванта; без базы Record ничего не делает.
type Journal struct {
	tx  db.TxManager
	log *zap.Logger
}

func New(tx db.TxManager, log *zap.Logger) *Journal {
	return &Journal{tx: tx, log: log}
}

func (j *Journal) Enabled() bool { return j != nil && j.tx != nil }

func (j *Journal) EnsureSchema(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}
	_, err := j.tx.Conn().Exec(ctx, schema)
	return errors.Wrap(err, "create quant_trades")
}

// Record best effort: ошибка только логируется.
func (j *Journal) Record(ctx context.Context, o models.TradeOrder) {
	if !j.Enabled() {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	err := j.tx.RunMaster(wctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, insertTrade,
			o.ID, o.PositionID, string(o.Mode), o.Symbol, string(o.Side), string(o.Direction),
			o.EntryPrice, nullable(o.ExitPrice), o.Size, o.Leverage, o.Fee,
			nullable(o.PnL), nullable(o.ROE), string(o.Reason), time.UnixMilli(o.Ts).UTC(),
		)
		return errors.Wrap(err, "insert trade")
	})
	if err != nil {
		j.log.Warn("journal write failed", zap.String("order", o.ID), zap.Error(err))
	}
}

// nullable открывающая сделка пишет NULL вместо нулевых exit/pnl/roe.
func nullable(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}
