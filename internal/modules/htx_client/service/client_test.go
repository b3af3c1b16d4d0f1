package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market_monitor/internal/models"
	"market_monitor/pkg/signer"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *signer.Signer) {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	sg := signer.New("ak", "sk")
	c, err := NewClient(srv.URL, sg, zap.NewNop())
	require.NoError(t, err)
	return c, sg
}

// verifySignature пересчитывает подпись так же, как биржа.
func verifySignature(t *testing.T, sg *signer.Signer, r *http.Request) {
	t.Helper()
	q := r.URL.Query()
	got := q.Get("Signature")
	require.NotEmpty(t, got)
	params := map[string]string{}
	for k := range q {
		if k != "Signature" {
			params[k] = q.Get(k)
		}
	}
	assert.Equal(t, "ak", params["AccessKeyId"])
	assert.Equal(t, got, sg.Sign(r.Method, r.Host, r.URL.Path, params))
}

func TestKlineReversesToNewestFirst(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, klinePath, r.URL.Path)
		assert.Equal(t, "BTC-USDT", r.URL.Query().Get("contract_code"))
		assert.Equal(t, "15min", r.URL.Query().Get("period"))
		assert.Equal(t, "3", r.URL.Query().Get("size"))
		assert.Empty(t, r.URL.Query().Get("Signature"))
		_, _ = w.Write([]byte(`{"status":"ok","ts":1,"data":[
			{"id":1,"open":1,"close":10,"high":1,"low":1},
			{"id":2,"open":1,"close":20,"high":1,"low":1},
			{"id":3,"open":1,"close":30,"high":1,"low":1}]}`))
	})

	candles, err := c.Kline(context.Background(), "BTC-USDT", "15min", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, int64(3), candles[0].ID)
	assert.Equal(t, 30.0, candles[0].Close)
	assert.Equal(t, int64(1), candles[2].ID)
}

func TestKlineRejectsBadArgs(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not hit the venue")
	})
	_, err := c.Kline(context.Background(), "BTC-USDT", "2min", 10)
	assert.Error(t, err)
	_, err = c.Kline(context.Background(), "BTC-USDT", "1min", 0)
	assert.Error(t, err)
}

func TestPlaceOrderSigned(t *testing.T) {
	var body map[string]any
	var sg *signer.Signer
	c, sg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, orderPath, r.URL.Path)
		verifySignature(t, sg, r)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(raw, &body))
		_, _ = w.Write([]byte(`{"status":"ok","data":{"order_id":123,"order_id_str":"123"},"ts":1}`))
	})

	res, err := c.PlaceOrder(context.Background(), OrderRequest{
		Contract: "ETH-USDT", Volume: 5, Side: OpenSide(models.DirectionShort), Offset: OffsetOpen, LeverRate: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "123", res.OrderID)
	assert.Equal(t, "ETH-USDT", body["contract_code"])
	assert.Equal(t, "sell", body["direction"])
	assert.Equal(t, "open", body["offset"])
	assert.EqualValues(t, 5, body["volume"])
	assert.EqualValues(t, 10, body["lever_rate"])
	assert.Equal(t, "optimal_5", body["order_price_type"])
}

func TestPlaceTPSLAndClose(t *testing.T) {
	var bodies []map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var b map[string]any
		require.NoError(t, sonic.Unmarshal(raw, &b))
		bodies = append(bodies, b)
		switch r.URL.Path {
		case tpslPath:
			_, _ = w.Write([]byte(`{"status":"ok","data":{"tp_order":{"order_id_str":"tp1"},"sl_order":{"order_id_str":"sl1"}}}`))
		default:
			_, _ = w.Write([]byte(`{"status":"ok","data":{"order_id_str":"c1"}}`))
		}
	})

	tpsl, err := c.PlaceTPSL(context.Background(), TPSLRequest{
		Contract: "BTC-USDT", Volume: 2, Side: CloseSide(models.DirectionLong), TakePrice: 61234.5, StopPrice: 59000.1,
	})
	require.NoError(t, err)
	assert.Equal(t, TPSLResult{TakeOrderID: "tp1", StopOrderID: "sl1"}, tpsl)
	assert.Equal(t, "sell", bodies[0]["direction"])
	assert.Equal(t, "61234.5", bodies[0]["tp_trigger_price"])
	assert.Equal(t, "59000.1", bodies[0]["sl_trigger_price"])
	assert.Equal(t, "optimal_5", bodies[0]["sl_order_price_type"])

	res, err := c.ClosePosition(context.Background(), "BTC-USDT", models.DirectionShort, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, "c1", res.OrderID)
	assert.Equal(t, "buy", bodies[1]["direction"])
	assert.Equal(t, "close", bodies[1]["offset"])
}

func TestAPIErrorSurfaced(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","err_code":1047,"err_msg":"Insufficient margin available.","ts":1}`))
	})
	_, err := c.PlaceOrder(context.Background(), OrderRequest{Contract: "BTC-USDT", Volume: 1, Side: SideBuy, Offset: OffsetOpen, LeverRate: 5})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 1047, apiErr.Code)

	_, err = c.PlaceOrder(context.Background(), OrderRequest{Contract: "BTC-USDT", Volume: 0})
	assert.ErrorIs(t, err, errBadVolume)
}

func TestHTTPErrorStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	_, err := c.Kline(context.Background(), "BTC-USDT", "1min", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
