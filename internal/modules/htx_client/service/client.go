package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"market_monitor/internal/metrics"
	"market_monitor/pkg/signer"
	"market_monitor/pkg/tracing"
)

const (
	RequestTimeout = 15 * time.Second
	rateLimit      = 10
	rateBurst      = 5
	maxBody        = 4 << 20
)

// APIError ответ биржи со status != ok.
type APIError struct {
	Path string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("htx %s: err_code=%d err_msg=%s", e.Path, e.Code, e.Msg)
}

// Client REST биржи: подпись, лимитер, спаны, метрики.
type Client struct {
	base    *url.URL
	http    *http.Client
	signer  *signer.Signer
	limiter *rate.Limiter
	log     *zap.Logger
	now     func() time.Time
}

func NewClient(baseURL string, sg *signer.Signer, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("htx rest url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("htx rest url %q: scheme and host required", baseURL)
	}
	return &Client{
		base:    u,
		http:    &http.Client{Timeout: RequestTimeout},
		signer:  sg,
		limiter: rate.NewLimiter(rateLimit, rateBurst),
		log:     log,
		now:     time.Now,
	}, nil
}

type envelope struct {
	Status  string `json:"status"`
	ErrCode int    `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
	Ts      int64  `json:"ts"`
}

// do выполняет запрос; body == nil значит GET. signed добавляет подпись в query.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, signed bool, out any) (err error) {
	span, ctx := tracing.StartSpan(ctx, "htx_client", method+" "+path)
	defer func() { tracing.Finish(span, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := *c.base
	u.Path = c.base.Path + path
	switch {
	case signed:
		extra := make(map[string]string, len(query))
		for k := range query {
			extra[k] = query.Get(k)
		}
		u.RawQuery = c.signer.SignedQuery(method, u.Host, u.Path, extra, c.now())
	case len(query) > 0:
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		raw, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.VenueRequestLatency.WithLabelValues(path, "transport").Observe(time.Since(started).Seconds())
		return fmt.Errorf("do %s: %w", path, err)
	}
	defer resp.Body.Close()
	metrics.VenueRequestLatency.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Observe(time.Since(started).Seconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("http %d on %s: %s", resp.StatusCode, path, string(raw))
	}

	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if env.Status != "ok" {
		return &APIError{Path: path, Code: env.ErrCode, Msg: env.ErrMsg}
	}
	if out != nil {
		if err := sonic.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return nil
}
