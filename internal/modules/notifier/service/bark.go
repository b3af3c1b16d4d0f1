package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"

	"market_monitor/internal/models"
)

type barkRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Group    string `json:"group,omitempty"`
	Sound    string `json:"sound,omitempty"`
	Level    string `json:"level,omitempty"`
	Badge    *int   `json:"badge,omitempty"`
	URL      string `json:"url,omitempty"`
	AutoCopy string `json:"autoCopy,omitempty"`
}

type barkResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Bark push на мобильный: POST <server>/<key>, успех при code == 200.
type Bark struct {
	endpoint string
	client   *http.Client
}

func NewBark(server, key string) (*Bark, error) {
	if server == "" || key == "" {
		return nil, fmt.Errorf("bark: server and key are required")
	}
	endpoint, err := url.JoinPath(server, key)
	if err != nil {
		return nil, fmt.Errorf("bark: endpoint: %w", err)
	}
	return &Bark{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DeliverTimeout},
	}, nil
}

func (b *Bark) Name() string { return "bark" }

func (b *Bark) Deliver(ctx context.Context, title, body string, meta models.NotifyMeta) error {
	req := barkRequest{
		Title:    title,
		Body:     body,
		Group:    meta.Group,
		Level:    string(meta.Level),
		Badge:    meta.Badge,
		URL:      meta.URL,
		AutoCopy: meta.AutoCopy,
	}
	switch {
	case meta.Silent():
		// у bark нет "без звука", пассивный уровень не будит экран и молчит
		req.Level = string(models.LevelPassive)
	case meta.Sound != nil:
		req.Sound = *meta.Sound
	}

	raw, err := sonic.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("bark: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("bark: read body: %w", err)
	}
	var out barkResponse
	if err := sonic.Unmarshal(payload, &out); err != nil {
		return fmt.Errorf("bark: http %d: %w", resp.StatusCode, errUnexpectedResponse)
	}
	if out.Code != http.StatusOK {
		return fmt.Errorf("bark: code %d %s: %w", out.Code, out.Message, errUnexpectedResponse)
	}
	return nil
}
