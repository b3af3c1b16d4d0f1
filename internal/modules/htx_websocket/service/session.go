package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"market_monitor/internal/metrics"
)

const (
	DefaultPingInterval = 20 * time.Second
	DefaultBackoff      = 5 * time.Second
	DefaultReadTimeout  = 60 * time.Second
	writeTimeout        = 10 * time.Second
)

// Options тайминги сессии; нули заменяются дефолтами.
type Options struct {
	PingInterval time.Duration
	Backoff      time.Duration
	ReadTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	return o
}

// Conn сокет с сериализованной записью: пишут горутина чтения, пинг и UpdateSubscriptions.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *Conn) WriteJSON(v any) error {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, raw)
}

func (c *Conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// Handler протокол поверх сессии.
type Handler interface {
	Name() string
	// OnOpen сразу после dial: логин или подписки.
	OnOpen(ctx context.Context, c *Conn) error
	// OnMessage уже распакованный JSON; ошибка перезапускает сессию.
	OnMessage(ctx context.Context, c *Conn, msg []byte) error
	// OnClose сокет закрыт, до backoff.
	OnClose()
}

// Establisher обработчик, которому после dial нужен обмен (логин, подписка).
// Счётчик неудач сбрасывается только когда Established вернул true.
type Establisher interface {
	Established() bool
}

// Session connecting -> open -> draining -> backoff -> connecting ..., closed при отмене ctx.
type Session struct {
	url      string
	dialer   *websocket.Dialer
	header   http.Header
	h        Handler
	opts     Options
	log      *zap.Logger
	observer Observer

	state    atomic.Int32
	failures int
}

func NewSession(url string, h Handler, opts Options, log *zap.Logger, observer Observer) *Session {
	s := &Session{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second, EnableCompression: false},
		h:        h,
		opts:     opts.withDefaults(),
		log:      log,
		observer: observer,
	}
	s.state.Store(int32(StateClosed))
	return s
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) set(st State, err error) {
	s.state.Store(int32(st))
	if st == StateOpen {
		metrics.SessionOpen.WithLabelValues(s.h.Name()).Set(1)
	} else {
		metrics.SessionOpen.WithLabelValues(s.h.Name()).Set(0)
	}
	if s.observer != nil {
		s.observer(StateEvent{Session: s.h.Name(), State: st, Failures: s.failures, Err: err})
	}
}

// Run держит соединение до отмены ctx. Пауза между попытками фиксированная.
func (s *Session) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			s.set(StateClosed, nil)
			return
		}
		s.set(StateConnecting, nil)
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			s.set(StateClosed, nil)
			return
		}

		s.failures++
		metrics.Reconnects.WithLabelValues(s.h.Name()).Inc()
		s.log.Warn("ws session dropped, reconnecting",
			zap.String("url", s.url),
			zap.Int("failures", s.failures),
			zap.Duration("backoff", s.opts.Backoff),
			zap.Error(err),
		)
		s.set(StateBackoff, err)

		t := time.NewTimer(s.opts.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			s.set(StateClosed, nil)
			return
		case <-t.C:
		}
	}
}

func (s *Session) runOnce(ctx context.Context) error {
	ws, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return err
	}
	conn := &Conn{ws: ws}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		// отмена ctx рвёт блокирующий ReadMessage
		<-connCtx.Done()
		_ = ws.Close()
	}()
	defer func() {
		s.set(StateDraining, nil)
		s.h.OnClose()
	}()

	extend := func() { _ = ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)) }
	extend()
	ws.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	if err := s.h.OnOpen(connCtx, conn); err != nil {
		return err
	}
	est, needsHandshake := s.h.(Establisher)
	healthy := false
	markHealthy := func() {
		healthy = true
		s.failures = 0
		s.set(StateOpen, nil)
		s.log.Info("ws session established", zap.String("url", s.url))
	}
	if needsHandshake {
		s.set(StateOpen, nil)
		s.log.Info("ws session open, waiting for handshake", zap.String("url", s.url))
	} else {
		markHealthy()
	}

	go s.pinger(connCtx, conn)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		extend()

		msg, err := Inflate(raw)
		if err != nil {
			s.log.Error("ws frame decode failed", zap.String("session", s.h.Name()), zap.Error(err))
			return err
		}
		handled, err := heartbeat(conn, msg)
		if err != nil {
			return err
		}
		if handled {
			continue
		}
		if err := s.h.OnMessage(connCtx, conn, msg); err != nil {
			s.log.Error("ws protocol error", zap.String("session", s.h.Name()), zap.Error(err))
			return err
		}
		if !healthy && est.Established() {
			markHealthy()
		}
	}
}

// pinger WS-уровневый ping раз в PingInterval.
func (s *Session) pinger(ctx context.Context, c *Conn) {
	t := time.NewTicker(s.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.ping(); err != nil {
				s.log.Warn("ws ping failed", zap.String("session", s.h.Name()), zap.Error(err))
				return
			}
		}
	}
}

type heartbeatFrame struct {
	Ping json.RawMessage `json:"ping"`
	Op   string          `json:"op"`
	Ts   json.RawMessage `json:"ts"`
}

// heartbeat {ping:n} -> {pong:n}; {op:ping,ts} -> {op:pong,ts}.
func heartbeat(c *Conn, msg []byte) (bool, error) {
	var hb heartbeatFrame
	if err := sonic.Unmarshal(msg, &hb); err != nil {
		return false, nil
	}
	switch {
	case len(hb.Ping) > 0:
		return true, c.WriteJSON(map[string]json.RawMessage{"pong": hb.Ping})
	case hb.Op == "ping":
		return true, c.WriteJSON(map[string]any{"op": "pong", "ts": hb.Ts})
	}
	return false, nil
}
