package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"perp-mm-go/market"
)

const DefaultFTXWSEndpoint = "wss://ftx.com/ws/"

// wsMessage 对应 orderbook 频道推送。
type wsMessage struct {
	Channel string `json:"channel"`
	Market  string `json:"market"`
	Type    string `json:"type"` // subscribed / partial / update / error / pong
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Data    struct {
		Bids [][2]float64 `json:"bids"`
		Asks [][2]float64 `json:"asks"`
		Time float64      `json:"time"`
	} `json:"data"`
}

type wsRequest struct {
	Op      string `json:"op"`
	Channel string `json:"channel,omitempty"`
	Market  string `json:"market,omitempty"`
}

// DepthFeed 订阅 orderbook 频道并维护本地盘口，含自动重连。
// 实现 market.BookSource，控制循环按需读取快照。
type DepthFeed struct {
	Endpoint     string
	Symbol       string
	Dialer       *websocket.Dialer
	StaleAfter   time.Duration
	PingInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	book   *market.OrderBook
	logger *zap.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	synced       bool
	cancel       context.CancelFunc
	done         chan struct{}
	onConnState  func(bool)
	onFatalError func(error)
}

func NewDepthFeed(endpoint, symbol string, logger *zap.Logger) *DepthFeed {
	if endpoint == "" {
		endpoint = DefaultFTXWSEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepthFeed{
		Endpoint:     endpoint,
		Symbol:       symbol,
		Dialer:       websocket.DefaultDialer,
		StaleAfter:   30 * time.Second,
		PingInterval: 15 * time.Second,
		MaxRetries:   5,
		RetryBackoff: 3 * time.Second,
		book:         market.NewOrderBook(),
		logger:       logger.With(zap.String("component", "depth_feed"), zap.String("symbol", symbol)),
	}
}

// SetConnStateHandler 设置连接状态回调（例如上报 ws 连接指标）
func (f *DepthFeed) SetConnStateHandler(fn func(connected bool)) { f.onConnState = fn }

// SetFatalErrorHandler 设置重连耗尽后的回调
func (f *DepthFeed) SetFatalErrorHandler(fn func(error)) { f.onFatalError = fn }

// Book 返回本地盘口。
func (f *DepthFeed) Book() *market.OrderBook { return f.book }

// Start 启动后台连接 goroutine。连接只随 Stop 结束，不跟随 ctx 取消：
// 收到退出信号后当前周期仍需读取盘口。
func (f *DepthFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return fmt.Errorf("depth feed already started")
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(runCtx)
	return nil
}

// Stop 停止连接并等待后台 goroutine 退出。
func (f *DepthFeed) Stop(ctx context.Context) error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	if f.conn != nil {
		_ = f.conn.Close()
	}
	f.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchOrderBook 从本地盘口返回快照；未收到 partial 或数据过期时返回错误。
func (f *DepthFeed) FetchOrderBook(ctx context.Context, symbol string, depth int) (market.Snapshot, error) {
	if symbol != f.Symbol {
		return market.Snapshot{}, fmt.Errorf("depth feed serves %s, not %s", f.Symbol, symbol)
	}
	f.mu.Lock()
	synced := f.synced
	f.mu.Unlock()
	if !synced {
		return market.Snapshot{}, fmt.Errorf("depth feed not synced")
	}
	if age := time.Since(f.book.LastUpdate()); f.StaleAfter > 0 && age > f.StaleAfter {
		return market.Snapshot{}, fmt.Errorf("depth feed stale for %s", age.Round(time.Second))
	}
	return f.book.Snapshot(depth), nil
}

func (f *DepthFeed) run(ctx context.Context) {
	defer close(f.done)
	retries := 0
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := f.Dialer.DialContext(ctx, f.Endpoint, nil)
		if err != nil {
			if retries >= f.MaxRetries {
				fatalErr := fmt.Errorf("websocket reconnection failed after %d retries: %w", f.MaxRetries, err)
				f.logger.Error("depth feed giving up", zap.Error(fatalErr))
				if f.onFatalError != nil {
					f.onFatalError(fatalErr)
				}
				return
			}
			retries++
			backoff := time.Duration(retries) * f.RetryBackoff
			f.logger.Warn("ws dial failed",
				zap.Int("retry", retries),
				zap.Int("maxRetries", f.MaxRetries),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			if !sleepCtx(ctx, backoff) {
				return
			}
			continue
		}
		retries = 0

		if err := conn.WriteJSON(wsRequest{Op: "subscribe", Channel: "orderbook", Market: f.Symbol}); err != nil {
			f.logger.Warn("subscribe failed", zap.Error(err), zap.Duration("backoff", f.RetryBackoff))
			_ = conn.Close()
			if !sleepCtx(ctx, f.RetryBackoff) {
				return
			}
			continue
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		f.setConnected(true)
		f.logger.Info("depth feed connected")

		err = f.readLoop(ctx, conn)

		f.mu.Lock()
		f.conn = nil
		f.synced = false
		f.mu.Unlock()
		f.setConnected(false)
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("depth feed disconnected, reconnecting", zap.Error(err))
		if !sleepCtx(ctx, f.RetryBackoff) {
			return
		}
	}
}

func (f *DepthFeed) readLoop(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()
	deadline := 2 * f.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(deadline))

	stopPing := make(chan struct{})
	defer close(stopPing)
	var writeMu sync.Mutex
	go func() {
		t := time.NewTicker(f.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-t.C:
				writeMu.Lock()
				err := conn.WriteJSON(wsRequest{Op: "ping"})
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		if err := f.handle(raw); err != nil {
			return err
		}
	}
}

// handle 应用一条推送；返回 error 表示需要重连重新同步。
func (f *DepthFeed) handle(raw []byte) error {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		f.logger.Warn("parse ws msg failed", zap.Error(err))
		return nil
	}
	switch msg.Type {
	case "partial":
		f.book.Reset(toLevels(msg.Data.Bids), toLevels(msg.Data.Asks))
		f.mu.Lock()
		f.synced = true
		f.mu.Unlock()
	case "update":
		f.mu.Lock()
		synced := f.synced
		f.mu.Unlock()
		if !synced {
			return nil
		}
		f.book.ApplyDelta(toLevels(msg.Data.Bids), toLevels(msg.Data.Asks))
	case "error":
		return fmt.Errorf("ws error %d: %s", msg.Code, msg.Msg)
	}
	return nil
}

func (f *DepthFeed) setConnected(v bool) {
	if f.onConnState != nil {
		f.onConnState(v)
	}
}

func toLevels(raw [][2]float64) []market.Level {
	out := make([]market.Level, 0, len(raw))
	for _, l := range raw {
		out = append(out, market.Level{Price: l[0], Size: l[1]})
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
