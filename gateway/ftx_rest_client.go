package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"perp-mm-go/inventory"
	"perp-mm-go/market"
	"perp-mm-go/order"
)

const DefaultFTXBaseURL = "https://ftx.com/api"

// RequestRecorder 记录 REST 请求耗时与错误；monitor.Monitor 实现该接口。
type RequestRecorder interface {
	RecordRequest(endpoint string, latency time.Duration, err error)
}

// FTXClient 签名 REST 客户端，实现 K 线、盘口、持仓与订单接口。
// HTTPClient 可注入 httptest。
type FTXClient struct {
	BaseURL    string
	Signer     Signer
	HTTPClient *http.Client
	Limiter    RateLimiter
	Recorder   RequestRecorder
}

// NewFTXClient 构建带默认超时与限流的客户端。
func NewFTXClient(baseURL string, signer Signer) *FTXClient {
	if baseURL == "" {
		baseURL = DefaultFTXBaseURL
	}
	return &FTXClient{
		BaseURL:    baseURL,
		Signer:     signer,
		HTTPClient: NewDefaultHTTPClient(),
		Limiter:    NewTokenBucketLimiter(10, 10),
	}
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// FetchCandles 调用 GET markets/{m}/candles。
func (c *FTXClient) FetchCandles(ctx context.Context, symbol string, resolution, limit int, start, end time.Time) ([]market.Kline, error) {
	q := url.Values{}
	q.Set("resolution", strconv.Itoa(resolution))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("start_time", strconv.FormatInt(start.Unix(), 10))
	q.Set("end_time", strconv.FormatInt(end.Unix(), 10))

	var raw []ftxCandle
	if err := c.do(ctx, "candles", http.MethodGet, "markets/"+symbol+"/candles?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]market.Kline, 0, len(raw))
	for _, k := range raw {
		out = append(out, market.Kline{
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: k.Volume,
			Ts:     k.StartTime,
		})
	}
	return out, nil
}

// FetchOrderBook 调用 GET markets/{m}/orderbook?depth=N。档位不足时返回不完整快照，由调用方判断。
func (c *FTXClient) FetchOrderBook(ctx context.Context, symbol string, depth int) (market.Snapshot, error) {
	var raw ftxOrderBook
	path := "markets/" + symbol + "/orderbook?depth=" + strconv.Itoa(depth)
	if err := c.do(ctx, "orderbook", http.MethodGet, path, nil, &raw); err != nil {
		return market.Snapshot{}, err
	}
	snap := market.Snapshot{Depth: depth}
	for _, l := range raw.Bids {
		snap.Bids = append(snap.Bids, market.Level{Price: l[0], Size: l[1]})
	}
	for _, l := range raw.Asks {
		snap.Asks = append(snap.Asks, market.Level{Price: l[0], Size: l[1]})
	}
	return snap, nil
}

// FetchPositions 调用 GET positions?showAvgPrice=true。
func (c *FTXClient) FetchPositions(ctx context.Context) ([]inventory.Position, error) {
	var raw []ftxPosition
	if err := c.do(ctx, "positions", http.MethodGet, "positions?showAvgPrice=true", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]inventory.Position, 0, len(raw))
	for _, p := range raw {
		pos := inventory.Position{
			Instrument:    p.Future,
			RealizedPnl:   p.RealizedPnl,
			UnrealizedPnl: p.UnrealizedPnl,
			NetSize:       p.NetSize,
		}
		if p.EntryPrice != nil {
			pos.EntryPrice = *p.EntryPrice
		}
		out = append(out, pos)
	}
	return out, nil
}

// FetchConstraints 调用 GET markets/{m}，返回价格/数量步长。
func (c *FTXClient) FetchConstraints(ctx context.Context, symbol string) (order.SymbolConstraints, error) {
	var raw ftxMarket
	if err := c.do(ctx, "market", http.MethodGet, "markets/"+symbol, nil, &raw); err != nil {
		return order.SymbolConstraints{}, err
	}
	return order.SymbolConstraints{
		PriceIncrement: raw.PriceIncrement,
		SizeIncrement:  raw.SizeIncrement,
		MinSize:        raw.MinProvideSize,
	}, nil
}

// PlaceOrder 调用 POST orders 下限价单。
func (c *FTXClient) PlaceOrder(ctx context.Context, o order.Order) (order.Order, error) {
	req := ftxOrderRequest{
		Market:   o.Symbol,
		Side:     string(o.Side),
		Price:    o.Price,
		Type:     "limit",
		Size:     o.Quantity,
		PostOnly: o.PostOnly,
		ClientID: o.ClientID,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return order.Order{}, err
	}
	var raw ftxOrder
	if err := c.do(ctx, "place", http.MethodPost, "orders", body, &raw); err != nil {
		return order.Order{}, err
	}
	ack := toOrder(raw)
	if ack.ClientID == "" {
		ack.ClientID = o.ClientID
	}
	return ack, nil
}

// OpenOrders 调用 GET orders?market=m。
func (c *FTXClient) OpenOrders(ctx context.Context, symbol string) ([]order.Order, error) {
	var raw []ftxOrder
	if err := c.do(ctx, "open_orders", http.MethodGet, "orders?market="+url.QueryEscape(symbol), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]order.Order, 0, len(raw))
	for _, r := range raw {
		out = append(out, toOrder(r))
	}
	return out, nil
}

// CancelOrder 调用 DELETE orders/{id}。
func (c *FTXClient) CancelOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, "cancel", http.MethodDelete, "orders/"+orderID, nil, nil)
}

func toOrder(r ftxOrder) order.Order {
	o := order.Order{
		ID:       strconv.FormatInt(r.ID, 10),
		Symbol:   r.Market,
		Side:     order.Side(r.Side),
		Price:    r.Price,
		Quantity: r.Size,
		PostOnly: r.PostOnly,
		Status:   order.StatusAck,
	}
	if r.ClientID != nil {
		o.ClientID = *r.ClientID
	}
	switch r.Status {
	case "closed":
		o.Status = order.StatusFilled
	case "new", "open":
		o.Status = order.StatusAck
	}
	return o
}

// do 发送签名请求并解析 {success, result, error} 包装。out 为 nil 时忽略 result。
func (c *FTXClient) do(ctx context.Context, endpoint, method, path string, body []byte, out interface{}) (err error) {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	start := time.Now()
	if c.Recorder != nil {
		defer func() { c.Recorder.RecordRequest(endpoint, time.Since(start), err) }()
	}

	full := strings.TrimRight(c.BaseURL, "/") + "/" + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, full, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Signer.Apply(req, method, "/api/"+path, body)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if derr := json.NewDecoder(resp.Body).Decode(&env); derr != nil {
		if resp.StatusCode >= 300 {
			return fmt.Errorf("%s %s status %d", method, path, resp.StatusCode)
		}
		return fmt.Errorf("%s %s decode: %w", method, path, derr)
	}
	if resp.StatusCode >= 300 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s %s status %d: %s", method, path, resp.StatusCode, msg)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%s %s result: %w", method, path, err)
	}
	return nil
}
