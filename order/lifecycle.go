package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"perp-mm-go/market"
)

// MaxOpenOrders 对账时允许的挂单上限，超过即视为撤单失控。
const MaxOpenOrders = 4

// Outcome 一个报价周期的对账结论。
type Outcome int

const (
	OutcomeFilled Outcome = iota
	OutcomeRequoted
	OutcomeRunaway
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFilled:
		return "filled"
	case OutcomeRequoted:
		return "requoted"
	case OutcomeRunaway:
		return "runaway"
	default:
		return "unknown"
	}
}

// Recorder 订单侧指标上报；monitor.Monitor 实现该接口。
type Recorder interface {
	RecordOrderPlaced(side string)
	RecordOrderCanceled()
	RecordSubmissionFailure(op string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOrderPlaced(string)       {}
func (nopRecorder) RecordOrderCanceled()           {}
func (nopRecorder) RecordSubmissionFailure(string) {}

// ControllerConfig 报价控制器的静态参数。
type ControllerConfig struct {
	Symbol   string
	Refresh  time.Duration
	PostOnly bool
	Cutoff   float64 // 库存距离阈值（绝对值）
}

// CycleInput 单周期输入，由控制循环计算得出。
type CycleInput struct {
	TradeSize                  float64
	AggressiveReservationPrice float64
	Spread                     float64
	BestBid                    float64
	BestAsk                    float64
	Distance                   float64
}

// CycleResult 单周期的执行记录。
type CycleResult struct {
	Bid            float64
	Ask            float64
	Intents        []Intent
	Placed         []Order
	OpenObserved   int
	Canceled       int
	CancelFailures int
	Outcome        Outcome
	Errors         []error
}

// Controller 把模型输出变成挂单：决定价格、提交、等待 refresh、对账撤单。
type Controller struct {
	cfg     ControllerConfig
	exch    Exchange
	mgr     *Manager
	logger  *zap.Logger
	metrics Recorder
	// Sleep 阻塞等待 refresh，测试可替换。
	Sleep func(time.Duration)
}

// NewController creates a controller. A nil recorder disables order metrics.
func NewController(cfg ControllerConfig, exch Exchange, mgr *Manager, logger *zap.Logger, rec Recorder) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	if mgr == nil {
		mgr = NewManager(exch)
	}
	return &Controller{
		cfg:     cfg,
		exch:    exch,
		mgr:     mgr,
		logger:  logger,
		metrics: rec,
		Sleep:   time.Sleep,
	}
}

// Manager 返回内部订单管理器。
func (c *Controller) Manager() *Manager { return c.mgr }

// Decide 计算买卖价并按库存距离选择方向。
func (c *Controller) Decide(in CycleInput) (bid, ask float64, intents []Intent) {
	bid = market.Round(in.AggressiveReservationPrice-in.Spread, 2)
	ask = market.Round(in.AggressiveReservationPrice+in.Spread, 2)
	if c.cfg.PostOnly {
		// 只挂单：买价不高于买一，卖价不低于卖一
		bid = math.Min(bid, in.BestBid)
		ask = math.Max(ask, in.BestAsk)
	}

	buy := Intent{Side: SideBuy, Price: bid, Size: in.TradeSize, PostOnly: c.cfg.PostOnly}
	sell := Intent{Side: SideSell, Price: ask, Size: in.TradeSize, PostOnly: c.cfg.PostOnly}
	switch {
	case in.Distance < -c.cfg.Cutoff:
		intents = []Intent{buy}
	case in.Distance > c.cfg.Cutoff:
		intents = []Intent{sell}
	default:
		intents = []Intent{buy, sell}
	}
	return bid, ask, intents
}

// RunCycle 执行 Decide -> Submit -> Wait -> Reconcile。
// 只有挂单失控（ErrRunawayOrders）或查询挂单失败才返回 error。
func (c *Controller) RunCycle(ctx context.Context, in CycleInput) (CycleResult, error) {
	var res CycleResult
	res.Bid, res.Ask, res.Intents = c.Decide(in)

	for _, intent := range res.Intents {
		placed, err := c.submit(ctx, intent)
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Placed = append(res.Placed, *placed)
	}

	// refresh 等待不可中断，保证本周期完整结束
	if c.cfg.Refresh > 0 && c.Sleep != nil {
		c.Sleep(c.cfg.Refresh)
	}

	open, err := c.exch.OpenOrders(ctx, c.cfg.Symbol)
	if err != nil {
		return res, fmt.Errorf("list open orders: %w", err)
	}
	res.OpenObserved = len(open)
	stats := c.mgr.Reconcile(open)
	if stats.Unknown > 0 {
		c.logger.Info("open orders not placed by this process",
			zap.String("symbol", c.cfg.Symbol), zap.Int("count", stats.Unknown))
	}

	switch {
	case len(open) == 0:
		res.Outcome = OutcomeFilled
		c.logger.Info("quotes filled",
			zap.String("symbol", c.cfg.Symbol),
			zap.Int("orders", len(res.Placed)))
	case len(open) <= MaxOpenOrders:
		res.Outcome = OutcomeRequoted
		c.cancelAll(ctx, open, &res)
	default:
		res.Outcome = OutcomeRunaway
		c.cancelAll(ctx, open, &res)
		c.logger.Error("too many open orders, cancellations have been failing",
			zap.String("symbol", c.cfg.Symbol),
			zap.Int("open", len(open)),
			zap.Int("canceled", res.Canceled))
		c.mgr.Prune()
		return res, fmt.Errorf("%w: %d open on %s", ErrRunawayOrders, len(open), c.cfg.Symbol)
	}
	c.mgr.Prune()
	return res, nil
}

// CancelOpen 撤销该合约全部挂单，用于退出前清理。返回撤单成功数。
func (c *Controller) CancelOpen(ctx context.Context) (int, error) {
	open, err := c.exch.OpenOrders(ctx, c.cfg.Symbol)
	if err != nil {
		return 0, fmt.Errorf("list open orders: %w", err)
	}
	var res CycleResult
	c.cancelAll(ctx, open, &res)
	return res.Canceled, errors.Join(res.Errors...)
}

func (c *Controller) submit(ctx context.Context, intent Intent) (*Order, error) {
	o := Order{
		Symbol:   c.cfg.Symbol,
		Side:     intent.Side,
		Price:    intent.Price,
		Quantity: intent.Size,
		PostOnly: intent.PostOnly,
	}
	placed, err := c.mgr.Submit(ctx, o)
	if err != nil {
		serr := &SubmissionError{Op: "place", Side: intent.Side, Err: err}
		c.metrics.RecordSubmissionFailure("place")
		c.logger.Warn("order placement failed",
			zap.String("symbol", c.cfg.Symbol),
			zap.String("side", string(intent.Side)),
			zap.Float64("price", intent.Price),
			zap.Float64("size", intent.Size),
			zap.Error(err))
		return nil, serr
	}
	c.metrics.RecordOrderPlaced(string(intent.Side))
	c.logger.Info("order placed",
		zap.String("symbol", c.cfg.Symbol),
		zap.String("side", string(placed.Side)),
		zap.String("id", placed.ID),
		zap.String("clientId", placed.ClientID),
		zap.Float64("price", placed.Price),
		zap.Float64("size", placed.Quantity))
	return placed, nil
}

func (c *Controller) cancelAll(ctx context.Context, open []Order, res *CycleResult) {
	for _, o := range open {
		if err := c.mgr.Cancel(ctx, o.ID); err != nil {
			res.CancelFailures++
			res.Errors = append(res.Errors, &SubmissionError{Op: "cancel", Side: o.Side, OrderID: o.ID, Err: err})
			c.metrics.RecordSubmissionFailure("cancel")
			c.logger.Warn("cancel failed",
				zap.String("id", o.ID),
				zap.String("side", string(o.Side)),
				zap.Error(err))
			continue
		}
		res.Canceled++
		c.metrics.RecordOrderCanceled()
		c.logger.Info("order side cancelled",
			zap.String("id", o.ID),
			zap.String("side", string(o.Side)))
	}
}
