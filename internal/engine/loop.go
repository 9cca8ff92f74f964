package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"perp-mm-go/infrastructure/alert"
	"perp-mm-go/infrastructure/logger"
	"perp-mm-go/infrastructure/monitor"
	"perp-mm-go/inventory"
	"perp-mm-go/market"
	"perp-mm-go/order"
	"perp-mm-go/strategy"
)

// ErrPositionsUnavailable 持仓接口失败；本周期跳过，不致命。
var ErrPositionsUnavailable = errors.New("positions unavailable")

// State 控制循环状态
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// VolatilitySource 返回新的 sigma，无新数据时回落到 prev。
type VolatilitySource interface {
	Estimate(ctx context.Context, prev float64) (float64, error)
}

// BookSignalSource 返回盘口信号（内部自带重试）。
type BookSignalSource interface {
	Estimate(ctx context.Context) (market.BookSignal, error)
}

// PositionSource 刷新当前合约仓位。
type PositionSource interface {
	Refresh(ctx context.Context) (inventory.Position, error)
}

// TargetMapper 计算目标库存。
type TargetMapper interface {
	Target(wmid, current float64) inventory.Target
}

// QuoteController 执行一次报价周期。
type QuoteController interface {
	RunCycle(ctx context.Context, in order.CycleInput) (order.CycleResult, error)
}

// CycleRecorder 周期指标；monitor.Monitor 实现该接口。
type CycleRecorder interface {
	UpdateCycle(v monitor.CycleValues)
	RecordCycle(outcome string, d time.Duration)
}

// Config 控制循环配置
type Config struct {
	Symbol             string
	MaxTrade           float64 // 单笔最大下单量
	PriceAggressor     float64
	PositionRetryDelay time.Duration // 持仓拉取失败后的等待
}

// Components 控制循环依赖组件
type Components struct {
	Volatility VolatilitySource
	Book       BookSignalSource
	Positions  PositionSource
	Mapper     TargetMapper
	Model      strategy.QuoteModel
	Controller QuoteController
	Logger     *logger.Logger
	Metrics    CycleRecorder  // 可选
	Alerts     *alert.Manager // 可选
	// OnCycle 每个完成的周期后调用（例如 systemd watchdog）
	OnCycle func()
}

// CycleReport 一个周期内算出的全部数值。
type CycleReport struct {
	Sigma     float64
	Signal    market.BookSignal
	Position  inventory.Position
	Target    inventory.Target
	TradeSize float64
	Quote     strategy.QuoteParameters
	Result    order.CycleResult
}

// Statistics 循环统计信息
type Statistics struct {
	StartTime   time.Time
	Cycles      uint64
	Fills       uint64
	Requotes    uint64
	Skipped     uint64
	LastCycleAt time.Time
}

// Loop 单线程控制循环：波动率 -> 盘口 -> 仓位 -> 目标 -> 模型 -> 报价。
type Loop struct {
	cfg  Config
	comp Components
	log  *zap.Logger

	// sigma 上一周期的波动率，作为下一周期的回落值
	sigma float64

	mu    sync.RWMutex
	state State
	stats Statistics

	// sleep 持仓失败后的等待，测试可替换
	sleep func(time.Duration)
}

// New 创建控制循环
func New(cfg Config, comp Components) (*Loop, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateComponents(comp); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}
	if cfg.PositionRetryDelay <= 0 {
		cfg.PositionRetryDelay = market.DefaultBookRetryDelay
	}
	return &Loop{
		cfg:   cfg,
		comp:  comp,
		log:   comp.Logger.Logger.With(zap.String("symbol", cfg.Symbol)),
		state: StateIdle,
		sleep: time.Sleep,
	}, nil
}

// Run 循环执行直到 ctx 取消或出现致命错误。ctx 只在周期之间检查，
// 进行中的周期总是完整执行。
func (l *Loop) Run(ctx context.Context) error {
	l.setState(StateRunning)
	l.mu.Lock()
	l.stats.StartTime = time.Now()
	l.mu.Unlock()
	defer l.setState(StateStopped)

	cycleCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			l.log.Info("control loop stopping", zap.Error(ctx.Err()))
			return nil
		}
		if _, err := l.RunOnce(cycleCtx); err != nil {
			if IsFatal(err) {
				return err
			}
			l.log.Warn("cycle skipped", zap.Error(err))
		}
		if l.comp.OnCycle != nil {
			l.comp.OnCycle()
		}
	}
}

// RunOnce 执行一个完整周期。
func (l *Loop) RunOnce(ctx context.Context) (CycleReport, error) {
	started := time.Now()
	var rep CycleReport

	// (a) 波动率
	raw, err := l.comp.Volatility.Estimate(ctx, l.sigma)
	if err != nil {
		return rep, fmt.Errorf("volatility: %w", err)
	}
	rep.Sigma = market.Round(raw, 2)
	l.sigma = rep.Sigma

	// (b) 盘口
	sig, err := l.comp.Book.Estimate(ctx)
	if err != nil {
		return rep, fmt.Errorf("book liquidity: %w", err)
	}
	sig.Midpoint = market.Round(sig.Midpoint, 2)
	sig.WeightedMidpoint = market.Round(sig.WeightedMidpoint, 2)
	rep.Signal = sig

	// (c) 仓位
	pos, err := l.comp.Positions.Refresh(ctx)
	if err != nil {
		l.skip()
		if l.comp.Alerts != nil {
			_ = l.comp.Alerts.SendWarning("positions unavailable", map[string]interface{}{"symbol": l.cfg.Symbol, "error": err.Error()})
		}
		l.sleep(l.cfg.PositionRetryDelay)
		return rep, fmt.Errorf("%w: %v", ErrPositionsUnavailable, err)
	}
	rep.Position = pos

	// (d)(e) 目标库存与下单量
	rep.Target = l.comp.Mapper.Target(sig.WeightedMidpoint, pos.NetSize)
	rep.TradeSize = strategy.TradeSize(l.cfg.MaxTrade, rep.Target.Distance)

	// (f) 报价模型
	rep.Quote, err = l.comp.Model.Compute(strategy.QuoteInputs{
		WeightedMid:    sig.WeightedMidpoint,
		Distance:       rep.Target.Distance,
		Sigma:          rep.Sigma,
		Kappa:          sig.Kappa,
		PriceAggressor: l.cfg.PriceAggressor,
	})
	if err != nil {
		return rep, fmt.Errorf("quote model: %w", err)
	}

	l.comp.Logger.LogCycle(logger.CycleFields{
		Cycle:            l.Stats().Cycles + 1,
		Sigma:            rep.Sigma,
		Kappa:            sig.Kappa,
		Midpoint:         sig.Midpoint,
		WeightedMidpoint: sig.WeightedMidpoint,
		Inventory:        pos.NetSize,
		RealizedPnl:      pos.RealizedPnl,
		UnrealizedPnl:    pos.UnrealizedPnl,
		EntryPrice:       pos.EntryPrice,
		Target:           rep.Target.Target,
		Distance:         rep.Target.Distance,
		TradeSize:        rep.TradeSize,
		Reservation:      rep.Quote.ReservationPrice,
		AggReservation:   rep.Quote.AggressiveReservationPrice,
		Spread:           rep.Quote.Spread,
	})

	// (g) 下单 / 等待 / 对账
	rep.Result, err = l.comp.Controller.RunCycle(ctx, order.CycleInput{
		TradeSize:                  rep.TradeSize,
		AggressiveReservationPrice: rep.Quote.AggressiveReservationPrice,
		Spread:                     rep.Quote.Spread,
		BestBid:                    sig.BestBid,
		BestAsk:                    sig.BestAsk,
		Distance:                   rep.Target.Distance,
	})
	outcome := rep.Result.Outcome.String()
	if err != nil && rep.Result.Outcome != order.OutcomeRunaway {
		outcome = "error"
	}
	l.record(rep, outcome, time.Since(started))
	if errors.Is(err, order.ErrRunawayOrders) {
		l.comp.Logger.LogRisk("runaway_orders", map[string]interface{}{
			"symbol":   l.cfg.Symbol,
			"open":     rep.Result.OpenObserved,
			"canceled": rep.Result.Canceled,
		})
	}
	if err != nil {
		return rep, fmt.Errorf("quote lifecycle: %w", err)
	}
	return rep, nil
}

func (l *Loop) record(rep CycleReport, outcome string, d time.Duration) {
	l.mu.Lock()
	l.stats.Cycles++
	l.stats.LastCycleAt = time.Now()
	switch outcome {
	case order.OutcomeFilled.String():
		l.stats.Fills++
	case order.OutcomeRequoted.String():
		l.stats.Requotes++
	}
	l.mu.Unlock()

	if l.comp.Metrics == nil {
		return
	}
	l.comp.Metrics.UpdateCycle(monitor.CycleValues{
		Sigma:          rep.Sigma,
		Kappa:          rep.Signal.Kappa,
		Mid:            rep.Signal.Midpoint,
		WeightedMid:    rep.Signal.WeightedMidpoint,
		Imbalance:      rep.Signal.Imbalance,
		Position:       rep.Position.NetSize,
		Target:         rep.Target.Target,
		Distance:       rep.Target.Distance,
		RealizedPnL:    rep.Position.RealizedPnl,
		UnrealizedPnL:  rep.Position.UnrealizedPnl,
		Reservation:    rep.Quote.ReservationPrice,
		AggReservation: rep.Quote.AggressiveReservationPrice,
		Spread:         rep.Quote.Spread,
		Bid:            rep.Result.Bid,
		Ask:            rep.Result.Ask,
	})
	l.comp.Metrics.RecordCycle(outcome, d)
}

func (l *Loop) skip() {
	l.mu.Lock()
	l.stats.Skipped++
	l.mu.Unlock()
}

// Sigma 返回当前携带的波动率
func (l *Loop) Sigma() float64 { return l.sigma }

// State 返回循环状态
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Stats 返回统计信息副本
func (l *Loop) Stats() Statistics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// IsFatal 判断错误是否应终止进程。
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrPositionsUnavailable):
		return false
	case errors.Is(err, market.ErrNoVolatilityBasis),
		errors.Is(err, order.ErrRunawayOrders),
		errors.Is(err, market.ErrIncompleteBook),
		errors.Is(err, market.ErrMarketDataUnavailable),
		errors.Is(err, strategy.ErrInvalidModelInput):
		return true
	default:
		return false
	}
}

func validateConfig(cfg Config) error {
	if cfg.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if cfg.MaxTrade <= 0 {
		return fmt.Errorf("maxTrade must be positive")
	}
	return nil
}

func validateComponents(c Components) error {
	switch {
	case c.Volatility == nil:
		return fmt.Errorf("volatility source is required")
	case c.Book == nil:
		return fmt.Errorf("book source is required")
	case c.Positions == nil:
		return fmt.Errorf("position source is required")
	case c.Mapper == nil:
		return fmt.Errorf("target mapper is required")
	case c.Controller == nil:
		return fmt.Errorf("quote controller is required")
	case c.Logger == nil:
		return fmt.Errorf("logger is required")
	}
	return nil
}
