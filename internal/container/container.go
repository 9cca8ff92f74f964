package container

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"perp-mm-go/config"
	"perp-mm-go/gateway"
	"perp-mm-go/indicator"
	"perp-mm-go/infrastructure/alert"
	"perp-mm-go/infrastructure/logger"
	"perp-mm-go/infrastructure/monitor"
	"perp-mm-go/internal/engine"
	"perp-mm-go/inventory"
	"perp-mm-go/market"
	"perp-mm-go/order"
	"perp-mm-go/strategy"
)

// Options 运行期选项（来自命令行，不在 YAML 中）
type Options struct {
	ConfigPath string // 非空时启动配置文件监听
	OnCycle    func()

	// AlertConsole 非空时告警同时输出到该 writer（交互模式）
	AlertConsole io.Writer
}

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	cfg  config.AppConfig
	opts Options

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager

	// 交易所网关
	client    *gateway.FTXClient
	exchange  order.Exchange
	depthFeed *gateway.DepthFeed

	// 核心服务
	positions  *inventory.Tracker
	controller *order.Controller
	loop       *engine.Loop
	bands      indicator.Provider

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 创建新的Container实例；cfg 须已校验。
func New(cfg config.AppConfig, opts Options) *Container {
	return &Container{
		cfg:       cfg,
		opts:      opts,
		lifecycle: NewLifecycleManager(),
	}
}

// Build 构建所有组件
func (c *Container) Build(ctx context.Context) error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	c.buildGateway()
	if err := c.buildCoreServices(ctx); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}
	if err := c.registerLifecycleComponents(); err != nil {
		return fmt.Errorf("register components failed: %w", err)
	}
	c.logger.Info("container built",
		zap.String("symbol", c.cfg.Symbol),
		zap.Bool("dryRun", c.cfg.DryRun),
		zap.String("depthSource", c.cfg.Gateway.DepthSource),
		zap.Strings("components", c.lifecycle.Names()))
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}
	c.monitor = monitor.New(monitor.DefaultConfig())
	throttle := time.Duration(c.cfg.Alerts.ThrottleSeconds) * time.Second
	c.alerts = alert.NewManager([]alert.Channel{alert.NewZapChannel(c.logger.Logger)}, throttle)
	if c.opts.AlertConsole != nil {
		c.alerts.AddChannel(alert.NewConsoleChannel(c.opts.AlertConsole))
	}
	return nil
}

func (c *Container) buildGateway() {
	gw := c.cfg.Gateway
	c.client = gateway.NewFTXClient(gw.BaseURL, gateway.Signer{
		APIKey:     gw.APIKey,
		Secret:     gw.APISecret,
		Subaccount: gw.Subaccount,
	})
	c.client.Recorder = c.monitor

	c.exchange = c.client
	if c.cfg.DryRun {
		c.exchange = order.NewDryRun(c.client, c.logger.Logger)
	}

	if gw.DepthSource == "ws" {
		c.depthFeed = gateway.NewDepthFeed(gw.WSEndpoint, c.cfg.Symbol, c.logger.Logger)
		c.depthFeed.SetConnStateHandler(c.monitor.SetWSConnected)
		c.depthFeed.SetFatalErrorHandler(func(err error) {
			_ = c.alerts.SendError("depth feed gave up", map[string]interface{}{
				"symbol": c.cfg.Symbol,
				"error":  err.Error(),
			})
		})
	}
}

func (c *Container) buildCoreServices(ctx context.Context) error {
	s := c.cfg.Strategy
	zl := c.logger.Logger

	mgr := order.NewManager(c.exchange)
	mgr.SetConstraints(map[string]order.SymbolConstraints{c.cfg.Symbol: c.constraints(ctx)})
	c.controller = order.NewController(order.ControllerConfig{
		Symbol:   c.cfg.Symbol,
		Refresh:  c.cfg.Refresh(),
		PostOnly: s.PostOnly,
		Cutoff:   s.Cutoff,
	}, c.exchange, mgr, zl, c.monitor)

	var bookSrc market.BookSource = c.client
	if c.depthFeed != nil {
		bookSrc = c.depthFeed
	}
	book := market.NewBookEstimator(bookSrc, c.cfg.Symbol, s.Depth, zl)
	book.OnRetry = func(int, error) { c.monitor.RecordBookRetry() }

	c.positions = &inventory.Tracker{}
	var err error
	c.loop, err = engine.New(engine.Config{
		Symbol:             c.cfg.Symbol,
		MaxTrade:           s.MaxTrade,
		PriceAggressor:     s.PriceAggressor,
		PositionRetryDelay: market.DefaultBookRetryDelay,
	}, engine.Components{
		Volatility: market.NewVolatilityEstimator(c.client, c.cfg.Symbol, s.VolInterval, zl),
		Book:       book,
		Positions:  &inventory.Sync{Source: c.client, Instrument: c.cfg.Symbol, Tracker: c.positions},
		Mapper: inventory.NewMapper(inventory.Thresholds{
			Stake:        s.StakePrice,
			Upper:        s.UpperThreshold,
			Lower:        s.LowerThreshold,
			PositionSize: s.PositionSize,
			Multiplier:   s.Multiplier,
		}),
		Model: strategy.QuoteModel{
			Gamma:         s.Gamma,
			PositionSize:  s.PositionSize,
			MinimumSpread: s.MinimumSpread,
		},
		Controller: c.controller,
		Logger:     c.logger.WithFields(map[string]interface{}{"component": "engine"}),
		Metrics:    c.monitor,
		Alerts:     c.alerts,
		OnCycle:    c.opts.OnCycle,
	})
	if err != nil {
		return err
	}

	c.bands = c.buildBands()
	return nil
}

// constraints 配置优先，否则从交易所拉取；失败时不做本地校验。
func (c *Container) constraints(ctx context.Context) order.SymbolConstraints {
	if c.cfg.Constraints != (order.SymbolConstraints{}) {
		return c.cfg.Constraints
	}
	sc, err := c.client.FetchConstraints(ctx, c.cfg.Symbol)
	if err != nil {
		c.logger.Warn("symbol constraints unavailable, local checks disabled",
			zap.String("symbol", c.cfg.Symbol), zap.Error(err))
		return order.SymbolConstraints{}
	}
	return sc
}

func (c *Container) buildBands() indicator.Provider {
	b := c.cfg.Bands
	p := indicator.Params{TimePeriod: b.TimePeriod, NbDevUp: b.NbDevUp, NbDevDn: b.NbDevDn}
	switch b.Source {
	case "finnhub":
		return indicator.NewFinnhubClient(b.Token, b.Symbol, b.Resolution, p)
	case "local":
		// Resolution 按分钟配置
		minutes, err := strconv.Atoi(b.Resolution)
		if err != nil || minutes <= 0 {
			minutes = 1
		}
		return indicator.NewLocalBands(c.client, c.cfg.Symbol, minutes*60, p)
	default:
		return nil
	}
}

func (c *Container) registerLifecycleComponents() error {
	if c.cfg.MetricsAddr != "" {
		c.lifecycle.Register(&httpServerComponent{
			name:    "metrics_server",
			handler: c.httpHandler(),
			addr:    c.cfg.MetricsAddr,
			logger:  c.logger,
		})
	}
	if c.depthFeed != nil {
		c.lifecycle.Register(funcComponent{name: "depth_feed", start: c.depthFeed.Start, stop: c.depthFeed.Stop})
	}
	if c.opts.ConfigPath != "" {
		w, err := config.NewWatcher(c.opts.ConfigPath, 5*time.Second, c.logger.Logger)
		if err != nil {
			return err
		}
		c.lifecycle.Register(funcComponent{name: "config_watcher", start: w.Start, stop: w.Stop})
	}
	return nil
}

// Start 启动后台组件（指标服务、深度 WS、配置监听）
func (c *Container) Start(ctx context.Context) error {
	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	c.logger.Info("container started")
	return nil
}

// LogBands 打印启动时的布林带；失败只记录。
func (c *Container) LogBands(ctx context.Context) {
	if c.bands == nil {
		return
	}
	b, err := c.bands.Bands(ctx)
	if err != nil {
		c.logger.Warn("bollinger bands unavailable", zap.String("source", c.cfg.Bands.Source), zap.Error(err))
		return
	}
	c.logger.Info("bollinger bands",
		zap.String("source", c.cfg.Bands.Source),
		zap.Float64("lower", b.Lower),
		zap.Float64("middle", b.Middle),
		zap.Float64("upper", b.Upper))
}

// Run 运行控制循环直到 ctx 取消或致命错误
func (c *Container) Run(ctx context.Context) error {
	return c.loop.Run(ctx)
}

// Cleanup 尽力撤销该合约全部挂单
func (c *Container) Cleanup(ctx context.Context) {
	n, err := c.controller.CancelOpen(ctx)
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "cancel_open", "symbol": c.cfg.Symbol})
	}
	c.logger.Info("open orders canceled", zap.String("symbol", c.cfg.Symbol), zap.Int("count", n))

	// 进程不平仓，留下的仓位需人工处理
	if pos := c.positions.Current(); pos.NetSize != 0 {
		c.logger.LogRisk("inventory_left_open", map[string]interface{}{
			"symbol":     c.cfg.Symbol,
			"netSize":    pos.NetSize,
			"entryPrice": pos.EntryPrice,
		})
	}
}

// Fatal 记录致命错误并发出 CRITICAL 告警
func (c *Container) Fatal(err error) {
	c.logger.LogError(err, map[string]interface{}{"symbol": c.cfg.Symbol, "fatal": true})
	_ = c.alerts.SendCritical("quoter stopped", map[string]interface{}{
		"symbol": c.cfg.Symbol,
		"error":  err.Error(),
	})
}

// Stop 逆序停止后台组件并关闭日志
func (c *Container) Stop(ctx context.Context) error {
	err := c.lifecycle.StopAll(ctx)
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	if cerr := c.logger.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// HealthCheck 汇总后台组件健康状态
func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// httpHandler 指标服务路由：/metrics 与 /healthz
func (c *Container) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.monitor.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := c.HealthCheck(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func (c *Container) Logger() *logger.Logger    { return c.logger }
func (c *Container) Monitor() *monitor.Monitor { return c.monitor }
func (c *Container) Loop() *engine.Loop        { return c.loop }
