package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 订单指标
	ordersPlaced   *prometheus.CounterVec
	ordersCanceled prometheus.Counter
	orderFailures  *prometheus.CounterVec

	// 周期指标
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	bookRetries   prometheus.Counter

	// 模型指标
	sigma       prometheus.Gauge
	kappa       prometheus.Gauge
	midPrice    prometheus.Gauge
	weightedMid prometheus.Gauge
	imbalance   prometheus.Gauge
	reservation prometheus.Gauge
	aggressive  prometheus.Gauge
	spread      prometheus.Gauge
	bidPrice    prometheus.Gauge
	askPrice    prometheus.Gauge

	// 仓位指标
	position      prometheus.Gauge
	target        prometheus.Gauge
	distance      prometheus.Gauge
	unrealizedPnL prometheus.Gauge
	realizedPnL   prometheus.Gauge

	// 系统指标
	wsConnected   prometheus.Gauge
	wsDisconnects prometheus.Counter
	restRequests  *prometheus.CounterVec
	restErrors    *prometheus.CounterVec
	restLatency   *prometheus.HistogramVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "mm",
		Subsystem: "quoter",
	}
}

// New 创建新的Monitor实例（独立 registry，便于测试）
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		}, labels)
	}

	return &Monitor{
		registry: reg,

		ordersPlaced:   counterVec("orders_placed_total", "订单下单总数", "side"),
		ordersCanceled: counter("orders_canceled_total", "订单撤单总数"),
		orderFailures:  counterVec("order_failures_total", "下单/撤单失败次数", "op"),

		cycles: counterVec("cycles_total", "报价周期数（按对账结果）", "outcome"),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycle_duration_seconds",
			Help:      "单个报价周期耗时（含 refresh 等待）",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}),
		bookRetries: counter("book_retries_total", "盘口不完整重试次数"),

		sigma:       gauge("sigma", "短周期波动率"),
		kappa:       gauge("kappa", "盘口名义深度"),
		midPrice:    gauge("mid_price", "中间价"),
		weightedMid: gauge("weighted_mid_price", "加权中间价"),
		imbalance:   gauge("book_imbalance", "买盘量占比"),
		reservation: gauge("reservation_price", "保留价"),
		aggressive:  gauge("aggressive_reservation_price", "激进保留价"),
		spread:      gauge("spread", "最优价差"),
		bidPrice:    gauge("bid_price", "当前报价买价"),
		askPrice:    gauge("ask_price", "当前报价卖价"),

		position:      gauge("position", "当前净仓位"),
		target:        gauge("inventory_target", "目标库存"),
		distance:      gauge("inventory_distance", "当前库存与目标之差"),
		unrealizedPnL: gauge("unrealized_pnl", "未实现盈亏"),
		realizedPnL:   gauge("realized_pnl", "已实现盈亏"),

		wsConnected:   gauge("ws_connected", "深度 WS 是否连接"),
		wsDisconnects: counter("ws_disconnects_total", "深度 WS 断开次数"),
		restRequests:  counterVec("rest_requests_total", "REST 请求数", "endpoint"),
		restErrors:    counterVec("rest_errors_total", "REST 错误数", "endpoint"),
		restLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rest_latency_seconds",
			Help:      "REST 请求延迟分布（秒）",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
	}
}

// RecordOrderPlaced 实现 order.Recorder
func (m *Monitor) RecordOrderPlaced(side string) {
	m.ordersPlaced.WithLabelValues(side).Inc()
}

func (m *Monitor) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

func (m *Monitor) RecordSubmissionFailure(op string) {
	m.orderFailures.WithLabelValues(op).Inc()
}

// RecordRequest 实现 gateway.RequestRecorder
func (m *Monitor) RecordRequest(endpoint string, latency time.Duration, err error) {
	m.restRequests.WithLabelValues(endpoint).Inc()
	m.restLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
	if err != nil {
		m.restErrors.WithLabelValues(endpoint).Inc()
	}
}

func (m *Monitor) RecordBookRetry() {
	m.bookRetries.Inc()
}

// RecordCycle 记录一个周期的结论与耗时
func (m *Monitor) RecordCycle(outcome string, d time.Duration) {
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// CycleValues 周期内计算出的数值快照
type CycleValues struct {
	Sigma, Kappa                float64
	Mid, WeightedMid, Imbalance float64
	Position, Target, Distance  float64
	RealizedPnL, UnrealizedPnL  float64
	Reservation, AggReservation float64
	Spread, Bid, Ask            float64
}

// UpdateCycle 刷新模型与仓位 gauge
func (m *Monitor) UpdateCycle(v CycleValues) {
	m.sigma.Set(v.Sigma)
	m.kappa.Set(v.Kappa)
	m.midPrice.Set(v.Mid)
	m.weightedMid.Set(v.WeightedMid)
	m.imbalance.Set(v.Imbalance)
	m.position.Set(v.Position)
	m.target.Set(v.Target)
	m.distance.Set(v.Distance)
	m.realizedPnL.Set(v.RealizedPnL)
	m.unrealizedPnL.Set(v.UnrealizedPnL)
	m.reservation.Set(v.Reservation)
	m.aggressive.Set(v.AggReservation)
	m.spread.Set(v.Spread)
	m.bidPrice.Set(v.Bid)
	m.askPrice.Set(v.Ask)
}

// SetWSConnected 深度 WS 连接状态
func (m *Monitor) SetWSConnected(connected bool) {
	if connected {
		m.wsConnected.Set(1)
		return
	}
	m.wsConnected.Set(0)
	m.wsDisconnects.Inc()
}

// Handler 返回 /metrics 处理器
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层 registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
