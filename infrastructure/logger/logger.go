package logger

import (
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 封装zap日志器，提供结构化日志功能
type Logger struct {
	*zap.Logger
	config  Config
	closers []io.Closer
}

// Config 日志配置
type Config struct {
	Level      string   `yaml:"level"`       // debug, info, warn, error
	Outputs    []string `yaml:"outputs"`     // stdout, file
	OutputFile string   `yaml:"output_file"` // 日志文件路径
	ErrorFile  string   `yaml:"error_file"`  // 错误日志单独文件
	Format     string   `yaml:"format"`      // json 或 console
	MaxSize    int      `yaml:"max_size"`    // 单个日志文件最大MB
	MaxBackups int      `yaml:"max_backups"` // 保留的旧日志文件数
	MaxAge     int      `yaml:"max_age"`     // 保留天数
	Compress   bool     `yaml:"compress"`    // 轮转后 gzip
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Outputs:    []string{"stdout"},
		Format:     "json",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
	}
}

// New 创建新的Logger实例；文件输出由 lumberjack 负责轮转。
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleConfig := encoderConfig
	if cfg.Format == "console" {
		consoleConfig = zap.NewDevelopmentEncoderConfig()
		consoleConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l := &Logger{config: cfg}
	cores := []zapcore.Core{}

	if contains(cfg.Outputs, "stdout") {
		var encoder zapcore.Encoder
		if cfg.Format == "console" {
			encoder = zapcore.NewConsoleEncoder(consoleConfig)
		} else {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	// 文件始终写 JSON，便于采集
	if contains(cfg.Outputs, "file") && cfg.OutputFile != "" {
		w := l.rotating(cfg.OutputFile)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), level))
	}
	if cfg.ErrorFile != "" {
		w := l.rotating(cfg.ErrorFile)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), zapcore.ErrorLevel))
	}

	l.Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return l, nil
}

func (l *Logger) rotating(path string) *lumberjack.Logger {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    l.config.MaxSize,
		MaxBackups: l.config.MaxBackups,
		MaxAge:     l.config.MaxAge,
		Compress:   l.config.Compress,
	}
	l.closers = append(l.closers, w)
	return w
}

// WithFields 添加字段返回新的logger
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(toFields(fields)...),
		config: l.config,
	}
}

// CycleFields 单个报价周期的关键数值。
type CycleFields struct {
	Cycle            uint64
	Sigma            float64
	Kappa            float64
	Midpoint         float64
	WeightedMidpoint float64
	Inventory        float64
	RealizedPnl      float64
	UnrealizedPnl    float64
	EntryPrice       float64
	Target           float64
	Distance         float64
	TradeSize        float64
	Reservation      float64
	AggReservation   float64
	Spread           float64
}

// LogCycle 记录一个报价周期的计算结果
func (l *Logger) LogCycle(c CycleFields) {
	l.Info("cycle",
		zap.Uint64("cycle", c.Cycle),
		zap.Float64("sigma", c.Sigma),
		zap.Float64("kappa", c.Kappa),
		zap.Float64("midpoint", c.Midpoint),
		zap.Float64("weightedMidpoint", c.WeightedMidpoint),
		zap.Float64("inventory", c.Inventory),
		zap.Float64("realizedPnl", c.RealizedPnl),
		zap.Float64("unrealizedPnl", c.UnrealizedPnl),
		zap.Float64("entryPrice", c.EntryPrice),
		zap.Float64("target", c.Target),
		zap.Float64("distance", c.Distance),
		zap.Float64("tradeSize", c.TradeSize),
		zap.Float64("reservationPrice", c.Reservation),
		zap.Float64("aggressiveReservationPrice", c.AggReservation),
		zap.Float64("spread", c.Spread),
	)
}

// LogError 记录错误并附带上下文
func (l *Logger) LogError(err error, context map[string]interface{}) {
	l.Error("error_event", append(toFields(context), zap.Error(err))...)
}

// LogRisk 记录风控事件
func (l *Logger) LogRisk(event string, fields map[string]interface{}) {
	l.Warn("risk_event", append(toFields(fields), zap.String("event", event))...)
}

// Close 刷盘并关闭轮转文件
func (l *Logger) Close() error {
	_ = l.Sync() // stdout 上 Sync 可能返回 EINVAL
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// toFields 按 key 排序，保证输出稳定
func toFields(m map[string]interface{}) []zap.Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(m)+2)
	for _, k := range keys {
		out = append(out, zap.Any(k, m[k]))
	}
	return out
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
