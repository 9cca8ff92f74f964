package alert

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapChannel 把告警写入结构化日志
type ZapChannel struct {
	logger *zap.Logger
}

func NewZapChannel(logger *zap.Logger) *ZapChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapChannel{logger: logger.With(zap.String("component", "alert"))}
}

func (c *ZapChannel) Send(a Alert) error {
	fields := make([]zap.Field, 0, len(a.Fields)+2)
	fields = append(fields, zap.String("level", string(a.Level)), zap.Time("alertTs", a.Timestamp))
	for _, k := range sortedKeys(a.Fields) {
		fields = append(fields, zap.Any(k, a.Fields[k]))
	}
	lvl := zapcore.InfoLevel
	switch a.Level {
	case LevelWarning:
		lvl = zapcore.WarnLevel
	case LevelError, LevelCritical:
		lvl = zapcore.ErrorLevel
	}
	if ce := c.logger.Check(lvl, a.Message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func (c *ZapChannel) Name() string { return "zap" }

// ConsoleChannel 控制台告警通道（彩色输出），交互模式下使用
type ConsoleChannel struct {
	out io.Writer
}

func NewConsoleChannel(out io.Writer) *ConsoleChannel {
	if out == nil {
		out = os.Stderr
	}
	return &ConsoleChannel{out: out}
}

func (c *ConsoleChannel) Send(a Alert) error {
	color := "\033[0m"
	switch a.Level {
	case LevelInfo:
		color = "\033[32m" // 绿色
	case LevelWarning:
		color = "\033[33m" // 黄色
	case LevelError:
		color = "\033[31m" // 红色
	case LevelCritical:
		color = "\033[35m" // 紫色
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]\033[0m %s - %s", color, a.Level, a.Timestamp.Format("2006-01-02 15:04:05"), a.Message)
	for _, k := range sortedKeys(a.Fields) {
		fmt.Fprintf(&b, " %s=%v", k, a.Fields[k])
	}
	b.WriteString("\n")
	_, err := io.WriteString(c.out, b.String())
	return err
}

func (c *ConsoleChannel) Name() string { return "console" }

// MockChannel 记录告警，用于测试
type MockChannel struct {
	mu        sync.Mutex
	alerts    []Alert
	shouldErr bool
}

func NewMockChannel() *MockChannel { return &MockChannel{} }

func (c *MockChannel) Send(a Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.alerts = append(c.alerts, a)
	return nil
}

func (c *MockChannel) Name() string { return "mock" }

// Alerts 返回收到的告警副本
func (c *MockChannel) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

func (c *MockChannel) SetShouldError(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldErr = v
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
