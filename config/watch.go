package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 监听配置文件变更：重新加载并校验，但不修改运行中的配置，
// 只提示需要重启。
type Watcher struct {
	path     string
	cooldown time.Duration
	logger   *zap.Logger
	watcher  *fsnotify.Watcher

	mu         sync.Mutex
	lastReload time.Time
	onChange   func(AppConfig, error)

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWatcher 创建监听器；监听所在目录，兼容编辑器的 rename 写法。
func NewWatcher(path string, cooldown time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		cooldown: cooldown,
		logger:   logger,
		watcher:  fw,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// OnChange 设置变更回调（在监听 goroutine 中调用）。
func (w *Watcher) OnChange(fn func(AppConfig, error)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// Start 启动监听
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}
	go w.watch(ctx)
	return nil
}

// Stop 停止监听
func (w *Watcher) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stopChan) })
	select {
	case <-w.doneChan:
	case <-ctx.Done():
	case <-time.After(time.Second):
		// watch goroutine 可能未启动
	}
	return w.watcher.Close()
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneChan)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.handleChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleChange() {
	w.mu.Lock()
	if time.Since(w.lastReload) < w.cooldown {
		w.mu.Unlock()
		return
	}
	w.lastReload = time.Now()
	fn := w.onChange
	w.mu.Unlock()

	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		w.logger.Warn("config file changed but is invalid", zap.String("path", w.path), zap.Error(err))
	} else {
		w.logger.Info("config file changed, restart required to apply",
			zap.String("path", w.path), zap.String("symbol", cfg.Symbol))
	}
	if fn != nil {
		fn(cfg, err)
	}
}
