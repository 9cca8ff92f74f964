package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"perp-mm-go/config"
	"perp-mm-go/internal/container"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	interactive := flag.Bool("interactive", false, "交互式输入交易参数（网关/日志仍取自 -config，可缺省）")
	dryRun := flag.Bool("dryRun", false, "仅日志输出，不真正下单/撤单")
	metricsAddr := flag.String("metricsAddr", "", "Prometheus metrics 监听地址，覆盖配置文件")
	flag.Parse()

	cfg, watchPath, err := loadConfig(*cfgPath, *interactive)
	if err != nil {
		var inv config.ErrInvalid
		if errors.As(err, &inv) {
			// 参数非法：打印后正常退出
			fmt.Fprintln(os.Stderr, "invalid configuration:", inv)
			return 0
		}
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 1
	}
	if *dryRun {
		cfg.DryRun = true
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	opts := container.Options{
		ConfigPath: watchPath,
		OnCycle:    watchdog(),
	}
	if *interactive {
		opts.AlertConsole = os.Stderr
	}
	c := container.New(cfg, opts)
	if err := c.Build(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "build:", err)
		return 1
	}
	log := c.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		log.LogError(err, map[string]interface{}{"action": "start"})
		_ = c.Stop(context.Background())
		return 1
	}
	c.LogBands(ctx)
	notify(daemon.SdNotifyReady)
	log.Info("quoter started", zap.String("symbol", cfg.Symbol), zap.Bool("dryRun", cfg.DryRun))

	runErr := c.Run(ctx)

	notify(daemon.SdNotifyStopping)
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	code := 0
	if runErr != nil {
		c.Fatal(runErr)
		code = 1
	} else {
		log.Info("interrupted, stopping after current cycle")
	}
	c.Cleanup(cleanupCtx)
	if err := c.Stop(cleanupCtx); err != nil {
		fmt.Fprintln(os.Stderr, "stop:", err)
	}
	return code
}

// loadConfig 返回配置及需要监听的文件路径（交互模式不监听）。
func loadConfig(path string, interactive bool) (config.AppConfig, string, error) {
	if !interactive {
		cfg, err := config.LoadWithEnvOverrides(path)
		return cfg, path, err
	}
	base, err := config.LoadBase(path)
	if err != nil {
		return base, "", err
	}
	cfg, err := config.NewPrompter(os.Stdin, os.Stdout).Collect(base)
	return cfg, "", err
}

// watchdog 每个周期向 systemd 发送心跳；未启用 watchdog 时返回 nil。
func watchdog() func() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return nil
	}
	return func() { notify(daemon.SdNotifyWatchdog) }
}

func notify(state string) {
	_, _ = daemon.SdNotify(false, state)
}
