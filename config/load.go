package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"perp-mm-go/infrastructure/logger"
	"perp-mm-go/order"
)

// AppConfig 启动时校验一次，运行期间只读。
type AppConfig struct {
	Symbol      string                  `yaml:"symbol"`
	Strategy    StrategyConfig          `yaml:"strategy"`
	Bands       BandsConfig             `yaml:"bands"`
	Gateway     GatewayConfig           `yaml:"gateway"`
	Constraints order.SymbolConstraints `yaml:"constraints"`
	Logging     logger.Config           `yaml:"logging"`
	MetricsAddr string                  `yaml:"metricsAddr"`
	Alerts      AlertConfig             `yaml:"alerts"`
	DryRun      bool                    `yaml:"dryRun"`
}

// StrategyConfig 库存目标、报价模型与报价周期参数。
type StrategyConfig struct {
	StakePrice     float64 `yaml:"stakePrice"`
	UpperThreshold float64 `yaml:"upperThreshold"`
	LowerThreshold float64 `yaml:"lowerThreshold"`
	PositionSize   float64 `yaml:"positionSize"`
	Multiplier     float64 `yaml:"multiplier"`
	VolInterval    int     `yaml:"volInterval"` // 秒，15/60/300
	Depth          int     `yaml:"depth"`
	Gamma          float64 `yaml:"gamma"`
	MaxTrade       float64 `yaml:"maxTrade"`
	RefreshSeconds int     `yaml:"refreshSeconds"`
	MinimumSpread  float64 `yaml:"minimumSpread"`
	PriceAggressor float64 `yaml:"priceAggressor"`
	PostOnly       bool    `yaml:"postOnly"`
	Cutoff         float64 `yaml:"cutoff"` // 库存距离绝对值阈值
}

// BandsConfig 启动时打印的布林带参数。Source: finnhub | local | off。
type BandsConfig struct {
	Source     string  `yaml:"source"`
	Symbol     string  `yaml:"symbol"`
	Resolution string  `yaml:"resolution"`
	TimePeriod int     `yaml:"timePeriod"`
	NbDevUp    float64 `yaml:"nbDevUp"`
	NbDevDn    float64 `yaml:"nbDevDn"`
	Token      string  `yaml:"token"`
}

type GatewayConfig struct {
	BaseURL     string `yaml:"baseURL"`
	WSEndpoint  string `yaml:"wsEndpoint"`
	APIKey      string `yaml:"apiKey"`
	APISecret   string `yaml:"apiSecret"`
	Subaccount  string `yaml:"subaccount"`
	DepthSource string `yaml:"depthSource"` // rest | ws
}

type AlertConfig struct {
	ThrottleSeconds int `yaml:"throttleSeconds"`
}

// Refresh 报价等待时长
func (c AppConfig) Refresh() time.Duration {
	return time.Duration(c.Strategy.RefreshSeconds) * time.Second
}

// Default 返回未填交易参数的默认配置。
func Default() AppConfig {
	return AppConfig{
		Bands: BandsConfig{
			Source:     "off",
			Symbol:     "BINANCE:ETHUSDT",
			Resolution: "1",
		},
		Gateway: GatewayConfig{
			BaseURL:     "https://ftx.com/api",
			WSEndpoint:  "wss://ftx.com/ws/",
			DepthSource: "rest",
		},
		Logging:     logger.DefaultConfig(),
		MetricsAddr: ":9101",
		Alerts:      AlertConfig{ThrottleSeconds: 60},
	}
}

// Load reads YAML config from path on top of Default and validates it.
func Load(path string) (AppConfig, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// LoadWithEnvOverrides loads config then overrides credentials from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, Validate(cfg)
}

// LoadBase 读取配置并应用环境变量但不校验；文件不存在时返回默认配置。
// 交互模式在此基础上补全交易参数。
func LoadBase(path string) (AppConfig, error) {
	cfg, err := read(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

func read(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv 用 MM_GATEWAY_* 环境变量覆盖密钥。
func ApplyEnv(cfg *AppConfig) {
	if v := os.Getenv("MM_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("MM_GATEWAY_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	if v := os.Getenv("MM_GATEWAY_SUBACCOUNT"); v != "" {
		cfg.Gateway.Subaccount = v
	}
	if v := os.Getenv("MM_FINNHUB_TOKEN"); v != "" {
		cfg.Bands.Token = v
	}
}
