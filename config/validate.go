package config

import (
	"fmt"
	"slices"

	"perp-mm-go/market"
)

// Symbols 允许交易的合约。
var Symbols = []string{"ETH-PERP", "BTC-PERP", "UNI-PERP", "LINK-PERP", "MKR-PERP", "DOGE-PERP"}

const (
	MinDepth    = 10
	MinMaxTrade = 0.001
)

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate 按交互输入的顺序校验，返回第一个错误。
func Validate(cfg AppConfig) error {
	if err := validateTrading(cfg); err != nil {
		return err
	}
	if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
		return ErrInvalid("gateway.apiKey/apiSecret is required (or MM_GATEWAY_API_KEY/MM_GATEWAY_API_SECRET)")
	}
	switch cfg.Gateway.DepthSource {
	case "", "rest", "ws":
	default:
		return ErrInvalid(fmt.Sprintf("gateway.depthSource must be rest or ws, got %q", cfg.Gateway.DepthSource))
	}
	switch cfg.Bands.Source {
	case "", "off", "local":
	case "finnhub":
		if cfg.Bands.Token == "" {
			return ErrInvalid("bands.token is required for the finnhub source")
		}
	default:
		return ErrInvalid(fmt.Sprintf("bands.source must be finnhub, local or off, got %q", cfg.Bands.Source))
	}
	if cfg.Bands.Source == "finnhub" || cfg.Bands.Source == "local" {
		if cfg.Bands.TimePeriod <= 0 {
			return ErrInvalid("bands.timePeriod must be > 0")
		}
	}
	if cfg.Alerts.ThrottleSeconds < 0 {
		return ErrInvalid("alerts.throttleSeconds must be >= 0")
	}
	return nil
}

func validateTrading(cfg AppConfig) error {
	if err := validateSymbol(cfg.Symbol); err != nil {
		return err
	}
	s := cfg.Strategy
	if s.UpperThreshold < s.StakePrice {
		return ErrInvalid("upperThreshold must be >= stakePrice")
	}
	if s.LowerThreshold > s.StakePrice {
		return ErrInvalid("lowerThreshold must be <= stakePrice")
	}
	if s.PositionSize <= 0 {
		return ErrInvalid("positionSize must be > 0")
	}
	if s.Multiplier < 0 {
		return ErrInvalid("multiplier must be >= 0")
	}
	if err := validateInterval(s.VolInterval); err != nil {
		return err
	}
	if s.Depth < MinDepth {
		return ErrInvalid(fmt.Sprintf("order book depth too small: %d < %d", s.Depth, MinDepth))
	}
	if s.Gamma <= 0 || s.Gamma >= 1 {
		return ErrInvalid(fmt.Sprintf("gamma must be within (0, 1), got %v", s.Gamma))
	}
	if s.MaxTrade < MinMaxTrade {
		return ErrInvalid(fmt.Sprintf("maxTrade must be >= %v", MinMaxTrade))
	}
	if s.RefreshSeconds < 0 {
		return ErrInvalid("refreshSeconds must be >= 0")
	}
	if s.MinimumSpread < 0 {
		return ErrInvalid("minimumSpread must be >= 0")
	}
	if s.Cutoff < 0 {
		return ErrInvalid("cutoff must be >= 0")
	}
	return nil
}

func validateSymbol(sym string) error {
	if !slices.Contains(Symbols, sym) {
		return ErrInvalid(fmt.Sprintf("symbol %q not in %v", sym, Symbols))
	}
	return nil
}

func validateInterval(v int) error {
	if !slices.Contains(market.ValidVolatilityIntervals, v) {
		return ErrInvalid(fmt.Sprintf("volInterval must be one of %v, got %d", market.ValidVolatilityIntervals, v))
	}
	return nil
}
