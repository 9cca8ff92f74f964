package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompter 交互式逐项读取交易参数，任一项非法立即返回 ErrInvalid。
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Collect 在 base 之上填入交互参数（网关、日志等仍取自 base）。
func (p *Prompter) Collect(base AppConfig) (AppConfig, error) {
	cfg := base
	s := &cfg.Strategy
	var err error

	fmt.Fprintln(p.out, "Trading terminal started")
	if cfg.Symbol, err = p.text(fmt.Sprintf("Ticker symbol %v", Symbols)); err != nil {
		return cfg, err
	}
	if err = validateSymbol(cfg.Symbol); err != nil {
		return cfg, err
	}

	if s.StakePrice, err = p.number("Stake price"); err != nil {
		return cfg, err
	}
	if s.UpperThreshold, err = p.number("Upper threshold"); err != nil {
		return cfg, err
	}
	if s.UpperThreshold < s.StakePrice {
		return cfg, ErrInvalid("upperThreshold must be >= stakePrice")
	}
	if s.LowerThreshold, err = p.number("Lower threshold"); err != nil {
		return cfg, err
	}
	if s.LowerThreshold > s.StakePrice {
		return cfg, ErrInvalid("lowerThreshold must be <= stakePrice")
	}
	if s.PositionSize, err = p.number("Position size"); err != nil {
		return cfg, err
	}
	if s.Multiplier, err = p.number("Stake multiplier"); err != nil {
		return cfg, err
	}
	if s.VolInterval, err = p.integer("Volatility interval (15, 60, 300)"); err != nil {
		return cfg, err
	}
	if err = validateInterval(s.VolInterval); err != nil {
		return cfg, err
	}
	if s.Depth, err = p.integer("Order book depth"); err != nil {
		return cfg, err
	}
	if s.Depth < MinDepth {
		return cfg, ErrInvalid(fmt.Sprintf("order book depth too small: %d < %d", s.Depth, MinDepth))
	}
	if s.Gamma, err = p.number("Risk aversion gamma, within (0, 1)"); err != nil {
		return cfg, err
	}
	if s.Gamma <= 0 || s.Gamma >= 1 {
		return cfg, ErrInvalid(fmt.Sprintf("gamma must be within (0, 1), got %v", s.Gamma))
	}
	if s.MaxTrade, err = p.number("Max trade amount"); err != nil {
		return cfg, err
	}
	if s.MaxTrade < MinMaxTrade {
		return cfg, ErrInvalid(fmt.Sprintf("maxTrade must be >= %v", MinMaxTrade))
	}
	if s.RefreshSeconds, err = p.integer("Order refresh time in seconds"); err != nil {
		return cfg, err
	}
	if s.MinimumSpread, err = p.number("Minimum spread"); err != nil {
		return cfg, err
	}
	if s.PriceAggressor, err = p.number("Price aggressor multiplier"); err != nil {
		return cfg, err
	}
	postOnly, err := p.integer("Post only? 0 for false, 1 for true")
	if err != nil {
		return cfg, err
	}
	switch postOnly {
	case 0:
		s.PostOnly = false
	case 1:
		s.PostOnly = true
	default:
		return cfg, ErrInvalid(fmt.Sprintf("post only must be 0 or 1, got %d", postOnly))
	}
	if s.Cutoff, err = p.number("Inventory cutoff (absolute target distance)"); err != nil {
		return cfg, err
	}

	// 布林带参数只用于启动时打印
	if cfg.Bands.Source != "" && cfg.Bands.Source != "off" {
		if cfg.Bands.TimePeriod, err = p.integer("BBands time period (minutes)"); err != nil {
			return cfg, err
		}
		if cfg.Bands.NbDevUp, err = p.number("BBands nbdevup"); err != nil {
			return cfg, err
		}
		if cfg.Bands.NbDevDn, err = p.number("BBands nbdevdn"); err != nil {
			return cfg, err
		}
	}
	return cfg, Validate(cfg)
}

func (p *Prompter) text(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", ErrInvalid(fmt.Sprintf("%s: no input", label))
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func (p *Prompter) number(label string) (float64, error) {
	raw, err := p.text(label)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, ErrInvalid(fmt.Sprintf("%s: %q is not a number", label, raw))
	}
	return v, nil
}

func (p *Prompter) integer(label string) (int, error) {
	raw, err := p.text(label)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrInvalid(fmt.Sprintf("%s: %q is not an integer", label, raw))
	}
	return v, nil
}
