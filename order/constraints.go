package order

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrConstraint 订单不满足合约的精度或规模限制，本地拒单。
var ErrConstraint = errors.New("order violates symbol constraints")

// SymbolConstraints 合约的价格/数量步长与最小规模（对应交易所 priceIncrement / sizeIncrement / minProvideSize）。
type SymbolConstraints struct {
	PriceIncrement float64 `yaml:"priceIncrement"`
	SizeIncrement  float64 `yaml:"sizeIncrement"`
	MinSize        float64 `yaml:"minSize"`
	MaxSize        float64 `yaml:"maxSize"`
	MinNotional    float64 `yaml:"minNotional"`
}

// Validate 检查价格/数量是否符合精度与最小名义。
func (c SymbolConstraints) Validate(price, size float64) error {
	if !onIncrement(price, c.PriceIncrement) {
		return fmt.Errorf("%w: price %v not on increment %v", ErrConstraint, price, c.PriceIncrement)
	}
	if !onIncrement(size, c.SizeIncrement) {
		return fmt.Errorf("%w: size %v not on increment %v", ErrConstraint, size, c.SizeIncrement)
	}
	if c.MinSize > 0 && size < c.MinSize {
		return fmt.Errorf("%w: size %v < min %v", ErrConstraint, size, c.MinSize)
	}
	if c.MaxSize > 0 && size > c.MaxSize {
		return fmt.Errorf("%w: size %v > max %v", ErrConstraint, size, c.MaxSize)
	}
	if c.MinNotional > 0 && price*size < c.MinNotional {
		return fmt.Errorf("%w: notional %v < min %v", ErrConstraint, price*size, c.MinNotional)
	}
	return nil
}

// 用十进制取模，避免 0.1/0.01 这类浮点误差。
func onIncrement(value, inc float64) bool {
	if inc <= 0 {
		return true
	}
	return decimal.NewFromFloat(value).Mod(decimal.NewFromFloat(inc)).IsZero()
}
