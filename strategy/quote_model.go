package strategy

import (
	"errors"
	"fmt"
	"math"

	"perp-mm-go/market"
)

// ErrInvalidModelInput 表示报价模型参数不在定义域内（gamma ∉ (0,1)、kappa <= 0 或 positionSize <= 0）。
var ErrInvalidModelInput = errors.New("invalid quote model input")

// QuoteInputs 报价模型的单周期输入。
type QuoteInputs struct {
	WeightedMid    float64 // s
	Distance       float64 // q，当前库存减目标库存
	Sigma          float64
	Kappa          float64
	PriceAggressor float64
}

// QuoteParameters 模型输出，均保留 2 位小数。
type QuoteParameters struct {
	ReservationPrice           float64
	AggressiveReservationPrice float64
	Spread                     float64
}

// QuoteModel 库存偏移的 Avellaneda-Stoikov 报价模型，无状态、无 IO。
type QuoteModel struct {
	Gamma         float64 // 风险厌恶系数
	PositionSize  float64
	MinimumSpread float64
}

// Compute 计算保留价与最优价差。
//
//	r     = s - q*γ*σ²
//	r_agg = r - (γ/positionSize)*priceAggressor
//	spread = max(γ*σ² + (2/γ)*ln(1+γ/κ), minimumSpread)
func (m QuoteModel) Compute(in QuoteInputs) (QuoteParameters, error) {
	if m.Gamma <= 0 || m.Gamma >= 1 {
		return QuoteParameters{}, fmt.Errorf("%w: gamma %v", ErrInvalidModelInput, m.Gamma)
	}
	if in.Kappa <= 0 {
		return QuoteParameters{}, fmt.Errorf("%w: kappa %v", ErrInvalidModelInput, in.Kappa)
	}
	if m.PositionSize <= 0 {
		return QuoteParameters{}, fmt.Errorf("%w: positionSize %v", ErrInvalidModelInput, m.PositionSize)
	}

	variance := in.Sigma * in.Sigma
	r := in.WeightedMid - in.Distance*m.Gamma*variance
	rAgg := r - (m.Gamma/m.PositionSize)*in.PriceAggressor

	spread := market.Round(m.Gamma*variance+(2/m.Gamma)*math.Log1p(m.Gamma/in.Kappa), 2)
	if spread < m.MinimumSpread {
		spread = m.MinimumSpread
	}

	return QuoteParameters{
		ReservationPrice:           market.Round(r, 2),
		AggressiveReservationPrice: market.Round(rAgg, 2),
		Spread:                     spread,
	}, nil
}

// TradeSize 单笔下单量：min(maxTrade, |distance|/5)，保留 4 位小数。
func TradeSize(maxTrade, distance float64) float64 {
	return market.Round(math.Min(maxTrade, math.Abs(distance)/5), 4)
}
