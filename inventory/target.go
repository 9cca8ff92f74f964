package inventory

import "perp-mm-go/market"

// Thresholds 库存目标映射的价格区间与规模参数。
// 调用方须保证 Lower <= Stake <= Upper（配置加载时校验）。
type Thresholds struct {
	Stake        float64
	Upper        float64
	Lower        float64
	PositionSize float64
	Multiplier   float64
}

// Target 期望库存与当前库存的差距，Distance = current - Target。
type Target struct {
	Target   float64
	Distance float64
}

// Mapper 把加权中间价映射为目标库存。
type Mapper struct {
	th Thresholds
}

func NewMapper(th Thresholds) *Mapper {
	return &Mapper{th: th}
}

// Target 计算目标库存与距离，均保留 4 位小数。
func (m *Mapper) Target(wmid, current float64) Target {
	th := m.th
	maxInv := th.PositionSize * th.Multiplier

	var target float64
	switch {
	case wmid >= th.Upper:
		target = maxInv
	case wmid <= th.Lower:
		target = -maxInv
	case wmid < th.Stake:
		target = (wmid - th.Stake) / (th.Stake - th.Lower) * maxInv
	case wmid == th.Stake:
		target = 0
	default:
		target = (wmid - th.Stake) / (th.Upper - th.Stake) * maxInv
	}

	target = market.Round(target, 4)
	return Target{
		Target:   target,
		Distance: market.Round(current-target, 4),
	}
}
