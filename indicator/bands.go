// Package indicator 提供启动时展示用的布林带，不参与报价决策。
package indicator

import (
	"context"
	"errors"
)

// ErrNoData 指标服务未返回任何数据点。
var ErrNoData = errors.New("indicator returned no data")

// Bands 最近一个周期的布林带。
type Bands struct {
	Lower  float64
	Middle float64
	Upper  float64
}

// Params 布林带参数，TimePeriod 以 K 线根数计。
type Params struct {
	TimePeriod int
	NbDevUp    float64
	NbDevDn    float64
}

// Provider 计算一次布林带。
type Provider interface {
	Bands(ctx context.Context) (Bands, error)
}

func last(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	return xs[len(xs)-1], true
}
