package indicator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"

	"perp-mm-go/market"
)

// LocalBands 用交易所 K 线在本地计算布林带（go-talib），无需第三方指标服务。
type LocalBands struct {
	Source     market.CandleSource
	Symbol     string
	Resolution int // 秒
	Params     Params

	now func() time.Time
}

func NewLocalBands(src market.CandleSource, symbol string, resolution int, p Params) *LocalBands {
	return &LocalBands{Source: src, Symbol: symbol, Resolution: resolution, Params: p, now: time.Now}
}

func (l *LocalBands) Bands(ctx context.Context) (Bands, error) {
	if l.Params.TimePeriod < 2 {
		return Bands{}, fmt.Errorf("bbands time period %d too small", l.Params.TimePeriod)
	}
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	// 多取一倍窗口，容忍缺失的 K 线
	limit := l.Params.TimePeriod * 2
	end := now()
	start := end.Add(-time.Duration(limit*l.Resolution) * time.Second)

	ks, err := l.Source.FetchCandles(ctx, l.Symbol, l.Resolution, limit, start, end)
	if err != nil {
		return Bands{}, fmt.Errorf("fetch candles: %w", err)
	}
	if len(ks) < l.Params.TimePeriod {
		return Bands{}, fmt.Errorf("%w: %d candles, need %d", ErrNoData, len(ks), l.Params.TimePeriod)
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i].Ts.Before(ks[j].Ts) })
	closes := make([]float64, len(ks))
	for i, k := range ks {
		closes[i] = k.Close
	}

	upper, middle, lower := talib.BBands(closes, l.Params.TimePeriod, l.Params.NbDevUp, l.Params.NbDevDn, talib.SMA)
	u, _ := last(upper)
	m, _ := last(middle)
	lo, _ := last(lower)
	if math.IsNaN(m) {
		return Bands{}, ErrNoData
	}
	return Bands{Lower: lo, Middle: m, Upper: u}, nil
}
