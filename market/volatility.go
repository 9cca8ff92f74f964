package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// ErrNoVolatilityBasis is returned when no fresh candle exists and there is no
// previous estimate to fall back on.
var ErrNoVolatilityBasis = errors.New("volatility cannot be measured")

// ValidVolatilityIntervals lists the candle resolutions (seconds) accepted by the estimator.
var ValidVolatilityIntervals = []int{15, 60, 300}

const candleLimit = 7

// CandleSource 提供 K 线历史。
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol string, resolution, limit int, start, end time.Time) ([]Kline, error)
}

// VolatilityEstimator turns the most recent candle into a short-horizon sigma.
type VolatilityEstimator struct {
	source   CandleSource
	symbol   string
	interval int
	logger   *zap.Logger
	now      func() time.Time
}

// NewVolatilityEstimator creates an estimator sampling candles of interval seconds.
func NewVolatilityEstimator(src CandleSource, symbol string, interval int, logger *zap.Logger) *VolatilityEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VolatilityEstimator{
		source:   src,
		symbol:   symbol,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Estimate returns a fresh sigma, or prev when the latest candle carries no information.
func (v *VolatilityEstimator) Estimate(ctx context.Context, prev float64) (float64, error) {
	end := v.now()
	start := end.Add(-time.Duration(v.interval) * time.Second)

	candles, err := v.source.FetchCandles(ctx, v.symbol, v.interval, candleLimit, start, end)
	if err != nil {
		v.logger.Warn("candle fetch failed",
			zap.String("symbol", v.symbol),
			zap.Int("interval", v.interval),
			zap.Error(err))
		candles = nil
	}

	latest, ok := LatestKline(candles)
	if !ok {
		if prev == 0 {
			if err != nil {
				return 0, fmt.Errorf("%w: %v", ErrNoVolatilityBasis, err)
			}
			return 0, ErrNoVolatilityBasis
		}
		return prev, nil
	}

	sigma := CandleSigma(latest)
	if sigma == 0 {
		// 零方差 K 线视为无信息
		return prev, nil
	}
	return sigma, nil
}

// CandleSigma is the Bessel-corrected sample standard deviation of a candle's OHLC values.
func CandleSigma(k Kline) float64 {
	prices := [4]float64{k.Open, k.High, k.Low, k.Close}

	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	mean := sum / float64(len(prices))

	sumSquaredDiff := 0.0
	for _, p := range prices {
		diff := p - mean
		sumSquaredDiff += diff * diff
	}
	variance := sumSquaredDiff / float64(len(prices)-1)
	return math.Sqrt(variance)
}
