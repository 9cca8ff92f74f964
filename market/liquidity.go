package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrIncompleteBook 表示某一侧档位数量不足 depth。
	ErrIncompleteBook = errors.New("order book incomplete")
	// ErrMarketDataUnavailable 表示行情接口请求失败。
	ErrMarketDataUnavailable = errors.New("market data unavailable")
)

const (
	DefaultBookAttempts   = 5
	DefaultBookRetryDelay = 15 * time.Second
)

// BookSignal 由一次完整快照推导出的参考价格与流动性指标。
type BookSignal struct {
	Midpoint         float64
	WeightedMidpoint float64
	Kappa            float64
	BestBid          float64
	BestAsk          float64
	Imbalance        float64
	TotalBidSize     float64
	TotalAskSize     float64
}

// EstimateLiquidity computes kappa, imbalance and the reference prices of a complete snapshot.
func EstimateLiquidity(snap Snapshot) (BookSignal, error) {
	if !snap.Complete() {
		return BookSignal{}, fmt.Errorf("%w: want %d levels, got %d bids / %d asks",
			ErrIncompleteBook, snap.Depth, len(snap.Bids), len(snap.Asks))
	}

	var sig BookSignal
	for i := 0; i < snap.Depth; i++ {
		b, a := snap.Bids[i], snap.Asks[i]
		sig.Kappa += b.Price*b.Size + a.Price*a.Size
		sig.TotalBidSize += b.Size
		sig.TotalAskSize += a.Size
	}
	total := sig.TotalBidSize + sig.TotalAskSize
	if total <= 0 {
		return BookSignal{}, fmt.Errorf("%w: zero resting size", ErrIncompleteBook)
	}

	sig.BestBid = snap.Bids[0].Price
	sig.BestAsk = snap.Asks[0].Price
	sig.Midpoint = (sig.BestBid + sig.BestAsk) / 2
	sig.Imbalance = sig.TotalBidSize / total
	// 买盘越厚，公平价越靠近卖一
	sig.WeightedMidpoint = sig.Imbalance*sig.BestAsk + (1-sig.Imbalance)*sig.BestBid
	return sig, nil
}

// BookSource 提供指定深度的盘口快照。
type BookSource interface {
	FetchOrderBook(ctx context.Context, symbol string, depth int) (Snapshot, error)
}

// BookEstimator fetches the book and retries until a complete snapshot arrives.
type BookEstimator struct {
	Source      BookSource
	Symbol      string
	Depth       int
	MaxAttempts int
	RetryDelay  time.Duration
	// Sleep 阻塞等待，测试可替换。
	Sleep   func(time.Duration)
	Logger  *zap.Logger
	OnRetry func(attempt int, err error)
}

// NewBookEstimator returns an estimator with the default retry policy.
func NewBookEstimator(src BookSource, symbol string, depth int, logger *zap.Logger) *BookEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookEstimator{
		Source:      src,
		Symbol:      symbol,
		Depth:       depth,
		MaxAttempts: DefaultBookAttempts,
		RetryDelay:  DefaultBookRetryDelay,
		Sleep:       time.Sleep,
		Logger:      logger,
	}
}

// Estimate returns the signal of the first complete snapshot. After MaxAttempts
// failures the last error is returned, wrapping ErrIncompleteBook or ErrMarketDataUnavailable.
func (e *BookEstimator) Estimate(ctx context.Context) (BookSignal, error) {
	attempts := e.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		sig, err := e.fetchOnce(ctx)
		if err == nil {
			return sig, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		logger.Warn("order book not usable, waiting",
			zap.String("symbol", e.Symbol),
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", e.RetryDelay),
			zap.Error(err))
		if e.OnRetry != nil {
			e.OnRetry(attempt, err)
		}
		if e.Sleep != nil {
			e.Sleep(e.RetryDelay)
		}
	}
	return BookSignal{}, fmt.Errorf("order book after %d attempts: %w", attempts, lastErr)
}

func (e *BookEstimator) fetchOnce(ctx context.Context) (BookSignal, error) {
	snap, err := e.Source.FetchOrderBook(ctx, e.Symbol, e.Depth)
	if err != nil {
		if errors.Is(err, ErrIncompleteBook) {
			return BookSignal{}, err
		}
		return BookSignal{}, fmt.Errorf("%w: %v", ErrMarketDataUnavailable, err)
	}
	if snap.Depth == 0 {
		snap.Depth = e.Depth
	}
	return EstimateLiquidity(snap)
}
