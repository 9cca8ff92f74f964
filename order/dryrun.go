package order

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DryRun 包装真实 Exchange：查询透传，下单/撤单只记录日志。
type DryRun struct {
	inner  Exchange
	logger *zap.Logger

	mu     sync.Mutex
	placed int
}

func NewDryRun(inner Exchange, logger *zap.Logger) *DryRun {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRun{inner: inner, logger: logger}
}

func (d *DryRun) PlaceOrder(ctx context.Context, o Order) (Order, error) {
	d.mu.Lock()
	d.placed++
	d.mu.Unlock()
	o.ID = "dry-" + uuid.NewString()
	d.logger.Info("dry-run place",
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.Float64("price", o.Price),
		zap.Float64("size", o.Quantity),
		zap.Bool("postOnly", o.PostOnly))
	return o, nil
}

// OpenOrders 透传到真实交易所；dry-run 单从不上架，因此对账结果为真实挂单。
func (d *DryRun) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	if d.inner == nil {
		return nil, nil
	}
	return d.inner.OpenOrders(ctx, symbol)
}

func (d *DryRun) CancelOrder(ctx context.Context, orderID string) error {
	d.logger.Info("dry-run cancel", zap.String("id", orderID))
	return nil
}

// Placed 返回已模拟下单次数。
func (d *DryRun) Placed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.placed
}
