package order

import (
	"errors"
	"fmt"
)

var (
	// ErrRunawayOrders 对账时挂单数超过上限，说明撤单持续失败。
	ErrRunawayOrders = errors.New("too many open orders")
	// ErrNonPositiveSize 下单量为 0 或负数。
	ErrNonPositiveSize = errors.New("order size must be positive")
)

// SubmissionError 单笔下单或撤单失败；记录后继续当前周期。
type SubmissionError struct {
	Op      string // place / cancel
	Side    Side
	OrderID string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s %s order %s: %v", e.Op, e.Side, e.OrderID, e.Err)
	}
	return fmt.Sprintf("%s %s order: %v", e.Op, e.Side, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
