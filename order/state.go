package order

import "fmt"

// Status represents order lifecycle.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusAck      Status = "ACK"
	StatusFilled   Status = "FILLED"
	StatusCanceled Status = "CANCELED"
	StatusRejected Status = "REJECTED"
)

// Side 下单方向，取值与交易所接口一致。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Intent 报价控制器决定提交的一笔限价单。
type Intent struct {
	Side     Side
	Price    float64
	Size     float64
	PostOnly bool
}

// Order holds a simplified order view.
type Order struct {
	ID        string // 交易所订单号
	ClientID  string
	Symbol    string
	Side      Side
	Price     float64
	Quantity  float64
	PostOnly  bool
	Status    Status
	LastError string
}

var legalTransitions = map[Status][]Status{
	StatusNew: {StatusAck, StatusFilled, StatusCanceled, StatusRejected},
	StatusAck: {StatusFilled, StatusCanceled},
	// 终态不能转换（FILLED, CANCELED, REJECTED）
}

// ValidateTransition 验证状态转换是否合法；相同状态视为幂等。
func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	for _, s := range legalTransitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("illegal state transition: %s -> %s", from, to)
}

// IsFinal 判断是否是终态
func IsFinal(st Status) bool {
	switch st {
	case StatusFilled, StatusCanceled, StatusRejected:
		return true
	default:
		return false
	}
}
