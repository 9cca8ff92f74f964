package order

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Exchange 提供下单/查询挂单/撤单抽象；由 gateway.FTXClient 实现。
type Exchange interface {
	PlaceOrder(ctx context.Context, o Order) (Order, error)
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Manager 维护本进程提交过的订单状态并通过 Exchange 下发。
type Manager struct {
	exch        Exchange
	mu          sync.RWMutex
	orders      map[string]*Order // clientID -> order
	byID        map[string]string // exchange id -> clientID
	constraints map[string]SymbolConstraints
}

func NewManager(exch Exchange) *Manager {
	return &Manager{
		exch:   exch,
		orders: make(map[string]*Order),
		byID:   make(map[string]string),
	}
}

var ErrUnknownOrder = errors.New("unknown order")

// Submit 同步调用 Exchange 下单并登记状态。
func (m *Manager) Submit(ctx context.Context, o Order) (*Order, error) {
	if o.ClientID == "" {
		o.ClientID = uuid.NewString()
	}
	if err := m.validateConstraint(o); err != nil {
		return nil, err
	}
	o.Status = StatusNew
	m.mu.Lock()
	m.orders[o.ClientID] = &o
	m.mu.Unlock()

	if m.exch != nil {
		ack, err := m.exch.PlaceOrder(ctx, o)
		if err != nil {
			m.updateStatus(o.ClientID, StatusRejected, err)
			return nil, err
		}
		m.mu.Lock()
		m.orders[o.ClientID].ID = ack.ID
		if ack.ID != "" {
			m.byID[ack.ID] = o.ClientID
		}
		m.mu.Unlock()
		o.ID = ack.ID
	}
	m.updateStatus(o.ClientID, StatusAck, nil)
	o.Status = StatusAck
	return &o, nil
}

// Cancel 按交易所订单号撤单。未在本进程登记的订单（如上次运行遗留）同样会撤销。
func (m *Manager) Cancel(ctx context.Context, orderID string) error {
	if m.exch != nil {
		if err := m.exch.CancelOrder(ctx, orderID); err != nil {
			return err
		}
	}
	m.mu.RLock()
	cid, ok := m.byID[orderID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return m.updateStatus(cid, StatusCanceled, nil)
}

// Status 返回订单当前状态，如不存在则第二个返回值为 false。
func (m *Manager) Status(clientID string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[clientID]
	if !ok {
		return "", false
	}
	return o.Status, true
}

// Active 返回尚未进入终态的订单（拷贝）。
func (m *Manager) Active() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		if !IsFinal(o.Status) {
			out = append(out, *o)
		}
	}
	return out
}

// Prune 删除已进入终态的订单，避免长时间运行后 map 无限增长。
func (m *Manager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for cid, o := range m.orders {
		if IsFinal(o.Status) {
			delete(m.orders, cid)
			if o.ID != "" {
				delete(m.byID, o.ID)
			}
			n++
		}
	}
	return n
}

func (m *Manager) updateStatus(clientID string, st Status, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[clientID]
	if !ok {
		return ErrUnknownOrder
	}
	if terr := ValidateTransition(o.Status, st); terr != nil {
		return terr
	}
	o.Status = st
	if err != nil {
		o.LastError = err.Error()
	}
	return nil
}

// SetConstraints 设置各交易对的精度/名义限制。
func (m *Manager) SetConstraints(c map[string]SymbolConstraints) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = make(map[string]SymbolConstraints, len(c))
	for sym, sc := range c {
		m.constraints[sym] = sc
	}
}

func (m *Manager) validateConstraint(o Order) error {
	if o.Quantity <= 0 {
		return ErrNonPositiveSize
	}
	m.mu.RLock()
	c, ok := m.constraints[o.Symbol]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return c.Validate(o.Price, o.Quantity)
}
