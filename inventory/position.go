package inventory

import "sync"

// Position 交易所返回的单一合约持仓快照；无持仓时为零值。
type Position struct {
	Instrument    string
	RealizedPnl   float64
	UnrealizedPnl float64
	NetSize       float64
	EntryPrice    float64
}

// Tracker 维护最近一次同步到的仓位。
type Tracker struct {
	mu  sync.RWMutex
	pos Position
}

// Set 用交易所快照覆盖本地仓位。
func (t *Tracker) Set(p Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pos = p
}

// Current 返回仓位快照副本。
func (t *Tracker) Current() Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pos
}
