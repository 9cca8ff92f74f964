package market

import (
	"sort"
	"sync"
	"time"
)

// Level 单个价位。
type Level struct {
	Price float64
	Size  float64
}

// Snapshot 是一次深度快照，Bids/Asks 均按最优价在前排列。
type Snapshot struct {
	Bids  []Level
	Asks  []Level
	Depth int
}

// Complete 判断两侧是否都恰好有 Depth 档。
func (s Snapshot) Complete() bool {
	return s.Depth > 0 && len(s.Bids) == s.Depth && len(s.Asks) == s.Depth
}

// OrderBook 维护简单的价格->数量映射，由 WS 深度流写入。
type OrderBook struct {
	mu         sync.RWMutex
	bids       map[float64]float64 // price -> qty
	asks       map[float64]float64
	lastUpdate time.Time
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids: make(map[float64]float64),
		asks: make(map[float64]float64),
	}
}

// Reset 用全量快照替换当前盘口。
func (ob *OrderBook) Reset(bids, asks []Level) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.bids = make(map[float64]float64, len(bids))
	ob.asks = make(map[float64]float64, len(asks))
	for _, l := range bids {
		if l.Size > 0 {
			ob.bids[l.Price] = l.Size
		}
	}
	for _, l := range asks {
		if l.Size > 0 {
			ob.asks[l.Price] = l.Size
		}
	}
	ob.lastUpdate = time.Now()
}

// ApplyDelta 应用增量更新，qty 为 0 表示删除该档。
func (ob *OrderBook) ApplyDelta(bids, asks []Level) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	for _, l := range bids {
		if l.Size == 0 {
			delete(ob.bids, l.Price)
		} else {
			ob.bids[l.Price] = l.Size
		}
	}
	for _, l := range asks {
		if l.Size == 0 {
			delete(ob.asks, l.Price)
		} else {
			ob.asks[l.Price] = l.Size
		}
	}
	ob.lastUpdate = time.Now()
}

// Snapshot 返回前 depth 档；某侧不足 depth 档时快照不完整。
func (ob *OrderBook) Snapshot(depth int) Snapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return Snapshot{
		Bids:  topLevels(ob.bids, depth, true),
		Asks:  topLevels(ob.asks, depth, false),
		Depth: depth,
	}
}

// LastUpdate 返回最近一次写入时间。
func (ob *OrderBook) LastUpdate() time.Time {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastUpdate
}

func topLevels(side map[float64]float64, depth int, desc bool) []Level {
	levels := make([]Level, 0, len(side))
	for p, q := range side {
		levels = append(levels, Level{Price: p, Size: q})
	}
	sort.Slice(levels, func(i, j int) bool {
		if desc {
			return levels[i].Price > levels[j].Price
		}
		return levels[i].Price < levels[j].Price
	})
	if depth >= 0 && len(levels) > depth {
		levels = levels[:depth]
	}
	return levels
}
