package order

// ReconcileStats 一次对账的结果统计。
type ReconcileStats struct {
	Filled  int
	Unknown int // 交易所存在但本进程未登记的挂单
}

// Reconcile 以交易所挂单列表为准更新本地状态：
// 已确认但不在挂单列表中的订单视为成交。
func (m *Manager) Reconcile(open []Order) ReconcileStats {
	var stats ReconcileStats

	m.mu.Lock()
	defer m.mu.Unlock()

	live := make(map[string]struct{}, len(open))
	for _, o := range open {
		if o.ID != "" {
			live[o.ID] = struct{}{}
		}
		if _, ok := m.byID[o.ID]; !ok {
			stats.Unknown++
		}
	}

	for _, o := range m.orders {
		if o.Status != StatusAck || o.ID == "" {
			continue
		}
		if _, ok := live[o.ID]; ok {
			continue
		}
		// 以交易所状态为准
		o.Status = StatusFilled
		stats.Filled++
	}
	return stats
}
