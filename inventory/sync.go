package inventory

import (
	"context"
	"fmt"
)

// PositionSource 拉取账户下全部合约持仓。
type PositionSource interface {
	FetchPositions(ctx context.Context) ([]Position, error)
}

// Sync 每个周期从交易所刷新一次仓位，写入 Tracker。
type Sync struct {
	Source     PositionSource
	Instrument string
	Tracker    *Tracker
}

// Refresh 拉取并返回当前合约仓位；合约不在列表中视为空仓。
func (s *Sync) Refresh(ctx context.Context) (Position, error) {
	all, err := s.Source.FetchPositions(ctx)
	if err != nil {
		return Position{}, fmt.Errorf("fetch positions: %w", err)
	}
	p := Pick(all, s.Instrument)
	if s.Tracker != nil {
		s.Tracker.Set(p)
	}
	return p, nil
}

// Pick 在持仓列表中查找 instrument，找不到返回零值仓位。
func Pick(all []Position, instrument string) Position {
	for _, p := range all {
		if p.Instrument == instrument {
			return p
		}
	}
	return Position{Instrument: instrument}
}
