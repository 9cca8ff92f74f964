package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerSetOverwrites(t *testing.T) {
	var tr Tracker
	tr.Set(Position{Instrument: "ETH-PERP", NetSize: 2, EntryPrice: 100})
	if got := tr.Current(); got.NetSize != 2 || got.EntryPrice != 100 {
		t.Fatalf("unexpected position %+v", got)
	}

	tr.Set(Position{Instrument: "ETH-PERP"})
	if got := tr.Current(); got.NetSize != 0 || got.EntryPrice != 0 {
		t.Fatalf("flat snapshot must clear the previous one, got %+v", got)
	}
}

type stubPositions struct {
	list []Position
	err  error
}

func (s stubPositions) FetchPositions(context.Context) ([]Position, error) {
	return s.list, s.err
}

func TestSyncRefresh(t *testing.T) {
	tr := &Tracker{}
	s := Sync{
		Source: stubPositions{list: []Position{
			{Instrument: "BTC-PERP", NetSize: 1},
			{Instrument: "ETH-PERP", NetSize: -0.5, EntryPrice: 3000, RealizedPnl: 4.2},
		}},
		Instrument: "ETH-PERP",
		Tracker:    tr,
	}
	p, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -0.5, p.NetSize)
	assert.Equal(t, 4.2, p.RealizedPnl)
	assert.Equal(t, p, tr.Current())
}

func TestSyncRefreshMissingInstrumentIsFlat(t *testing.T) {
	s := Sync{Source: stubPositions{list: []Position{{Instrument: "BTC-PERP", NetSize: 1}}}, Instrument: "DOGE-PERP"}
	p, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Position{Instrument: "DOGE-PERP"}, p)
}

func TestSyncRefreshError(t *testing.T) {
	tr := &Tracker{}
	tr.Set(Position{Instrument: "ETH-PERP", NetSize: 3})
	s := Sync{Source: stubPositions{err: errors.New("401")}, Instrument: "ETH-PERP", Tracker: tr}
	_, err := s.Refresh(context.Background())
	require.Error(t, err)
	// 失败时不覆盖旧快照
	assert.Equal(t, 3.0, tr.Current().NetSize)
}
