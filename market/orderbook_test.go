package market

import "testing"

func TestOrderBookApplyDelta(t *testing.T) {
	ob := NewOrderBook()
	ob.ApplyDelta([]Level{{100, 1}, {99.5, 2}}, []Level{{101, 1.5}, {102, 3}})
	top := ob.Snapshot(1)
	if top.Bids[0].Price != 100 || top.Asks[0].Price != 101 {
		t.Fatalf("unexpected best bid/ask: %+v", top)
	}
	// 删除一档
	ob.ApplyDelta([]Level{{100, 0}}, nil)
	top = ob.Snapshot(1)
	if top.Bids[0].Price != 99.5 {
		t.Fatalf("expected best bid 99.5 got %f", top.Bids[0].Price)
	}
}

func TestOrderBookSnapshotOrdering(t *testing.T) {
	ob := NewOrderBook()
	ob.Reset([]Level{{98, 1}, {100, 2}, {99, 3}}, []Level{{103, 1}, {101, 1}, {102, 4}})

	snap := ob.Snapshot(2)
	if !snap.Complete() {
		t.Fatalf("expected complete snapshot, got %+v", snap)
	}
	if snap.Bids[0].Price != 100 || snap.Bids[1].Price != 99 {
		t.Fatalf("bids not best-first: %+v", snap.Bids)
	}
	if snap.Asks[0].Price != 101 || snap.Asks[1].Price != 102 {
		t.Fatalf("asks not best-first: %+v", snap.Asks)
	}

	if ob.Snapshot(4).Complete() {
		t.Fatalf("snapshot deeper than the book must be incomplete")
	}
	if ob.LastUpdate().IsZero() {
		t.Fatalf("expected last update to be set")
	}
}
