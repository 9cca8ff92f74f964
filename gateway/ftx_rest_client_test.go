package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-mm-go/order"
)

type recordedRequest struct {
	endpoint string
	err      error
}

type fakeRecorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (f *fakeRecorder) RecordRequest(endpoint string, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, recordedRequest{endpoint, err})
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*FTXClient, *fakeRecorder) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	rec := &fakeRecorder{}
	cli := &FTXClient{
		BaseURL:    ts.URL + "/api",
		Signer:     Signer{APIKey: "key", Secret: "secret", Subaccount: "Test 1"},
		HTTPClient: ts.Client(),
		Recorder:   rec,
	}
	return cli, rec
}

func TestFTXClientSignsRequests(t *testing.T) {
	timeNowMillis = func() int64 { return 1234567890000 } // deterministic
	defer func() { timeNowMillis = func() int64 { return time.Now().UnixMilli() } }()

	var body []byte
	cli, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		assert.Equal(t, "key", r.Header.Get("FTX-KEY"))
		assert.Equal(t, "1234567890000", r.Header.Get("FTX-TS"))
		assert.Equal(t, "Test%201", r.Header.Get("FTX-SUBACCOUNT"))
		want := Signer{Secret: "secret"}.Sign("1234567890000POST/api/orders" + string(body))
		assert.Equal(t, want, r.Header.Get("FTX-SIGN"))
		io.WriteString(w, `{"success":true,"result":{"id":9001,"clientId":null,"market":"ETH-PERP","side":"buy","price":3458.7,"size":0.0052,"status":"new","postOnly":true}}`)
	})

	ack, err := cli.PlaceOrder(context.Background(), order.Order{
		Symbol: "ETH-PERP", Side: order.SideBuy, Price: 3458.7, Quantity: 0.0052, PostOnly: true, ClientID: "cid-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "9001", ack.ID)
	assert.Equal(t, "cid-1", ack.ClientID)
	assert.Equal(t, order.SideBuy, ack.Side)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "limit", sent["type"])
	assert.Equal(t, true, sent["postOnly"])
	assert.Equal(t, false, sent["ioc"])
	assert.Equal(t, false, sent["reduceOnly"])
	assert.Equal(t, "cid-1", sent["clientId"])
}

func TestFTXClientMarketData(t *testing.T) {
	cli, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/markets/ETH-PERP/candles":
			q := r.URL.Query()
			assert.Equal(t, "60", q.Get("resolution"))
			assert.Equal(t, "7", q.Get("limit"))
			assert.Equal(t, "1700000000", q.Get("start_time"))
			assert.Equal(t, "1700000060", q.Get("end_time"))
			io.WriteString(w, `{"success":true,"result":[{"startTime":"2023-11-14T22:13:00+00:00","open":99,"high":102,"low":98,"close":101,"volume":3}]}`)
		case "/api/markets/ETH-PERP/orderbook":
			assert.Equal(t, "2", r.URL.Query().Get("depth"))
			io.WriteString(w, `{"success":true,"result":{"bids":[[100,2],[99,3]],"asks":[[101,1],[102,4]]}}`)
		case "/api/positions":
			assert.Equal(t, "true", r.URL.Query().Get("showAvgPrice"))
			io.WriteString(w, `{"success":true,"result":[{"future":"ETH-PERP","netSize":-0.3,"entryPrice":3100.5,"realizedPnl":1.5,"unrealizedPnl":-2},{"future":"BTC-PERP","netSize":0,"entryPrice":null}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	ks, err := cli.FetchCandles(ctx, "ETH-PERP", 60, 7, time.Unix(1700000000, 0), time.Unix(1700000060, 0))
	require.NoError(t, err)
	require.Len(t, ks, 1)
	assert.Equal(t, 102.0, ks[0].High)
	assert.Equal(t, 2023, ks[0].Ts.Year())

	snap, err := cli.FetchOrderBook(ctx, "ETH-PERP", 2)
	require.NoError(t, err)
	assert.True(t, snap.Complete())
	assert.Equal(t, 99.0, snap.Bids[1].Price)
	assert.Equal(t, 4.0, snap.Asks[1].Size)

	pos, err := cli.FetchPositions(ctx)
	require.NoError(t, err)
	require.Len(t, pos, 2)
	assert.Equal(t, "ETH-PERP", pos[0].Instrument)
	assert.Equal(t, 3100.5, pos[0].EntryPrice)
	assert.Equal(t, 0.0, pos[1].EntryPrice)

	assert.Len(t, rec.reqs, 3)
}

func TestFTXClientOrders(t *testing.T) {
	var deleted string
	cli, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/orders":
			assert.Equal(t, "ETH-PERP", r.URL.Query().Get("market"))
			io.WriteString(w, `{"success":true,"result":[{"id":1,"clientId":"a","market":"ETH-PERP","side":"sell","price":101,"size":0.01,"status":"open"}]}`)
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			io.WriteString(w, `{"success":true,"result":"Order queued for cancellation"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/markets/ETH-PERP":
			io.WriteString(w, `{"success":true,"result":{"name":"ETH-PERP","priceIncrement":0.1,"sizeIncrement":0.001,"minProvideSize":0.001}}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	open, err := cli.OpenOrders(ctx, "ETH-PERP")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "1", open[0].ID)
	assert.Equal(t, order.SideSell, open[0].Side)
	assert.Equal(t, "a", open[0].ClientID)

	require.NoError(t, cli.CancelOrder(ctx, "1"))
	assert.Equal(t, "/api/orders/1", deleted)

	c, err := cli.FetchConstraints(ctx, "ETH-PERP")
	require.NoError(t, err)
	assert.Equal(t, 0.1, c.PriceIncrement)
	assert.Equal(t, 0.001, c.MinSize)
}

func TestFTXClientErrorEnvelope(t *testing.T) {
	cli, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"success":false,"error":"Not enough balances"}`)
	})
	_, err := cli.PlaceOrder(context.Background(), order.Order{Symbol: "ETH-PERP", Side: order.SideSell, Price: 1, Quantity: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not enough balances")
	require.Len(t, rec.reqs, 1)
	assert.Error(t, rec.reqs[0].err)
	assert.Equal(t, "place", rec.reqs[0].endpoint)
}

func TestTokenBucketLimiterBurst(t *testing.T) {
	l := NewTokenBucketLimiter(1000, 3)
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("burst should not block")
	}

	slow := NewTokenBucketLimiter(0.01, 1)
	require.NoError(t, slow.Wait(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, slow.Wait(ctx), context.Canceled)
}
