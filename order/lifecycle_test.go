package order

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	placed   map[string]int
	canceled int
	failures map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{placed: map[string]int{}, failures: map[string]int{}}
}

func (r *countingRecorder) RecordOrderPlaced(side string)     { r.placed[side]++ }
func (r *countingRecorder) RecordOrderCanceled()              { r.canceled++ }
func (r *countingRecorder) RecordSubmissionFailure(op string) { r.failures[op]++ }

func newTestController(cfg ControllerConfig, exch *mockExchange, rec Recorder) (*Controller, *[]time.Duration) {
	var slept []time.Duration
	c := NewController(cfg, exch, nil, nil, rec)
	c.Sleep = func(d time.Duration) { slept = append(slept, d) }
	return c, &slept
}

func baseConfig() ControllerConfig {
	return ControllerConfig{Symbol: "ETH-PERP", Refresh: 20 * time.Second, PostOnly: true, Cutoff: 0.02}
}

func TestDecideClampsPostOnly(t *testing.T) {
	c, _ := newTestController(baseConfig(), &mockExchange{}, nil)
	bid, ask, _ := c.Decide(CycleInput{
		TradeSize:                  0.0052,
		AggressiveReservationPrice: 3468.7,
		Spread:                     0.05,
		BestBid:                    3468.6,
		BestAsk:                    3468.7,
	})
	assert.Equal(t, 3468.6, bid)
	assert.Equal(t, 3468.75, ask)

	cfg := baseConfig()
	cfg.PostOnly = false
	c, _ = newTestController(cfg, &mockExchange{}, nil)
	bid, ask, _ = c.Decide(CycleInput{AggressiveReservationPrice: 3468.7, Spread: 0.05, BestBid: 3468.6, BestAsk: 3468.7})
	assert.Equal(t, 3468.65, bid)
	assert.Equal(t, 3468.75, ask)
}

func TestDecideSideSelection(t *testing.T) {
	c, _ := newTestController(baseConfig(), &mockExchange{}, nil)
	in := CycleInput{TradeSize: 0.01, AggressiveReservationPrice: 100, Spread: 1, BestBid: 99.5, BestAsk: 100.5}

	in.Distance = -0.0259
	_, _, intents := c.Decide(in)
	require.Len(t, intents, 1)
	assert.Equal(t, SideBuy, intents[0].Side)

	in.Distance = 0.0259
	_, _, intents = c.Decide(in)
	require.Len(t, intents, 1)
	assert.Equal(t, SideSell, intents[0].Side)

	in.Distance = 0.02
	_, _, intents = c.Decide(in)
	require.Len(t, intents, 2)
	assert.Equal(t, SideBuy, intents[0].Side)
	assert.Equal(t, SideSell, intents[1].Side)
}

func TestRunCycleBuyOnlyWhenShort(t *testing.T) {
	exch := &mockExchange{}
	rec := newCountingRecorder()
	c, slept := newTestController(baseConfig(), exch, rec)

	res, err := c.RunCycle(context.Background(), CycleInput{
		TradeSize: 0.0052, AggressiveReservationPrice: 3468.7, Spread: 10,
		BestBid: 3468.9, BestAsk: 3469.0, Distance: -0.0259,
	})
	require.NoError(t, err)
	require.Len(t, exch.placed, 1)
	assert.Equal(t, SideBuy, exch.placed[0].Side)
	assert.Equal(t, 3458.7, exch.placed[0].Price)
	assert.True(t, exch.placed[0].PostOnly)
	assert.Equal(t, OutcomeFilled, res.Outcome)
	assert.Equal(t, []time.Duration{20 * time.Second}, *slept)
	assert.Equal(t, 1, rec.placed["buy"])
	assert.Zero(t, rec.placed["sell"])
}

func TestRunCycleRequotesResting(t *testing.T) {
	exch := &mockExchange{open: []Order{{ID: "1", Side: SideBuy}, {ID: "2", Side: SideSell}}}
	rec := newCountingRecorder()
	c, _ := newTestController(baseConfig(), exch, rec)

	res, err := c.RunCycle(context.Background(), CycleInput{TradeSize: 0.01, AggressiveReservationPrice: 100, Spread: 1, BestBid: 99, BestAsk: 101})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRequoted, res.Outcome)
	assert.Equal(t, []string{"1", "2"}, exch.canceled)
	assert.Equal(t, 2, res.Canceled)
	assert.Equal(t, 2, rec.canceled)
}

func TestRunCycleRunawayCancelsEverything(t *testing.T) {
	exch := &mockExchange{}
	for i := 0; i < 6; i++ {
		exch.open = append(exch.open, Order{ID: fmt.Sprintf("o%d", i), Side: SideSell})
	}
	c, _ := newTestController(baseConfig(), exch, nil)

	res, err := c.RunCycle(context.Background(), CycleInput{TradeSize: 0.01, AggressiveReservationPrice: 100, Spread: 1, BestBid: 99, BestAsk: 101, Distance: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunawayOrders)
	assert.Equal(t, OutcomeRunaway, res.Outcome)
	assert.Len(t, exch.canceled, 6)
	assert.Equal(t, 6, res.Canceled)
}

func TestRunCycleContinuesAfterFailures(t *testing.T) {
	exch := &mockExchange{
		errPlace:  errors.New("insufficient margin"),
		open:      []Order{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		errCancel: map[string]error{"b": errors.New("already closed")},
	}
	rec := newCountingRecorder()
	c, _ := newTestController(baseConfig(), exch, rec)

	res, err := c.RunCycle(context.Background(), CycleInput{TradeSize: 0.01, AggressiveReservationPrice: 100, Spread: 1, BestBid: 99, BestAsk: 101})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, exch.canceled)
	assert.Equal(t, 2, res.Canceled)
	assert.Equal(t, 1, res.CancelFailures)
	assert.Equal(t, 2, rec.failures["place"])
	assert.Equal(t, 1, rec.failures["cancel"])

	var serr *SubmissionError
	require.ErrorAs(t, res.Errors[len(res.Errors)-1], &serr)
	assert.Equal(t, "cancel", serr.Op)
	assert.Equal(t, "b", serr.OrderID)
}

func TestRunCycleOpenOrdersError(t *testing.T) {
	exch := &mockExchange{errOpen: errors.New("503")}
	c, _ := newTestController(baseConfig(), exch, nil)
	_, err := c.RunCycle(context.Background(), CycleInput{TradeSize: 0.01, AggressiveReservationPrice: 100, Spread: 1, BestBid: 99, BestAsk: 101})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRunawayOrders)
}

func TestCancelOpen(t *testing.T) {
	exch := &mockExchange{open: []Order{{ID: "x"}, {ID: "y"}}, errCancel: map[string]error{"y": errors.New("gone")}}
	c, _ := newTestController(baseConfig(), exch, nil)
	n, err := c.CancelOpen(context.Background())
	assert.Equal(t, 1, n)
	assert.Error(t, err)
}
