package order

import "testing"

func TestStatusTransitions(t *testing.T) {
	legal := [][2]Status{
		{StatusNew, StatusAck},
		{StatusNew, StatusRejected},
		{StatusAck, StatusFilled},
		{StatusAck, StatusCanceled},
		{StatusFilled, StatusFilled},
	}
	for _, tr := range legal {
		if err := ValidateTransition(tr[0], tr[1]); err != nil {
			t.Fatalf("expected %s -> %s legal: %v", tr[0], tr[1], err)
		}
	}
	illegal := [][2]Status{
		{StatusFilled, StatusCanceled},
		{StatusCanceled, StatusAck},
		{StatusRejected, StatusNew},
		{StatusAck, StatusNew},
	}
	for _, tr := range illegal {
		if err := ValidateTransition(tr[0], tr[1]); err == nil {
			t.Fatalf("expected %s -> %s illegal", tr[0], tr[1])
		}
	}
	if !IsFinal(StatusFilled) || IsFinal(StatusAck) {
		t.Fatalf("unexpected final state classification")
	}
}
