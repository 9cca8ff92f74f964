package order

import (
	"errors"
	"testing"
)

func TestSymbolConstraintsValidate(t *testing.T) {
	c := SymbolConstraints{
		PriceIncrement: 0.01,
		SizeIncrement:  0.001,
		MinSize:        0.001,
		MaxSize:        10,
		MinNotional:    5,
	}
	if err := c.Validate(3468.65, 0.1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cases := []struct {
		name        string
		price, size float64
	}{
		{"price increment", 100.015, 0.1},
		{"size increment", 100.01, 0.0005},
		{"max size", 100.01, 11},
		{"notional", 10, 0.2},
	}
	for _, tc := range cases {
		if err := c.Validate(tc.price, tc.size); !errors.Is(err, ErrConstraint) {
			t.Fatalf("%s: expected constraint error, got %v", tc.name, err)
		}
	}
	if err := (SymbolConstraints{MinSize: 0.01}).Validate(1, 0.005); !errors.Is(err, ErrConstraint) {
		t.Fatalf("expected min size error, got %v", err)
	}
	if err := (SymbolConstraints{}).Validate(123.456789, 0.00001); err != nil {
		t.Fatalf("zero constraints must accept anything: %v", err)
	}
}
