package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testMapper() *Mapper {
	return NewMapper(Thresholds{Stake: 100, Upper: 110, Lower: 90, PositionSize: 2, Multiplier: 1.5})
}

func TestMapperBranches(t *testing.T) {
	m := testMapper()
	cases := []struct {
		name    string
		wmid    float64
		current float64
		want    Target
	}{
		{"above upper", 120, 0, Target{Target: 3, Distance: -3}},
		{"at upper", 110, 1, Target{Target: 3, Distance: -2}},
		{"below lower", 80, 0, Target{Target: -3, Distance: 3}},
		{"at lower", 90, -3, Target{Target: -3, Distance: 0}},
		{"at stake", 100, 0.25, Target{Target: 0, Distance: 0.25}},
		{"between lower and stake", 95, 0, Target{Target: -1.5, Distance: 1.5}},
		{"between stake and upper", 105, 2, Target{Target: 1.5, Distance: 0.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Target(tc.wmid, tc.current))
		})
	}
}

func TestMapperContinuity(t *testing.T) {
	m := testMapper()
	eps := 1e-6

	assert.InDelta(t, 0, m.Target(100-eps, 0).Target, 1e-4)
	assert.InDelta(t, 0, m.Target(100+eps, 0).Target, 1e-4)
	assert.InDelta(t, 3, m.Target(110-eps, 0).Target, 1e-4)
	assert.InDelta(t, -3, m.Target(90+eps, 0).Target, 1e-4)
}

func TestMapperRounding(t *testing.T) {
	m := NewMapper(Thresholds{Stake: 3000, Upper: 3300, Lower: 2700, PositionSize: 0.1, Multiplier: 1})
	got := m.Target(3001, 0.01)
	// 1/300*0.1 = 0.000333..
	assert.Equal(t, 0.0003, got.Target)
	assert.Equal(t, 0.0097, got.Distance)
}
