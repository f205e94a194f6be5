package transit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParetoLabelDominates(t *testing.T) {
	cases := []struct {
		name   string
		l      ParetoLabel
		other  ParetoLabel
		expect bool
	}{
		{"strictly better on both", ParetoLabel{Arrival: 100, Legs: 1}, ParetoLabel{Arrival: 200, Legs: 2}, true},
		{"equal arrival, fewer legs", ParetoLabel{Arrival: 100, Legs: 1}, ParetoLabel{Arrival: 100, Legs: 2}, true},
		{"equal legs, earlier arrival", ParetoLabel{Arrival: 90, Legs: 2}, ParetoLabel{Arrival: 100, Legs: 2}, true},
		{"identical labels", ParetoLabel{Arrival: 100, Legs: 1}, ParetoLabel{Arrival: 100, Legs: 1}, false},
		{"worse arrival, better legs: incomparable", ParetoLabel{Arrival: 150, Legs: 1}, ParetoLabel{Arrival: 100, Legs: 2}, false},
		{"better arrival, worse legs: incomparable", ParetoLabel{Arrival: 90, Legs: 3}, ParetoLabel{Arrival: 100, Legs: 2}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.l.Dominates(tc.other))
		})
	}
}
