package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMedianDelayClampsNegative(t *testing.T) {
	require.Equal(t, 0, medianDelay(nil))
	require.Equal(t, 60, medianDelay([]float64{60, 60, 60}))
	require.Equal(t, 0, medianDelay([]float64{-90, -30, -10}))
	require.Equal(t, 30, medianDelay([]float64{-120, 30, 180}))
}

// TestMedianDelayAveragesEvenCount pins the np.median-compatible
// behaviour for an even sample count: the two central order statistics
// are averaged, not just the lower one returned.
func TestMedianDelayAveragesEvenCount(t *testing.T) {
	require.Equal(t, 25, medianDelay([]float64{10, 20, 30, 40}))
	require.Equal(t, 0, medianDelay([]float64{-40, -20, 20, 10}))
}

func TestQuantileMedianAllowsNegative(t *testing.T) {
	require.Equal(t, -30.0, quantileMedian([]float64{-90, -30, 0}))
	require.Equal(t, 45.0, quantileMedian([]float64{0, 45, 90}))
}

func TestQuantileMedianAveragesEvenCount(t *testing.T) {
	require.Equal(t, -15.0, quantileMedian([]float64{-90, -30, 0, 30}))
}

func TestMedianTimeUnweightedAcrossCandidates(t *testing.T) {
	require.Equal(t, int64(0), medianTime(nil))
	require.Equal(t, int64(200), medianTime([]int64{100, 200, 300}))
	require.Equal(t, int64(200), medianTime([]int64{300, 100, 200}))
}

func TestMedianTimeAveragesEvenCount(t *testing.T) {
	require.Equal(t, int64(250), medianTime([]int64{100, 200, 300, 400}))
}
