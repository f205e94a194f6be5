package statictt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cityrouter/transitlive/internal/transit"
)

func writeTimetable(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timetable.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFlatIntervalsSingleInterval(t *testing.T) {
	path := writeTimetable(t, `{
		"N5": {
			"outbound": {
				"490000001:490000002": {
					"intervals": [["490000001", 0], ["490000003", 4], ["490000002", 9]],
					"schedules": {"weekday": [[0, 300], [0, 330]]},
					"start_times": [300, 330]
				}
			}
		}
	}`)

	store, err := Load(path)
	require.NoError(t, err)

	pattern, ok := store.Pattern("N5", "outbound", "490000001", "490000002")
	require.True(t, ok)
	require.Len(t, pattern.Intervals, 1)
	require.Equal(t, 0, pattern.Intervals[0].ID)
	require.Len(t, pattern.Intervals[0].Stops, 3)
	require.Equal(t, transit.StopID("490000003"), pattern.Intervals[0].Stops[1].StopID)
	require.Equal(t, 4, pattern.Intervals[0].Stops[1].MinuteOffset)
	require.Equal(t, []int{300, 330}, pattern.StartTimes)
	require.Len(t, pattern.Schedules["weekday"], 2)
}

func TestLoadNestedIntervalsMultipleVariants(t *testing.T) {
	path := writeTimetable(t, `{
		"victoria": {
			"inbound": {
				"940GZZLUBXN:940GZZLUKSX": {
					"intervals": [
						[["940GZZLUBXN", 0], ["940GZZLUKSX", 6]],
						[["940GZZLUBXN", 0], ["940GZZLUFPK", 3], ["940GZZLUKSX", 7]]
					],
					"schedules": {"weekday": [[0, 500], [1, 510]]},
					"start_times": []
				}
			}
		}
	}`)

	store, err := Load(path)
	require.NoError(t, err)

	pattern, ok := store.Pattern("victoria", "inbound", "940GZZLUBXN", "940GZZLUKSX")
	require.True(t, ok)
	require.Len(t, pattern.Intervals, 2)
	require.Equal(t, 0, pattern.Intervals[0].ID)
	require.Equal(t, 1, pattern.Intervals[1].ID)
	require.Len(t, pattern.Intervals[1].Stops, 3)

	iv, ok := pattern.Interval(1)
	require.True(t, ok)
	require.Equal(t, transit.StopID("940GZZLUFPK"), iv.Stops[1].StopID)

	_, ok = pattern.Interval(99)
	require.False(t, ok)
}

func TestAllPatternsFlattensAcrossDirections(t *testing.T) {
	path := writeTimetable(t, `{
		"victoria": {
			"inbound": {
				"A:B": {"intervals": [["A", 0], ["B", 5]], "schedules": {}, "start_times": []}
			},
			"outbound": {
				"B:A": {"intervals": [["B", 0], ["A", 5]], "schedules": {}, "start_times": []}
			}
		}
	}`)

	store, err := Load(path)
	require.NoError(t, err)

	all := store.AllPatterns("victoria")
	require.Len(t, all, 2)
	require.Contains(t, all, "A:B")
	require.Contains(t, all, "B:A")

	require.ElementsMatch(t, []string{"inbound", "outbound"}, store.Directions("victoria"))
	require.Equal(t, []string{"victoria"}, store.Lines())
}

func TestLoadMalformedKeyErrors(t *testing.T) {
	path := writeTimetable(t, `{
		"N5": {"outbound": {"bad-key-no-colon": {"intervals": [], "schedules": {}, "start_times": []}}}
	}`)

	_, err := Load(path)
	require.Error(t, err)
}
