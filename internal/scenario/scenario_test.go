package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reach-coverage/internal/geo"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.Len(t, c.Facilities, 3)
	assert.Equal(t, "金沢医科大学氷見市民病院", c.Facilities[0].Name)
	assert.Equal(t, "hospital", c.Facilities[0].Category)
	assert.Equal(t, orb.Point{136.96744588128246, 36.857236126567436}, c.Facilities[0].Point())
	assert.Equal(t, "morning", c.FirstScenarioID())
	assert.Equal(t, []int{300, 500, 1000, 1500, 2000}, c.WalkDistances)
	assert.Equal(t, 2020, c.DefaultYear)
	assert.Equal(t, "himi", c.DefaultBoundary)
}

func TestResolveKnown(t *testing.T) {
	c := Default()
	for id, want := range map[string]string{"morning": "11:30:00", "afternoon": "14:30:00", "evening": "17:00:00"} {
		p := c.Resolve(id)
		assert.Equal(t, want, p.Arrival.Time, id)
		assert.Equal(t, 21600, p.Arrival.CutoffSeconds, id)
		assert.False(t, p.RoundTrip(), id)
	}
}

func TestResolveFallback(t *testing.T) {
	c := Default()
	for _, id := range []string{"", "night", "MORNING"} {
		p := c.Resolve(id)
		assert.Equal(t, Params{Arrival: Leg{Time: "12:00:00", CutoffSeconds: 21600}}, p, id)
	}
}

func TestResolveRoundTrip(t *testing.T) {
	c := Default()
	p := c.Resolve("morning-return")
	require.True(t, p.RoundTrip())
	assert.Equal(t, Leg{Time: "10:00:00", CutoffSeconds: 10800}, p.Arrival)
	assert.Equal(t, Leg{Time: "12:00:00", CutoffSeconds: 10800}, *p.Departure)
}

func TestResolveDepartureCutoffDefaultsToArrival(t *testing.T) {
	c, err := Parse([]byte(`
scenarios:
  - id: rt
    time: "09:00:00"
    cutoff_seconds: 3600
    round_trip: true
    departure_time: "11:00:00"
`))
	require.NoError(t, err)
	p := c.Resolve("rt")
	require.NotNil(t, p.Departure)
	assert.Equal(t, 3600, p.Departure.CutoffSeconds)
}

func TestLookups(t *testing.T) {
	c := Default()
	f, err := c.Facility("3")
	require.NoError(t, err)
	assert.Equal(t, "イオンモール高岡", f.Name)

	_, err = c.Facility("9")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Scenario("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Boundary("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, c.ValidWalkDistance(1500))
	assert.False(t, c.ValidWalkDistance(1200))
	assert.True(t, c.ValidYear(2045))
	assert.False(t, c.ValidYear(2021))
}

func TestBoundaries(t *testing.T) {
	c := Default()
	himi, err := c.Boundary("himi")
	require.NoError(t, err)
	hp := himi.Polygon()
	// 氷見市内の施設は境界内、高岡は境界外
	assert.True(t, geo.PointInPolygon(c.Facilities[0].Point(), hp))
	assert.True(t, geo.PointInPolygon(c.Facilities[1].Point(), hp))
	assert.False(t, geo.PointInPolygon(c.Facilities[2].Point(), hp))

	suzu, err := c.Boundary("suzu")
	require.NoError(t, err)
	assert.Len(t, suzu.Polygon()[0], 5)
	assert.False(t, geo.PointInPolygon(c.Facilities[0].Point(), suzu.Polygon()))
}

func TestValidate(t *testing.T) {
	_, err := Parse([]byte(`
facilities:
  - id: "1"
    lat: 36.8
    lon: 136.9
  - id: "1"
    lat: 100
    lon: 136.9
scenarios:
  - id: a
    time: "25:00"
    cutoff_seconds: 0
  - id: b
    time: "10:00:00"
    cutoff_seconds: 60
    round_trip: true
boundaries:
  - id: x
    ring: [[0,0],[1,0],[0,0]]
walk_distances: [300]
default_walk_distance: 500
default_boundary: y
`))
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"duplicate id", "out of range", "bad time", "cutoff must be positive", "bad departure time", "at least 4 points", "not offered", `default boundary "y"`} {
		assert.Contains(t, msg, want)
	}
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.Scenarios, 5)

	dir := t.TempDir()
	p := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(p, []byte("scenarios:\n  - id: only\n    time: \"08:00:00\"\n    cutoff_seconds: 600\n"), 0o644))
	c, err = Load(p)
	require.NoError(t, err)
	assert.Equal(t, "08:00:00", c.Resolve("only").Arrival.Time)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
	require.NoError(t, os.WriteFile(p, []byte("scenarios: [:"), 0o644))
	_, err = Load(p)
	assert.Error(t, err)
}
