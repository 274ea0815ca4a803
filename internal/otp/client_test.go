package otp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reach-coverage/internal/fetch"
)

var (
	origin   = orb.Point{137.05797185098484, 36.79203438947747}
	hospital = orb.Point{136.96744588128246, 36.857236126567436}
)

const isoFC = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"time":3600},"geometry":{"type":"MultiPolygon","coordinates":[[[[136.9,36.8],[137.0,36.8],[137.0,36.9],[136.9,36.9],[136.9,36.8]]]]}}]}`

func TestPlaceRoundTrip(t *testing.T) {
	s := FormatPlace(hospital)
	assert.Equal(t, "36.857236126567436,136.96744588128246", s)
	p, err := ParsePlace(s)
	require.NoError(t, err)
	assert.Equal(t, hospital, p)

	for _, bad := range []string{"", "36.8", "a,b", "95,10", "10,190"} {
		_, err := ParsePlace(bad)
		assert.Error(t, err, bad)
	}
}

func TestQueryArriveBy(t *testing.T) {
	c := New("http://otp.local/", origin, "2025-11-01", nil)
	q := c.Query(Request{Place: hospital, ArriveBy: true, Time: "11:30:00", CutoffSeconds: 21600, MaxWalkDistance: 1000})
	assert.Equal(t, FormatPlace(origin), q.Get("fromPlace"))
	assert.Equal(t, FormatPlace(hospital), q.Get("toPlace"))
	assert.Equal(t, "true", q.Get("arriveBy"))
	assert.Equal(t, "2025-11-01", q.Get("date"))
	assert.Equal(t, "11:30:00", q.Get("time"))
	assert.Equal(t, "WALK,TRANSIT", q.Get("mode"))
	assert.Equal(t, "1000", q.Get("maxWalkDistance"))
	assert.Equal(t, "21600", q.Get("cutoffSec"))
}

func TestQueryDepartSwapsPlaces(t *testing.T) {
	c := New("http://otp.local", origin, "2025-11-01", nil)
	q := c.Query(Request{Place: hospital, Time: "13:00:00", CutoffSeconds: 3600, Date: "2025-12-01"})
	assert.Equal(t, FormatPlace(hospital), q.Get("fromPlace"))
	assert.Equal(t, FormatPlace(origin), q.Get("toPlace"))
	assert.Equal(t, "false", q.Get("arriveBy"))
	assert.Equal(t, "2025-12-01", q.Get("date"))
	assert.Empty(t, q.Get("maxWalkDistance"))
}

func TestIsochrone(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, isochronePath, r.URL.Path)
		got = r.URL.Query()
		_, _ = w.Write([]byte(isoFC))
	}))
	defer srv.Close()

	c := New(srv.URL, origin, "2025-11-01", srv.Client())
	fc, err := c.Isochrone(context.Background(), Request{Place: hospital, ArriveBy: true, Time: "14:30:00", CutoffSeconds: 21600})
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "MultiPolygon", fc.Features[0].Geometry.GeoJSONType())
	assert.Equal(t, "14:30:00", got.Get("time"))
}

func TestIsochroneFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, origin, "", srv.Client())
	_, err := c.Isochrone(context.Background(), Request{Place: hospital, Time: "12:00:00", CutoffSeconds: 21600})
	var rf *fetch.RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusBadGateway, rf.Status)
	assert.Equal(t, isochronePath, rf.Endpoint)
}

func TestPing(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, routerPath, r.URL.Path)
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"routerId":"default"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, origin, "", srv.Client())
	require.NoError(t, c.Ping(context.Background()))
	down.Store(true)
	var rf *fetch.RequestFailedError
	require.ErrorAs(t, c.Ping(context.Background()), &rf)
	assert.Equal(t, http.StatusServiceUnavailable, rf.Status)
}
