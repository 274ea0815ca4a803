package reinfolib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reach-coverage/internal/fetch"
	"reach-coverage/internal/tiles"
)

const meshFC = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"MESH_ID":"1","PTN_2020":120,"PTN_2025":110},"geometry":{"type":"Polygon","coordinates":[[[136.9,36.8],[136.91,36.8],[136.91,36.81],[136.9,36.81],[136.9,36.8]]]}},
{"type":"Feature","properties":{"MESH_ID":"2","PTN_2020":80},"geometry":{"type":"Polygon","coordinates":[[[136.91,36.8],[136.92,36.8],[136.92,36.81],[136.91,36.81],[136.91,36.8]]]}}]}`

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, meshPath, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(keyHeader))
		q := r.URL.Query()
		assert.Equal(t, "geojson", q.Get("response_format"))
		assert.Equal(t, "11", q.Get("z"))
		assert.Equal(t, "1803", q.Get("x"))
		assert.Equal(t, "797", q.Get("y"))
		_, _ = w.Write([]byte(meshFC))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "secret", srv.Client())
	fc, err := c.Fetch(context.Background(), tiles.Tile{Z: 11, X: 1803, Y: 797})
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 120.0, fc.Features[0].Properties.MustFloat64("PTN_2020"))
}

func TestFetchMissingKey(t *testing.T) {
	c := New("http://unused", "", nil)
	_, err := c.Fetch(context.Background(), tiles.Tile{Z: 11, X: 1803, Y: 797})
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestFetchUnauthorizedDoesNotLeakKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", srv.Client())
	_, err := c.Fetch(context.Background(), tiles.Tile{Z: 11, X: 1802, Y: 798})
	var rf *fetch.RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusUnauthorized, rf.Status)
	assert.Equal(t, "/ex-api/external/XKT013/11/1802/798", rf.Endpoint)
	assert.NotContains(t, err.Error(), "secret")
}

func TestLoadThroughTiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(meshFC))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", srv.Client())
	fc, err := tiles.Load(context.Background(), c, []tiles.Tile{{Z: 11, X: 1803, Y: 797}, {Z: 11, X: 1803, Y: 798}})
	require.NoError(t, err)
	assert.Len(t, fc.Features, 4)
}
