package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const squareFC = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"PTN_2020":10},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}]}`

func get(t *testing.T, srv *httptest.Server) (*http.Request, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/x", nil)
	require.NoError(t, err)
	return req, "/x"
}

func TestGetFeatureCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(squareFC))
	}))
	defer srv.Close()
	req, ep := get(t, srv)
	fc, err := GetFeatureCollection(context.Background(), srv.Client(), "otp", ep, req)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.GeoJSONType())
}

func TestGetFeatureCollectionStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no route", http.StatusInternalServerError)
	}))
	defer srv.Close()
	req, ep := get(t, srv)
	_, err := GetFeatureCollection(context.Background(), srv.Client(), "otp", ep, req)
	var rf *RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusInternalServerError, rf.Status)
	assert.Equal(t, "/x", rf.Endpoint)
	assert.Contains(t, err.Error(), "status 500")
}

func TestGetFeatureCollectionBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()
	req, ep := get(t, srv)
	_, err := GetFeatureCollection(context.Background(), srv.Client(), "reinfolib", ep, req)
	var rf *RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusOK, rf.Status)
}

func TestGetFeatureCollectionCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, ep := get(t, srv)
	_, err := GetFeatureCollection(ctx, srv.Client(), "otp", ep, req)
	var rf *RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, rf.Status)
}
