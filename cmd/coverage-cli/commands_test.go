package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reach-coverage/internal/scenario"
)

const meshJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"PTN_2020":100,"PTN_2030":80},"geometry":{"type":"Polygon","coordinates":[[[136.949,36.849],[136.951,36.849],[136.951,36.851],[136.949,36.851],[136.949,36.849]]]}},
{"type":"Feature","properties":{"PTN_2020":300,"PTN_2030":"240"},"geometry":{"type":"Polygon","coordinates":[[[136.899,36.899],[136.901,36.899],[136.901,36.901],[136.899,36.901],[136.899,36.899]]]}},
{"type":"Feature","properties":{"PTN_2020":500},"geometry":{"type":"Polygon","coordinates":[[[137.049,36.719],[137.051,36.719],[137.051,36.721],[137.049,36.721],[137.049,36.719]]]}}]}`

const isoJSON = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[[[[136.94,36.84],[136.96,36.84],[136.96,36.86],[136.94,36.86],[136.94,36.84]]]]}}]}`

func writeFiles(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	m := filepath.Join(dir, "mesh.geojson")
	i := filepath.Join(dir, "iso.geojson")
	require.NoError(t, os.WriteFile(m, []byte(meshJSON), 0o644))
	require.NoError(t, os.WriteFile(i, []byte(isoJSON), 0o644))
	return m, i
}

func TestAggregateFiles(t *testing.T) {
	m, i := writeFiles(t)
	cat := scenario.Default()

	st, err := aggregateFiles(cat, m, i, "himi", 2020)
	require.NoError(t, err)
	assert.Equal(t, 400.0, st.TotalPopulation)
	assert.Equal(t, 100.0, st.CoveredPopulation)
	assert.Equal(t, 25.0, st.Percentage)

	st, err = aggregateFiles(cat, m, i, "", 2020)
	require.NoError(t, err)
	assert.Equal(t, 900.0, st.TotalPopulation)

	st, err = aggregateFiles(cat, m, i, "himi", 2030)
	require.NoError(t, err)
	assert.Equal(t, 320.0, st.TotalPopulation)
	assert.Equal(t, 80.0, st.CoveredPopulation)

	_, err = aggregateFiles(cat, m, i, "atlantis", 2020)
	assert.Error(t, err)
	_, err = aggregateFiles(cat, filepath.Join(t.TempDir(), "none.geojson"), i, "", 2020)
	assert.Error(t, err)
}

func TestAggregateCommand(t *testing.T) {
	m, i := writeFiles(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"aggregate", "--mesh", m, "--iso", i})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "total=400 covered=100 percentage=25.00%\n", out.String())
}

func TestResolveCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"resolve", "nope"})
	require.NoError(t, rootCmd.Execute())
	assert.JSONEq(t, `{"arrival":{"time":"12:00:00","cutoff_seconds":21600}}`, out.String())
}
