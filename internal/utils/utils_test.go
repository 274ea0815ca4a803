package utils

import (
	"context"
	"net"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	for _, k := range []string{"PG_HOST", "PG_PORT", "PG_USER", "PG_PASSWORD", "PG_DB", "PG_SSLMODE"} {
		t.Setenv(k, "")
	}
	assert.Equal(t, "postgres://postgres@localhost:5432/coverage?sslmode=disable", BuildPostgresDSNFromEnv())

	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_USER", "app")
	t.Setenv("PG_PASSWORD", "p@ss")
	t.Setenv("PG_SSLMODE", "require")
	assert.Equal(t, "postgres://app:p%40ss@db:5432/coverage?sslmode=require", BuildPostgresDSNFromEnv())
}

func TestOpenRedisFromEnv(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	t.Setenv("REDIS_HOST", host)
	t.Setenv("REDIS_PORT", port)
	t.Setenv("REDIS_DB", "x")

	rc, err := OpenRedisFromEnv(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	require.NoError(t, rc.Set(context.Background(), "k", "v", 0).Err())
	v, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestOpenRedisFromEnvDown(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, _ := net.SplitHostPort(mr.Addr())
	mr.Close()
	t.Setenv("REDIS_HOST", host)
	t.Setenv("REDIS_PORT", port)
	_, err := OpenRedisFromEnv(context.Background())
	assert.Error(t, err)
}

func TestOpenRedisEmptyAddr(t *testing.T) {
	assert.Nil(t, OpenRedis("", "", 0))
}
