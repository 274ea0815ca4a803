package tiles

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(id string) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}})
	f.Properties["id"] = id
	return f
}

func collection(ids ...string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, id := range ids {
		fc.Append(named(id))
	}
	return fc
}

func ids(fc *geojson.FeatureCollection) []string {
	var out []string
	for _, f := range fc.Features {
		out = append(out, f.Properties.MustString("id"))
	}
	return out
}

func TestMergeConcatenatesInOrder(t *testing.T) {
	merged := Merge(collection("A", "B"), collection("C"))
	assert.Equal(t, []string{"A", "B", "C"}, ids(merged))
	assert.Len(t, merged.Features, 3)
}

func TestMergeKeepsDuplicates(t *testing.T) {
	merged := Merge(collection("A", "B"), nil, collection("B"))
	assert.Equal(t, []string{"A", "B", "B"}, ids(merged))
}

func TestMergeEmpty(t *testing.T) {
	merged := Merge()
	require.NotNil(t, merged)
	assert.Empty(t, merged.Features)
}

func TestParseTile(t *testing.T) {
	tl, err := ParseTile("11/1803/797")
	require.NoError(t, err)
	assert.Equal(t, Tile{Z: 11, X: 1803, Y: 797}, tl)
	assert.Equal(t, "11/1803/797", tl.String())

	for _, bad := range []string{"", "11/1803", "a/b/c", "2/4/0", "31/0/0", "11/-1/2"} {
		_, err := ParseTile(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTiles(t *testing.T) {
	ts, err := ParseTiles("11/1803/797, 11/1803/798,,11/1802/798")
	require.NoError(t, err)
	assert.Equal(t, []Tile{{11, 1803, 797}, {11, 1803, 798}, {11, 1802, 798}}, ts)

	_, err = ParseTiles("11/1803/797,bad")
	assert.Error(t, err)
}

func TestTileBound(t *testing.T) {
	b := Tile{Z: 11, X: 1803, Y: 798}.Bound()
	assert.InDelta(t, 136.93, b.Min[0], 0.01)
	assert.InDelta(t, 137.11, b.Max[0], 0.01)
	assert.Less(t, b.Min[1], b.Max[1])
}

func TestLoadPreservesTileOrder(t *testing.T) {
	data := map[Tile]*geojson.FeatureCollection{
		{11, 1, 1}: collection("A", "B"),
		{11, 1, 2}: collection("C"),
		{11, 1, 3}: collection("D"),
	}
	f := FetcherFunc(func(ctx context.Context, t Tile) (*geojson.FeatureCollection, error) {
		// 让先请求的瓦片后返回
		time.Sleep(time.Duration(4-t.Y) * 5 * time.Millisecond)
		return data[t], nil
	})
	fc, err := Load(context.Background(), f, []Tile{{11, 1, 1}, {11, 1, 2}, {11, 1, 3}})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids(fc))
}

func TestLoadFailsWhole(t *testing.T) {
	boom := errors.New("status 500")
	var cancelled atomic.Bool
	f := FetcherFunc(func(ctx context.Context, t Tile) (*geojson.FeatureCollection, error) {
		if t.Y == 2 {
			return nil, boom
		}
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return collection("late"), nil
		}
	})
	fc, err := Load(context.Background(), f, []Tile{{11, 1, 1}, {11, 1, 2}, {11, 1, 3}})
	assert.Nil(t, fc)
	var pd *PartialDataError
	require.ErrorAs(t, err, &pd)
	assert.Equal(t, Tile{11, 1, 2}, pd.Tile)
	assert.ErrorIs(t, err, boom)
	assert.True(t, cancelled.Load())
}

func TestLoadContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := FetcherFunc(func(ctx context.Context, t Tile) (*geojson.FeatureCollection, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	_, err := Load(ctx, f, []Tile{{11, 1, 1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLRU(t *testing.T) {
	c := NewLRU(2, time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", []byte("3"))
	_, ok = c.Get("b")
	assert.False(t, ok, "b is least recently used")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU(4, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	c.Set("a", []byte("1"))
	now = now.Add(2 * time.Minute)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCachedFetcherRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	var calls atomic.Int32
	upstream := FetcherFunc(func(ctx context.Context, t Tile) (*geojson.FeatureCollection, error) {
		calls.Add(1)
		return collection("A", "B"), nil
	})
	tl := Tile{11, 1803, 797}

	first := NewCachedFetcher(upstream, rc, nil, time.Hour)
	fc, err := first.Fetch(context.Background(), tl)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids(fc))
	assert.True(t, mr.Exists("popmesh:11/1803/797"))

	// 新实例（模拟另一进程）从 Redis 命中
	second := NewCachedFetcher(upstream, rc, NewLRU(8, time.Hour), time.Hour)
	fc, err = second.Fetch(context.Background(), tl)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids(fc))
	assert.Equal(t, int32(1), calls.Load())

	// Redis 清空后仍由进程内缓存命中
	mr.FlushAll()
	_, err = second.Fetch(context.Background(), tl)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCachedFetcherDoesNotCacheFailures(t *testing.T) {
	var calls atomic.Int32
	upstream := FetcherFunc(func(ctx context.Context, t Tile) (*geojson.FeatureCollection, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("timeout")
		}
		return collection("A"), nil
	})
	cf := NewCachedFetcher(upstream, nil, NewLRU(8, time.Hour), time.Hour)
	_, err := cf.Fetch(context.Background(), Tile{1, 0, 0})
	require.Error(t, err)
	fc, err := cf.Fetch(context.Background(), Tile{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids(fc))
}

func TestCachedFetcherRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rc.Close()
	mr.Close()

	cf := NewCachedFetcher(FetcherFunc(func(ctx context.Context, t Tile) (*geojson.FeatureCollection, error) {
		return collection("A"), nil
	}), rc, nil, time.Hour)
	fc, err := cf.Fetch(context.Background(), Tile{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, ids(fc))
}
