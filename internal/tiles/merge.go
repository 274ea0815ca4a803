package tiles

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"reach-coverage/internal/logger"
	"reach-coverage/internal/metrics"
)

// Fetcher 获取单个瓦片的人口网格
type Fetcher interface {
	Fetch(ctx context.Context, t Tile) (*geojson.FeatureCollection, error)
}

// FetcherFunc 函数适配器
type FetcherFunc func(ctx context.Context, t Tile) (*geojson.FeatureCollection, error)

func (f FetcherFunc) Fetch(ctx context.Context, t Tile) (*geojson.FeatureCollection, error) {
	return f(ctx, t)
}

// PartialDataError 任一瓦片失败即整体失败，不安装部分数据
type PartialDataError struct {
	Tile Tile
	Err  error
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("population tile %s failed: %v", e.Tile, e.Err)
}

func (e *PartialDataError) Unwrap() error { return e.Err }

// 文档注释：合并多个瓦片的要素集合
// 约束：按瓦片顺序、瓦片内要素顺序拼接；不去重，重叠瓦片中的同一网格会被重复计入；nil 集合跳过。
func Merge(cols ...*geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	n := 0
	for _, c := range cols {
		if c != nil {
			n += len(c.Features)
		}
	}
	out.Features = make([]*geojson.Feature, 0, n)
	for _, c := range cols {
		if c == nil {
			continue
		}
		out.Features = append(out.Features, c.Features...)
	}
	return out
}

// 文档注释：并发拉取全部瓦片并合并
// 背景：瓦片互不依赖，扇出并发可把总耗时压到最慢的单个瓦片。
// 约束：全有或全无；首个失败取消其余请求并返回 *PartialDataError；ctx 取消同样以失败返回。
func Load(ctx context.Context, f Fetcher, ts []Tile) (*geojson.FeatureCollection, error) {
	l := logger.L()
	t0 := time.Now()
	results := make([]*geojson.FeatureCollection, len(ts))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range ts {
		i, t := i, t
		g.Go(func() error {
			fc, err := f.Fetch(gctx, t)
			if err != nil {
				metrics.TileFetchTotal.WithLabelValues("fail").Inc()
				l.Debug("tile_fetch_error", "tile", t.String(), "err", err)
				return &PartialDataError{Tile: t, Err: err}
			}
			metrics.TileFetchTotal.WithLabelValues("ok").Inc()
			results[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.Error("tiles_load_error", "tiles", len(ts), "err", err)
		return nil, err
	}
	merged := Merge(results...)
	l.Info("tiles_load_ok", "tiles", len(ts), "features", len(merged.Features), "duration_ms", time.Since(t0).Milliseconds())
	return merged, nil
}
