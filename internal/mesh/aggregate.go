// 包 mesh：人口网格聚合，按到达圈与行政边界统计覆盖人口
package mesh

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"reach-coverage/internal/geo"
)

// Stats 覆盖统计；Percentage 在总人口为 0 时为 0
type Stats struct {
	TotalPopulation   float64 `json:"total_population"`
	CoveredPopulation float64 `json:"covered_population"`
	Percentage        float64 `json:"percentage"`
}

// 文档注释：人口覆盖聚合
// 背景：以网格单元包围盒中心代表整个单元，判定其是否落入行政边界与到达圈。
// 参数：
// - fc：人口网格要素集合，只读；
// - boundary：可选行政边界，nil 表示不过滤；
// - polys：到达圈多边形列表（已由 Polygon/MultiPolygon 归一化），任一命中即计入覆盖；
// - sel：人口取值函数，nil 时使用 DefaultKey。
// 约束：无法计算中心点的要素既不计入总数也不计入覆盖；不在边界内的要素同样排除；
// 无隐藏状态，相同输入得到逐位相同的结果。
func Aggregate(fc *geojson.FeatureCollection, boundary *orb.Polygon, polys []orb.Polygon, sel Selector) Stats {
	var s Stats
	if fc == nil {
		return s
	}
	if sel == nil {
		sel = FixedKey(DefaultKey)
	}
	idx := newPolygonIndex(polys)
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		pop := sel(f)
		c, ok := geo.Centroid(f.Geometry)
		if !ok {
			continue
		}
		if boundary != nil && !geo.PointInPolygon(c, *boundary) {
			continue
		}
		s.TotalPopulation += pop
		if idx.covers(c) {
			s.CoveredPopulation += pop
		}
	}
	s.Percentage = Percentage(s.CoveredPopulation, s.TotalPopulation)
	return s
}

// Percentage covered/total×100，total 为 0 时返回 0
func Percentage(covered, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return covered / total * 100
}
