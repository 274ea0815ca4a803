// 包 geo：到达圈与人口网格共用的几何内核（包围盒中心、点入多边形、多面归一化与求交）
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// 包围盒累加器，初值为 [+inf, -inf] 哨兵；未见到任何坐标时保持哨兵
type bbox struct {
	minX, minY, maxX, maxY float64
}

func newBBox() bbox {
	return bbox{minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
}

func (b *bbox) addRing(r orb.Ring) {
	for _, p := range r {
		if p[0] < b.minX {
			b.minX = p[0]
		}
		if p[0] > b.maxX {
			b.maxX = p[0]
		}
		if p[1] < b.minY {
			b.minY = p[1]
		}
		if p[1] > b.maxY {
			b.maxY = p[1]
		}
	}
}

func (b *bbox) addPolygon(p orb.Polygon) {
	for _, r := range p {
		b.addRing(r)
	}
}

func (b bbox) empty() bool { return math.IsInf(b.minX, 1) }

// 文档注释：包围盒中心点
// 背景：网格单元为规则矩形，包围盒中点即可代表单元位置，计算代价远低于面积质心。
// 约束：仅支持 Polygon/MultiPolygon，统计所有环（含洞）的全部坐标；其他类型或无坐标时返回 false。
// 注意：不是面积质心，不适合用作可视化标注位置。
func Centroid(g orb.Geometry) (orb.Point, bool) {
	b := newBBox()
	switch v := g.(type) {
	case orb.Polygon:
		b.addPolygon(v)
	case orb.MultiPolygon:
		for _, p := range v {
			b.addPolygon(p)
		}
	default:
		return orb.Point{}, false
	}
	if b.empty() {
		return orb.Point{}, false
	}
	return orb.Point{(b.minX + b.maxX) / 2, (b.minY + b.maxY) / 2}, true
}

// RingBound 返回外环的包围盒；外环为空时 ok=false
func RingBound(p orb.Polygon) (orb.Bound, bool) {
	if len(p) == 0 {
		return orb.Bound{}, false
	}
	b := newBBox()
	b.addRing(p[0])
	if b.empty() {
		return orb.Bound{}, false
	}
	return orb.Bound{Min: orb.Point{b.minX, b.minY}, Max: orb.Point{b.maxX, b.maxY}}, true
}

// 文档注释：到达圈几何归一化为多边形列表
// 约束：Polygon 返回单元素列表；MultiPolygon 逐个展开；其他类型返回 nil（调用方视为不可用）。
func Polygons(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) == 0 {
			return nil
		}
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		out := make([]orb.Polygon, 0, len(v))
		for _, p := range v {
			if len(p) > 0 {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}
