package mesh

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"reach-coverage/internal/geo"
)

const (
	dimensions  = 2
	minChildren = 4
	maxChildren = 16
	// 包围盒外扩量；零宽度的退化外环也能建立有效矩形
	padding   = 1e-9
	tolerance = 1e-12
)

type polyItem struct {
	poly orb.Polygon
	rect *rtreego.Rect
}

func (p *polyItem) Bounds() *rtreego.Rect { return p.rect }

// 文档注释：到达圈多边形的 R-Tree 索引
// 背景：MultiPolygon 到达圈可能包含大量碎片，逐个 PIP 开销随碎片数线性增长；先以外环包围盒筛候选再做精确判定。
// 约束：包围盒之外的点射线法必然判定为外部，因此候选筛选不改变结果；只在单次聚合内使用，不跨调用共享。
type polygonIndex struct {
	tree  *rtreego.Rtree
	count int
}

func newPolygonIndex(polys []orb.Polygon) *polygonIndex {
	idx := &polygonIndex{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}
	for _, p := range polys {
		b, ok := geo.RingBound(p)
		if !ok {
			continue
		}
		rect, err := rtreego.NewRect(
			rtreego.Point{b.Min[0] - padding, b.Min[1] - padding},
			[]float64{b.Max[0] - b.Min[0] + 2*padding, b.Max[1] - b.Min[1] + 2*padding},
		)
		if err != nil {
			continue
		}
		idx.tree.Insert(&polyItem{poly: p, rect: rect})
		idx.count++
	}
	return idx
}

// covers：点是否落在任一多边形内（多面按逻辑或）
func (idx *polygonIndex) covers(pt orb.Point) bool {
	if idx.count == 0 {
		return false
	}
	q := rtreego.Point{pt[0], pt[1]}.ToRect(tolerance)
	for _, s := range idx.tree.SearchIntersect(q) {
		it, ok := s.(*polyItem)
		if !ok {
			continue
		}
		if geo.PointInPolygon(pt, it.poly) {
			return true
		}
	}
	return false
}
