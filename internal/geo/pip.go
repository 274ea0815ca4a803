package geo

import "github.com/paulmach/orb"

// 文档注释：点入多边形判定（射线法 Even-Odd）
// 约束：只使用外环 poly[0]，洞不参与判定（镂空区域内的点仍视为命中）；
// 少于 3 个点的环视为不包含；不做容差处理，恰好落在边上的点归属不确定。
func PointInPolygon(pt orb.Point, poly orb.Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	return pointInRing(pt, poly[0])
}

// 射线法判定点是否在环内；边 (ring[i], ring[j])，j 为 i 的前一个点（首尾回绕）
func pointInRing(pt orb.Point, ring orb.Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt[0], pt[1]
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// 快速包围盒过滤（闭区间）
func InBound(pt orb.Point, b orb.Bound) bool {
	return pt[0] >= b.Min[0] && pt[0] <= b.Max[0] && pt[1] >= b.Min[1] && pt[1] <= b.Max[1]
}
