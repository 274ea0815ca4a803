package geo

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
)

// 文档注释：两组多边形的几何交集（往返场景：到达圈 ∩ 出发圈）
// 背景：去程约束与返程约束各自返回一个到达圈，同时满足两者的区域为两者交集。
// 约束：输入为空、交集为空或面积为 0 时返回 ok=false，由调用方作为“不可行”处理；
// 每组先并集再求交，组内相互重叠的部分按“任一覆盖即覆盖”计入；
// 结果按环嵌套深度重建外环/洞，偶数层为外环，奇数层归属其最小的外层环。
func Intersect(a, b []orb.Polygon) (orb.MultiPolygon, bool) {
	if len(a) == 0 || len(b) == 0 {
		return nil, false
	}
	ga, gb := unionAll(a), unionAll(b)
	if ga == nil || gb == nil {
		return nil, false
	}
	res := ga.Intersection(gb)
	if res == nil || res.Area() <= 0 {
		return nil, false
	}
	var rings []orb.Ring
	for _, p := range res.Polygons() {
		for _, path := range p {
			if len(path) < 3 {
				continue
			}
			r := make(orb.Ring, 0, len(path)+1)
			for _, pt := range path {
				r = append(r, orb.Point{pt.X, pt.Y})
			}
			if r[0] != r[len(r)-1] {
				r = append(r, r[0])
			}
			rings = append(rings, r)
		}
	}
	mp := assemble(rings)
	if len(mp) == 0 {
		return nil, false
	}
	return mp, true
}

// unionAll 逐个并入各部分；polyclip 按奇偶规则填充，多个部分不能直接拼成一个 geom.Polygon
func unionAll(polys []orb.Polygon) geom.Polygonal {
	var acc geom.Polygonal
	for _, p := range polys {
		g := toGeom(p)
		if len(g) == 0 {
			continue
		}
		if acc == nil {
			acc = g
			continue
		}
		if u := acc.Union(g); u != nil {
			acc = u
		}
	}
	return acc
}

// orb 多边形转 geom.Polygon；GeoJSON 环首尾重复点去掉，geom 的路径隐式闭合
func toGeom(p orb.Polygon) geom.Polygon {
	var out geom.Polygon
	for _, r := range p {
		n := len(r)
		if n > 1 && r[0] == r[n-1] {
			n--
		}
		if n < 3 {
			continue
		}
		path := make(geom.Path, 0, n)
		for _, pt := range r[:n] {
			path = append(path, geom.Point{X: pt[0], Y: pt[1]})
		}
		out = append(out, path)
	}
	return out
}

func assemble(rings []orb.Ring) orb.MultiPolygon {
	n := len(rings)
	depth := make([]int, n)
	parent := make([]int, n)
	areas := make([]float64, n)
	for i, r := range rings {
		areas[i] = math.Abs(ringArea(r))
	}
	for i := range rings {
		parent[i] = -1
		probe := edgeMidpoint(rings[i])
		for j := range rings {
			if i == j || !pointInRing(probe, rings[j]) {
				continue
			}
			depth[i]++
			if parent[i] == -1 || areas[j] < areas[parent[i]] {
				parent[i] = j
			}
		}
	}
	// 外环按面积降序输出，保证结果稳定
	order := make([]int, 0, n)
	for i := range rings {
		if depth[i]%2 == 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(x, y int) bool { return areas[order[x]] > areas[order[y]] })
	slot := make(map[int]int, len(order))
	mp := make(orb.MultiPolygon, 0, len(order))
	for _, i := range order {
		slot[i] = len(mp)
		mp = append(mp, orb.Polygon{rings[i]})
	}
	for i, r := range rings {
		if depth[i]%2 == 1 && parent[i] >= 0 {
			if k, ok := slot[parent[i]]; ok {
				mp[k] = append(mp[k], r)
			}
		}
	}
	return mp
}

// 首条边中点：比顶点更不容易恰好落在相邻环的顶点上
func edgeMidpoint(r orb.Ring) orb.Point {
	return orb.Point{(r[0][0] + r[1][0]) / 2, (r[0][1] + r[1][1]) / 2}
}

// 鞋带公式（有向面积）
func ringArea(r orb.Ring) float64 {
	var s float64
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		s += r[j][0]*r[i][1] - r[i][0]*r[j][1]
	}
	return s / 2
}
