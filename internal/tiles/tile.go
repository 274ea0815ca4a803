// 包 tiles：人口网格按 XYZ 瓦片分块获取，并发拉取后合并为单一要素集合
package tiles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Tile 为 XYZ 瓦片坐标
type Tile struct {
	Z uint32 `json:"z"`
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
}

func (t Tile) String() string { return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y) }

// Bound 返回瓦片覆盖的经纬度范围
func (t Tile) Bound() orb.Bound {
	return maptile.New(t.X, t.Y, maptile.Zoom(t.Z)).Bound()
}

// 文档注释：解析 "z/x/y" 文本
// 约束：三段均为非负整数；x、y 不得超出该缩放级别的瓦片范围。
func ParseTile(s string) (Tile, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return Tile{}, fmt.Errorf("tile %q: want z/x/y", s)
	}
	var v [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return Tile{}, fmt.Errorf("tile %q: %w", s, err)
		}
		v[i] = n
	}
	if v[0] > 30 {
		return Tile{}, fmt.Errorf("tile %q: zoom out of range", s)
	}
	limit := uint64(1) << v[0]
	if v[1] >= limit || v[2] >= limit {
		return Tile{}, fmt.Errorf("tile %q: x/y out of range for zoom %d", s, v[0])
	}
	return Tile{Z: uint32(v[0]), X: uint32(v[1]), Y: uint32(v[2])}, nil
}

// ParseTiles 解析逗号分隔的瓦片列表，忽略空项
func ParseTiles(s string) ([]Tile, error) {
	var out []Tile
	for _, item := range strings.Split(s, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		t, err := ParseTile(item)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
