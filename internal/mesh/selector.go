package mesh

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// DefaultKey 是 XKT013 人口网格中 2020 年人口的属性名
const DefaultKey = "PTN_2020"

// Selector 从网格要素中读取人口值；缺失或无法解析时返回 0
type Selector func(f *geojson.Feature) float64

// FixedKey 按固定属性名读取人口
func FixedKey(key string) Selector {
	return func(f *geojson.Feature) float64 {
		if f == nil || f.Properties == nil {
			return 0
		}
		return toFloat(f.Properties[key])
	}
}

// YearKey 按年份读取人口（PTN_<year>，如 PTN_2020、PTN_2050）
func YearKey(year int) Selector { return FixedKey(YearProperty(year)) }

// YearProperty 返回年份对应的属性名
func YearProperty(year int) string { return fmt.Sprintf("PTN_%d", year) }

// 文档注释：属性值转数值（失败即 0）
// 约束：接受 JSON 数值、json.Number 与数字字符串；NaN/Inf、布尔、空值一律按 0 处理。
func toFloat(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = n
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
