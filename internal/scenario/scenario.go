// 包 scenario：静态目录（设施、时间场景、自治体边界）与场景参数解析
package scenario

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

// 未知场景回退值
const (
	DefaultTime          = "12:00:00"
	DefaultCutoffSeconds = 21600
)

// ErrNotFound 目录中不存在该标识
var ErrNotFound = errors.New("not found")

type Facility struct {
	ID       string  `yaml:"id" json:"id"`
	Name     string  `yaml:"name" json:"name"`
	Lat      float64 `yaml:"lat" json:"lat"`
	Lon      float64 `yaml:"lon" json:"lon"`
	Category string  `yaml:"category" json:"category"`
}

// Point 以 (lon, lat) 返回设施位置
func (f Facility) Point() orb.Point { return orb.Point{f.Lon, f.Lat} }

type Scenario struct {
	ID                     string `yaml:"id" json:"id"`
	Label                  string `yaml:"label" json:"label"`
	Description            string `yaml:"description" json:"description"`
	Time                   string `yaml:"time" json:"time"`
	CutoffSeconds          int    `yaml:"cutoff_seconds" json:"cutoff_seconds"`
	RoundTrip              bool   `yaml:"round_trip" json:"round_trip"`
	DepartureTime          string `yaml:"departure_time" json:"departure_time,omitempty"`
	DepartureCutoffSeconds int    `yaml:"departure_cutoff_seconds" json:"departure_cutoff_seconds,omitempty"`
}

type Boundary struct {
	ID   string       `yaml:"id" json:"id"`
	Name string       `yaml:"name" json:"name"`
	Ring [][]float64 `yaml:"ring" json:"ring"`
}

// Polygon 将 [lon, lat] 列表转换为单环多边形
func (b Boundary) Polygon() orb.Polygon {
	r := make(orb.Ring, len(b.Ring))
	for i, c := range b.Ring {
		r[i] = orb.Point{c[0], c[1]}
	}
	return orb.Polygon{r}
}

type Catalog struct {
	Facilities          []Facility `yaml:"facilities" json:"facilities"`
	Scenarios           []Scenario `yaml:"scenarios" json:"scenarios"`
	Boundaries          []Boundary `yaml:"boundaries" json:"boundaries"`
	WalkDistances       []int      `yaml:"walk_distances" json:"walk_distances"`
	DefaultWalkDistance int        `yaml:"default_walk_distance" json:"default_walk_distance"`
	Years               []int      `yaml:"years" json:"years"`
	DefaultYear         int        `yaml:"default_year" json:"default_year"`
	DefaultBoundary     string     `yaml:"default_boundary" json:"default_boundary"`
}

// Leg 单程请求参数
type Leg struct {
	Time          string `json:"time"`
	CutoffSeconds int    `json:"cutoff_seconds"`
}

// Params 场景解析结果；Departure 非空表示往返（到达圈与出发圈取交集）
type Params struct {
	Arrival   Leg  `json:"arrival"`
	Departure *Leg `json:"departure,omitempty"`
}

func (p Params) RoundTrip() bool { return p.Departure != nil }

// Default 返回内嵌目录
func Default() *Catalog {
	c, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// 文档注释：加载目录
// 约束：path 为空时使用内嵌目录；外部文件必须通过与内嵌目录相同的校验。
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// 文档注释：校验目录
// 约束：标识唯一且非空；时间为 HH:MM:SS；截止秒数为正；往返场景必须给出出发时间；
// 边界环至少 4 个点；默认值须在对应候选列表中（列表为空时不校验）。
func (c *Catalog) Validate() error {
	var errs []error
	seen := map[string]bool{}
	for _, f := range c.Facilities {
		if f.ID == "" || seen["f:"+f.ID] {
			errs = append(errs, fmt.Errorf("facility %q: empty or duplicate id", f.ID))
		}
		seen["f:"+f.ID] = true
		if f.Lat < -90 || f.Lat > 90 || f.Lon < -180 || f.Lon > 180 {
			errs = append(errs, fmt.Errorf("facility %q: coordinates out of range", f.ID))
		}
	}
	for _, s := range c.Scenarios {
		if s.ID == "" || seen["s:"+s.ID] {
			errs = append(errs, fmt.Errorf("scenario %q: empty or duplicate id", s.ID))
		}
		seen["s:"+s.ID] = true
		if !validClock(s.Time) {
			errs = append(errs, fmt.Errorf("scenario %q: bad time %q", s.ID, s.Time))
		}
		if s.CutoffSeconds <= 0 {
			errs = append(errs, fmt.Errorf("scenario %q: cutoff must be positive", s.ID))
		}
		if s.RoundTrip {
			if !validClock(s.DepartureTime) {
				errs = append(errs, fmt.Errorf("scenario %q: bad departure time %q", s.ID, s.DepartureTime))
			}
			if s.DepartureCutoffSeconds < 0 {
				errs = append(errs, fmt.Errorf("scenario %q: negative departure cutoff", s.ID))
			}
		}
	}
	for _, b := range c.Boundaries {
		if b.ID == "" || seen["b:"+b.ID] {
			errs = append(errs, fmt.Errorf("boundary %q: empty or duplicate id", b.ID))
		}
		seen["b:"+b.ID] = true
		if len(b.Ring) < 4 {
			errs = append(errs, fmt.Errorf("boundary %q: ring needs at least 4 points", b.ID))
		}
		for _, pt := range b.Ring {
			if len(pt) != 2 {
				errs = append(errs, fmt.Errorf("boundary %q: coordinate needs [lon, lat]", b.ID))
				break
			}
		}
	}
	if len(c.WalkDistances) > 0 && c.DefaultWalkDistance != 0 && !slices.Contains(c.WalkDistances, c.DefaultWalkDistance) {
		errs = append(errs, fmt.Errorf("default walk distance %d not offered", c.DefaultWalkDistance))
	}
	if len(c.Years) > 0 && c.DefaultYear != 0 && !slices.Contains(c.Years, c.DefaultYear) {
		errs = append(errs, fmt.Errorf("default year %d not offered", c.DefaultYear))
	}
	if c.DefaultBoundary != "" && !seen["b:"+c.DefaultBoundary] {
		errs = append(errs, fmt.Errorf("default boundary %q not defined", c.DefaultBoundary))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	return nil
}

func validClock(s string) bool {
	_, err := time.Parse(time.TimeOnly, s)
	return err == nil
}

// 文档注释：解析场景标识为请求参数
// 背景：场景选择来自界面，可能为空或过期；解析永不失败。
// 约束：未知或空标识回退为 12:00:00 / 21600 单程；往返场景出发截止秒数缺省时沿用到达截止秒数。
func (c *Catalog) Resolve(id string) Params {
	s, err := c.Scenario(id)
	if err != nil {
		return Params{Arrival: Leg{Time: DefaultTime, CutoffSeconds: DefaultCutoffSeconds}}
	}
	p := Params{Arrival: Leg{Time: s.Time, CutoffSeconds: s.CutoffSeconds}}
	if p.Arrival.Time == "" {
		p.Arrival.Time = DefaultTime
	}
	if p.Arrival.CutoffSeconds <= 0 {
		p.Arrival.CutoffSeconds = DefaultCutoffSeconds
	}
	if s.RoundTrip {
		cut := s.DepartureCutoffSeconds
		if cut <= 0 {
			cut = p.Arrival.CutoffSeconds
		}
		p.Departure = &Leg{Time: s.DepartureTime, CutoffSeconds: cut}
	}
	return p
}

func (c *Catalog) Facility(id string) (Facility, error) {
	for _, f := range c.Facilities {
		if f.ID == id {
			return f, nil
		}
	}
	return Facility{}, fmt.Errorf("facility %q: %w", id, ErrNotFound)
}

func (c *Catalog) Scenario(id string) (Scenario, error) {
	for _, s := range c.Scenarios {
		if s.ID == id {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("scenario %q: %w", id, ErrNotFound)
}

func (c *Catalog) Boundary(id string) (Boundary, error) {
	for _, b := range c.Boundaries {
		if b.ID == id {
			return b, nil
		}
	}
	return Boundary{}, fmt.Errorf("boundary %q: %w", id, ErrNotFound)
}

// FirstScenarioID 界面默认选中第一个场景
func (c *Catalog) FirstScenarioID() string {
	if len(c.Scenarios) == 0 {
		return ""
	}
	return c.Scenarios[0].ID
}

func (c *Catalog) ValidWalkDistance(m int) bool {
	return len(c.WalkDistances) == 0 || slices.Contains(c.WalkDistances, m)
}

func (c *Catalog) ValidYear(y int) bool {
	return len(c.Years) == 0 || slices.Contains(c.Years, y)
}
