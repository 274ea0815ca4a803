package coverage

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"reach-coverage/internal/mesh"
)

// Phase 搜索状态机阶段
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseRequesting  Phase = "requesting"
	PhaseAggregating Phase = "aggregating"
	PhaseFailed      Phase = "failed"
)

// Selection 用户可调整的输入
type Selection struct {
	FacilityID      string `json:"facility_id"`
	ScenarioID      string `json:"scenario_id"`
	Year            int    `json:"year"`
	MaxWalkDistance int    `json:"max_walk_distance"`
	ShowHeatmap     bool   `json:"show_heatmap"`
	BoundaryID      string `json:"boundary_id"`
}

// state 为控制器内部的显式状态；由 Controller.mu 保护
type state struct {
	sel      Selection
	boundary *orb.Polygon

	population *geojson.FeatureCollection
	popNotice  string
	popErr     string

	searchID     string
	reachability *geojson.FeatureCollection
	polys        []orb.Polygon
	stats        *mesh.Stats
	notice       string
	err          string
	phase        Phase
}

// Snapshot 对外只读视图
// Reachability 为 nil 表示无结果，非 nil 但无要素表示场景不可行；Stats 为 nil 表示尚未计算
type Snapshot struct {
	Selection          Selection                  `json:"selection"`
	Phase              Phase                      `json:"phase"`
	SearchID           string                     `json:"search_id,omitempty"`
	Reachability       *geojson.FeatureCollection `json:"reachability"`
	Stats              *mesh.Stats                `json:"stats"`
	Notice             string                     `json:"notice,omitempty"`
	Error              string                     `json:"error,omitempty"`
	PopulationLoaded   bool                       `json:"population_loaded"`
	PopulationFeatures int                        `json:"population_features"`
	PopulationNotice   string                     `json:"population_notice,omitempty"`
	PopulationError    string                     `json:"population_error,omitempty"`
}

func (s *state) snapshot() Snapshot {
	out := Snapshot{
		Selection:        s.sel,
		Phase:            s.phase,
		SearchID:         s.searchID,
		Reachability:     s.reachability,
		Notice:           s.notice,
		Error:            s.err,
		PopulationNotice: s.popNotice,
		PopulationError:  s.popErr,
	}
	if s.stats != nil {
		st := *s.stats
		out.Stats = &st
	}
	if s.population != nil {
		out.PopulationLoaded = true
		out.PopulationFeatures = len(s.population.Features)
	}
	return out
}

// clearResult 新搜索开始时立即清除上一结果
func (s *state) clearResult() {
	s.reachability = nil
	s.polys = nil
	s.stats = nil
	s.notice = ""
	s.err = ""
}
