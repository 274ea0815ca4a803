package api

import (
	"reach-coverage/internal/coverage"
	"reach-coverage/internal/health"
	"reach-coverage/internal/scenario"
)

// 文档注释：对外返回结构
// 约束：字段稳定；新增字段需评估前端依赖。
type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Notice string `json:"notice,omitempty"`
}

type searchResponse struct {
	coverage.Snapshot
	Infeasible bool `json:"infeasible"`
}

type optionsResponse struct {
	Scenarios       []scenario.Scenario `json:"scenarios"`
	WalkDistances   []int               `json:"walk_distances"`
	Years           []int               `json:"years"`
	Boundaries      []boundaryInfo      `json:"boundaries"`
	DefaultScenario string              `json:"default_scenario"`
}

type boundaryInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type dependenciesResponse struct {
	Status       string          `json:"status"`
	Dependencies []health.Status `json:"dependencies,omitempty"`
}
