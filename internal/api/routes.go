// 包 api：集中注册 HTTP API 路由以解耦主入口
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"reach-coverage/internal/coverage"
	"reach-coverage/internal/health"
	"reach-coverage/internal/logger"
	"reach-coverage/internal/store"
)

// HealthChecker 上游路线服务连通性
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// History 搜索历史读取（可选）
type History interface {
	RecentSearches(ctx context.Context, limit int) ([]store.SearchRow, error)
	OutcomeCounts(ctx context.Context) (map[string]int64, error)
}

type Deps struct {
	Controller *coverage.Controller
	OTP        HealthChecker
	History    History
	Monitor    *health.Monitor
}

const maxBody = 1 << 16

// 文档注释：在 mux 上注册 API 路由
// 背景：路由带 base 前缀直接注册，访问日志与指标可拿到完整的路由模式。
// 约束：base 为空或以 / 开头且不以 / 结尾；History、OTP 为空时对应路由返回 503。
func Register(mux *http.ServeMux, base string, d Deps) {
	c := d.Controller
	mux.HandleFunc("GET "+base+"/facilities", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Catalog().Facilities)
	})
	mux.HandleFunc("GET "+base+"/options", func(w http.ResponseWriter, r *http.Request) {
		cat := c.Catalog()
		out := optionsResponse{
			Scenarios:       cat.Scenarios,
			WalkDistances:   cat.WalkDistances,
			Years:           cat.Years,
			DefaultScenario: cat.FirstScenarioID(),
		}
		for _, b := range cat.Boundaries {
			out.Boundaries = append(out.Boundaries, boundaryInfo{ID: b.ID, Name: b.Name})
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("GET "+base+"/scenarios/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "params": c.Catalog().Resolve(id)})
	})
	mux.HandleFunc("GET "+base+"/selection", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Selection())
	})
	mux.HandleFunc("PUT "+base+"/selection", func(w http.ResponseWriter, r *http.Request) {
		sel, ok := decodeSelection(w, r, c)
		if !ok {
			return
		}
		snap, err := c.SetSelection(sel)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})
	mux.HandleFunc("GET "+base+"/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Snapshot())
	})
	mux.HandleFunc("POST "+base+"/search", func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 {
			sel, ok := decodeSelection(w, r, c)
			if !ok {
				return
			}
			if _, err := c.SetSelection(sel); err != nil {
				writeError(w, err)
				return
			}
		}
		snap, err := c.Search(r.Context())
		var inf *coverage.InfeasibleScenarioError
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, searchResponse{Snapshot: snap})
		case errors.As(err, &inf):
			writeJSON(w, http.StatusOK, searchResponse{Snapshot: snap, Infeasible: true})
		default:
			writeErrorNotice(w, err, snap.Notice)
		}
	})
	mux.HandleFunc("POST "+base+"/population/reload", func(w http.ResponseWriter, r *http.Request) {
		if err := c.LoadPopulation(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c.Snapshot())
	})
	mux.HandleFunc("GET "+base+"/health/otp", func(w http.ResponseWriter, r *http.Request) {
		if d.OTP == nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unconfigured"})
			return
		}
		if err := d.OTP.Ping(r.Context()); err != nil {
			logger.L().Warn("otp_health_error", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "down", Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
	mux.HandleFunc("GET "+base+"/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Monitor == nil {
			writeJSON(w, http.StatusOK, dependenciesResponse{Status: "ok"})
			return
		}
		st, ok := d.Monitor.Statuses()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, dependenciesResponse{Status: "degraded", Dependencies: st})
			return
		}
		writeJSON(w, http.StatusOK, dependenciesResponse{Status: "ok", Dependencies: st})
	})
	mux.HandleFunc("GET "+base+"/searches", func(w http.ResponseWriter, r *http.Request) {
		if d.History == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "search history disabled", Kind: "unavailable"})
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := d.History.RecentSearches(r.Context(), limit)
		if err != nil {
			logger.L().Error("db_recent_searches_error", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "history unavailable", Kind: "internal"})
			return
		}
		counts, err := d.History.OutcomeCounts(r.Context())
		if err != nil {
			logger.L().Error("db_outcome_counts_error", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "history unavailable", Kind: "internal"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"searches": rows, "outcomes": counts})
	})
}

// decodeSelection 以当前选择为底解码请求体，实现部分更新
func decodeSelection(w http.ResponseWriter, r *http.Request, c *coverage.Controller) (coverage.Selection, bool) {
	sel := c.Selection()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sel); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "bad_request"})
		return sel, false
	}
	return sel, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) { writeErrorNotice(w, err, "") }

// 文档注释：错误到状态码的映射
// 约束：上游失败 502；选择缺失或非法 400；被更新请求取代 409；服务未就绪 503；其余 500。
func writeErrorNotice(w http.ResponseWriter, err error, notice string) {
	status, kind := classify(err)
	if status >= 500 {
		logger.L().Error("api_error", "kind", kind, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind, Notice: notice})
}

func classify(err error) (int, string) {
	var (
		ms coverage.MissingSelectionError
		rf *coverage.RequestFailedError
		pd *coverage.PartialDataError
	)
	switch {
	case errors.As(err, &ms):
		return http.StatusBadRequest, "missing_selection"
	case errors.Is(err, coverage.ErrInvalidSelection):
		return http.StatusBadRequest, "invalid_selection"
	case errors.As(err, &pd):
		return http.StatusBadGateway, "partial_data"
	case errors.As(err, &rf):
		return http.StatusBadGateway, "request_failed"
	case errors.Is(err, coverage.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, coverage.ErrNoPopulationSource), errors.Is(err, coverage.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}
