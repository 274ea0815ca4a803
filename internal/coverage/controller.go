// 包 coverage：到达圈人口覆盖编排（场景解析 → 路线请求 → 交集 → 网格聚合）
package coverage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"reach-coverage/internal/geo"
	"reach-coverage/internal/logger"
	"reach-coverage/internal/mesh"
	"reach-coverage/internal/metrics"
	"reach-coverage/internal/otp"
	"reach-coverage/internal/scenario"
	"reach-coverage/internal/tiles"
)

const (
	noticeMissingSelection = "地図上の施設を選択してください"
	noticeFailed           = "到達圏データの取得に失敗しました。OTPが起動しているか確認してください。"
	noticeInfeasible       = "条件を満たす到達可能な地域がありません"
	noticePopulationFailed = "人口データの取得に失敗しました。カバー率は計算されません。"
	isochroneEP            = "isochrone"
)

// Router 路线服务（等时圈）
type Router interface {
	Isochrone(ctx context.Context, r otp.Request) (*geojson.FeatureCollection, error)
}

// Options 控制器依赖；Population 与 Recorder 可为空
type Options struct {
	Catalog    *scenario.Catalog
	Router     Router
	Population tiles.Fetcher
	Tiles      []tiles.Tile
	Recorder   Recorder
	// Initial 初始选择，零值字段取目录默认
	Initial Selection
}

// 文档注释：覆盖计算控制器
// 背景：HTTP 处理器并发调用，状态由互斥锁保护；过期结果由单调递增的代数丢弃，
// 而不是取消先前的网络请求。
// 约束：人口数据每次加载只写入一次，之后只读；Close 之后人口加载结果不再安装。
type Controller struct {
	cat    *scenario.Catalog
	router Router
	pop    tiles.Fetcher
	tiles  []tiles.Tile
	rec    Recorder

	searchGen atomic.Uint64
	loadGen   atomic.Uint64

	mu sync.RWMutex
	st state

	life context.Context
	stop context.CancelFunc
}

func New(o Options) (*Controller, error) {
	if o.Catalog == nil {
		o.Catalog = scenario.Default()
	}
	if o.Router == nil {
		return nil, errors.New("coverage: router is required")
	}
	life, stop := context.WithCancel(context.Background())
	c := &Controller{
		cat:    o.Catalog,
		router: o.Router,
		pop:    o.Population,
		tiles:  append([]tiles.Tile(nil), o.Tiles...),
		rec:    o.Recorder,
		life:   life,
		stop:   stop,
	}
	c.st.phase = PhaseIdle
	sel := c.withDefaults(o.Initial)
	if err := c.applySelection(sel); err != nil {
		stop()
		return nil, err
	}
	return c, nil
}

func (c *Controller) withDefaults(s Selection) Selection {
	if s.ScenarioID == "" {
		s.ScenarioID = c.cat.FirstScenarioID()
	}
	if s.Year == 0 {
		s.Year = c.cat.DefaultYear
		if s.Year == 0 {
			s.Year = 2020
		}
	}
	if s.MaxWalkDistance == 0 {
		s.MaxWalkDistance = c.cat.DefaultWalkDistance
		if s.MaxWalkDistance == 0 {
			s.MaxWalkDistance = 1000
		}
	}
	if s.BoundaryID == "" {
		s.BoundaryID = c.cat.DefaultBoundary
	}
	return s
}

// Catalog 返回只读目录
func (c *Controller) Catalog() *scenario.Catalog { return c.cat }

// Snapshot 返回当前状态的只读副本
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.snapshot()
}

// Selection 返回当前选择
func (c *Controller) Selection() Selection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.sel
}

// 文档注释：更新选择
// 背景：场景标识不校验（未知标识在搜索时回退到默认参数）；设施、年份、步行距离、边界须在目录中。
// 约束：年份或边界变化且已有到达圈与人口数据时立即重算统计；不清除已有到达圈。
func (c *Controller) SetSelection(s Selection) (Snapshot, error) {
	if err := c.applySelection(s); err != nil {
		return Snapshot{}, err
	}
	return c.Snapshot(), nil
}

func (c *Controller) applySelection(s Selection) error {
	if s.FacilityID != "" {
		if _, err := c.cat.Facility(s.FacilityID); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
	}
	if !c.cat.ValidYear(s.Year) {
		return fmt.Errorf("%w: year %d", ErrInvalidSelection, s.Year)
	}
	if !c.cat.ValidWalkDistance(s.MaxWalkDistance) {
		return fmt.Errorf("%w: max walk distance %d", ErrInvalidSelection, s.MaxWalkDistance)
	}
	var boundary *orb.Polygon
	if s.BoundaryID != "" {
		b, err := c.cat.Boundary(s.BoundaryID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
		p := b.Polygon()
		boundary = &p
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.st.sel
	c.st.sel = s
	c.st.boundary = boundary
	if prev.Year != s.Year || prev.BoundaryID != s.BoundaryID {
		c.recomputeLocked()
	}
	return nil
}

// recomputeLocked 在到达圈与人口数据均存在时重算统计
func (c *Controller) recomputeLocked() {
	if c.st.population == nil || c.st.reachability == nil || len(c.st.polys) == 0 {
		return
	}
	st := c.aggregateLocked()
	c.st.stats = &st
}

func (c *Controller) aggregateLocked() mesh.Stats {
	t0 := time.Now()
	st := mesh.Aggregate(c.st.population, c.st.boundary, c.st.polys, mesh.YearKey(c.st.sel.Year))
	metrics.AggregateDurationMs.Observe(float64(time.Since(t0).Microseconds()) / 1000)
	metrics.CoveragePercent.Observe(st.Percentage)
	return st
}

// 文档注释：执行一次覆盖搜索
// 背景：单程场景发一个到达约束请求；往返场景并发发出到达与出发两个请求，两者都成功后取交集。
// 返回：搜索完成后的快照；软错误 *InfeasibleScenarioError 与快照一并返回（已安装空结果）。
// 约束：
// - 未选择设施返回 MissingSelectionError 及带提示的当前快照，不发请求、不改状态；
// - 开始时立即清除上一结果；任何请求失败返回 *RequestFailedError，且不留下部分结果；
// - 完成时若已有更新的搜索开始，结果被丢弃并返回 ErrSuperseded。
func (c *Controller) Search(ctx context.Context) (Snapshot, error) {
	l := logger.L()
	t0 := time.Now()

	c.mu.Lock()
	sel := c.st.sel
	if sel.FacilityID == "" {
		snap := c.st.snapshot()
		c.mu.Unlock()
		snap.Notice = noticeMissingSelection
		metrics.SearchesTotal.WithLabelValues("missing_selection").Inc()
		return snap, MissingSelectionError{}
	}
	gen := c.searchGen.Add(1)
	searchID := uuid.NewString()
	c.st.clearResult()
	c.st.searchID = searchID
	c.st.phase = PhaseRequesting
	c.mu.Unlock()

	fac, err := c.cat.Facility(sel.FacilityID)
	if err != nil {
		return c.fail(ctx, gen, searchID, sel, t0, asRequestFailed(isochroneEP, err))
	}
	params := c.cat.Resolve(sel.ScenarioID)
	l.Info("search_start", "search_id", searchID, "facility", fac.ID, "scenario", sel.ScenarioID,
		"time", params.Arrival.Time, "round_trip", params.RoundTrip())

	var (
		reach *geojson.FeatureCollection
		polys []orb.Polygon
		soft  error
	)
	if !params.RoundTrip() {
		fc, err := c.router.Isochrone(ctx, c.request(fac, sel, params.Arrival, true))
		if err != nil {
			return c.fail(ctx, gen, searchID, sel, t0, asRequestFailed(isochroneEP, err))
		}
		reach, polys, err = firstPolygons(fc)
		if err != nil {
			return c.fail(ctx, gen, searchID, sel, t0, asRequestFailed(isochroneEP, err))
		}
		if len(polys) == 0 {
			reach = geojson.NewFeatureCollection()
			soft = &InfeasibleScenarioError{ScenarioID: sel.ScenarioID, Reason: "no reachable area"}
		}
	} else {
		var arrival, departure *geojson.FeatureCollection
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			fc, err := c.router.Isochrone(gctx, c.request(fac, sel, params.Arrival, true))
			arrival = fc
			return err
		})
		g.Go(func() error {
			fc, err := c.router.Isochrone(gctx, c.request(fac, sel, *params.Departure, false))
			departure = fc
			return err
		})
		if err := g.Wait(); err != nil {
			return c.fail(ctx, gen, searchID, sel, t0, asRequestFailed(isochroneEP, err))
		}
		_, qa, err := firstPolygons(arrival)
		if err != nil {
			return c.fail(ctx, gen, searchID, sel, t0, asRequestFailed(isochroneEP, err))
		}
		_, qd, err := firstPolygons(departure)
		if err != nil {
			return c.fail(ctx, gen, searchID, sel, t0, asRequestFailed(isochroneEP, err))
		}
		reach, polys, soft = intersectLegs(sel.ScenarioID, params, qa, qd)
	}

	c.mu.Lock()
	if gen != c.searchGen.Load() {
		c.mu.Unlock()
		return c.superseded(searchID)
	}
	c.st.reachability = reach
	c.st.polys = polys
	if soft != nil {
		c.st.notice = noticeInfeasible
	} else {
		c.st.phase = PhaseAggregating
		c.recomputeLocked()
	}
	c.st.phase = PhaseIdle
	snap := c.st.snapshot()
	c.mu.Unlock()

	dur := time.Since(t0)
	metrics.SearchDurationMs.Observe(float64(dur.Milliseconds()))
	outcome := "ok"
	if soft != nil {
		outcome = "infeasible"
		l.Info("search_infeasible", "search_id", searchID, "scenario", sel.ScenarioID, "duration_ms", dur.Milliseconds())
	} else {
		l.Info("search_ok", "search_id", searchID, "polygons", len(polys), "stats_ready", snap.Stats != nil, "duration_ms", dur.Milliseconds())
	}
	metrics.SearchesTotal.WithLabelValues(outcome).Inc()
	c.record(ctx, searchID, sel, outcome, snap.Stats, dur)
	return snap, soft
}

func (c *Controller) request(fac scenario.Facility, sel Selection, leg scenario.Leg, arriveBy bool) otp.Request {
	return otp.Request{
		Place:           fac.Point(),
		ArriveBy:        arriveBy,
		Time:            leg.Time,
		CutoffSeconds:   leg.CutoffSeconds,
		MaxWalkDistance: sel.MaxWalkDistance,
	}
}

// fail 请求失败：进入 Failed，清空结果后回到 Idle
func (c *Controller) fail(ctx context.Context, gen uint64, searchID string, sel Selection, t0 time.Time, err error) (Snapshot, error) {
	c.mu.Lock()
	if gen != c.searchGen.Load() {
		c.mu.Unlock()
		return c.superseded(searchID)
	}
	c.st.phase = PhaseFailed
	c.st.clearResult()
	c.st.notice = noticeFailed
	c.st.err = err.Error()
	c.st.phase = PhaseIdle
	snap := c.st.snapshot()
	c.mu.Unlock()

	dur := time.Since(t0)
	logger.L().Error("search_failed", "search_id", searchID, "phase", PhaseFailed, "err", err, "duration_ms", dur.Milliseconds())
	metrics.SearchesTotal.WithLabelValues("failed").Inc()
	c.record(ctx, searchID, sel, "failed", nil, dur)
	return snap, err
}

func (c *Controller) superseded(searchID string) (Snapshot, error) {
	logger.L().Debug("search_superseded", "search_id", searchID)
	metrics.SearchesTotal.WithLabelValues("superseded").Inc()
	metrics.StaleResultsTotal.WithLabelValues("search").Inc()
	return Snapshot{}, ErrSuperseded
}

// 文档注释：取上游结果首个要素的多边形
// 约束：集合为空返回空列表（由调用方按不可行处理）；首个要素几何不是 Polygon/MultiPolygon 视为响应格式错误。
func firstPolygons(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, []orb.Polygon, error) {
	if fc == nil || len(fc.Features) == 0 {
		return fc, nil, nil
	}
	f := fc.Features[0]
	if f == nil || f.Geometry == nil {
		return nil, nil, errors.New("first feature has no geometry")
	}
	polys := geo.Polygons(f.Geometry)
	if polys == nil {
		return nil, nil, fmt.Errorf("unexpected geometry type %s", f.Geometry.GeoJSONType())
	}
	return fc, polys, nil
}

// intersectLegs 计算往返交集；任一为空或交集为空均视为不可行，安装空集合
func intersectLegs(scenarioID string, p scenario.Params, arrival, departure []orb.Polygon) (*geojson.FeatureCollection, []orb.Polygon, error) {
	if len(arrival) == 0 || len(departure) == 0 {
		return geojson.NewFeatureCollection(), nil,
			&InfeasibleScenarioError{ScenarioID: scenarioID, Reason: "arrival or departure area is empty"}
	}
	mp, ok := geo.Intersect(arrival, departure)
	if !ok {
		return geojson.NewFeatureCollection(), nil,
			&InfeasibleScenarioError{ScenarioID: scenarioID, Reason: "arrival and departure areas do not overlap"}
	}
	var g orb.Geometry = mp
	if len(mp) == 1 {
		g = mp[0]
	}
	f := geojson.NewFeature(g)
	f.Properties["arrival_time"] = p.Arrival.Time
	f.Properties["departure_time"] = p.Departure.Time
	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc, []orb.Polygon(mp), nil
}

// 文档注释：加载人口网格
// 背景：启动时后台加载一次；搜索可先于人口数据完成，数据到达后补算统计。
// 约束：全部瓦片成功才安装；更新的加载开始或控制器关闭后，本次结果被丢弃；
// 失败时在状态中写入人口提示与错误（已安装的数据保留），成功安装后清除。
func (c *Controller) LoadPopulation(ctx context.Context) error {
	if c.pop == nil {
		return ErrNoPopulationSource
	}
	if c.life.Err() != nil {
		return ErrClosed
	}
	l := logger.L()
	gen := c.loadGen.Add(1)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopAfter := context.AfterFunc(c.life, cancel)
	defer stopAfter()

	fc, err := tiles.Load(ctx, c.pop, c.tiles)

	// 关闭检查与安装同在锁内，Close 也持锁
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.life.Err() != nil {
		l.Debug("population_discard_closed", "gen", gen)
		metrics.StaleResultsTotal.WithLabelValues("population").Inc()
		return ErrClosed
	}
	if gen != c.loadGen.Load() {
		l.Debug("population_discard_superseded", "gen", gen)
		metrics.StaleResultsTotal.WithLabelValues("population").Inc()
		return ErrSuperseded
	}
	if err != nil {
		l.Error("population_load_error", "gen", gen, "err", err)
		c.st.popNotice = noticePopulationFailed
		c.st.popErr = err.Error()
		return err
	}
	c.st.population = fc
	c.st.popNotice = ""
	c.st.popErr = ""
	c.recomputeLocked()
	l.Info("population_loaded", "gen", gen, "features", len(fc.Features), "tiles", len(c.tiles))
	return nil
}

// StartPopulationLoad 在控制器生命周期内后台加载人口数据
func (c *Controller) StartPopulationLoad() {
	go func() {
		if err := c.LoadPopulation(c.life); err != nil && !errors.Is(err, ErrClosed) {
			logger.L().Warn("population_background_load_failed", "err", err)
		}
	}()
}

// Close 取消进行中的人口加载；返回后不会再安装任何加载结果
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop()
}
