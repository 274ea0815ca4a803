// 包 store：搜索历史的 PostgreSQL 读写
package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"reach-coverage/internal/coverage"
	"reach-coverage/internal/logger"
	"reach-coverage/internal/mesh"
)

// Store：数据库访问入口，实现 coverage.Recorder
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// 文档注释：写入一次搜索记录
// 约束：未计算统计（人口未就绪、不可行或失败）时三个统计列写 NULL
func (s *Store) RecordSearch(ctx context.Context, r coverage.SearchRecord) error {
	var total, covered, pct sql.NullFloat64
	if r.Stats != nil {
		total = sql.NullFloat64{Float64: r.Stats.TotalPopulation, Valid: true}
		covered = sql.NullFloat64{Float64: r.Stats.CoveredPopulation, Valid: true}
		pct = sql.NullFloat64{Float64: r.Stats.Percentage, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO _coverage_searches
		(id, facility_id, scenario_id, year, max_walk_distance, boundary_id, outcome,
		 total_population, covered_population, percentage, duration_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ID, r.FacilityID, r.ScenarioID, r.Year, r.MaxWalkDistance, r.BoundaryID, r.Outcome,
		total, covered, pct, r.Duration.Milliseconds(), r.CreatedAt)
	if err != nil {
		return err
	}
	logger.L().Debug("db_search_recorded", "search_id", r.ID, "outcome", r.Outcome)
	return nil
}

// SearchRow 历史记录行
type SearchRow struct {
	ID              string      `json:"id"`
	FacilityID      string      `json:"facility_id"`
	ScenarioID      string      `json:"scenario_id"`
	Year            int         `json:"year"`
	MaxWalkDistance int         `json:"max_walk_distance"`
	BoundaryID      string      `json:"boundary_id"`
	Outcome         string      `json:"outcome"`
	Stats           *mesh.Stats `json:"stats"`
	DurationMs      int64       `json:"duration_ms"`
	CreatedAt       time.Time   `json:"created_at"`
}

// RecentSearches：按时间倒序返回最近的搜索；limit 限制在 1..500
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]SearchRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, facility_id, scenario_id, year, max_walk_distance,
		boundary_id, outcome, total_population, covered_population, percentage, duration_ms, created_at
		FROM _coverage_searches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SearchRow
	for rows.Next() {
		var r SearchRow
		var total, covered, pct sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.FacilityID, &r.ScenarioID, &r.Year, &r.MaxWalkDistance,
			&r.BoundaryID, &r.Outcome, &total, &covered, &pct, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, err
		}
		if total.Valid {
			r.Stats = &mesh.Stats{TotalPopulation: total.Float64, CoveredPopulation: covered.Float64, Percentage: pct.Float64}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OutcomeCounts：按结果分类统计搜索次数
func (s *Store) OutcomeCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(1) FROM _coverage_searches GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

var _ coverage.Recorder = (*Store)(nil)
