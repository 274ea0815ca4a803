// 包 migrate：首次运行自动创建搜索历史表与索引
package migrate

import (
	"context"
	"database/sql"

	"reach-coverage/internal/logger"
)

// Statements 建表语句，按顺序执行
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS _coverage_searches (
		id UUID PRIMARY KEY,
		facility_id TEXT NOT NULL,
		scenario_id TEXT NOT NULL,
		year INT NOT NULL,
		max_walk_distance INT NOT NULL,
		boundary_id TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		total_population DOUBLE PRECISION,
		covered_population DOUBLE PRECISION,
		percentage DOUBLE PRECISION,
		duration_ms BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_coverage_searches_created ON _coverage_searches(created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_coverage_searches_facility ON _coverage_searches(facility_id, scenario_id)`,
}

// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range Statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
