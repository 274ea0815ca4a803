package coverage

import (
	"context"
	"time"

	"reach-coverage/internal/logger"
	"reach-coverage/internal/mesh"
)

// SearchRecord 一次搜索的结果摘要
type SearchRecord struct {
	ID              string
	FacilityID      string
	ScenarioID      string
	Year            int
	MaxWalkDistance int
	BoundaryID      string
	Outcome         string
	Stats           *mesh.Stats
	Duration        time.Duration
	CreatedAt       time.Time
}

// Recorder 持久化搜索历史（可选）
type Recorder interface {
	RecordSearch(ctx context.Context, r SearchRecord) error
}

// record 写入失败只记日志；请求取消不影响写入
func (c *Controller) record(ctx context.Context, id string, sel Selection, outcome string, st *mesh.Stats, dur time.Duration) {
	if c.rec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	err := c.rec.RecordSearch(ctx, SearchRecord{
		ID:              id,
		FacilityID:      sel.FacilityID,
		ScenarioID:      sel.ScenarioID,
		Year:            sel.Year,
		MaxWalkDistance: sel.MaxWalkDistance,
		BoundaryID:      sel.BoundaryID,
		Outcome:         outcome,
		Stats:           st,
		Duration:        dur,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		logger.L().Warn("search_record_error", "search_id", id, "err", err)
	}
}
