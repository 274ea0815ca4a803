package coverage

import (
	"errors"
	"fmt"

	"reach-coverage/internal/fetch"
	"reach-coverage/internal/tiles"
)

// RequestFailedError 路线或人口请求失败
type RequestFailedError = fetch.RequestFailedError

// PartialDataError 人口瓦片部分失败，整体视为失败
type PartialDataError = tiles.PartialDataError

// MissingSelectionError 未选择设施时发起搜索；不发请求，不改状态
type MissingSelectionError struct{}

func (MissingSelectionError) Error() string { return "no facility selected" }

// InfeasibleScenarioError 往返场景无可行区域（软错误，已安装空结果）
type InfeasibleScenarioError struct {
	ScenarioID string
	Reason     string
}

func (e *InfeasibleScenarioError) Error() string {
	return fmt.Sprintf("scenario %q infeasible: %s", e.ScenarioID, e.Reason)
}

var (
	// ErrSuperseded 结果产生时已有更新的搜索或加载开始，结果被丢弃
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrClosed 控制器已关闭
	ErrClosed = errors.New("controller closed")
	// ErrInvalidSelection 选择项不在目录中
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrNoPopulationSource 未配置人口数据源
	ErrNoPopulationSource = errors.New("population source not configured")
)

// asRequestFailed 统一为 *RequestFailedError，便于上层按类型映射
func asRequestFailed(endpoint string, err error) error {
	var rf *RequestFailedError
	if errors.As(err, &rf) {
		return err
	}
	return &RequestFailedError{Endpoint: endpoint, Err: err}
}
