// 包 fetch：上游 GeoJSON 接口的公共 GET 封装与请求失败错误
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"

	"reach-coverage/internal/logger"
	"reach-coverage/internal/metrics"
)

// 响应体上限：单个瓦片或等时圈通常在数 MB 以内
const maxBody = 64 << 20

// RequestFailedError 上游请求失败（传输错误、非 2xx 或响应体无法解析）
type RequestFailedError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *RequestFailedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request %s failed: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("request %s failed: %v", e.Endpoint, e.Err)
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

// DefaultClient 为未注入客户端时使用的共享实例
func DefaultClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// 文档注释：GET 请求并解析为 GeoJSON 要素集合
// 背景：路线服务与人口网格接口都以 GeoJSON FeatureCollection 返回，统一计时、日志与指标。
// 约束：source 作为指标标签（otp|reinfolib）；endpoint 仅用于日志与错误信息，不应包含密钥；
// 任何失败均返回 *RequestFailedError。
func GetFeatureCollection(ctx context.Context, client *http.Client, source, endpoint string, req *http.Request) (*geojson.FeatureCollection, error) {
	if client == nil {
		client = DefaultClient(0)
	}
	l := logger.L()
	t0 := time.Now()
	fail := func(status int, err error) error {
		metrics.UpstreamRequestsTotal.WithLabelValues(source, statusLabel(status)).Inc()
		l.Error(source+"_request_error", "endpoint", endpoint, "status", status, "err", err)
		return &RequestFailedError{Endpoint: endpoint, Status: status, Err: err}
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fail(0, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fail(resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fail(resp.StatusCode, fmt.Errorf("unexpected status: %s", truncate(body, 200)))
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("decode geojson: %w", err))
	}
	dur := time.Since(t0).Milliseconds()
	metrics.UpstreamDurationMs.WithLabelValues(source).Observe(float64(dur))
	metrics.UpstreamRequestsTotal.WithLabelValues(source, statusLabel(resp.StatusCode)).Inc()
	l.Debug(source+"_response", "endpoint", endpoint, "features", len(fc.Features), "duration_ms", dur)
	return fc, nil
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return fmt.Sprintf("%dxx", status/100)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
