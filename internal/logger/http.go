// 包 logger：http访问日志中间件，按状态分级记录，并按路由模式计数
package logger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"reach-coverage/internal/metrics"
)

// recorder 捕获状态码与响应字节数
type recorder struct {
	http.ResponseWriter
	code int
	n    int
}

func (rw *recorder) WriteHeader(code int) {
	rw.code = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.n += n
	return n, err
}

func (rw *recorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func accessLevel(code int) slog.Level {
	switch {
	case code >= 500:
		return slog.LevelWarn
	case code >= 400:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// AccessMiddleware：生成访问日志中间件
// 背景：搜索请求可能耗时数秒（上游路线服务），按状态分级便于筛出失败请求
// 约束：2xx/3xx 记 debug，4xx 记 info，5xx 记 warn；指标标签使用路由模式而非原始路径，避免基数膨胀
func AccessMiddleware(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &recorder{ResponseWriter: w, code: http.StatusOK}
			t0 := time.Now()
			next.ServeHTTP(rw, r)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			l.Log(r.Context(), accessLevel(rw.code), "http_access",
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", rw.code,
				"bytes", rw.n,
				"duration_ms", time.Since(t0).Milliseconds(),
				"remote", r.RemoteAddr,
			)
			metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rw.code)).Inc()
		})
	}
}
