package middleware

import (
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"reach-coverage/internal/logger"
	"reach-coverage/internal/metrics"
)

// 文档注释：令牌桶限流中间件
// 背景：每次搜索都会打到路线服务，入口限速避免上游被过载；按配置开关与速率。
// 约束：不做排队，超限直接返回 429 并附 Retry-After；qps<=0 时不限速。
func RateLimit(qps float64, burst int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if qps <= 0 {
			return next
		}
		if burst <= 0 {
			burst = int(qps)
			if burst < 1 {
				burst = 1
			}
		}
		lim := rate.NewLimiter(rate.Limit(qps), burst)
		retry := strconv.Itoa(int(1/qps) + 1)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				metrics.RateLimitedTotal.Inc()
				logger.L().Debug("rate_limited", "path", r.URL.Path, "ip", r.RemoteAddr)
				w.Header().Set("Retry-After", retry)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain 由外到内组合中间件
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
