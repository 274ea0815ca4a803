// 包 health：外部依赖（路线服务、Redis、PostgreSQL）心跳监控
package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"reach-coverage/internal/logger"
	"reach-coverage/internal/metrics"
)

// Checker 单个依赖的探活
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc 函数适配器
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Status 依赖健康状态
type Status struct {
	Name    string    `json:"name"`
	Healthy bool      `json:"healthy"`
	Last    time.Time `json:"last"`
	Error   string    `json:"error,omitempty"`
}

// 文档注释：依赖监控器
// 背景：负责依赖注册、周期心跳与状态汇总；/health 据此返回整体可用性。
// 约束：心跳周期默认 30s；注册时视为健康直至首次心跳；单次心跳超时 5s；线程安全读写。
type Monitor struct {
	mu       sync.RWMutex
	cs       map[string]Checker
	st       map[string]Status
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func NewMonitor(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		cs:       make(map[string]Checker),
		st:       make(map[string]Status),
		interval: interval,
		timeout:  5 * time.Second,
		now:      time.Now,
	}
}

// Register 注册依赖；重名覆盖
func (m *Monitor) Register(name string, c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cs[name] = c
	m.st[name] = Status{Name: name, Healthy: true, Last: m.now()}
	metrics.DependencyUp.WithLabelValues(name).Set(1)
	logger.L().Info("dependency_registered", "name", name)
}

// Start 立即执行一次心跳，之后周期执行，直到 ctx 取消
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		m.Check(ctx)
		t := time.NewTicker(m.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Check(ctx)
			}
		}
	}()
}

// 文档注释：执行一轮心跳
// 约束：探活在锁外并发执行，慢依赖不阻塞状态读取。
func (m *Monitor) Check(ctx context.Context) {
	m.mu.RLock()
	cs := make(map[string]Checker, len(m.cs))
	for k, c := range m.cs {
		cs[k] = c
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	results := make(chan Status, len(cs))
	for name, c := range cs {
		wg.Add(1)
		go func(name string, c Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			s := Status{Name: name, Healthy: true, Last: m.now()}
			if err := c.Ping(cctx); err != nil {
				s.Healthy = false
				s.Error = err.Error()
			}
			results <- s
		}(name, c)
	}
	wg.Wait()
	close(results)

	l := logger.L()
	m.mu.Lock()
	defer m.mu.Unlock()
	for s := range results {
		m.st[s.Name] = s
		if s.Healthy {
			l.Debug("dependency_heartbeat_ok", "name", s.Name)
			metrics.HeartbeatTotal.WithLabelValues(s.Name, "ok").Inc()
			metrics.DependencyUp.WithLabelValues(s.Name).Set(1)
		} else {
			l.Warn("dependency_heartbeat_fail", "name", s.Name, "err", s.Error)
			metrics.HeartbeatTotal.WithLabelValues(s.Name, "fail").Inc()
			metrics.DependencyUp.WithLabelValues(s.Name).Set(0)
		}
	}
}

// Statuses 按名称排序返回全部状态；ok 表示全部健康
func (m *Monitor) Statuses() ([]Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.st))
	ok := true
	for _, s := range m.st {
		out = append(out, s)
		ok = ok && s.Healthy
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, ok
}
