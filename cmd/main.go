// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reach-coverage/internal/api"
	"reach-coverage/internal/app"
	"reach-coverage/internal/config"
	"reach-coverage/internal/logger"
	"reach-coverage/internal/metrics"
	"reach-coverage/internal/middleware"
)

func main() {
	l := logger.Setup()
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_api_base", "base", cfg.APIBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		l.Error("app_build_error", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.OTP.Ping(ctx); err != nil {
		l.Warn("otp_ping_error", "base", cfg.OTPBaseURL, "err", err)
	} else {
		l.Info("otp_ping_ok", "base", cfg.OTPBaseURL)
	}
	// 人口数据在后台加载；搜索可先完成，数据到达后补算统计
	a.Controller.StartPopulationLoad()

	mux := http.NewServeMux()
	a.Monitor.Start(ctx)

	deps := api.Deps{Controller: a.Controller, OTP: a.OTP, Monitor: a.Monitor}
	if a.Store != nil {
		deps.History = a.Store
	}
	api.Register(mux, cfg.APIBase, deps)
	mux.Handle("GET "+cfg.APIBase+"/metrics", metrics.Handler())

	handler := middleware.Chain(mux, logger.AccessMiddleware(l))
	if cfg.RateLimitEnabled {
		handler = middleware.Chain(handler, middleware.RateLimit(cfg.RateLimitQPS, cfg.RateLimitBurst))
		l.Info("rate_limit_enabled", "qps", cfg.RateLimitQPS, "burst", cfg.RateLimitBurst)
	}
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
	}()
	l.Info("listening", "addr", cfg.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown_ok")
}
