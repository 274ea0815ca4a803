// 包 app：按配置装配各组件，供服务入口与命令行工具共用
package app

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"reach-coverage/internal/config"
	"reach-coverage/internal/coverage"
	"reach-coverage/internal/fetch"
	"reach-coverage/internal/health"
	"reach-coverage/internal/logger"
	"reach-coverage/internal/migrate"
	"reach-coverage/internal/otp"
	"reach-coverage/internal/reinfolib"
	"reach-coverage/internal/scenario"
	"reach-coverage/internal/store"
	"reach-coverage/internal/tiles"
	"reach-coverage/internal/utils"
)

type App struct {
	Config     config.Config
	Catalog    *scenario.Catalog
	OTP        *otp.Client
	Controller *coverage.Controller
	Store      *store.Store
	Redis      *redis.Client
	Monitor    *health.Monitor
}

// 文档注释：装配应用
// 背景：Redis 与 PostgreSQL 均为可选；连接失败记录日志后降级（仅进程内缓存、不记录历史），不阻止启动。
// 约束：目录或选择非法时返回错误；调用方负责 Close。
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	l := logger.L()
	cat, err := scenario.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Catalog: cat}

	if cfg.RedisEnabled {
		rc, err := utils.OpenRedisFromEnv(ctx)
		if err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			a.Redis = rc
		}
	} else {
		l.Info("redis_disabled")
	}

	var rec coverage.Recorder
	if cfg.PostgresEnabled {
		db, err := utils.OpenPostgresFromEnv(ctx)
		if err == nil {
			err = migrate.EnsureSchema(ctx, db)
			if err != nil {
				db.Close()
			}
		}
		if err != nil {
			l.Error("db_open_error", "err", err)
		} else {
			a.Store = store.AttachDB(db)
			rec = a.Store
		}
	} else {
		l.Info("db_disabled")
	}

	hc := fetch.DefaultClient(cfg.OTPTimeout)
	a.OTP = otp.New(cfg.OTPBaseURL, cfg.OTPOrigin, cfg.OTPDate, hc)

	var pop tiles.Fetcher = reinfolib.New(cfg.ReinfolibBaseURL, cfg.ReinfolibAPIKey, hc)
	pop = tiles.NewCachedFetcher(pop, a.Redis, tiles.NewLRU(cfg.TileMemCacheSize, cfg.TileCacheTTL), cfg.TileCacheTTL)
	if cfg.ReinfolibAPIKey == "" {
		l.Warn("reinfolib_key_missing", "hint", "set REINFOLIB_API_KEY to load population data")
	}

	ctrl, err := coverage.New(coverage.Options{
		Catalog:    cat,
		Router:     a.OTP,
		Population: pop,
		Tiles:      cfg.PopulationTiles,
		Recorder:   rec,
		Initial: coverage.Selection{
			Year:            cfg.PopulationYear,
			MaxWalkDistance: cfg.MaxWalkDistance,
			BoundaryID:      cfg.BoundaryID,
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Controller = ctrl

	a.Monitor = health.NewMonitor(cfg.HeartbeatInterval)
	a.Monitor.Register("otp", a.OTP)
	if a.Redis != nil {
		a.Monitor.Register("redis", health.CheckerFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}))
	}
	if a.Store != nil {
		a.Monitor.Register("postgres", health.CheckerFunc(a.Store.DB().PingContext))
	}
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Controller != nil {
		a.Controller.Close()
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
