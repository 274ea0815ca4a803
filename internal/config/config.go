// 包 config：集中读取环境变量（可由 .env 提供），为各组件给出带默认值的配置
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb"

	"reach-coverage/internal/otp"
	"reach-coverage/internal/tiles"
)

const (
	defaultFromPlace = "36.79203438947747,137.05797185098484"
	defaultTiles     = "11/1803/797,11/1803/798,11/1802/798"
)

type Config struct {
	Addr    string
	APIBase string

	OTPBaseURL string
	OTPOrigin  orb.Point
	OTPDate    string
	OTPTimeout time.Duration

	ReinfolibBaseURL string
	ReinfolibAPIKey  string
	PopulationTiles  []tiles.Tile
	PopulationYear   int
	BoundaryID       string
	MaxWalkDistance  int
	CatalogPath      string

	TileCacheTTL     time.Duration
	TileMemCacheSize int

	RedisEnabled    bool
	PostgresEnabled bool

	RateLimitEnabled bool
	RateLimitQPS     float64
	RateLimitBurst   int

	HeartbeatInterval time.Duration
}

// 文档注释：加载 .env 并读取配置
// 背景：与部署方式无关，本地开发用 .env，容器中直接注入环境变量；已存在的环境变量优先。
// 约束：文件不存在时忽略；格式错误的取值返回错误而不是静默回退，避免误连生产端点。
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	return FromEnv()
}

// FromEnv 仅读取当前环境变量
func FromEnv() (Config, error) {
	var errs []error
	c := Config{
		Addr:             str("ADDR", ":8090"),
		APIBase:          strings.TrimRight(str("API_BASE", "/api"), "/"),
		OTPBaseURL:       str("OTP_BASE_URL", "http://localhost:8080"),
		OTPDate:          str("OTP_DATE", "2025-11-01"),
		ReinfolibBaseURL: str("REINFOLIB_BASE_URL", "https://www.reinfolib.mlit.go.jp"),
		ReinfolibAPIKey:  os.Getenv("REINFOLIB_API_KEY"),
		BoundaryID:       str("BOUNDARY_ID", "himi"),
		CatalogPath:      os.Getenv("CATALOG_PATH"),
		RedisEnabled:     boolean("REDIS_ENABLED", false, &errs),
		PostgresEnabled:  boolean("PG_ENABLED", false, &errs),
		RateLimitEnabled: boolean("RATE_LIMIT_ENABLED", false, &errs),
		PopulationYear:   integer("POPULATION_YEAR", 2020, &errs),
		MaxWalkDistance:  integer("MAX_WALK_DISTANCE", 1000, &errs),
		TileMemCacheSize: integer("TILE_MEM_CACHE_SIZE", 64, &errs),
		RateLimitBurst:   integer("RATE_LIMIT_BURST", 0, &errs),
		OTPTimeout:       time.Duration(integer("OTP_TIMEOUT_S", 30, &errs)) * time.Second,
		TileCacheTTL:     time.Duration(integer("TILE_CACHE_TTL_S", 86400, &errs)) * time.Second,
	}
	c.HeartbeatInterval = time.Duration(integer("HEARTBEAT_INTERVAL_S", 30, &errs)) * time.Second
	c.RateLimitQPS = float64(integer("RATE_LIMIT_QPS", 200, &errs))
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = int(c.RateLimitQPS)
	}
	if c.APIBase != "" && !strings.HasPrefix(c.APIBase, "/") {
		c.APIBase = "/" + c.APIBase
	}
	origin, err := otp.ParsePlace(str("OTP_FROM_PLACE", defaultFromPlace))
	if err != nil {
		errs = append(errs, fmt.Errorf("OTP_FROM_PLACE: %w", err))
	}
	c.OTPOrigin = origin
	ts, err := tiles.ParseTiles(str("POPULATION_TILES", defaultTiles))
	if err != nil {
		errs = append(errs, fmt.Errorf("POPULATION_TILES: %w", err))
	} else if len(ts) == 0 {
		errs = append(errs, errors.New("POPULATION_TILES: empty"))
	}
	c.PopulationTiles = ts
	if c.OTPDate != "" {
		if _, err := time.Parse(time.DateOnly, c.OTPDate); err != nil {
			errs = append(errs, fmt.Errorf("OTP_DATE: %w", err))
		}
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return c, nil
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func integer(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func boolean(key string, def bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid bool %q", key, v))
		return def
	}
	return b
}
