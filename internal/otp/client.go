// 包 otp：OpenTripPlanner 等时圈接口客户端
package otp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"reach-coverage/internal/fetch"
	"reach-coverage/internal/logger"
)

const (
	isochronePath = "/otp/routers/default/isochrone"
	routerPath    = "/otp/routers/default"
	defaultMode   = "WALK,TRANSIT"
)

// Request 描述一次等时圈查询
// Place 为设施位置；ArriveBy 为真时设施作为终点（toPlace），否则作为起点（fromPlace）
type Request struct {
	Place           orb.Point
	ArriveBy        bool
	Date            string
	Time            string
	CutoffSeconds   int
	MaxWalkDistance int
	Mode            string
}

// Client 访问 OTP 路由服务
type Client struct {
	base   string
	origin orb.Point
	date   string
	http   *http.Client
}

// 文档注释：创建 OTP 客户端
// 背景：固定出发地与日期来自部署配置（等时圈以设施为中心，另一端点由 OTP 忽略但必须提供）。
// 约束：base 不含末尾斜杠；date 为空时由请求自行指定；hc 为空时使用 30s 超时客户端。
func New(base string, origin orb.Point, date string, hc *http.Client) *Client {
	if hc == nil {
		hc = fetch.DefaultClient(30 * time.Second)
	}
	return &Client{base: strings.TrimRight(base, "/"), origin: origin, date: date, http: hc}
}

// FormatPlace 输出 OTP 的 "lat,lon" 文本
func FormatPlace(p orb.Point) string {
	return strconv.FormatFloat(p.Lat(), 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon(), 'f', -1, 64)
}

// ParsePlace 解析 "lat,lon" 文本
func ParsePlace(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("place %q: want lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("place %q: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("place %q: %w", s, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return orb.Point{}, fmt.Errorf("place %q: out of range", s)
	}
	return orb.Point{lon, lat}, nil
}

// Query 构造等时圈查询参数
func (c *Client) Query(r Request) url.Values {
	q := url.Values{}
	if r.ArriveBy {
		q.Set("fromPlace", FormatPlace(c.origin))
		q.Set("toPlace", FormatPlace(r.Place))
	} else {
		q.Set("fromPlace", FormatPlace(r.Place))
		q.Set("toPlace", FormatPlace(c.origin))
	}
	q.Set("arriveBy", strconv.FormatBool(r.ArriveBy))
	date := r.Date
	if date == "" {
		date = c.date
	}
	if date != "" {
		q.Set("date", date)
	}
	q.Set("time", r.Time)
	mode := r.Mode
	if mode == "" {
		mode = defaultMode
	}
	q.Set("mode", mode)
	if r.MaxWalkDistance > 0 {
		q.Set("maxWalkDistance", strconv.Itoa(r.MaxWalkDistance))
	}
	q.Set("cutoffSec", strconv.Itoa(r.CutoffSeconds))
	return q
}

// 文档注释：请求等时圈
// 约束：返回上游原样的要素集合（可能为空）；请求或解析失败返回 *fetch.RequestFailedError。
func (c *Client) Isochrone(ctx context.Context, r Request) (*geojson.FeatureCollection, error) {
	u := c.base + isochronePath + "?" + c.Query(r).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &fetch.RequestFailedError{Endpoint: isochronePath, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	logger.L().Debug("otp_request", "arrive_by", r.ArriveBy, "time", r.Time, "cutoff_sec", r.CutoffSeconds)
	return fetch.GetFeatureCollection(ctx, c.http, "otp", isochronePath, req)
}

// 文档注释：连通性检查
// 背景：访问路由器元信息接口，非 2xx 视为不可用。
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+routerPath, nil)
	if err != nil {
		return &fetch.RequestFailedError{Endpoint: routerPath, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &fetch.RequestFailedError{Endpoint: routerPath, Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &fetch.RequestFailedError{Endpoint: routerPath, Status: resp.StatusCode, Err: errors.New("router unavailable")}
	}
	return nil
}
