// 包 reinfolib：不動産情報ライブラリ XKT013（将来推计人口 250m 网格）瓦片接口客户端
package reinfolib

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"reach-coverage/internal/fetch"
	"reach-coverage/internal/tiles"
)

const (
	meshPath  = "/ex-api/external/XKT013"
	keyHeader = "Ocp-Apim-Subscription-Key"
)

// ErrMissingKey 未配置订阅密钥
var ErrMissingKey = errors.New("reinfolib: missing subscription key")

// Client 实现 tiles.Fetcher
type Client struct {
	base string
	key  string
	http *http.Client
}

func New(base, key string, hc *http.Client) *Client {
	if hc == nil {
		hc = fetch.DefaultClient(30 * time.Second)
	}
	return &Client{base: strings.TrimRight(base, "/"), key: key, http: hc}
}

// 文档注释：获取单个瓦片的人口网格
// 约束：密钥只放在请求头，不进入日志与错误文本；密钥为空时不发请求直接失败。
func (c *Client) Fetch(ctx context.Context, t tiles.Tile) (*geojson.FeatureCollection, error) {
	endpoint := meshPath + "/" + t.String()
	if c.key == "" {
		return nil, &fetch.RequestFailedError{Endpoint: endpoint, Err: ErrMissingKey}
	}
	q := url.Values{}
	q.Set("response_format", "geojson")
	q.Set("z", strconv.FormatUint(uint64(t.Z), 10))
	q.Set("x", strconv.FormatUint(uint64(t.X), 10))
	q.Set("y", strconv.FormatUint(uint64(t.Y), 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+meshPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &fetch.RequestFailedError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set(keyHeader, c.key)
	return fetch.GetFeatureCollection(ctx, c.http, "reinfolib", endpoint, req)
}

var _ tiles.Fetcher = (*Client)(nil)
