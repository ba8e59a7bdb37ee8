package tilesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"mapmaker/internal/geo"
	"mapmaker/internal/logger"
	"mapmaker/internal/metrics"
	"mapmaker/internal/version"
)

const (
	// DefaultMaxRetries 通信エラー時の再試行回数
	DefaultMaxRetries = 3
	// NoRetries MaxRetries に指定すると再試行しない
	NoRetries = -1

	apiKeyMask = "<API_KEY>"
)

var defaultSubdomains = []string{"a", "b", "c"}

// NewHTTPClient タイル取得用の共有クライアント
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   32,
			MaxConnsPerHost:       32,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// NetworkOptions Network の設定
type NetworkOptions struct {
	// Name サービス名 (ログとメトリクス用)
	Name string
	// URLTemplate {x} {y} {z} {s} {api} を含むURL
	URLTemplate string
	// Subdomains {s} に順番に入る値。空なら a, b, c
	Subdomains []string
	// APIKeys ドメイン -> APIキー
	APIKeys map[string]string
	// MaxRetries 通信エラー時の再試行回数。0 は DefaultMaxRetries、
	// 再試行しないときは NoRetries (負の値)
	MaxRetries int
	UserAgent  string
	Client     *http.Client
	Limiter    *HostLimiter
}

// Network URLテンプレートからHTTPでタイルを取得する Source
type Network struct {
	name       string
	template   string
	host       string
	apiKey     string
	subdomains []string
	maxRetries int
	userAgent  string
	client     *http.Client
	limiter    *HostLimiter

	mu sync.Mutex
	rr int
}

// NewNetwork テンプレートを検証して Network を作成
func NewNetwork(opts NetworkOptions) (*Network, error) {
	host := TemplateHost(opts.URLTemplate)
	if host == "" {
		return nil, fmt.Errorf("invalid url template %q", opts.URLTemplate)
	}
	for _, p := range []string{"{x}", "{y}", "{z}"} {
		if !strings.Contains(opts.URLTemplate, p) {
			return nil, fmt.Errorf("url template %q lacks %s", opts.URLTemplate, p)
		}
	}

	n := &Network{
		name:       opts.Name,
		template:   opts.URLTemplate,
		host:       host,
		apiKey:     lookupKey(opts.APIKeys, host),
		subdomains: opts.Subdomains,
		maxRetries: opts.MaxRetries,
		userAgent:  opts.UserAgent,
		client:     opts.Client,
		limiter:    opts.Limiter,
	}
	if n.name == "" {
		n.name = host
	}
	if len(n.subdomains) == 0 {
		n.subdomains = defaultSubdomains
	}
	if n.maxRetries < 0 {
		n.maxRetries = 0
	} else if opts.MaxRetries == 0 {
		n.maxRetries = DefaultMaxRetries
	}
	if n.userAgent == "" {
		n.userAgent = version.UserAgent()
	}
	if n.client == nil {
		n.client = NewHTTPClient()
	}
	if strings.Contains(n.template, "{api}") && n.apiKey == "" {
		logger.L().Warn("no api key configured", "service", n.name, "domain", host)
	}
	return n, nil
}

// Host テンプレートのドメイン
func (n *Network) Host() string { return n.host }

func (n *Network) Fetch(ctx context.Context, tile geo.Tile, token string) (string, []byte, error) {
	url := n.url(tile)
	masked := n.mask(url)

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		newToken, data, err := n.get(ctx, tile, url, token)
		if err == nil {
			return newToken, data, nil
		}
		var se *StatusError
		if errors.As(err, &se) {
			metrics.TileRequests.WithLabelValues(n.name, "status_"+strconv.Itoa(se.Status)).Inc()
			return "", nil, err
		}
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		lastErr = err
		metrics.TileRequests.WithLabelValues(n.name, "error").Inc()
		logger.L().Debug("tile request failed", "url", masked, "attempt", attempt+1, "error", err)
	}
	return "", nil, fmt.Errorf("%w: tile %s from %s after %d attempts: %v", ErrTileFetch, tile, masked, n.maxRetries+1, lastErr)
}

func (n *Network) get(ctx context.Context, tile geo.Tile, url, token string) (string, []byte, error) {
	var (
		newToken string
		data     []byte
	)
	do := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", n.userAgent)
		if token != "" {
			req.Header.Set("If-None-Match", token)
		}

		logger.L().Debug("GET tile", "url", n.mask(url), "token", token)
		resp, err := n.client.Do(req)
		if err != nil {
			return n.scrub(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotModified:
			metrics.TileRequests.WithLabelValues(n.name, "not_modified").Inc()
			newToken = token
			return nil
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return &StatusError{Tile: tile, URL: n.mask(url), Status: resp.StatusCode}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return n.scrub(err)
		}
		metrics.TileRequests.WithLabelValues(n.name, "ok").Inc()
		metrics.TileBytes.WithLabelValues(n.name).Add(float64(len(body)))
		newToken = resp.Header.Get("ETag")
		data = body
		return nil
	}

	var err error
	if n.limiter != nil {
		err = n.limiter.Do(ctx, n.host, do)
	} else {
		err = do()
	}
	if err != nil {
		// キャンセル時は do がまだ動いている可能性があるので結果を読まない
		return "", nil, err
	}
	return newToken, data, nil
}

func (n *Network) url(tile geo.Tile) string {
	r := strings.NewReplacer(
		"{x}", strconv.Itoa(tile.X),
		"{y}", strconv.Itoa(tile.Y),
		"{z}", strconv.Itoa(tile.Z),
		"{s}", n.nextSubdomain(),
		"{api}", n.apiKey,
	)
	return r.Replace(n.template)
}

func (n *Network) nextSubdomain() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.subdomains[n.rr%len(n.subdomains)]
	n.rr++
	return s
}

// mask ログに出すURLからAPIキーを隠す
func (n *Network) mask(s string) string {
	if n.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, n.apiKey, apiKeyMask)
}

// scrub *url.Error のメッセージにはURLが含まれるのでキーを伏せる
func (n *Network) scrub(err error) error {
	if n.apiKey == "" || !strings.Contains(err.Error(), n.apiKey) {
		return err
	}
	return errors.New(n.mask(err.Error()))
}

// TemplateHost URLテンプレートのホスト部分 (ポートは除く)
func TemplateHost(template string) string {
	_, rest, ok := strings.Cut(template, "://")
	if !ok {
		return ""
	}
	host, _, _ := strings.Cut(rest, "/")
	host, _, _ = strings.Cut(host, "?")
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}

// TopLevelDomain ホストの末尾2ラベル ("a.tile.openstreetmap.org" -> "openstreetmap.org")
func TopLevelDomain(template string) string {
	labels := strings.Split(TemplateHost(template), ".")
	if len(labels) <= 2 {
		return strings.Join(labels, ".")
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

func lookupKey(keys map[string]string, host string) string {
	if k, ok := keys[host]; ok {
		return k
	}
	// "{s}.tile.example.com" は "tile.example.com" でも引けるようにする
	if _, rest, ok := strings.Cut(host, "."); ok && strings.Contains(host, "{") {
		return keys[rest]
	}
	return ""
}
