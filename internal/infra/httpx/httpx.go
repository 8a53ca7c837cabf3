package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// Options 描述抓取 client 的网络策略。
type Options struct {
	// ProxyURL 非空时所有请求走代理，且每请求新连接。
	ProxyURL string
	// Timeout 是单个 HTTP 请求的总超时；<=0 使用默认 30s。
	Timeout time.Duration
	// PerHostPerMinute 限制对同一 host 的请求频率；<=0 表示不限速。
	PerHostPerMinute int
}

// Transport 把“UA 池 + 代理 + keep-alive 策略 + 按 host 限速”固化为统一策略。
//
// 约束：
// - 不做重试（重试预算由 resolve.RetryPolicy 统一控制，避免两层重试相乘）
// - source 只负责“定位页面 + 解析 HTML”，不关心网络策略细节
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// Pacer 为空表示不限速。
	Pacer *HostPacer

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}
	if t.Pacer != nil && req.URL != nil {
		if err := t.Pacer.Wait(req.Context(), req.URL.Host); err != nil {
			return nil, err
		}
	}

	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" && t.ua != nil {
		r.Header.Set("User-Agent", t.ua.random())
	}
	if t.DisableKeepAlives {
		// 额外保险：即使上层误用了其它 Transport，也尽量不复用连接。
		r.Close = true
	}
	return t.Base.RoundTrip(r)
}

// NewClient 构造用于 source 页面抓取的 HTTP client。
//
// 规则：
// - ProxyURL 非空：必须走代理，且禁用 keep-alive（每请求新连接）
// - 内置 UA 池：每个请求随机 UA
// - PerHostPerMinute>0：按 host 做令牌桶限速（burst=1）
func NewClient(opts Options) (*http.Client, error) {
	proxyURL := strings.TrimSpace(opts.ProxyURL)
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
	}

	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy.url 必须包含 scheme 与 host，例如 http://127.0.0.1:8080")
		}
		base.Proxy = http.ProxyURL(u)
		// proxy 模式强制每请求新连接（代理池轮换依赖该行为）。
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	tr := &Transport{
		Base:              base,
		ua:                globalUA,
		DisableKeepAlives: disableKeepAlives,
	}
	if opts.PerHostPerMinute > 0 {
		tr.Pacer = NewHostPacer(rate.Every(time.Minute/time.Duration(opts.PerHostPerMinute)), 1)
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// HostPacer 为每个 host 维护独立的令牌桶。
type HostPacer struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func NewHostPacer(limit rate.Limit, burst int) *HostPacer {
	if burst < 1 {
		burst = 1
	}
	return &HostPacer{limit: limit, burst: burst, limiters: map[string]*rate.Limiter{}}
}

// Wait 阻塞直到该 host 允许下一次请求，或 ctx 结束。
func (p *HostPacer) Wait(ctx context.Context, host string) error {
	return p.limiter(strings.ToLower(host)).Wait(ctx)
}

func (p *HostPacer) limiter(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[host]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[host] = l
	}
	return l
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	// 尽量保持 UA 列表短小但多样；未来可扩充（不对外暴露配置）。
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:129.0) Gecko/20100101 Firefox/129.0",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
