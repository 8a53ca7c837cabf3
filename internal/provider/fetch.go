package provider

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// 人机验证页特征 -> 验证服务名。
var verificationMarkers = []struct {
	marker []byte
	vendor string
}{
	{[]byte("challenge-platform"), "cloudflare"},
	{[]byte("cf-browser-verification"), "cloudflare"},
	{[]byte("<title>Just a moment...</title>"), "cloudflare"},
	{[]byte("Incapsula incident ID"), "incapsula"},
}

// FetchHTML 发起 GET 并返回 body。
//
// 规则：
// - 非 2xx => *HTTPStatusError
// - body 是人机验证页 => *BlockedError（不尝试绕过）
// - body 为空 => error
func FetchHTML(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	for _, m := range verificationMarkers {
		if bytes.Contains(b, m.marker) {
			return nil, &BlockedError{URL: u, Vendor: m.vendor}
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, RetryAfter: resp.Header.Get("Retry-After")}
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

// ResolveURL 把页面中的相对 href 解析为绝对 URL。
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

// BaseURL 返回去掉尾部斜杠的站点根；为空时使用 def。
func BaseURL(configured, def string) string {
	u := strings.TrimSpace(configured)
	if u == "" {
		u = def
	}
	return strings.TrimRight(u, "/")
}
