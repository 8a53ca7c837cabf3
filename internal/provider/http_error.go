package provider

import (
	"fmt"
	"net/http"
	"strings"
)

// HTTPStatusError 表示评级站点对搜索/详情页返回了非 2xx 状态码。
// 站点限流（429/503）时 RetryAfter 保留响应头原文，写入 Attempt.Error，用于判断是否该调低 rate_per_minute。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	RetryAfter string
}

// Throttled 表示该状态码是站点的限流响应。
func (e *HTTPStatusError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	if !e.Throttled() {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	if ra := strings.TrimSpace(e.RetryAfter); ra != "" {
		return fmt.Sprintf("HTTP %d throttled retry-after=%s", e.StatusCode, ra)
	}
	return fmt.Sprintf("HTTP %d throttled", e.StatusCode)
}

// BlockedError 表示站点返回的是人机验证页而不是搜索结果。
// 不尝试绕过：计入重试预算；持续出现时应配置 proxy.url。
type BlockedError struct {
	URL    string
	Vendor string // 识别到的验证服务，例如 "cloudflare"
}

func (e *BlockedError) Error() string {
	if e == nil || strings.TrimSpace(e.Vendor) == "" {
		return "blocked by verification page"
	}
	return "blocked by " + strings.TrimSpace(e.Vendor) + " verification page"
}

// FetchError 把底层错误与 source、URL 绑定，进入 Attempt 后可以直接定位到哪一次请求失败。
type FetchError struct {
	Source string
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	if strings.TrimSpace(e.URL) == "" {
		return fmt.Sprintf("source=%s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("source=%s url=%s: %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
