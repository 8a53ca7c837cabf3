package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	require.NoError(t, err)

	tr, ok := c.Transport.(*Transport)
	require.True(t, ok, "期望 *Transport，实际 %T", c.Transport)
	assert.NotNil(t, tr.Base.Proxy, "应启用代理")
	assert.True(t, tr.Base.DisableKeepAlives, "代理模式应禁用 keep-alive")
	assert.True(t, tr.DisableKeepAlives, "请求也应带 Close=true")
}

func TestNewClient_NoProxyKeepsDefault(t *testing.T) {
	c, err := NewClient(Options{})
	require.NoError(t, err)

	tr, ok := c.Transport.(*Transport)
	require.True(t, ok, "期望 *Transport，实际 %T", c.Transport)
	assert.Nil(t, tr.Base.Proxy)
	assert.False(t, tr.Base.DisableKeepAlives)
	assert.Nil(t, tr.Pacer, "PerHostPerMinute=0 时不应限速")
	assert.Equal(t, defaultTimeout, c.Timeout)
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	for _, u := range []string{"http://[::1", "127.0.0.1:8080"} {
		_, err := NewClient(Options{ProxyURL: u})
		assert.Error(t, err, "proxy=%q", u)
	}
}

func TestTransport_SetsUserAgentAndNoRetry(t *testing.T) {
	var hits int
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(Options{})
	require.NoError(t, err)
	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 1, hits, "transport 不应重试")
	assert.NotEmpty(t, ua, "应设置随机 UA")
}

func TestHostPacer_PerHostIndependent(t *testing.T) {
	p := NewHostPacer(rate.Every(time.Hour), 1)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx, "a.test"), "首个请求不应等待")
	require.NoError(t, p.Wait(ctx, "B.test"), "不同 host 互不影响")

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, p.Wait(short, "A.TEST"), "同一 host 第二个请求应被限速")
}
