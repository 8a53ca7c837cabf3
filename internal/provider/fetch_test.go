package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("<html>ok</html>"))
		case "/empty":
		case "/gone":
			w.WriteHeader(http.StatusGone)
		case "/throttled":
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		case "/incapsula":
			_, _ = w.Write([]byte(`<html>Request unsuccessful. Incapsula incident ID: 123</html>`))
		default:
			_, _ = w.Write([]byte(`<script src="/cdn-cgi/challenge-platform/h/b"></script>`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := srv.Client()

	b, err := FetchHTML(ctx, c, srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(b))

	_, err = FetchHTML(ctx, c, srv.URL+"/empty")
	assert.Error(t, err, "空 body 应报错")

	_, err = FetchHTML(ctx, c, srv.URL+"/gone")
	var he *HTTPStatusError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusGone, he.StatusCode)
	assert.False(t, he.Throttled())
	assert.Equal(t, "HTTP 410", he.Error())

	_, err = FetchHTML(ctx, c, srv.URL+"/throttled")
	require.ErrorAs(t, err, &he)
	assert.True(t, he.Throttled())
	assert.Equal(t, "30", he.RetryAfter)
	assert.Equal(t, "HTTP 429 throttled retry-after=30", he.Error())

	_, err = FetchHTML(ctx, c, srv.URL+"/challenge")
	var be *BlockedError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "cloudflare", be.Vendor)
	assert.Equal(t, "blocked by cloudflare verification page", be.Error())

	_, err = FetchHTML(ctx, c, srv.URL+"/incapsula")
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "incapsula", be.Vendor)

	_, err = FetchHTML(ctx, nil, srv.URL)
	assert.Error(t, err, "nil client 应报错")
}

func TestFetchError_Unwrap(t *testing.T) {
	inner := &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}
	err := error(&FetchError{Source: NameFVLB, URL: "https://example.test", Err: inner})

	var he *HTTPStatusError
	assert.True(t, errors.As(err, &he))
	assert.Equal(t, "source=fvlb url=https://example.test: HTTP 503 throttled", err.Error())
	assert.Equal(t, "source=fvlb: boom", (&FetchError{Source: NameFVLB, Err: errors.New("boom")}).Error())
}

func TestResolveURL(t *testing.T) {
	cases := map[string]string{
		"/film/a":              "https://example.test/film/a",
		"film/b":               "https://example.test/film/b",
		"//cdn.example.test/x": "https://cdn.example.test/x",
		"http://other.test/y":  "http://other.test/y",
		"":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ResolveURL("https://example.test/", in), "ResolveURL(%q)", in)
	}
	assert.Equal(t, "https://def.test", BaseURL("  ", "https://def.test/"))
}
