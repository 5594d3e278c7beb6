package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent/pkg/errors"
)

func newFetchServer(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "cf-agent-demo", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetchTool_TruncatesToCap(t *testing.T) {
	srv, hits := newFetchServer(t, strings.Repeat("é", 5000))
	ft := NewFetchTool(map[string]bool{"127.0.0.1": true})

	res, err := ft.Execute(context.Background(), map[string]any{"url": srv.URL + "/blog"})
	require.NoError(t, err)
	assert.Equal(t, 3000, utf8.RuneCountInString(res.Content))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetchTool_LargeBodyReadIsBounded(t *testing.T) {
	var written int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := []byte(strings.Repeat("a", 64*1024))
		// 最多 64MB；客户端读够后断开，写入会提前失败
		for i := 0; i < 1024; i++ {
			n, err := w.Write(chunk)
			atomic.AddInt64(&written, int64(n))
			if err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	ft := NewFetchTool(map[string]bool{"127.0.0.1": true})

	text, err := ft.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 3000, utf8.RuneCountInString(text))
	srv.CloseClientConnections()
	assert.Less(t, atomic.LoadInt64(&written), int64(1024*64*1024))
}

func TestFetchTool_ShortBodyUntouched(t *testing.T) {
	srv, _ := newFetchServer(t, "hello")
	ft := NewFetchTool(map[string]bool{"127.0.0.1": true}, WithMaxChars(10))
	text, err := ft.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestFetchTool_DisallowedHostNoRequest(t *testing.T) {
	srv, hits := newFetchServer(t, "secret")
	u, _ := url.Parse(srv.URL)
	ft := NewFetchTool(map[string]bool{"blog.cloudflare.com": true})

	_, err := ft.Fetch(context.Background(), "http://localhost:"+u.Port()+"/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDomainNotAllowed))
	assert.Contains(t, err.Error(), "domain not permitted")

	_, err = ft.Fetch(context.Background(), "https://evil.example/")
	assert.True(t, errors.Is(err, errors.ErrDomainNotAllowed))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestFetchTool_RedirectOffAllowList(t *testing.T) {
	var targetHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/target" {
			atomic.AddInt32(&targetHits, 1)
			_, _ = w.Write([]byte("moved"))
			return
		}
		u, _ := url.Parse("http://" + r.Host)
		http.Redirect(w, r, "http://localhost:"+u.Port()+"/target", http.StatusFound)
	}))
	defer srv.Close()

	ft := NewFetchTool(map[string]bool{"127.0.0.1": true})
	_, err := ft.Fetch(context.Background(), srv.URL+"/start")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDomainNotAllowed))
	assert.Equal(t, int32(0), atomic.LoadInt32(&targetHits))
}

func TestFetchTool_InvalidURL(t *testing.T) {
	ft := NewFetchTool(nil)
	for _, raw := range []string{"", "not a url", "ftp://blog.cloudflare.com/x"} {
		_, err := ft.Fetch(context.Background(), raw)
		assert.True(t, errors.Is(err, errors.ErrInvalidArg), raw)
	}
}

func TestFetchTool_HostCaseInsensitive(t *testing.T) {
	ft := NewFetchTool(map[string]bool{"Blog.Cloudflare.com": true})
	u, _ := url.Parse("https://BLOG.cloudflare.com/post")
	assert.True(t, ft.allowed(u))
}
