package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/tablescout/internal/browser"
)

func testConfig() Config {
	return Config{
		UserAgent:     "test-agent",
		Timeout:       5 * time.Second,
		RatePerSecond: 1000, // don't slow tests down
		MaxRetries:    2,
	}
}

func TestPage_Static(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("<html><body><div class='list-rst'>ok</div></body></html>"))
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	page, err := f.Page(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "list-rst")
}

func TestPage_Static_RetriesOn503(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("<html>recovered</html>"))
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	page, err := f.Page(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "recovered")
	assert.Equal(t, int32(2), calls.Load())
}

func TestPage_Static_404IsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(testConfig(), nil)
	_, err := f.Page(context.Background(), srv.URL, Options{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "404 must not retry")
}

func TestPage_Static_429HalvesRate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxRetries = 1
	f := New(cfg, nil)
	_, err := f.Page(context.Background(), srv.URL, Options{})
	require.Error(t, err)

	u := srv.Listener.Addr().String()
	assert.Less(t, float64(f.limiter(u).Limit()), cfg.RatePerSecond)
}

type fakeRenderer struct {
	req browser.RenderRequest
	res *browser.RenderResult
	err error
}

func (f *fakeRenderer) Render(_ context.Context, req browser.RenderRequest) (*browser.RenderResult, error) {
	f.req = req
	return f.res, f.err
}

func TestPage_Rendered(t *testing.T) {
	t.Parallel()

	r := &fakeRenderer{res: &browser.RenderResult{
		HTML:     "<html><div class='slots'>18:00</div></html>",
		FinalURL: "https://www.tablecheck.com/shops/den",
	}}
	f := New(testConfig(), r)

	page, err := f.Page(context.Background(), "https://www.tablecheck.com/shops/den", Options{
		RequiresRender: true,
		WaitSelector:   ".slots",
	})
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "18:00")
	assert.Equal(t, ".slots", r.req.WaitSelector)
	assert.Positive(t, r.req.WaitTimeout, "default wait timeout must be applied")
}

func TestPage_RenderedWithoutBrowser(t *testing.T) {
	t.Parallel()

	f := New(testConfig(), nil)
	_, err := f.Page(context.Background(), "https://www.tablecheck.com/x", Options{RequiresRender: true})
	assert.Error(t, err)
}

func TestDetectBlock(t *testing.T) {
	t.Parallel()

	resp := &http.Response{StatusCode: 403, Header: http.Header{"Cf-Ray": {"abc"}}}
	blocked, bt := DetectBlock(resp, nil)
	assert.True(t, blocked)
	assert.Equal(t, BlockCloudflare, bt)

	resp = &http.Response{StatusCode: 200, Header: http.Header{}}
	blocked, bt = DetectBlock(resp, []byte("<html><p>please solve this reCAPTCHA</p></html>"))
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, bt)

	blocked, _ = DetectBlock(resp, []byte("<html><body>ordinary listing page with plenty of content</body></html>"))
	assert.False(t, blocked)
}
