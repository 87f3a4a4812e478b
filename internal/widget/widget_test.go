package widget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memElement struct {
	mu     sync.Mutex
	hidden bool
	html   string
}

func (e *memElement) SetHidden(h bool) { e.mu.Lock(); e.hidden = h; e.mu.Unlock() }
func (e *memElement) SetHTML(s string) { e.mu.Lock(); e.html = s; e.mu.Unlock() }
func (e *memElement) Hidden() bool     { e.mu.Lock(); defer e.mu.Unlock(); return e.hidden }
func (e *memElement) HTML() string     { e.mu.Lock(); defer e.mu.Unlock(); return e.html }

type fixedBody int

func (b fixedBody) ScrollHeight() int { return int(b) }

type page struct {
	signIn, search, loading, results *memElement
}

func newPage() (*page, Elements) {
	p := &page{
		signIn:  &memElement{hidden: true},
		search:  &memElement{hidden: true},
		loading: &memElement{hidden: true},
		results: &memElement{hidden: true},
	}
	return p, Elements{
		SignIn:  p.signIn,
		Search:  p.search,
		Loading: p.loading,
		Results: p.results,
		Body:    fixedBody(320),
	}
}

type fakeHost struct {
	token   string
	err     error
	heights chan string
	signIns int
}

func newFakeHost(token string) *fakeHost {
	return &fakeHost{token: token, heights: make(chan string, 8)}
}

func (h *fakeHost) GetIMSAccessToken(context.Context) (User, error) {
	return User{Token: h.token}, h.err
}

func (h *fakeHost) SetHeight(_ context.Context, px string) error {
	h.heights <- px
	return nil
}

func (h *fakeHost) SignIn(context.Context) error {
	h.signIns++
	return nil
}

func (h *fakeHost) waitHeight(t *testing.T) string {
	t.Helper()
	select {
	case px := <-h.heights:
		return px
	case <-time.After(2 * time.Second):
		t.Fatal("host height was not updated")
		return ""
	}
}

type actionReply struct {
	status int
	body   string
}

func actionServer(t *testing.T, reply actionReply, seen *http.Request) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = *r.Clone(context.Background())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.status)
		_, _ = w.Write([]byte(reply.body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newWidget(t *testing.T, host Host, el Elements, actionURL, hostName string) *Widget {
	t.Helper()
	log, _ := test.NewNullLogger()
	w := New(host, el, Options{
		ActionURL:   actionURL,
		HostName:    hostName,
		HeightDelay: 10 * time.Millisecond,
		Log:         log,
	})
	t.Cleanup(w.Close)
	return w
}

func TestLoadWithoutTokenShowsSignIn(t *testing.T) {
	p, el := newPage()
	host := newFakeHost("")
	w := newWidget(t, host, el, "http://unused", "")

	require.NoError(t, w.Load(context.Background()))

	assert.False(t, p.signIn.Hidden())
	assert.True(t, p.search.Hidden())
	assert.Equal(t, Unauthenticated, w.State())
	assert.ErrorIs(t, w.Submit(context.Background(), url.Values{"words": {"cat"}}), ErrNotReady)

	require.NoError(t, w.ClickSignIn(context.Background()))
	assert.Equal(t, 1, host.signIns)
}

func TestLoadHostFailure(t *testing.T) {
	_, el := newPage()
	host := newFakeHost("")
	host.err = errors.New("channel closed")
	w := newWidget(t, host, el, "http://unused", "")

	assert.Error(t, w.Load(context.Background()))
}

func TestSubmitRendersResults(t *testing.T) {
	var seen http.Request
	srv := actionServer(t, actionReply{status: 200, body: `{"files":[
		{"title":"Red <car>","details_url":"https://stock.adobe.com/1","thumbnail_html_tag":"<img src=\"https://t.ftcdn.net/1.jpg\" alt=\"car\" onerror=\"alert(1)\"><script>x()</script>","thumbnail_width":110}
	]}`}, &seen)

	p, el := newPage()
	host := newFakeHost("tok")
	w := newWidget(t, host, el, srv.URL+"/stock-search", "localhost")

	require.NoError(t, w.Load(context.Background()))
	assert.False(t, p.search.Hidden())
	assert.Equal(t, Ready, w.State())

	require.NoError(t, w.Submit(context.Background(), url.Values{"words": {"red car"}}))

	assert.Equal(t, "Bearer tok", seen.Header.Get("Authorization"))
	assert.Equal(t, "on", seen.Header.Get("x-ow-extra-logging"))
	assert.Equal(t, "red car", seen.URL.Query().Get("words"))

	html := p.results.HTML()
	assert.Contains(t, html, `href="https://stock.adobe.com/1"`)
	assert.Contains(t, html, `max-width: 110px;`)
	assert.Contains(t, html, `src="https://t.ftcdn.net/1.jpg"`)
	assert.Contains(t, html, `alt="car"`)
	assert.Contains(t, html, "Red &lt;car&gt;")
	assert.NotContains(t, html, "onerror")
	assert.NotContains(t, html, "<script>")

	assert.True(t, p.loading.Hidden())
	assert.False(t, p.results.Hidden())
	assert.Equal(t, Ready, w.State())
	assert.Equal(t, "320px", host.waitHeight(t))
}

func TestSubmitNoExtraLoggingOffLocalhost(t *testing.T) {
	var seen http.Request
	srv := actionServer(t, actionReply{status: 200, body: `{"files":[]}`}, &seen)

	_, el := newPage()
	w := newWidget(t, newFakeHost("tok"), el, srv.URL, "experience.adobe.com")
	require.NoError(t, w.Load(context.Background()))
	require.NoError(t, w.Submit(context.Background(), url.Values{"words": {"cat"}}))

	assert.Empty(t, seen.Header.Get("x-ow-extra-logging"))
}

func TestSubmitEmptyResults(t *testing.T) {
	srv := actionServer(t, actionReply{status: 200, body: `{"nb_results":0,"files":[]}`}, nil)

	p, el := newPage()
	host := newFakeHost("tok")
	w := newWidget(t, host, el, srv.URL, "")
	require.NoError(t, w.Load(context.Background()))

	require.NoError(t, w.Submit(context.Background(), url.Values{"words": {"zzz <b>"}}))

	assert.Equal(t,
		`<p class="spectrum-Body spectrum-Body--sizeM">No results found for <strong>zzz &lt;b&gt;</strong></p>`,
		p.results.HTML())
	assert.False(t, p.results.Hidden())
	assert.Equal(t, "320px", host.waitHeight(t))
}

func TestSubmitForbiddenRevertsToSignIn(t *testing.T) {
	srv := actionServer(t, actionReply{status: 403, body: `{"error":"invalid token"}`}, nil)

	p, el := newPage()
	host := newFakeHost("expired")
	w := newWidget(t, host, el, srv.URL, "")
	require.NoError(t, w.Load(context.Background()))

	require.NoError(t, w.Submit(context.Background(), url.Values{"words": {"cat"}}))

	assert.False(t, p.signIn.Hidden())
	assert.True(t, p.search.Hidden())
	assert.True(t, p.results.Hidden())
	assert.True(t, p.loading.Hidden())
	assert.Equal(t, Unauthenticated, w.State())
	assert.Equal(t, "320px", host.waitHeight(t))
	assert.ErrorIs(t, w.Submit(context.Background(), url.Values{"words": {"cat"}}), ErrNotReady)
}

func TestSubmitForbiddenDropsPendingHeight(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"files":[{"title":"cat"}]}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	}))
	t.Cleanup(srv.Close)

	_, el := newPage()
	host := newFakeHost("expiring")
	log, _ := test.NewNullLogger()
	w := New(host, el, Options{ActionURL: srv.URL, HeightDelay: 300 * time.Millisecond, Log: log})
	t.Cleanup(w.Close)
	require.NoError(t, w.Load(context.Background()))

	require.NoError(t, w.Submit(context.Background(), url.Values{"words": {"cat"}}))
	require.NoError(t, w.Submit(context.Background(), url.Values{"words": {"cat"}}))
	assert.Equal(t, Unauthenticated, w.State())
	assert.Equal(t, "320px", host.waitHeight(t))

	select {
	case px := <-host.heights:
		t.Fatalf("stale height %q reported after sign-in was shown", px)
	case <-time.After(600 * time.Millisecond):
	}
}

func TestSubmitServerErrorShowsFailure(t *testing.T) {
	srv := actionServer(t, actionReply{status: 500, body: `{"error":"server error"}`}, nil)

	p, el := newPage()
	w := newWidget(t, newFakeHost("tok"), el, srv.URL, "")
	require.NoError(t, w.Load(context.Background()))

	require.NoError(t, w.Submit(context.Background(), url.Values{"words": {"cat"}}))

	assert.Contains(t, p.results.HTML(), "Search failed")
	assert.True(t, p.signIn.Hidden())
	assert.False(t, p.search.Hidden())
	assert.Equal(t, Ready, w.State())
}

func TestNewerSubmitCancelsOlder(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("words") == "slow" {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		_, _ = w.Write([]byte(`{"files":[{"title":"` + r.URL.Query().Get("words") + `"}]}`))
	}))
	defer srv.Close()
	defer close(release)

	p, el := newPage()
	w := newWidget(t, newFakeHost("tok"), el, srv.URL, "")
	require.NoError(t, w.Load(context.Background()))

	slowDone := make(chan error, 1)
	go func() { slowDone <- w.Submit(context.Background(), url.Values{"words": {"slow"}}) }()

	require.Eventually(t, func() bool { return w.State() == Loading }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Submit(context.Background(), url.Values{"words": {"fast"}}))

	select {
	case err := <-slowDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded search did not return")
	}
	assert.True(t, strings.Contains(p.results.HTML(), "fast"))
	assert.False(t, strings.Contains(p.results.HTML(), "slow"))
}
