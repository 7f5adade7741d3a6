package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// feedServer is a test origin that records conditional request headers and
// serves a scripted sequence of responses.
type feedServer struct {
	mu        sync.Mutex
	requests  []http.Header
	responses []func(w http.ResponseWriter)
}

func (s *feedServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Header.Clone())
	idx := len(s.requests) - 1
	s.mu.Unlock()

	if idx < len(s.responses) {
		s.responses[idx](w)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *feedServer) header(i int) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func newTestFetcher() *Fetcher {
	return New(5*time.Second, zap.NewNop())
}

func TestFetchStoresAndSendsValidators(t *testing.T) {
	srv := &feedServer{
		responses: []func(w http.ResponseWriter){
			func(w http.ResponseWriter) {
				w.Header().Set("ETag", `"v1"`)
				w.Header().Set("Last-Modified", "Mon, 02 Jun 2025 15:04:05 GMT")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("<rss>one</rss>"))
			},
			func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusNotModified)
			},
		},
	}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer ts.Close()

	f := newTestFetcher()

	body, changed := f.Fetch(context.Background(), "test", ts.URL)
	require.True(t, changed)
	assert.Equal(t, "<rss>one</rss>", string(body))
	assert.Empty(t, srv.header(0).Get("If-None-Match"))

	body, changed = f.Fetch(context.Background(), "test", ts.URL)
	assert.False(t, changed)
	assert.Nil(t, body)
	assert.Equal(t, `"v1"`, srv.header(1).Get("If-None-Match"))
	assert.Equal(t, "Mon, 02 Jun 2025 15:04:05 GMT", srv.header(1).Get("If-Modified-Since"))
}

func TestFetchRotatesETag(t *testing.T) {
	srv := &feedServer{
		responses: []func(w http.ResponseWriter){
			func(w http.ResponseWriter) {
				w.Header().Set("ETag", `"v1"`)
				w.Write([]byte("one"))
			},
			func(w http.ResponseWriter) {
				w.Header().Set("ETag", `"v2"`)
				w.Write([]byte("two"))
			},
			func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusNotModified)
			},
		},
	}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer ts.Close()

	f := newTestFetcher()

	_, changed := f.Fetch(context.Background(), "test", ts.URL)
	require.True(t, changed)

	body, changed := f.Fetch(context.Background(), "test", ts.URL)
	require.True(t, changed)
	assert.Equal(t, "two", string(body))
	assert.Equal(t, `"v1"`, srv.header(1).Get("If-None-Match"))

	_, changed = f.Fetch(context.Background(), "test", ts.URL)
	assert.False(t, changed)
	assert.Equal(t, `"v2"`, srv.header(2).Get("If-None-Match"))
}

func TestFetchErrorPreservesState(t *testing.T) {
	srv := &feedServer{
		responses: []func(w http.ResponseWriter){
			func(w http.ResponseWriter) {
				w.Header().Set("ETag", `"v1"`)
				w.Write([]byte("one"))
			},
			func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusNotModified)
			},
		},
	}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer ts.Close()

	f := newTestFetcher()

	_, changed := f.Fetch(context.Background(), "test", ts.URL)
	require.True(t, changed)

	body, changed := f.Fetch(context.Background(), "test", ts.URL)
	assert.False(t, changed)
	assert.Nil(t, body)

	// Stale validators survive the failed attempt.
	_, changed = f.Fetch(context.Background(), "test", ts.URL)
	assert.False(t, changed)
	assert.Equal(t, `"v1"`, srv.header(2).Get("If-None-Match"))
}

func TestFetchLastModifiedOnly(t *testing.T) {
	srv := &feedServer{
		responses: []func(w http.ResponseWriter){
			func(w http.ResponseWriter) {
				w.Header().Set("Last-Modified", "Mon, 02 Jun 2025 15:04:05 GMT")
				w.Write([]byte("one"))
			},
			func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusNotModified)
			},
		},
	}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	defer ts.Close()

	f := newTestFetcher()

	_, changed := f.Fetch(context.Background(), "test", ts.URL)
	require.True(t, changed)

	_, changed = f.Fetch(context.Background(), "test", ts.URL)
	assert.False(t, changed)
	assert.Empty(t, srv.header(1).Get("If-None-Match"))
	assert.Equal(t, "Mon, 02 Jun 2025 15:04:05 GMT", srv.header(1).Get("If-Modified-Since"))
}

func TestFetchTransportFailure(t *testing.T) {
	f := newTestFetcher()
	body, changed := f.Fetch(context.Background(), "test", "http://127.0.0.1:0/feed")
	assert.False(t, changed)
	assert.Nil(t, body)
}

func TestFetchTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	f := New(20*time.Millisecond, zap.NewNop())
	body, changed := f.Fetch(context.Background(), "test", ts.URL)
	assert.False(t, changed)
	assert.Nil(t, body)
}
