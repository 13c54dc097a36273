package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// endlessRedirector redirects every request to the next numbered path and
// counts the requests it served.
func endlessRedirector(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n), http.StatusFound)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestSocket_HopBudget(t *testing.T) {
	for _, budget := range []int{0, 1, 3, 5} {
		t.Run(strconv.Itoa(budget), func(t *testing.T) {
			srv, hits := endlessRedirector(t)
			client := newSocketClient()

			req := NewRequest("GET", srv.URL+"/start").SetMaxRedirects(budget)
			resp, err := client.Do(context.Background(), req)
			require.NoError(t, err)
			defer resp.Dispose()

			assert.Equal(t, http.StatusFound, resp.Status)
			assert.Equal(t, int32(budget+1), hits.Load())
			assert.Equal(t, budget > 0, resp.Redirected)
			if budget > 0 {
				assert.Equal(t, fmt.Sprintf("%s/hop/%d", srv.URL, budget), resp.URL)
			}
		})
	}
}

func TestSocket_FollowsToTerminal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/b")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "landed")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := newSocketClient().Get(context.Background(), srv.URL+"/a", nil)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.True(t, resp.Redirected)
	assert.Equal(t, srv.URL+"/b", resp.URL)
	text, err := resp.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "landed", text.Unwrap())
}

func TestSocket_RedirectWithoutLocationIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	resp, err := newSocketClient().Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	defer resp.Dispose()
	assert.Equal(t, http.StatusFound, resp.Status)
	assert.False(t, resp.Redirected)
}

func TestSocket_InflatesBodies(t *testing.T) {
	payload := []byte(strings.Repeat("0123456789", 1000))
	for _, encoding := range []string{"gzip", "deflate"} {
		t.Run(encoding, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", encoding)
				if encoding == "gzip" {
					w.Write(gzipBytes(t, payload))
				} else {
					w.Write(deflateBytes(t, payload))
				}
			}))
			defer srv.Close()

			resp, err := newSocketClient().Get(context.Background(), srv.URL, nil)
			require.NoError(t, err)
			body, err := resp.Bytes(context.Background())
			require.NoError(t, err)
			assert.Equal(t, payload, body.Unwrap())
		})
	}
}

func TestSocket_Progress(t *testing.T) {
	payload := strings.Repeat("x", 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		for i := 0; i < len(payload); i += 8 * 1024 {
			io.WriteString(w, payload[i:i+8*1024])
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	resp, err := newSocketClient().Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	var events []ProgressEvent
	_, err = resp.OnProgress(func(e ProgressEvent) { events = append(events, e) })
	require.NoError(t, err)

	_, err = resp.Text(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Loaded, events[i-1].Loaded)
	}
	last := events[len(events)-1]
	assert.Equal(t, int64(len(payload)), last.Loaded)
	assert.Equal(t, int64(len(payload)), last.Total)
	assert.True(t, last.Computable)
}

func TestSocket_HeadersPublishedSynchronously(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Marker", "m")
		fmt.Fprint(w, "body")
	}))
	defer srv.Close()

	resp, err := newSocketClient().Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	defer resp.Dispose()

	var got *Headers
	_, err = resp.OnHeaders(func(h *Headers) { got = h })
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "m", got.Get("x-marker"))
}

func TestSocket_PreCancelledTokenDoesNoIO(t *testing.T) {
	agent := &countingAgent{fn: func(req *http.Request) (*http.Response, error) {
		return fakeResponse(req, 200, nil, "ok"), nil
	}}
	token := NewToken()
	token.Cancel()

	req := NewRequest("GET", "http://api.example.com/")
	req.Agent = agent
	req.Token = token

	_, err := newSocketClient().Do(context.Background(), req)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Zero(t, agent.calls.Load())
}

func TestSocket_CancelDuringDelay(t *testing.T) {
	agent := &countingAgent{fn: func(req *http.Request) (*http.Response, error) {
		return fakeResponse(req, 200, nil, "ok"), nil
	}}
	token := NewToken()
	req := NewRequest("GET", "http://api.example.com/").SetDelay(time.Second).SetToken(token)
	req.Agent = agent

	time.AfterFunc(20*time.Millisecond, token.Cancel)
	start := time.Now()
	_, err := newSocketClient().Do(context.Background(), req)

	assert.ErrorIs(t, err, ErrCancelled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Zero(t, agent.calls.Load())
}

func blockingAgent() http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
}

func TestSocket_Timeout(t *testing.T) {
	req := NewRequest("GET", "http://api.example.com/").SetTimeout(50 * time.Millisecond)
	req.Agent = blockingAgent()

	start := time.Now()
	_, err := newSocketClient().Do(context.Background(), req)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestSocket_CancelInFlight(t *testing.T) {
	token := NewToken()
	req := NewRequest("GET", "http://api.example.com/").SetToken(token)
	req.Agent = blockingAgent()

	time.AfterFunc(20*time.Millisecond, token.Cancel)
	_, err := newSocketClient().Do(context.Background(), req)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestSocket_CancelDuringBodyRead(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		io.WriteString(w, "partial")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	token := NewToken()
	resp, err := newSocketClient().Do(context.Background(), NewRequest("GET", srv.URL).SetToken(token))
	require.NoError(t, err)

	time.AfterFunc(20*time.Millisecond, token.Cancel)
	_, err = resp.Text(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestSocket_CancelDuringCompressedBodyRead(t *testing.T) {
	payload := []byte(strings.Repeat("0123456789", 1000))
	for _, encoding := range []string{"gzip", "deflate"} {
		t.Run(encoding, func(t *testing.T) {
			compressed := gzipBytes(t, payload)
			if encoding == "deflate" {
				compressed = deflateBytes(t, payload)
			}
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", encoding)
				w.Header().Set("Content-Length", strconv.Itoa(len(compressed)))
				w.Write(compressed[:20])
				w.(http.Flusher).Flush()
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer srv.Close()
			defer close(release)

			token := NewToken()
			resp, err := newSocketClient().Do(context.Background(), NewRequest("GET", srv.URL).SetToken(token))
			require.NoError(t, err)

			time.AfterFunc(30*time.Millisecond, token.Cancel)
			_, err = resp.Text(context.Background())
			assert.ErrorIs(t, err, ErrCancelled)
			resp.Dispose()
		})
	}
}

func TestSocket_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newSocketClient().Get(context.Background(), url, nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, IsRetryable(err))
}

func TestSocket_StrictSSL(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "secure")
	}))
	defer srv.Close()

	_, err := newSocketClient().Get(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrTransport)

	lax := false
	req := NewRequest("GET", srv.URL)
	req.StrictSSL = &lax
	resp, err := newSocketClient().Do(context.Background(), req)
	require.NoError(t, err)
	text, err := resp.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secure", text.Unwrap())
}

func TestSocket_ExplicitProxy(t *testing.T) {
	var seen atomic.Value
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.URL.String())
		fmt.Fprint(w, "via proxy")
	}))
	defer proxy.Close()

	req := NewRequest("GET", "http://api.example.com/resource")
	req.Proxy = proxy.URL
	resp, err := newSocketClient().Do(context.Background(), req)
	require.NoError(t, err)
	text, err := resp.Text(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "via proxy", text.Unwrap())
	assert.Equal(t, "http://api.example.com/resource", seen.Load())
}

func TestSocket_RedirectReplaysBytesBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s %s", r.Method, body)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := newSocketClient().Post(context.Background(), srv.URL+"/a", StringPayload("data", "text/plain"), nil)
	require.NoError(t, err)
	text, err := resp.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "POST data", text.Unwrap())
}
