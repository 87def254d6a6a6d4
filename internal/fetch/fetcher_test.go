package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/config"
)

func testFetcher() *Fetcher {
	return New(config.FetchConfig{
		TimeoutSecs: 5,
		Retries:     2,
		RatePerSec:  100, // fast for tests
	})
}

func TestGet_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "RosterBot")
		_, _ = w.Write([]byte("<html><body><h1>Directory</h1></body></html>"))
	}))
	defer ts.Close()

	page, err := testFetcher().Get(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Body, "Directory")
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.False(t, page.FetchedAt.IsZero())
}

func TestGet_RetriesOn500(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer ts.Close()

	page, err := testFetcher().Get(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "recovered", page.Body)
	assert.Equal(t, 3, attempts)
}

func TestGet_404IsPermanent(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.NotFound(w, r)
	}))
	defer ts.Close()

	_, err := testFetcher().Get(context.Background(), ts.URL)
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestGet_BlockedPageIsTransient(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		_, _ = w.Write([]byte("<html>please solve the captcha to continue</html>"))
	}))
	defer ts.Close()

	_, err := testFetcher().Get(context.Background(), ts.URL)
	assert.Error(t, err)
	// Blocks are retried up to the budget before giving up.
	assert.Equal(t, 3, attempts)
}

func TestHead(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/faculty" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	f := testFetcher()
	code, err := f.Head(context.Background(), ts.URL+"/faculty")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	code, err = f.Head(context.Background(), ts.URL+"/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		blocked bool
		kind    BlockType
	}{
		{"normal page", 200, nil, "<html><body>People</body></html>", false, BlockNone},
		{"cloudflare 403", 403, map[string]string{"cf-ray": "abc"}, "", true, BlockCloudflare},
		{"challenge body", 200, nil, "Checking your browser before accessing", true, BlockCloudflare},
		{"recaptcha", 200, nil, "<div class='g-recaptcha'></div>", true, BlockCaptcha},
		{"js shell", 200, nil, "<noscript>enable javascript</noscript>", true, BlockJSShell},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Header: http.Header{}}
			for k, v := range tt.headers {
				resp.Header.Set(k, v)
			}
			blocked, kind := DetectBlock(resp, []byte(tt.body))
			assert.Equal(t, tt.blocked, blocked)
			assert.Equal(t, tt.kind, kind)
		})
	}
}
