package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/fetch"
	"github.com/sells-group/roster-cli/internal/gateway"
)

func testFetcher() *fetch.Fetcher {
	return fetch.New(config.FetchConfig{TimeoutSecs: 5, Retries: 0, RatePerSec: 1000})
}

func TestSitemapStrategyFindsDirectoryPaths(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>` + srv.URL + `/about</loc></url>
  <url><loc>` + srv.URL + `/faculty</loc></url>
  <url><loc>` + srv.URL + `/people/jane-doe</loc></url>
  <url><loc>` + srv.URL + `/news/2026</loc></url>
</urlset>`))
	}))
	defer srv.Close()

	s := NewSitemapStrategy(testFetcher())
	p, err := s.Attempt(context.Background(), Input{Organization: "Example", BaseURL: srv.URL})
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.InDelta(t, 0.85, p.Confidence, 1e-9)
	assert.Contains(t, p.DirectoryPaths, "/faculty")
	assert.Contains(t, p.DirectoryPaths, "/people/jane-doe")
	assert.NotContains(t, p.DirectoryPaths, "/about")
}

func TestSitemapStrategyFollowsIndex(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		switch r.URL.Path {
		case "/sitemap.xml":
			_, _ = w.Write([]byte(`<sitemapindex><sitemap><loc>` + srv.URL + `/sitemap-pages.xml</loc></sitemap></sitemapindex>`))
		case "/sitemap-pages.xml":
			_, _ = w.Write([]byte(`<urlset><url><loc>` + srv.URL + `/staff</loc></url></urlset>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewSitemapStrategy(testFetcher())
	p, err := s.Attempt(context.Background(), Input{BaseURL: srv.URL})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, []string{"/staff"}, p.DirectoryPaths)
}

func TestSitemapStrategyNoSitemapReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := NewSitemapStrategy(testFetcher())
	p, err := s.Attempt(context.Background(), Input{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestNavigationStrategyMatchesAnchors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
<nav>
  <a href="/about">About</a>
  <a href="/our-team">Meet Our Team</a>
  <a href="/contact">Contact</a>
</nav>
</body></html>`))
	}))
	defer srv.Close()

	s := NewNavigationStrategy(testFetcher())
	p, err := s.Attempt(context.Background(), Input{BaseURL: srv.URL})
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.InDelta(t, 0.7, p.Confidence, 1e-9)
	assert.Equal(t, []string{"/our-team"}, p.DirectoryPaths)
}

func TestNavigationStrategyMatchesAnchorText(t *testing.T) {
	// The href itself carries no keyword; the anchor text does.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><header><a href="/who-we-are">Our People</a></header></html>`))
	}))
	defer srv.Close()

	s := NewNavigationStrategy(testFetcher())
	p, err := s.Attempt(context.Background(), Input{BaseURL: srv.URL})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, []string{"/who-we-are"}, p.DirectoryPaths)
}

func TestNavigationStrategyIgnoresExternalLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><nav><a href="https://other.example.com/faculty">Faculty</a></nav></html>`))
	}))
	defer srv.Close()

	s := NewNavigationStrategy(testFetcher())
	p, err := s.Attempt(context.Background(), Input{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCommonPathStrategyProbes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/staff" || r.URL.Path == "/team" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := NewCommonPathStrategy(testFetcher(), []string{"/faculty", "/staff", "/team"})
	p, err := s.Attempt(context.Background(), Input{BaseURL: srv.URL})
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.InDelta(t, 0.6, p.Confidence, 1e-9)
	assert.Equal(t, []string{"/staff", "/team"}, p.DirectoryPaths)
}

func TestCommonPathStrategyAllMissesReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := NewCommonPathStrategy(testFetcher(), []string{"/faculty", "/staff"})
	p, err := s.Attempt(context.Background(), Input{BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSubdomainStrategyNoDepartmentSkips(t *testing.T) {
	s := NewSubdomainStrategy(testFetcher(), 4, nil)
	p, err := s.Attempt(context.Background(), Input{BaseURL: "https://www.example.edu"})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSubdomainCandidates(t *testing.T) {
	tests := []struct {
		department string
		want       []string
	}{
		{"Department of Computer Science", []string{"cs", "computerscience", "computer", "science"}},
		{"Biology", []string{"biology"}},
		{"School of the Arts", []string{"arts"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.department, func(t *testing.T) {
			assert.Equal(t, tt.want, subdomainCandidates(tt.department))
		})
	}
}

type fakeQuerier struct {
	result *gateway.Result
	err    error
	prompt string
}

func (f *fakeQuerier) Query(_ context.Context, _ gateway.Kind, payload string) (*gateway.Result, error) {
	f.prompt = payload
	return f.result, f.err
}

func TestAssistantStrategyParsesReply(t *testing.T) {
	gw := &fakeQuerier{result: &gateway.Result{
		Kind: gateway.KindAssistant,
		Text: "Here you go:\n```json\n{\"base_url\": \"https://www.example.edu/\", \"directory_paths\": [\"/faculty\"], \"confidence\": 0.8}\n```",
	}}

	s := NewAssistantStrategy(gw)
	p, err := s.Attempt(context.Background(), Input{Organization: "Example University", Department: "Biology"})
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "https://www.example.edu", p.BaseURL)
	assert.Equal(t, []string{"/faculty"}, p.DirectoryPaths)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9)
	assert.Contains(t, gw.prompt, "Example University")
	assert.Contains(t, gw.prompt, "Biology")
}

func TestAssistantStrategyClampsBogusConfidence(t *testing.T) {
	gw := &fakeQuerier{result: &gateway.Result{
		Kind: gateway.KindAssistant,
		Text: `{"directory_paths": ["/people"], "confidence": 7}`,
	}}

	s := NewAssistantStrategy(gw)
	p, err := s.Attempt(context.Background(), Input{Organization: "Example"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, 0.5, p.Confidence, 1e-9)
}

func TestAssistantStrategyUnavailableIsMiss(t *testing.T) {
	gw := &fakeQuerier{result: &gateway.Result{
		Kind:        gateway.KindAssistant,
		Unavailable: true,
		Reason:      "quota exceeded",
	}}

	s := NewAssistantStrategy(gw)
	p, err := s.Attempt(context.Background(), Input{Organization: "Example"})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestAssistantStrategyGarbageReplyIsMiss(t *testing.T) {
	gw := &fakeQuerier{result: &gateway.Result{Kind: gateway.KindAssistant, Text: "I don't know."}}

	s := NewAssistantStrategy(gw)
	p, err := s.Attempt(context.Background(), Input{Organization: "Example"})
	require.NoError(t, err)
	assert.Nil(t, p)
}

var _ Strategy = (*SitemapStrategy)(nil)
var _ Strategy = (*NavigationStrategy)(nil)
var _ Strategy = (*CommonPathStrategy)(nil)
var _ Strategy = (*SubdomainStrategy)(nil)
var _ Strategy = (*AssistantStrategy)(nil)
