package discovery

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/fetch"
	"github.com/sells-group/roster-cli/internal/model"
)

const sitemapConfidence = 0.85

// maxChildSitemaps bounds how many child sitemaps of an index are fetched.
const maxChildSitemaps = 5

// SitemapStrategy parses the site's sitemap looking for directory-like URL
// segments and department subdomains.
type SitemapStrategy struct {
	fetcher *fetch.Fetcher
}

// NewSitemapStrategy creates the sitemap analyzer.
func NewSitemapStrategy(fetcher *fetch.Fetcher) *SitemapStrategy {
	return &SitemapStrategy{fetcher: fetcher}
}

func (s *SitemapStrategy) Name() model.DiscoveryMethod { return model.MethodSitemap }

// rawURLSet parses both <urlset> and <sitemapindex> documents; the XML
// decoder ignores whichever element set is absent.
type rawURLSet struct {
	XMLName xml.Name
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

func (s *SitemapStrategy) Attempt(ctx context.Context, in Input) (*model.SitePattern, error) {
	if in.BaseURL == "" {
		return nil, nil
	}

	var locs []string
	for _, path := range []string{"/sitemap.xml", "/sitemap_index.xml"} {
		found, err := s.collect(ctx, in.BaseURL+path, 0)
		if err != nil {
			zap.L().Debug("discovery: sitemap fetch failed",
				zap.String("url", in.BaseURL+path),
				zap.Error(err),
			)
			continue
		}
		locs = append(locs, found...)
		if len(locs) > 0 {
			break
		}
	}
	if len(locs) == 0 {
		return nil, nil
	}

	base, err := url.Parse(in.BaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: parse base url")
	}
	baseDomain := registrableDomain(base.Host)

	var paths []string
	subdomains := map[string]string{}
	seen := map[string]bool{}
	for _, loc := range locs {
		u, err := url.Parse(strings.TrimSpace(loc))
		if err != nil || u.Host == "" {
			continue
		}
		if !looksLikeDirectory(u.Path) {
			continue
		}
		if u.Host == base.Host {
			if !seen[u.Path] {
				seen[u.Path] = true
				paths = append(paths, u.Path)
			}
			continue
		}
		// Cross-reference to a department subdomain.
		if strings.HasSuffix(u.Host, baseDomain) {
			label := strings.TrimSuffix(u.Host, "."+baseDomain)
			if label != "" && label != "www" {
				subdomains[label] = u.Scheme + "://" + u.Host
			}
		}
	}

	if len(paths) == 0 && len(subdomains) == 0 {
		return nil, nil
	}

	return &model.SitePattern{
		BaseURL:        in.BaseURL,
		DirectoryPaths: paths,
		Subdomains:     subdomains,
		Confidence:     sitemapConfidence,
	}, nil
}

// collect fetches a sitemap URL and returns all page locations, following
// one level of sitemap-index indirection.
func (s *SitemapStrategy) collect(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	page, err := s.fetcher.Get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	var raw rawURLSet
	if err := xml.Unmarshal([]byte(page.Body), &raw); err != nil {
		return nil, eris.Wrap(err, "discovery: parse sitemap xml")
	}

	var locs []string
	for _, u := range raw.URLs {
		locs = append(locs, u.Loc)
	}

	if depth == 0 {
		children := raw.Sitemaps
		if len(children) > maxChildSitemaps {
			children = children[:maxChildSitemaps]
		}
		for _, child := range children {
			childLocs, err := s.collect(ctx, strings.TrimSpace(child.Loc), depth+1)
			if err != nil {
				zap.L().Debug("discovery: child sitemap fetch failed",
					zap.String("url", child.Loc),
					zap.Error(err),
				)
				continue
			}
			locs = append(locs, childLocs...)
		}
	}

	return locs, nil
}

// registrableDomain extracts the last two labels of a host. Good enough
// for .edu/.org/.com hosts; multi-part public suffixes are out of scope.
func registrableDomain(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
