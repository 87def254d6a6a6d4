package discovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/fetch"
	"github.com/sells-group/roster-cli/internal/model"
)

const navConfidence = 0.7

// navSelectors are scanned in order; the first selector with any anchors
// wins so footer noise doesn't dilute a real nav bar.
var navSelectors = []string{
	"nav a",
	"header a",
	"[role=navigation] a",
	".menu a, .nav a, .navbar a",
	"footer a",
}

// NavigationStrategy parses the homepage navigation for links whose anchor
// text or href matches directory keywords.
type NavigationStrategy struct {
	fetcher *fetch.Fetcher
}

// NewNavigationStrategy creates the homepage nav analyzer.
func NewNavigationStrategy(fetcher *fetch.Fetcher) *NavigationStrategy {
	return &NavigationStrategy{fetcher: fetcher}
}

func (s *NavigationStrategy) Name() model.DiscoveryMethod { return model.MethodNavigation }

func (s *NavigationStrategy) Attempt(ctx context.Context, in Input) (*model.SitePattern, error) {
	if in.BaseURL == "" {
		return nil, nil
	}

	page, err := s.fetcher.Get(ctx, in.BaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: fetch homepage")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return nil, eris.Wrap(err, "discovery: parse homepage")
	}

	base, err := url.Parse(in.BaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: parse base url")
	}

	var paths []string
	seen := map[string]bool{}
	for _, sel := range navSelectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			text := strings.TrimSpace(a.Text())
			if !looksLikeDirectory(href) && !looksLikeDirectory(text) {
				return
			}
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			resolved := base.ResolveReference(ref)
			if resolved.Host != base.Host || resolved.Path == "" || resolved.Path == "/" {
				return
			}
			if !seen[resolved.Path] {
				seen[resolved.Path] = true
				paths = append(paths, resolved.Path)
			}
		})
		if len(paths) > 0 {
			break
		}
	}

	if len(paths) == 0 {
		return nil, nil
	}

	zap.L().Debug("discovery: nav links matched",
		zap.String("base", in.BaseURL),
		zap.Int("paths", len(paths)),
	)
	return &model.SitePattern{
		BaseURL:        in.BaseURL,
		DirectoryPaths: paths,
		Confidence:     navConfidence,
	}, nil
}
