// Package locator turns a discovered site pattern into concrete directory
// pages, filtering by department and following pagination.
package locator

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/fetch"
	"github.com/sells-group/roster-cli/internal/model"
)

// Locator resolves listing pages from a site pattern.
type Locator struct {
	fetcher      *fetch.Fetcher
	maxPages     int
	concurrency  int
	courtesyWait time.Duration
	onFailure    func()
}

// New creates a Locator.
func New(fetcher *fetch.Fetcher, cfg config.LocatorConfig) *Locator {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}
	return &Locator{fetcher: fetcher, maxPages: maxPages, concurrency: 1}
}

// WithConcurrency sets how many seed URLs are crawled in parallel. Each
// seed's pagination chain stays sequential.
func (l *Locator) WithConcurrency(n int) *Locator {
	if n > 0 {
		l.concurrency = n
	}
	return l
}

// WithCourtesyWait sets a pause between successive pages of one pagination
// chain, on top of the fetcher's own rate limit.
func (l *Locator) WithCourtesyWait(d time.Duration) *Locator {
	if d > 0 {
		l.courtesyWait = d
	}
	return l
}

// WithFailureHook registers a callback invoked once per failed page fetch,
// used for run statistics.
func (l *Locator) WithFailureHook(fn func()) *Locator {
	l.onFailure = fn
	return l
}

// ResolvePages fetches the pattern's directory pages, scoped to a
// department when one is given. A department that matches nothing yields
// an empty slice, not an error; the caller decides whether that is fatal.
func (l *Locator) ResolvePages(ctx context.Context, pattern *model.SitePattern, department string) ([]model.DirectoryPage, error) {
	if pattern == nil {
		return nil, nil
	}

	seeds := l.seedURLs(pattern, department)
	if len(seeds) == 0 {
		zap.L().Info("locator: no directory pages match department",
			zap.String("org", pattern.OrgKey),
			zap.String("department", department),
		)
		return []model.DirectoryPage{}, nil
	}

	var (
		mu      sync.Mutex
		pages   []model.DirectoryPage
		visited = map[string]bool{}
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, seed := range seeds {
		g.Go(func() error {
			found := l.crawl(ctx, seed, department, pattern.Confidence, &mu, visited)
			mu.Lock()
			pages = append(pages, found...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return pages, nil
}

// crawl fetches a seed page and follows next-page markers up to the page
// cap. Fetch failures skip the page; the run continues.
func (l *Locator) crawl(ctx context.Context, seed, department string, confidence float64, mu *sync.Mutex, visited map[string]bool) []model.DirectoryPage {
	var pages []model.DirectoryPage
	current := seed
	for i := 0; i < l.maxPages && current != ""; i++ {
		if i > 0 && l.courtesyWait > 0 {
			select {
			case <-ctx.Done():
				return pages
			case <-time.After(l.courtesyWait):
			}
		}
		mu.Lock()
		if visited[current] {
			mu.Unlock()
			return pages
		}
		visited[current] = true
		mu.Unlock()

		page, err := l.fetcher.Get(ctx, current)
		if err != nil {
			zap.L().Warn("locator: page fetch failed, skipping",
				zap.String("url", current),
				zap.Error(err),
			)
			if l.onFailure != nil {
				l.onFailure()
			}
			return pages
		}

		pages = append(pages, model.DirectoryPage{
			URL:        page.FinalURL,
			HTML:       page.Body,
			Department: department,
			Layout:     model.LayoutUnknown,
			Confidence: confidence,
			FetchedAt:  page.FetchedAt,
		})
		current = nextPageURL(page.FinalURL, page.Body)
	}
	return pages
}

// seedURLs builds the candidate page list from the pattern's paths and
// subdomain map, filtered by department aliases when a department is set.
func (l *Locator) seedURLs(pattern *model.SitePattern, department string) []string {
	aliases := departmentAliases(department)

	var seeds []string
	seen := map[string]bool{}
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			seeds = append(seeds, u)
		}
	}

	base := strings.TrimSuffix(pattern.BaseURL, "/")
	for _, path := range pattern.DirectoryPaths {
		if len(aliases) > 0 && !matchesAny(path, aliases) {
			continue
		}
		if base != "" {
			add(base + path)
		}
	}

	for dept, subBase := range pattern.Subdomains {
		if len(aliases) > 0 && !matchesAny(dept, aliases) && !matchesAny(subBase, aliases) {
			continue
		}
		add(strings.TrimSuffix(subBase, "/"))
	}

	// Without a department every pattern path is in scope; with one, an
	// org-wide path like /faculty stays out unless it names the department.
	return seeds
}

// deptStopWords are ignored when deriving department aliases.
var deptStopWords = map[string]bool{
	"department": true,
	"dept":       true,
	"school":     true,
	"college":    true,
	"division":   true,
	"office":     true,
	"of":         true,
	"the":        true,
	"and":        true,
	"for":        true,
}

// departmentAliases derives match candidates from a department name:
// each significant word, the compacted full name, and the initialism.
func departmentAliases(department string) []string {
	words := strings.Fields(strings.ToLower(department))
	var kept []string
	for _, w := range words {
		w = compactAlnum(w)
		if w == "" || deptStopWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return nil
	}

	aliases := append([]string{}, kept...)
	if len(kept) > 1 {
		aliases = append(aliases, strings.Join(kept, ""))
		var initials strings.Builder
		for _, w := range kept {
			initials.WriteByte(w[0])
		}
		aliases = append(aliases, initials.String())
	}
	return aliases
}

// matchesAny reports whether the candidate names any alias. Short aliases
// (initialisms like "cs") must match a whole URL segment or label;
// substring matching on them is too loose ("cs" is inside "physics").
func matchesAny(candidate string, aliases []string) bool {
	lower := strings.ToLower(candidate)
	compact := compactAlnum(lower)
	segments := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, a := range aliases {
		if len(a) <= 3 {
			for _, seg := range segments {
				if seg == a {
					return true
				}
			}
			continue
		}
		if strings.Contains(compact, a) {
			return true
		}
	}
	return false
}

func compactAlnum(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// nextPageURL finds a next-page marker in the document: rel=next first,
// then pagination anchors by text.
func nextPageURL(pageURL, html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	resolve := func(href string) string {
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil || ref.String() == "" {
			return ""
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host {
			return ""
		}
		return abs.String()
	}

	if href, ok := doc.Find(`link[rel=next], a[rel=next]`).First().Attr("href"); ok {
		if u := resolve(href); u != "" {
			return u
		}
	}

	var next string
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(a.Text()))
		switch text {
		case "next", "next page", "older", "›", "»", "→":
		default:
			return true
		}
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		if u := resolve(href); u != "" {
			next = u
			return false
		}
		return true
	})
	return next
}
