package discovery

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/fetch"
	"github.com/sells-group/roster-cli/internal/model"
)

const subdomainConfidence = 0.75

// deptStopWords are dropped when deriving subdomain labels from a
// department name ("Department of Computer Science" -> "computerscience").
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

// SubdomainStrategy probes department-derived subdomains (cs.example.edu,
// biology.example.edu) for directory pages. Only runs when a department
// was given; without one there is nothing to derive candidates from.
type SubdomainStrategy struct {
	fetcher       *fetch.Fetcher
	maxCandidates int
	probePaths    []string
}

// NewSubdomainStrategy creates the subdomain prober.
func NewSubdomainStrategy(fetcher *fetch.Fetcher, maxCandidates int, probePaths []string) *SubdomainStrategy {
	if maxCandidates <= 0 {
		maxCandidates = 4
	}
	if len(probePaths) == 0 {
		probePaths = []string{"/people", "/faculty", "/directory"}
	}
	return &SubdomainStrategy{fetcher: fetcher, maxCandidates: maxCandidates, probePaths: probePaths}
}

func (s *SubdomainStrategy) Name() model.DiscoveryMethod { return model.MethodSubdomain }

func (s *SubdomainStrategy) Attempt(ctx context.Context, in Input) (*model.SitePattern, error) {
	if in.Department == "" || in.BaseURL == "" {
		return nil, nil
	}

	base, err := url.Parse(in.BaseURL)
	if err != nil {
		return nil, nil
	}
	domain := registrableDomain(base.Host)
	if domain == "" {
		return nil, nil
	}

	candidates := subdomainCandidates(in.Department)
	if len(candidates) > s.maxCandidates {
		candidates = candidates[:s.maxCandidates]
	}

	for _, label := range candidates {
		host := "https://" + label + "." + domain
		code, err := s.fetcher.Head(ctx, host)
		if err != nil || code >= 400 {
			continue
		}
		zap.L().Debug("discovery: department subdomain reachable",
			zap.String("host", host),
		)

		var hits []string
		for _, path := range s.probePaths {
			code, err := s.fetcher.Head(ctx, host+path)
			if err == nil && code >= 200 && code < 400 {
				hits = append(hits, path)
			}
		}
		if len(hits) == 0 {
			// Subdomain exists but nothing directory-shaped on it; keep
			// probing other labels.
			continue
		}
		return &model.SitePattern{
			BaseURL:        host,
			DirectoryPaths: hits,
			Subdomains:     map[string]string{label: host},
			Confidence:     subdomainConfidence,
		}, nil
	}
	return nil, nil
}

// subdomainCandidates derives plausible subdomain labels from a department
// name, most specific first: initialism, compacted full name, then each
// significant word.
func subdomainCandidates(department string) []string {
	words := strings.Fields(strings.ToLower(department))
	var kept []string
	for _, w := range words {
		w = strings.Map(keepAlnum, w)
		if w == "" || deptStopWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	add := func(label string) {
		if label != "" && !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}

	if len(kept) > 1 {
		var initials strings.Builder
		for _, w := range kept {
			initials.WriteByte(w[0])
		}
		add(initials.String())
	}
	add(strings.Join(kept, ""))
	for _, w := range kept {
		add(w)
	}
	return out
}

func keepAlnum(r rune) rune {
	if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
		return r
	}
	return -1
}
