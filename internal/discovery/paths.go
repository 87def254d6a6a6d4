package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/fetch"
	"github.com/sells-group/roster-cli/internal/model"
)

const commonPathConfidence = 0.6

// CommonPathStrategy probes a fixed list of well-known directory paths
// with HEAD requests. Cheap and dumb, which is exactly why it sits below
// sitemap and navigation in the chain.
type CommonPathStrategy struct {
	fetcher *fetch.Fetcher
	paths   []string
}

// NewCommonPathStrategy creates the path prober. An empty path list falls
// back to the built-in defaults.
func NewCommonPathStrategy(fetcher *fetch.Fetcher, paths []string) *CommonPathStrategy {
	if len(paths) == 0 {
		paths = []string{"/faculty", "/people", "/staff", "/team", "/directory", "/about/team"}
	}
	return &CommonPathStrategy{fetcher: fetcher, paths: paths}
}

func (s *CommonPathStrategy) Name() model.DiscoveryMethod { return model.MethodCommonPath }

func (s *CommonPathStrategy) Attempt(ctx context.Context, in Input) (*model.SitePattern, error) {
	if in.BaseURL == "" {
		return nil, nil
	}

	var hits []string
	for _, path := range s.paths {
		code, err := s.fetcher.Head(ctx, in.BaseURL+path)
		if err != nil {
			zap.L().Debug("discovery: common path probe failed",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		if code >= 200 && code < 400 {
			hits = append(hits, path)
		}
	}

	if len(hits) == 0 {
		return nil, nil
	}
	return &model.SitePattern{
		BaseURL:        in.BaseURL,
		DirectoryPaths: hits,
		Confidence:     commonPathConfidence,
	}, nil
}
