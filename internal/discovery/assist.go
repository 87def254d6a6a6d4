package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/gateway"
	"github.com/sells-group/roster-cli/internal/model"
)

// Querier is the slice of the metered gateway the assistant strategy needs.
type Querier interface {
	Query(ctx context.Context, kind gateway.Kind, payload string) (*gateway.Result, error)
}

// AssistantStrategy asks the assistant for directory locations when every
// structural strategy has struck out. Most expensive, so it runs last and
// its answers are treated with suspicion: confidence comes from the model
// but is clamped, and unparseable replies are a miss, not an error.
type AssistantStrategy struct {
	gw Querier
}

// NewAssistantStrategy creates the assistant-backed strategy.
func NewAssistantStrategy(gw Querier) *AssistantStrategy {
	return &AssistantStrategy{gw: gw}
}

func (s *AssistantStrategy) Name() model.DiscoveryMethod { return model.MethodAssistant }

type assistantPattern struct {
	BaseURL    string   `json:"base_url"`
	Paths      []string `json:"directory_paths"`
	Confidence float64  `json:"confidence"`
}

func (s *AssistantStrategy) Attempt(ctx context.Context, in Input) (*model.SitePattern, error) {
	prompt := fmt.Sprintf(
		`Where does the organization %q publish its people directory (faculty, staff, or team listings)?`,
		in.Organization,
	)
	if in.Department != "" {
		prompt += fmt.Sprintf(" Focus on the %q department.", in.Department)
	}
	if in.BaseURL != "" {
		prompt += fmt.Sprintf(" Their website is %s.", in.BaseURL)
	}
	prompt += ` Reply with only a JSON object: {"base_url": "...", "directory_paths": ["/..."], "confidence": 0.0-1.0}.`

	res, err := s.gw.Query(ctx, gateway.KindAssistant, prompt)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: assistant query")
	}
	if res.Unavailable {
		zap.L().Debug("discovery: assistant unavailable", zap.String("reason", res.Reason))
		return nil, nil
	}

	parsed, err := parseAssistantPattern(res.Text)
	if err != nil {
		zap.L().Debug("discovery: assistant reply unparseable", zap.Error(err))
		return nil, nil
	}
	if len(parsed.Paths) == 0 {
		return nil, nil
	}

	conf := parsed.Confidence
	if conf <= 0 || conf > 1 {
		conf = 0.5
	}
	return &model.SitePattern{
		BaseURL:        strings.TrimSuffix(parsed.BaseURL, "/"),
		DirectoryPaths: parsed.Paths,
		Confidence:     conf,
	}, nil
}

// parseAssistantPattern extracts the first JSON object from the reply.
// Models wrap JSON in prose and code fences often enough that a bare
// Unmarshal is not good enough.
func parseAssistantPattern(text string) (*assistantPattern, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.New("discovery: no JSON object in reply")
	}
	var p assistantPattern
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return nil, eris.Wrap(err, "discovery: decode assistant pattern")
	}
	return &p, nil
}
