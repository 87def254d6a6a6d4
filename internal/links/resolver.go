package links

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/gateway"
	"github.com/sells-group/roster-cli/internal/model"
)

// Querier is the slice of the metered gateway the resolver needs.
type Querier interface {
	Query(ctx context.Context, kind gateway.Kind, payload string) (*gateway.Result, error)
}

// Resolver replaces social-media links with academic alternatives found
// through search, falling back to the assistant. Social links on a record
// that already holds a valued-category link are left alone, and an
// original is never dropped without an accepted replacement.
type Resolver struct {
	gw     Querier
	margin float64
}

// NewResolver creates a Resolver. margin is the confidence a replacement
// must exceed the original by before it is accepted.
func NewResolver(gw Querier, margin float64) *Resolver {
	if margin <= 0 {
		margin = 0.2
	}
	return &Resolver{gw: gw, margin: margin}
}

// ResolveLowValue attempts to upgrade the record's social-media links.
// Returns the (possibly modified) record and the number of links replaced,
// which feeds the run's reclassification counter.
func (r *Resolver) ResolveLowValue(ctx context.Context, rec model.PersonRecord) (model.PersonRecord, int) {
	if rec.HasValuedLink() {
		return rec, 0
	}

	upgraded := 0
	for i := range rec.Links {
		link := rec.Links[i]
		if link.Category != model.LinkSocialMedia {
			continue
		}

		candidate := r.findReplacement(ctx, rec)
		if candidate == nil {
			continue
		}
		if candidate.Confidence < link.Confidence+r.margin {
			zap.L().Debug("links: replacement below margin, keeping original",
				zap.String("person", rec.Name),
				zap.String("original", link.URL),
				zap.String("candidate", candidate.URL),
				zap.Float64("candidate_confidence", candidate.Confidence),
			)
			continue
		}

		zap.L().Info("links: social link replaced",
			zap.String("person", rec.Name),
			zap.String("original", link.URL),
			zap.String("replacement", candidate.URL),
			zap.String("category", string(candidate.Category)),
		)
		rec.Links[i] = *candidate
		upgraded++
	}
	return rec, upgraded
}

// findReplacement searches for an academic profile for the person, trying
// the search service first and the assistant second.
func (r *Resolver) findReplacement(ctx context.Context, rec model.PersonRecord) *model.Link {
	query := rec.Name + " " + rec.Organization
	if len(rec.Departments) > 0 {
		query += " " + rec.Departments[0]
	}
	if len(rec.Labs) > 0 {
		query += " " + rec.Labs[0].Name
	}

	if link := r.fromSearch(ctx, query); link != nil {
		return link
	}
	return r.fromAssistant(ctx, rec, query)
}

func (r *Resolver) fromSearch(ctx context.Context, query string) *model.Link {
	res, err := r.gw.Query(ctx, gateway.KindSearch, query+" profile site:edu OR site:org")
	if err != nil {
		zap.L().Warn("links: replacement search failed", zap.Error(err))
		return nil
	}
	if res.Unavailable {
		zap.L().Debug("links: search unavailable", zap.String("reason", res.Reason))
		return nil
	}

	for _, hit := range res.Results {
		link := model.Link{URL: hit.URL, Text: hit.Title, Context: hit.Description, Accessible: true}
		cat, conf := Classify(link)
		if !ValuedCategory(cat) {
			continue
		}
		link.Category = cat
		link.Confidence = conf
		return &link
	}
	return nil
}

func (r *Resolver) fromAssistant(ctx context.Context, rec model.PersonRecord, query string) *model.Link {
	prompt := fmt.Sprintf(
		"Find an academic profile URL (university page, Google Scholar, ORCID, or lab site) for %s. Reply with only the URL, or NONE.",
		query,
	)
	res, err := r.gw.Query(ctx, gateway.KindAssistant, prompt)
	if err != nil {
		zap.L().Warn("links: replacement assistant query failed", zap.Error(err))
		return nil
	}
	if res.Unavailable {
		return nil
	}

	raw := strings.TrimSpace(res.Text)
	if raw == "" || strings.EqualFold(raw, "none") {
		return nil
	}
	// Take the first URL-shaped token.
	var candidate string
	for _, f := range strings.Fields(raw) {
		f = strings.Trim(f, `<>"'.,`)
		if strings.HasPrefix(f, "http://") || strings.HasPrefix(f, "https://") {
			candidate = f
			break
		}
	}
	if candidate == "" {
		return nil
	}

	link := model.Link{URL: candidate, Text: rec.Name, Accessible: true}
	cat, conf := Classify(link)
	if !ValuedCategory(cat) {
		return nil
	}
	link.Category = cat
	link.Confidence = conf
	return &link
}

// ValuedCategory reports whether the category anchors a record.
func ValuedCategory(cat model.LinkCategory) bool {
	return model.ValuedCategories[cat]
}
