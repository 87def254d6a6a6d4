// Package assoc infers research-group and lab affiliations for person
// records. Detection escalates in cost: link heuristics first, then a
// text scan, and only then a metered search.
package assoc

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/gateway"
	"github.com/sells-group/roster-cli/internal/model"
)

// Querier is the slice of the metered gateway the detector needs.
type Querier interface {
	Query(ctx context.Context, kind gateway.Kind, payload string) (*gateway.Result, error)
}

// scoreFloor is the minimum tier-1 link score accepted directly.
const scoreFloor = 0.5

// labKeywords weigh anchor text and context in the tier-1 scorer.
var labKeywords = []string{"lab", "laboratory", "group", "center", "centre", "institute", "unit"}

// labPathMarkers in a URL path are strong group-site signals.
var labPathMarkers = []string{"/lab/", "/labs/", "/group/", "/groups/", "/center/", "/centre/"}

// labNameRe matches lab-name phrases in free text, e.g. "Computational
// Vision Laboratory" or "Applied Robotics Group".
var labNameRe = regexp.MustCompile(`\b((?:[A-Z][a-zA-Z'-]+ ){1,4}(?:Lab|Labs|Laboratory|Group|Center|Centre|Institute))\b`)

// Detector attaches lab associations to records.
type Detector struct {
	gw Querier
}

// New creates a Detector. gw may be nil, which disables the tier-3 search.
func New(gw Querier) *Detector {
	return &Detector{gw: gw}
}

// Detect infers a lab or group affiliation for the record. Tier 1 scores
// the record's own links; tier 2 scans surrounding text for a lab name
// without requiring a link; tier 3 searches for a URL when tier 2 found
// only a name. The successful tier is recorded on the association.
func (d *Detector) Detect(ctx context.Context, rec model.PersonRecord, page model.DirectoryPage) model.PersonRecord {
	if len(rec.Labs) > 0 {
		return rec
	}

	if lab := d.fromLinks(rec); lab != nil {
		rec.Labs = append(rec.Labs, *lab)
		return rec
	}

	name := d.fromText(rec, page)
	if name == "" {
		return rec
	}

	lab := model.LabAssociation{Name: name, Tier: model.TierSearchMiss}
	if labURL := d.searchURL(ctx, rec, name); labURL != "" {
		lab.URL = labURL
		lab.Tier = model.TierSearchHit
	}
	rec.Labs = append(rec.Labs, lab)
	return rec
}

// fromLinks is the zero-cost tier: score each link by domain trust,
// keyword density, and path shape; the best link above the floor wins.
func (d *Detector) fromLinks(rec model.PersonRecord) *model.LabAssociation {
	var best *model.LabAssociation
	bestScore := 0.0
	for _, link := range rec.Links {
		score, name := scoreLink(link)
		if score >= scoreFloor && score > bestScore {
			bestScore = score
			best = &model.LabAssociation{Name: name, URL: link.URL, Tier: model.TierFound}
		}
	}
	if best != nil {
		zap.L().Debug("assoc: link heuristic hit",
			zap.String("person", rec.Name),
			zap.String("lab", best.Name),
			zap.Float64("score", bestScore),
		)
	}
	return best
}

// scoreLink rates one link as a lab pointer and proposes the lab name.
func scoreLink(link model.Link) (float64, string) {
	u, err := url.Parse(link.URL)
	if err != nil || u.Host == "" {
		return 0, ""
	}
	path := strings.ToLower(u.Path)
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	text := strings.ToLower(link.Text)

	score := 0.0
	for _, marker := range labPathMarkers {
		if strings.Contains(path, marker) {
			score += 0.4
			break
		}
	}

	host := strings.ToLower(u.Host)
	if strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") || strings.HasSuffix(host, ".org") {
		score += 0.2
	}

	density := 0
	for _, kw := range labKeywords {
		if strings.Contains(text, kw) {
			density++
		}
	}
	score += 0.2 * float64(density)
	if score > 1 {
		score = 1
	}

	name := strings.TrimSpace(link.Text)
	if name == "" {
		name = lastPathSegment(u.Path)
	}
	if name == "" {
		return 0, ""
	}
	return score, name
}

// fromText is tier 2: scan the record's link contexts and the page text
// near the person's name for a lab-name phrase.
func (d *Detector) fromText(rec model.PersonRecord, page model.DirectoryPage) string {
	for _, link := range rec.Links {
		if m := labNameRe.FindString(link.Context); m != "" {
			return m
		}
	}

	// Fall back to the page region around the name.
	idx := strings.Index(page.HTML, rec.Name)
	if idx < 0 {
		return ""
	}
	start := idx - 300
	if start < 0 {
		start = 0
	}
	end := idx + len(rec.Name) + 300
	if end > len(page.HTML) {
		end = len(page.HTML)
	}
	return labNameRe.FindString(page.HTML[start:end])
}

// searchURL is tier 3: ask the search service for the named lab's site.
// The first hit on a trusted domain shape wins.
func (d *Detector) searchURL(ctx context.Context, rec model.PersonRecord, labName string) string {
	if d.gw == nil {
		return ""
	}

	query := labName + " " + rec.Organization
	res, err := d.gw.Query(ctx, gateway.KindSearch, query)
	if err != nil {
		zap.L().Warn("assoc: lab search failed", zap.Error(err))
		return ""
	}
	if res.Unavailable {
		zap.L().Debug("assoc: lab search unavailable", zap.String("reason", res.Reason))
		return ""
	}

	for _, hit := range res.Results {
		if trustedLabURL(hit.URL) {
			return hit.URL
		}
	}
	return ""
}

// trustedLabURL reports whether a search hit looks like a lab site rather
// than a news article or directory aggregator.
func trustedLabURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	if strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return true
	}
	path := strings.ToLower(u.Path)
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	for _, marker := range labPathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

func lastPathSegment(path string) string {
	segs := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}
