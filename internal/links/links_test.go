package links

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/gateway"
	"github.com/sells-group/roster-cli/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		link model.Link
		want model.LinkCategory
	}{
		{"scholar", model.Link{URL: "https://scholar.google.com/citations?user=abc"}, model.LinkScholarProfile},
		{"orcid", model.Link{URL: "https://orcid.org/0000-0001-2345-6789"}, model.LinkResearchNetwork},
		{"researchgate", model.Link{URL: "https://www.researchgate.net/profile/Jane-Doe"}, model.LinkResearchNetwork},
		{"twitter", model.Link{URL: "https://twitter.com/janedoe"}, model.LinkSocialMedia},
		{"linkedin", model.Link{URL: "https://www.linkedin.com/in/janedoe"}, model.LinkSocialMedia},
		{"arxiv", model.Link{URL: "https://arxiv.org/abs/2403.01234"}, model.LinkPublication},
		{"group path", model.Link{URL: "https://www.example.edu/lab/vision/"}, model.LinkGroupSite},
		{"institutional profile", model.Link{URL: "https://www.example.edu/people/jane-doe"}, model.LinkInstitutionalProfile},
		{"tilde personal page", model.Link{URL: "https://www.example.edu/~jdoe"}, model.LinkPersonalSite},
		{"github pages", model.Link{URL: "https://janedoe.github.io/"}, model.LinkPersonalSite},
		{"context homepage hint", model.Link{URL: "https://janedoe.net/", Text: "homepage"}, model.LinkPersonalSite},
		{"unknown", model.Link{URL: "https://news.example.com/article"}, model.LinkUnknown},
		{"invalid scheme", model.Link{URL: "ftp://example.com/file"}, model.LinkInvalid},
		{"not a url", model.Link{URL: "::bogus::"}, model.LinkInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conf := Classify(tt.link)
			assert.Equal(t, tt.want, got)
			if tt.want != model.LinkUnknown {
				assert.Greater(t, conf, 0.4)
			}
		})
	}
}

func TestClassifyAcademicHostBoostsConfidence(t *testing.T) {
	_, eduConf := Classify(model.Link{URL: "https://www.example.edu/lab/vision/"})
	_, comConf := Classify(model.Link{URL: "https://www.example.com/lab/vision/"})
	assert.Greater(t, eduConf, comConf)
}

func TestClassifyAll(t *testing.T) {
	rec := model.PersonRecord{Links: []model.Link{
		{URL: "https://twitter.com/janedoe"},
		{URL: "https://scholar.google.com/citations?user=abc"},
	}}
	ClassifyAll(&rec)
	assert.Equal(t, model.LinkSocialMedia, rec.Links[0].Category)
	assert.Equal(t, model.LinkScholarProfile, rec.Links[1].Category)
}

type fakeQuerier struct {
	search    *gateway.Result
	assistant *gateway.Result
	searches  int
	assists   int
}

func (f *fakeQuerier) Query(_ context.Context, kind gateway.Kind, _ string) (*gateway.Result, error) {
	if kind == gateway.KindSearch {
		f.searches++
		if f.search != nil {
			return f.search, nil
		}
		return &gateway.Result{Kind: kind}, nil
	}
	f.assists++
	if f.assistant != nil {
		return f.assistant, nil
	}
	return &gateway.Result{Kind: kind}, nil
}

func socialRecord() model.PersonRecord {
	return model.PersonRecord{
		Name:         "Jane Doe",
		Organization: "Example University",
		Departments:  []string{"Biology"},
		Links: []model.Link{
			{URL: "https://twitter.com/janedoe", Category: model.LinkSocialMedia, Confidence: 0.5},
		},
	}
}

func TestResolveReplacesSocialLinkFromSearch(t *testing.T) {
	gw := &fakeQuerier{search: &gateway.Result{
		Kind: gateway.KindSearch,
		Results: []gateway.SearchResult{
			{Title: "Jane Doe", URL: "https://www.example.edu/people/jane-doe"},
		},
	}}

	out, upgraded := NewResolver(gw, 0.2).ResolveLowValue(context.Background(), socialRecord())
	assert.Equal(t, 1, upgraded)
	require.Len(t, out.Links, 1)
	assert.Equal(t, model.LinkInstitutionalProfile, out.Links[0].Category)
	assert.Equal(t, "https://www.example.edu/people/jane-doe", out.Links[0].URL)
	assert.Zero(t, gw.assists, "assistant not consulted when search hits")
}

func TestResolveValuedLinkBlocksReplacement(t *testing.T) {
	// A record anchored by a scholar profile keeps its social link as-is
	// and costs nothing.
	gw := &fakeQuerier{}
	rec := socialRecord()
	rec.Links = append(rec.Links, model.Link{
		URL: "https://scholar.google.com/citations?user=abc", Category: model.LinkScholarProfile, Confidence: 0.95,
	})

	out, upgraded := NewResolver(gw, 0.2).ResolveLowValue(context.Background(), rec)
	assert.Zero(t, upgraded)
	assert.Equal(t, rec.Links, out.Links)
	assert.Zero(t, gw.searches)
	assert.Zero(t, gw.assists)
}

func TestResolveMarginGate(t *testing.T) {
	// Candidate classifies at 0.55; original is 0.5. Below the 0.2 margin,
	// so the social link must survive untouched.
	gw := &fakeQuerier{search: &gateway.Result{
		Kind: gateway.KindSearch,
		Results: []gateway.SearchResult{
			{Title: "Jane Doe", URL: "https://obscure.example.io/people/jane"},
		},
	}}

	out, upgraded := NewResolver(gw, 0.2).ResolveLowValue(context.Background(), socialRecord())
	assert.Zero(t, upgraded)
	require.Len(t, out.Links, 1)
	assert.Equal(t, model.LinkSocialMedia, out.Links[0].Category)
	assert.Equal(t, "https://twitter.com/janedoe", out.Links[0].URL)
}

func TestResolveFallsBackToAssistant(t *testing.T) {
	gw := &fakeQuerier{
		search: &gateway.Result{Kind: gateway.KindSearch}, // no hits
		assistant: &gateway.Result{
			Kind: gateway.KindAssistant,
			Text: "https://www.example.edu/~jdoe",
		},
	}

	out, upgraded := NewResolver(gw, 0.1).ResolveLowValue(context.Background(), socialRecord())
	assert.Equal(t, 1, upgraded)
	require.Len(t, out.Links, 1)
	assert.Equal(t, model.LinkPersonalSite, out.Links[0].Category)
	assert.Equal(t, 1, gw.searches)
	assert.Equal(t, 1, gw.assists)
}

func TestResolveAssistantNoneKeepsOriginal(t *testing.T) {
	gw := &fakeQuerier{
		assistant: &gateway.Result{Kind: gateway.KindAssistant, Text: "NONE"},
	}

	out, upgraded := NewResolver(gw, 0.2).ResolveLowValue(context.Background(), socialRecord())
	assert.Zero(t, upgraded)
	assert.Equal(t, "https://twitter.com/janedoe", out.Links[0].URL)
}

func TestResolveGatewayUnavailableKeepsOriginal(t *testing.T) {
	gw := &fakeQuerier{
		search:    &gateway.Result{Kind: gateway.KindSearch, Unavailable: true, Reason: "quota exceeded"},
		assistant: &gateway.Result{Kind: gateway.KindAssistant, Unavailable: true, Reason: "quota exceeded"},
	}

	out, upgraded := NewResolver(gw, 0.2).ResolveLowValue(context.Background(), socialRecord())
	assert.Zero(t, upgraded)
	require.Len(t, out.Links, 1)
	assert.Equal(t, model.LinkSocialMedia, out.Links[0].Category)
}

func TestResolveSkipsNonValuedSearchHits(t *testing.T) {
	// Search returning another social profile must not replace anything.
	gw := &fakeQuerier{search: &gateway.Result{
		Kind: gateway.KindSearch,
		Results: []gateway.SearchResult{
			{Title: "Jane Doe", URL: "https://www.facebook.com/janedoe"},
			{Title: "Jane Doe", URL: "https://www.example.edu/people/jane"},
		},
	}}

	out, upgraded := NewResolver(gw, 0.2).ResolveLowValue(context.Background(), socialRecord())
	assert.Equal(t, 1, upgraded)
	assert.Equal(t, "https://www.example.edu/people/jane", out.Links[0].URL)
}
