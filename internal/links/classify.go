// Package links categorizes the outbound links on a person record and
// upgrades low-value social links to academic alternatives.
package links

import (
	"net/url"
	"strings"

	"github.com/sells-group/roster-cli/internal/model"
)

// scholarDomains map straight to the scholar-profile category.
var scholarDomains = map[string]bool{
	"scholar.google.com": true,
}

// networkDomains are recognized research-network profile hosts.
var networkDomains = map[string]bool{
	"researchgate.net":        true,
	"www.researchgate.net":    true,
	"orcid.org":               true,
	"www.academia.edu":        true,
	"academia.edu":            true,
	"dblp.org":                true,
	"www.semanticscholar.org": true,
	"semanticscholar.org":     true,
}

// socialDomains are platforms scored social-media; they are replacement
// candidates, never sources of truth.
var socialDomains = map[string]bool{
	"twitter.com":       true,
	"x.com":             true,
	"facebook.com":      true,
	"www.facebook.com":  true,
	"instagram.com":     true,
	"www.instagram.com": true,
	"linkedin.com":      true,
	"www.linkedin.com":  true,
	"tiktok.com":        true,
	"www.tiktok.com":    true,
	"bsky.app":          true,
	"threads.net":       true,
	"www.threads.net":   true,
}

// publicationDomains host papers, not people.
var publicationDomains = map[string]bool{
	"doi.org":                 true,
	"dx.doi.org":              true,
	"arxiv.org":               true,
	"pubmed.ncbi.nlm.nih.gov": true,
	"dl.acm.org":              true,
	"ieeexplore.ieee.org":     true,
	"link.springer.com":       true,
	"www.nature.com":          true,
}

// groupPathMarkers in a URL path signal a lab or group site.
var groupPathMarkers = []string{"/lab/", "/labs/", "/group/", "/groups/", "/center/", "/centre/", "/team/"}

// profilePathMarkers signal an institutional profile page.
var profilePathMarkers = []string{"/people/", "/faculty/", "/staff/", "/directory/", "/profile/", "/profiles/", "/bio/"}

// Classify categorizes a link from its domain, path shape, and the text
// around it. Returns the category and a confidence in 0..1.
func Classify(link model.Link) (model.LinkCategory, float64) {
	u, err := url.Parse(link.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return model.LinkInvalid, 1.0
	}
	host := strings.ToLower(u.Host)
	path := strings.ToLower(u.Path)
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	switch {
	case scholarDomains[host]:
		return model.LinkScholarProfile, 0.95
	case networkDomains[host]:
		return model.LinkResearchNetwork, 0.9
	case socialDomains[host]:
		// Moderate confidence: this is the score a replacement candidate
		// has to clear by the configured margin, so certainty about the
		// platform must not read as certainty about the link's worth.
		return model.LinkSocialMedia, 0.5
	case publicationDomains[host]:
		return model.LinkPublication, 0.85
	}

	academic := academicHost(host)
	text := strings.ToLower(link.Text + " " + link.Context)

	for _, marker := range groupPathMarkers {
		if strings.Contains(path, marker) {
			conf := 0.6
			if academic {
				conf = 0.75
			}
			if strings.Contains(text, "lab") || strings.Contains(text, "group") || strings.Contains(text, "center") {
				conf += 0.1
			}
			return model.LinkGroupSite, conf
		}
	}

	for _, marker := range profilePathMarkers {
		if strings.Contains(path, marker) {
			conf := 0.55
			if academic {
				conf = 0.75
			}
			return model.LinkInstitutionalProfile, conf
		}
	}

	// Tilde paths and github.io hosts are personal pages.
	if strings.HasPrefix(u.Path, "/~") || strings.HasSuffix(host, ".github.io") {
		conf := 0.6
		if academic {
			conf = 0.7
		}
		return model.LinkPersonalSite, conf
	}

	if strings.Contains(text, "personal site") || strings.Contains(text, "homepage") || strings.Contains(text, "personal page") {
		return model.LinkPersonalSite, 0.5
	}
	if strings.Contains(text, "lab") && academic {
		return model.LinkGroupSite, 0.5
	}

	return model.LinkUnknown, 0.2
}

// ClassifyAll classifies every link on the record in place.
func ClassifyAll(rec *model.PersonRecord) {
	for i := range rec.Links {
		rec.Links[i].Category, rec.Links[i].Confidence = Classify(rec.Links[i])
	}
}

// academicHost reports whether a host looks institutional.
func academicHost(host string) bool {
	return strings.HasSuffix(host, ".edu") ||
		strings.HasSuffix(host, ".ac.uk") ||
		strings.HasSuffix(host, ".edu.au") ||
		strings.HasSuffix(host, ".org")
}
