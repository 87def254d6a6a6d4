package model

import (
	"strings"
	"time"
)

// LinkCategory classifies an outbound link on a person record.
type LinkCategory string

const (
	LinkScholarProfile       LinkCategory = "scholar_profile"
	LinkInstitutionalProfile LinkCategory = "institutional_profile"
	LinkPersonalSite         LinkCategory = "personal_site"
	LinkGroupSite            LinkCategory = "group_site"
	LinkResearchNetwork      LinkCategory = "research_network_profile"
	LinkPublication          LinkCategory = "publication"
	LinkSocialMedia          LinkCategory = "social_media"
	LinkUnknown              LinkCategory = "unknown"
	LinkInvalid              LinkCategory = "invalid"
)

// ValuedCategories are link categories that anchor a record. A record that
// holds one of these never has its social-media links replaced.
var ValuedCategories = map[LinkCategory]bool{
	LinkScholarProfile:       true,
	LinkInstitutionalProfile: true,
	LinkPersonalSite:         true,
	LinkGroupSite:            true,
	LinkResearchNetwork:      true,
}

// Link is one outbound URL on a person record.
type Link struct {
	URL        string       `json:"url"`
	Text       string       `json:"text,omitempty"`
	Context    string       `json:"context,omitempty"`
	Category   LinkCategory `json:"category"`
	Confidence float64      `json:"confidence"`
	Accessible bool         `json:"accessible"`
}

// AssociationTier records which detection tier produced a lab association.
type AssociationTier string

const (
	TierFound      AssociationTier = "found"
	TierSearchHit  AssociationTier = "search_hit"
	TierSearchMiss AssociationTier = "search_miss"
	TierNone       AssociationTier = "none"
)

// LabAssociation is an inferred research-group or team affiliation.
type LabAssociation struct {
	Name string          `json:"name"`
	URL  string          `json:"url,omitempty"`
	Tier AssociationTier `json:"tier"`
}

// Provenance records how and where a record was extracted.
type Provenance struct {
	Method    string     `json:"method"` // layout kind or "generic"
	SourceURL string     `json:"source_url"`
	FetchedAt time.Time  `json:"fetched_at"`
	Layout    LayoutKind `json:"layout"`
}

// PersonRecord is the unit of pipeline output. Created by extraction,
// mutated by the merge engine and enrichers, immutable once returned.
type PersonRecord struct {
	Name         string           `json:"name"`
	Title        string           `json:"title,omitempty"`
	Email        string           `json:"email,omitempty"`
	Organization string           `json:"organization"`
	Departments  []string         `json:"departments,omitempty"`
	Links        []Link           `json:"links,omitempty"`
	ResearchTags []string         `json:"research_tags,omitempty"`
	Labs         []LabAssociation `json:"labs,omitempty"`
	Provenance   Provenance       `json:"provenance"`
	Confidence   float64          `json:"confidence"`
}

// honorifics stripped when computing the dedupe key.
var honorifics = map[string]bool{
	"dr":    true,
	"dr.":   true,
	"prof":  true,
	"prof.": true,
	"mr":    true,
	"mr.":   true,
	"ms":    true,
	"ms.":   true,
	"mrs":   true,
	"mrs.":  true,
	"phd":   true,
	"ph.d.": true,
	"md":    true,
	"m.d.":  true,
}

// DedupeKey returns the stable merge key "organization::first::last",
// lower-cased with honorifics and suffixes removed. Two records sharing
// a key must be merged, never duplicated, in final output.
func (r *PersonRecord) DedupeKey() string {
	first, last := splitName(r.Name)
	return NormalizeOrgKey(r.Organization) + "::" + first + "::" + last
}

func splitName(name string) (first, last string) {
	name = strings.ReplaceAll(name, ",", " ")
	var parts []string
	for _, f := range strings.Fields(strings.ToLower(name)) {
		if honorifics[f] {
			continue
		}
		parts = append(parts, f)
	}
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[len(parts)-1]
}

// HasValuedLink reports whether any link falls in a valued category.
func (r *PersonRecord) HasValuedLink() bool {
	for _, l := range r.Links {
		if ValuedCategories[l.Category] {
			return true
		}
	}
	return false
}

// CompletenessScore computes the record's confidence from populated fields.
// Name is required; each additional field raises the score.
func (r *PersonRecord) CompletenessScore() float64 {
	if r.Name == "" {
		return 0
	}
	score := 0.3
	if r.Email != "" {
		score += 0.25
	}
	if r.Title != "" {
		score += 0.15
	}
	if len(r.Departments) > 0 {
		score += 0.1
	}
	if len(r.Links) > 0 {
		score += 0.1
	}
	if len(r.Labs) > 0 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
