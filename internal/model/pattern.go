// Package model defines the shared types for the discovery and extraction pipeline.
package model

import (
	"strings"
	"time"
)

// DiscoveryMethod identifies which strategy produced a SitePattern.
type DiscoveryMethod string

const (
	MethodSitemap    DiscoveryMethod = "sitemap"
	MethodNavigation DiscoveryMethod = "navigation"
	MethodCommonPath DiscoveryMethod = "common_path"
	MethodSubdomain  DiscoveryMethod = "subdomain"
	MethodAssistant  DiscoveryMethod = "assistant"
	MethodNone       DiscoveryMethod = "none"
)

// DefaultPatternTTL is how long a discovered pattern stays valid.
const DefaultPatternTTL = 30 * 24 * time.Hour

// SitePattern is the discovered directory structure for one organization.
// Re-discovery overwrites an existing pattern; patterns are never merged
// and confidence is never upgraded after the producing strategy sets it.
type SitePattern struct {
	OrgKey         string            `json:"org_key"`
	BaseURL        string            `json:"base_url"`
	DirectoryPaths []string          `json:"directory_paths"`
	Subdomains     map[string]string `json:"subdomains,omitempty"` // department → subdomain base URL
	Method         DiscoveryMethod   `json:"method"`
	Confidence     float64           `json:"confidence"`
	LowConfidence  bool              `json:"low_confidence,omitempty"`
	DiscoveredAt   time.Time         `json:"discovered_at"`
	TTL            time.Duration     `json:"ttl"`
}

// Expired reports whether the pattern's TTL has elapsed at the given time.
func (p *SitePattern) Expired(now time.Time) bool {
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultPatternTTL
	}
	return now.After(p.DiscoveredAt.Add(ttl))
}

// NormalizeOrgKey produces the canonical cache key for an organization name.
func NormalizeOrgKey(org string) string {
	s := strings.ToLower(strings.TrimSpace(org))
	s = strings.Join(strings.Fields(s), "-")
	return s
}

// PatternKey combines an organization key with an optional department so
// department-scoped and organization-wide discoveries cache independently.
func PatternKey(org, department string) string {
	key := NormalizeOrgKey(org)
	if department != "" {
		key += "::" + NormalizeOrgKey(department)
	}
	return key
}

// LayoutKind classifies the structural shape of a directory page.
type LayoutKind string

const (
	LayoutTabular LayoutKind = "tabular"
	LayoutGrid    LayoutKind = "grid"
	LayoutList    LayoutKind = "list"
	LayoutCard    LayoutKind = "card"
	LayoutUnknown LayoutKind = "unknown"
)

// DirectoryPage is one listing page bound to a department. Ephemeral:
// never persisted beyond a single run.
type DirectoryPage struct {
	URL        string     `json:"url"`
	HTML       string     `json:"html"`
	Department string     `json:"department,omitempty"`
	Layout     LayoutKind `json:"layout"`
	Confidence float64    `json:"confidence"`
	FetchedAt  time.Time  `json:"fetched_at"`
}
