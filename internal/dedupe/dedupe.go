// Package dedupe collapses the same person appearing under multiple
// departments or pages into one enriched record.
package dedupe

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
)

// Merge groups records by dedupe key and merges each group into a single
// record: departments, links, tags, and labs are unioned; on a title or
// email conflict the higher-confidence record wins, recency breaking ties.
// Returns the merged set plus the number of merges performed. Keyed
// grouping makes the result independent of input order.
func Merge(records []model.PersonRecord) ([]model.PersonRecord, int) {
	groups := map[string]*model.PersonRecord{}
	var order []string
	merges := 0

	for i := range records {
		rec := records[i]
		key := rec.DedupeKey()
		base, ok := groups[key]
		if !ok {
			clone := rec
			groups[key] = &clone
			order = append(order, key)
			continue
		}
		mergeInto(base, &rec)
		merges++
	}

	out := make([]model.PersonRecord, 0, len(order))
	for _, key := range order {
		rec := groups[key]
		rec.Confidence = rec.CompletenessScore()
		out = append(out, *rec)
	}

	if merges > 0 {
		zap.L().Debug("dedupe: merged duplicate records",
			zap.Int("in", len(records)),
			zap.Int("out", len(out)),
			zap.Int("merges", merges),
		)
	}
	return out, merges
}

// mergeInto folds src into dst in place.
func mergeInto(dst, src *model.PersonRecord) {
	if preferSrc(dst, src, src.Title != "", dst.Title != "") {
		dst.Title = src.Title
	}
	if preferSrc(dst, src, src.Email != "", dst.Email != "") {
		dst.Email = src.Email
	}

	dst.Departments = unionStrings(dst.Departments, src.Departments)
	dst.ResearchTags = unionStrings(dst.ResearchTags, src.ResearchTags)
	dst.Links = unionLinks(dst.Links, src.Links)
	dst.Labs = unionLabs(dst.Labs, src.Labs)

	// Provenance tracks the strongest contributing extraction.
	if src.Confidence > dst.Confidence {
		dst.Provenance = src.Provenance
	}
}

// preferSrc decides whether src's value replaces dst's for one field.
// An empty side never wins; otherwise higher record confidence wins, and
// equal confidence falls to the more recently fetched page.
func preferSrc(dst, src *model.PersonRecord, srcSet, dstSet bool) bool {
	if !srcSet {
		return false
	}
	if !dstSet {
		return true
	}
	if src.Confidence != dst.Confidence {
		return src.Confidence > dst.Confidence
	}
	return src.Provenance.FetchedAt.After(dst.Provenance.FetchedAt)
}

// unionStrings appends missing values, deduplicating case-insensitively
// while keeping the first-seen casing.
func unionStrings(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[strings.ToLower(strings.TrimSpace(v))] = true
	}
	for _, v := range src {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		dst = append(dst, v)
	}
	return dst
}

// unionLinks collapses duplicate URLs, keeping the higher-confidence
// classification when both sides carry the same link.
func unionLinks(dst, src []model.Link) []model.Link {
	index := make(map[string]int, len(dst))
	for i, l := range dst {
		index[l.URL] = i
	}
	for _, l := range src {
		i, ok := index[l.URL]
		if !ok {
			index[l.URL] = len(dst)
			dst = append(dst, l)
			continue
		}
		if l.Confidence > dst[i].Confidence {
			dst[i] = l
		}
	}
	return dst
}

func unionLabs(dst, src []model.LabAssociation) []model.LabAssociation {
	seen := make(map[string]bool, len(dst))
	for _, l := range dst {
		seen[strings.ToLower(l.Name)] = true
	}
	for _, l := range src {
		key := strings.ToLower(l.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		dst = append(dst, l)
	}
	return dst
}
