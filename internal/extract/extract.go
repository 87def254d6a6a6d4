// Package extract classifies directory-page layouts and pulls person
// records out of them. Extraction is pure heuristics over parsed HTML;
// link categorization and enrichment happen downstream.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/sells-group/roster-cli/internal/model"
)

// Extractor turns directory pages into raw person records.
type Extractor struct {
	organization string
}

// New creates an Extractor producing records for the given organization.
func New(organization string) *Extractor {
	return &Extractor{organization: organization}
}

// Extract classifies the page layout and runs the matching extraction
// routine. Records preserve source order. Near-empty blocks are dropped,
// never emitted as junk records.
func (e *Extractor) Extract(page model.DirectoryPage) []model.PersonRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		zap.L().Warn("extract: unparseable page, skipping",
			zap.String("url", page.URL),
			zap.Error(err),
		)
		return nil
	}

	layout := classify(doc)
	var blocks []*goquery.Selection
	switch layout {
	case model.LayoutTabular:
		blocks = dataRows(doc)
	case model.LayoutCard:
		blocks = classHintedBlocks(doc, cardClassHints)
	case model.LayoutGrid:
		gridItems(doc).Each(func(_ int, s *goquery.Selection) {
			blocks = append(blocks, s)
		})
	case model.LayoutList:
		listItems(doc).Each(func(_ int, s *goquery.Selection) {
			blocks = append(blocks, s)
		})
	default:
		blocks = mailtoBlocks(doc)
	}

	method := string(layout)
	if layout == model.LayoutUnknown {
		method = "generic"
	}

	var records []model.PersonRecord
	for _, block := range blocks {
		rec := e.recordFromBlock(block, page, layout, method)
		if rec == nil {
			continue
		}
		records = append(records, *rec)
	}

	zap.L().Debug("extract: page done",
		zap.String("url", page.URL),
		zap.String("layout", string(layout)),
		zap.Int("blocks", len(blocks)),
		zap.Int("records", len(records)),
	)
	return records
}

// mailtoBlocks is the generic fallback: every mailto anchor's enclosing
// block is one candidate record.
func mailtoBlocks(doc *goquery.Document) []*goquery.Selection {
	var blocks []*goquery.Selection
	seen := map[*html.Node]bool{}
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, a *goquery.Selection) {
		block := a.Closest("li, tr, div, p, section, article")
		if block.Length() == 0 {
			block = a.Parent()
		}
		node := block.Nodes[0]
		if !seen[node] {
			seen[node] = true
			blocks = append(blocks, block)
		}
	})
	return blocks
}

func (e *Extractor) recordFromBlock(block *goquery.Selection, page model.DirectoryPage, layout model.LayoutKind, method string) *model.PersonRecord {
	name := blockName(block, layout)
	if name == "" {
		return nil
	}

	rec := &model.PersonRecord{
		Name:         name,
		Title:        blockTitle(block, layout, name),
		Email:        blockEmail(block),
		Organization: e.organization,
		Links:        blockLinks(block, page.URL),
		Provenance: model.Provenance{
			Method:    method,
			SourceURL: page.URL,
			FetchedAt: page.FetchedAt,
			Layout:    layout,
		},
	}
	if page.Department != "" {
		rec.Departments = []string{page.Department}
	}
	rec.Confidence = rec.CompletenessScore()

	// A bare name with nothing else attached is noise, not a person.
	if rec.Email == "" && rec.Title == "" && len(rec.Links) == 0 {
		return nil
	}
	return rec
}

var nameishRe = regexp.MustCompile(`^[A-Z][\p{L}'.-]*(?: [A-Z][\p{L}'.-]*)+$`)

// isNameish reports whether anchor text is shaped like a person's name.
// All-caps strings ("NEXT PAGE") pass the regex but are chrome, not names.
func isNameish(text string) bool {
	return nameishRe.MatchString(text) && text != strings.ToUpper(text)
}

// blockName finds the person's display name: first cell for table rows,
// otherwise the first heading/bold run, otherwise the first anchor whose
// text is shaped like a name.
func blockName(block *goquery.Selection, layout model.LayoutKind) string {
	if layout == model.LayoutTabular {
		cell := block.Find("td").First()
		if name := cleanText(cell.Text()); name != "" {
			return name
		}
		return ""
	}

	if name := cleanText(block.Find("h1, h2, h3, h4, h5, h6, strong, b, .name").First().Text()); name != "" {
		return name
	}

	var name string
	block.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := cleanText(a.Text())
		if isNameish(text) {
			name = text
			return false
		}
		return true
	})
	return name
}

// blockTitle extracts a job title: second table cell, a class-hinted
// element, or the first short text line after the name.
func blockTitle(block *goquery.Selection, layout model.LayoutKind, name string) string {
	if layout == model.LayoutTabular {
		cells := block.Find("td")
		if cells.Length() >= 2 {
			title := cleanText(cells.Eq(1).Text())
			if title != name && !strings.Contains(title, "@") {
				return title
			}
		}
		return ""
	}

	if title := cleanText(block.Find(".title, .role, .position, em, i").First().Text()); title != "" && title != name {
		return title
	}

	for _, line := range strings.Split(block.Text(), "\n") {
		line = cleanText(line)
		if line == "" || line == name || strings.Contains(line, "@") {
			continue
		}
		if len(line) <= 80 && !strings.Contains(line, name) {
			return line
		}
	}
	return ""
}

// blockEmail returns the first mailto address in the block.
func blockEmail(block *goquery.Selection) string {
	href, ok := block.Find(`a[href^="mailto:"]`).First().Attr("href")
	if !ok {
		return ""
	}
	email := strings.TrimPrefix(href, "mailto:")
	if i := strings.IndexByte(email, '?'); i >= 0 {
		email = email[:i]
	}
	return strings.ToLower(strings.TrimSpace(email))
}

// blockLinks collects the block's outbound HTTP links, uncategorized;
// the link classifier assigns categories downstream.
func blockLinks(block *goquery.Selection, pageURL string) []model.Link {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}
	context := snippet(block.Text(), 160)

	var links []model.Link
	seen := map[string]bool{}
	block.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		abs := href
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				abs = base.ResolveReference(ref).String()
			}
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, model.Link{
			URL:        abs,
			Text:       cleanText(a.Text()),
			Context:    context,
			Category:   model.LinkUnknown,
			Accessible: true,
		})
	})
	return links
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func snippet(s string, max int) string {
	s = cleanText(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
