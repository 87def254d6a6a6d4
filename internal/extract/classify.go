package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/roster-cli/internal/model"
)

// cardClassHints mark repeated person-block containers.
var cardClassHints = []string{"card", "profile", "person", "member", "people-item", "staff-item", "bio"}

// gridClassHints mark grid containers whose children repeat.
var gridClassHints = []string{"grid", "row", "columns", "cols"}

// classify determines a page's structural layout from signal density.
// Inconclusive pages come back LayoutUnknown and route to the generic
// mailto scanner.
func classify(doc *goquery.Document) model.LayoutKind {
	if rows := dataRows(doc); len(rows) >= 2 {
		return model.LayoutTabular
	}
	if len(classHintedBlocks(doc, cardClassHints)) >= 2 {
		return model.LayoutCard
	}
	if gridItems(doc).Length() >= 3 {
		return model.LayoutGrid
	}
	if listItems(doc).Length() >= 3 {
		return model.LayoutList
	}
	return model.LayoutUnknown
}

// dataRows returns the body rows of the densest table with at least two
// cells per row. Header-only and layout tables don't qualify.
func dataRows(doc *goquery.Document) []*goquery.Selection {
	var best []*goquery.Selection
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows []*goquery.Selection
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			if tr.Find("th").Length() > 0 && tr.Find("td").Length() == 0 {
				return // header row
			}
			if tr.Find("td").Length() >= 2 {
				rows = append(rows, tr)
			}
		})
		if len(rows) > len(best) {
			best = rows
		}
	})
	return best
}

// classHintedBlocks finds elements whose class attribute carries any hint.
func classHintedBlocks(doc *goquery.Document, hints []string) []*goquery.Selection {
	var blocks []*goquery.Selection
	doc.Find("div, li, article, section").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		lower := strings.ToLower(class)
		for _, hint := range hints {
			if strings.Contains(lower, hint) {
				// Containers whose class also hints don't count twice;
				// only leaf-most hinted blocks carry a person.
				if s.Find("[class]").FilterFunction(func(_ int, c *goquery.Selection) bool {
					cc, _ := c.Attr("class")
					return strings.Contains(strings.ToLower(cc), hint)
				}).Length() == 0 {
					blocks = append(blocks, s)
				}
				return
			}
		}
	})
	return blocks
}

// gridItems returns the children of the largest grid-hinted container.
func gridItems(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	doc.Find("div, ul, section").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		lower := strings.ToLower(class)
		hinted := false
		for _, hint := range gridClassHints {
			if strings.Contains(lower, hint) {
				hinted = true
				break
			}
		}
		if !hinted {
			return
		}
		children := s.Children()
		if best == nil || children.Length() > best.Length() {
			best = children
		}
	})
	if best == nil {
		return doc.Find("nothing")
	}
	return best
}

// listItems returns list entries that look like person rows: they carry a
// link and sit outside chrome (nav, header, footer).
func listItems(doc *goquery.Document) *goquery.Selection {
	return doc.Find("ul li, ol li").FilterFunction(func(_ int, li *goquery.Selection) bool {
		if li.Find("a").Length() == 0 {
			return false
		}
		return li.ParentsFiltered("nav, header, footer").Length() == 0
	})
}
