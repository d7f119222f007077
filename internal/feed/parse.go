package feed

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

const (
	sectionSelector = "ytd-item-section-renderer"
	headerSelector  = "#header"
	titleSelector   = "a#video-title"
	watchSelector   = "a[href*='/watch?v=']"
)

// ParseSections extracts date sections from rendered history HTML. Title
// anchors are preferred; when a section has none, any watch link with text
// is used. Anchors without text or href are dropped.
func ParseSections(r io.Reader) ([]Section, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "feed: parse html")
	}

	var sections []Section
	doc.Find(sectionSelector).Each(func(_ int, s *goquery.Selection) {
		label := collapseSpace(s.Find(headerSelector).First().Text())

		anchors := s.Find(titleSelector)
		if anchors.Length() == 0 {
			anchors = s.Find(watchSelector)
		}

		seen := make(map[string]bool)
		var items []Item
		anchors.Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			href = strings.TrimSpace(href)
			if !ok || href == "" || seen[href] {
				return
			}
			title := collapseSpace(a.Text())
			if title == "" {
				title = collapseSpace(a.AttrOr("title", ""))
			}
			if title == "" {
				return
			}
			seen[href] = true
			items = append(items, Item{Title: title, Link: href})
		})

		sections = append(sections, Section{Label: label, Items: items})
	})
	return sections, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
