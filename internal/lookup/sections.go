package lookup

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Link scores.
const (
	scoreEnglishHost = 20
	scoreNameHint    = 10
	scoreExactTitle  = 100
	scorePartial     = 60
)

// FindWikipediaLink walks the sections of a PubChem record and returns the
// best Wikipedia link: the first "Wikipedia" section, in document order,
// that yields a URL wins, and within it the highest scoring entry.
// Sections are searched before their subsections.
func FindWikipediaLink(sections gjson.Result, recordTitle string, synonyms []string) string {
	titles := make([]string, 0, len(synonyms)+1)
	for _, t := range append([]string{recordTitle}, synonyms...) {
		if n := normalizeTitle(t); n != "" {
			titles = append(titles, n)
		}
	}
	return findWikipedia(sections, titles)
}

func findWikipedia(sections gjson.Result, titles []string) string {
	var found string
	sections.ForEach(func(_, section gjson.Result) bool {
		if section.Get("TOCHeading").String() == "Wikipedia" {
			if link := bestWikipediaEntry(section.Get("Information"), titles); link != "" {
				found = link
				return false
			}
		}
		if sub := section.Get("Section"); sub.Exists() {
			if link := findWikipedia(sub, titles); link != "" {
				found = link
				return false
			}
		}
		return true
	})
	return found
}

func bestWikipediaEntry(information gjson.Result, titles []string) string {
	bestURL := ""
	bestScore := -1

	information.ForEach(func(_, info gjson.Result) bool {
		link := info.Get("URL").String()
		if link == "" {
			return true
		}

		score := 0
		if strings.Contains(link, "en.wikipedia.org") {
			score += scoreEnglishHost
		}
		hint := normalizeTitle(info.Get("Name").String())
		if strings.Contains(hint, "wikipedia") && strings.Contains(hint, "en") {
			score += scoreNameHint
		}
		score += titleScore(normalizeTitle(info.Get("Value.StringWithMarkup.0.String").String()), titles)

		if score > bestScore {
			bestScore = score
			bestURL = link
		}
		return true
	})
	return bestURL
}

func titleScore(wikiTitle string, titles []string) int {
	if wikiTitle == "" {
		return 0
	}
	for _, t := range titles {
		if t == wikiTitle {
			return scoreExactTitle
		}
	}
	for _, t := range titles {
		if strings.Contains(t, wikiTitle) || strings.Contains(wikiTitle, t) {
			return scorePartial
		}
	}
	return 0
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FindDrugBankID returns the first DrugBank ID in a PubChem record and the
// link PubChem gives for it, or a DrugBank link built from the ID.
func FindDrugBankID(sections gjson.Result) (id, link string) {
	sections.ForEach(func(_, section gjson.Result) bool {
		if section.Get("TOCHeading").String() == "DrugBank ID" {
			section.Get("Information").ForEach(func(_, info gjson.Result) bool {
				v := strings.TrimSpace(info.Get("Value.StringWithMarkup.0.String").String())
				if v == "" {
					return true
				}
				id = v
				link = info.Get("URL").String()
				if link == "" {
					link = DrugBankDrugURL(v)
				}
				return false
			})
			if id != "" {
				return false
			}
		}
		if sub := section.Get("Section"); sub.Exists() {
			id, link = FindDrugBankID(sub)
			if id != "" {
				return false
			}
		}
		return true
	})
	return id, link
}
