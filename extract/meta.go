package extract

import (
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// pageMeta holds metadata pulled from <head> tags.
type pageMeta struct {
	title       string
	description string
	author      string
	imageURL    string
	canonical   string
	publishedAt *time.Time
}

// dateMetaKeys are checked in order for a publication timestamp.
var dateMetaKeys = []string{
	"article:published_time",
	"og:published_time",
	"publishdate",
	"pubdate",
	"date",
}

// extractMeta walks the document head and collects page metadata.
// og: properties win over plain meta names; the <title> tag is the title
// fallback.
func extractMeta(doc *html.Node) pageMeta {
	var m pageMeta
	metas := map[string]string{}
	var titleTag string

	walkNodes(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.DataAtom {
		case atom.Title:
			if titleTag == "" && n.FirstChild != nil {
				titleTag = strings.TrimSpace(n.FirstChild.Data)
			}
		case atom.Meta:
			key := getAttr(n, "property")
			if key == "" {
				key = getAttr(n, "name")
			}
			key = strings.ToLower(strings.TrimSpace(key))
			content := strings.TrimSpace(getAttr(n, "content"))
			if key != "" && content != "" {
				if _, seen := metas[key]; !seen {
					metas[key] = content
				}
			}
		case atom.Link:
			if strings.EqualFold(getAttr(n, "rel"), "canonical") && m.canonical == "" {
				m.canonical = strings.TrimSpace(getAttr(n, "href"))
			}
		case atom.Body:
			return false // metadata lives in <head>
		}
		return true
	})

	m.title = firstOf(metas, "og:title")
	if m.title == "" {
		m.title = titleTag
	}
	m.description = truncate(firstOf(metas, "og:description", "description", "twitter:description"), 500)
	m.author = truncate(firstOf(metas, "article:author", "author", "parsely-author"), 100)
	m.imageURL = firstOf(metas, "og:image", "twitter:image")
	if m.canonical == "" {
		m.canonical = firstOf(metas, "og:url")
	}

	for _, key := range dateMetaKeys {
		if v, ok := metas[key]; ok {
			if ts := parseDate(v); ts != nil {
				m.publishedAt = ts
				break
			}
		}
	}
	return m
}

func firstOf(metas map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := metas[k]; v != "" {
			return v
		}
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02",
	"January 2, 2006",
	"2 January 2006",
}

// parseDate tries the common publication-date formats found in meta tags.
func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return &ts
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
