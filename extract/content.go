package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// minContentLen is the minimum text length for a node to count as content.
const minContentLen = 80

// selectContent picks the article body of a parsed document and returns it
// as rendered HTML. Semantic landmarks win; otherwise the subtree with the
// best text-to-markup density is used; last resort is the whole body.
func selectContent(doc *html.Node) string {
	if landmarks := findLandmarks(doc); len(landmarks) > 0 {
		var parts []string
		for _, n := range landmarks {
			if isBoilerplate(n) {
				continue
			}
			if len(collectText(n)) >= minContentLen {
				parts = append(parts, renderNode(n))
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}

	body := findByTag(doc, atom.Body)
	if body == nil {
		body = doc
	}

	if best := densestNode(body); best != nil {
		return renderNode(best)
	}
	if len(collectText(body)) >= minContentLen {
		return renderNode(body)
	}
	return ""
}

// findLandmarks returns semantic HTML5 content containers, preferring
// <article> over <main> (news pages often wrap everything in <main>).
func findLandmarks(doc *html.Node) []*html.Node {
	for _, tag := range []atom.Atom{atom.Article, atom.Main} {
		var nodes []*html.Node
		walkNodes(doc, func(n *html.Node) bool {
			if n.Type == html.ElementNode && n.DataAtom == tag {
				nodes = append(nodes, n)
				return false
			}
			return true
		})
		if len(nodes) > 0 {
			return nodes
		}
	}
	return nil
}

type nodeScore struct {
	node     *html.Node
	textLen  int
	density  float64
	linkDens float64
}

// densestNode finds the content subtree with the highest composite score:
// text density scaled by length, discounted by link density.
func densestNode(root *html.Node) *html.Node {
	var candidates []nodeScore

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type != html.ElementNode || isBoilerplate(n) {
			return
		}
		if !isContentTag(n.DataAtom) && n.DataAtom != atom.Body {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			return
		}

		text := collectText(n)
		if len(text) < minContentLen {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			return
		}

		markupLen := len(renderNode(n))
		if markupLen == 0 {
			markupLen = 1
		}
		linkDens := float64(len(collectLinkText(n))) / float64(len(text))

		candidates = append(candidates, nodeScore{
			node:     n,
			textLen:  len(text),
			density:  float64(len(text)) / float64(markupLen),
			linkDens: linkDens,
		})

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	var best *html.Node
	var bestScore float64
	for i := range candidates {
		c := &candidates[i]
		if c.linkDens > 0.5 {
			continue // mostly links, probably navigation
		}
		score := c.density * lengthScale(c.textLen) * (1 - c.linkDens)
		if score > bestScore {
			bestScore = score
			best = c.node
		}
	}
	return best
}

// lengthScale grows logarithmically with text length so long articles beat
// short high-density fragments.
func lengthScale(n int) float64 {
	scale := 1.0
	for n > 100 {
		scale++
		n /= 2
	}
	return scale
}

var boilerplateClasses = []string{
	"nav", "menu", "sidebar", "footer", "header", "comment",
	"advert", "banner", "social", "share", "related", "promo",
}

func isBoilerplate(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Nav,
		atom.Footer, atom.Header, atom.Aside, atom.Form, atom.Iframe:
		return true
	}
	class := strings.ToLower(getAttr(n, "class") + " " + getAttr(n, "id"))
	for _, marker := range boilerplateClasses {
		if strings.Contains(class, marker) {
			return true
		}
	}
	return false
}

func isContentTag(a atom.Atom) bool {
	switch a {
	case atom.Article, atom.Main, atom.Section, atom.Div, atom.Td:
		return true
	}
	return false
}

// collectText extracts all visible text from a subtree, space-joined.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// collectLinkText extracts text that sits inside <a> elements only.
func collectLinkText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inLink bool) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			inLink = true
		}
		if n.Type == html.TextNode && inLink {
			sb.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inLink)
		}
	}
	walk(n, false)
	return sb.String()
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return ""
	}
	return sb.String()
}

func findByTag(root *html.Node, tag atom.Atom) *html.Node {
	var found *html.Node
	walkNodes(root, func(n *html.Node) bool {
		if found == nil && n.Type == html.ElementNode && n.DataAtom == tag {
			found = n
			return false
		}
		return found == nil
	})
	return found
}

// walkNodes visits every node depth-first; fn returning false prunes the
// subtree below n.
func walkNodes(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, fn)
	}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
