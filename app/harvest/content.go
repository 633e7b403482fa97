package harvest

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var contentSelectors = []string{"article", ".content", ".article-content", ".post-content"}

var inlineElements = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.B: true, atom.Code: true, atom.Em: true, atom.I: true,
	atom.Mark: true, atom.Small: true, atom.Span: true, atom.Strong: true, atom.Sub: true, atom.Sup: true, atom.U: true,
}

// TextExtractor turns a fetched review page into plain prose.
type TextExtractor interface {
	Text(body []byte, pageURL string) (string, error)
}

type PageText struct{}

// Text extracts the main article with readability, falling back to the
// usual content containers and finally the whole body.
func (PageText) Text(body []byte, pageURL string) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	var parsed *url.URL
	if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
		parsed = u
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		slog.Debug("Readability extraction failed, using selectors", "url", pageURL, "error", err)
	} else if text := fragmentText(article.Content); text != "" {
		return text, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			if text := nodesText(sel.Nodes); text != "" {
				return text, nil
			}
		}
	}

	if text := nodesText(doc.Find("body").Nodes); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("no text found in page")
}

func fragmentText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return nodesText(doc.Find("body").Nodes)
}

// nodesText concatenates the text of nodes, separating block elements with
// spaces so headings and paragraphs do not run together.
func nodesText(nodes []*html.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		writeText(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == html.ElementNode && !inlineElements[n.DataAtom] {
		b.WriteByte(' ')
	}
}
