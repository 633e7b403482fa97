package locator

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/BRA7534/CARFAST/app/fetcher"
	"github.com/BRA7534/CARFAST/app/source"
	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// MaxLinksPerSource bounds how many review pages are taken from one search page.
const MaxLinksPerSource = 3

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) fetcher.Result
}

type Locator struct {
	fetcher Fetcher
}

func New(f Fetcher) *Locator {
	return &Locator{fetcher: f}
}

// Locate fetches the search page of desc for brand and model and returns up
// to MaxLinksPerSource distinct review URLs in document order. Any failure
// yields an empty slice.
func (l *Locator) Locate(ctx context.Context, desc *source.Descriptor, brand, model string) []string {
	searchURL, err := desc.SearchURL(brand, model)
	if err != nil {
		slog.Warn("Failed to build search URL", "source", desc.Name, "error", err)
		return nil
	}

	res := l.fetcher.Fetch(ctx, searchURL)
	if !res.OK() {
		slog.Debug("Search page unavailable", "source", desc.Name, "url", searchURL, "status", res.Status.String(), "error", res.Err)
		return nil
	}

	var hrefs []string
	if isFeedType(res.ContentType) {
		hrefs = feedLinks(res.Body)
	}
	if hrefs == nil {
		hrefs = anchorLinks(res.Body)
	}

	links := selectLinks(desc, hrefs)
	slog.Debug("Review links located", "source", desc.Name, "url", searchURL, "candidates", len(hrefs), "links", len(links))
	return links
}

func isFeedType(contentType string) bool {
	return contentType == "application/xml" || contentType == "text/xml"
}

func anchorLinks(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		slog.Debug("Failed to parse HTML", "error", err)
		return nil
	}

	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			hrefs = append(hrefs, strings.TrimSpace(href))
		}
	})
	return hrefs
}

// feedLinks returns item links when body is an RSS or Atom document, nil otherwise.
func feedLinks(body []byte) []string {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	hrefs := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link != "" {
			hrefs = append(hrefs, strings.TrimSpace(item.Link))
			continue
		}
		for _, link := range item.Links {
			hrefs = append(hrefs, strings.TrimSpace(link))
		}
	}
	return hrefs
}

func selectLinks(desc *source.Descriptor, hrefs []string) []string {
	base := desc.Base()
	links := make([]string, 0, MaxLinksPerSource)
	seen := make(map[string]bool)

	for _, href := range hrefs {
		if href == "" || !desc.MatchesReviewLink(href) {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		abs.RawFragment = ""
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}

		link := abs.String()
		if seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)

		if len(links) == MaxLinksPerSource {
			break
		}
	}

	return links
}
