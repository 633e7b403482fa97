package source

import (
	"net/url"
	"regexp"
)

// Descriptor is one external review site. Descriptors are built once by the
// registry loader and never modified afterwards.
type Descriptor struct {
	Name              string
	BaseURL           string
	ReviewLinkPattern string
	SearchStyle       SearchStyle

	base        *url.URL
	linkPattern *regexp.Regexp
}

// MatchesReviewLink reports whether href looks like a review page for this site.
func (d *Descriptor) MatchesReviewLink(href string) bool {
	return d.linkPattern.MatchString(href)
}

// Base returns a copy of the parsed base URL.
func (d *Descriptor) Base() *url.URL {
	u := *d.base
	return &u
}

// Configuration types

type fileConfig struct {
	Sources []entryConfig `yaml:"sources"`
}

type entryConfig struct {
	Name              string `yaml:"name"`
	BaseURL           string `yaml:"base_url"`
	ReviewLinkPattern string `yaml:"review_link_pattern"`
	SearchStyle       string `yaml:"search_style"`
}
