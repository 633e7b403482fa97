package source

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SearchStyle selects how a site expects a vehicle to appear in its search URL.
type SearchStyle string

const (
	// SearchStyleSlug produces "brand-model", e.g. "peugeot-3008".
	SearchStyleSlug SearchStyle = "slug"
	// SearchStylePath produces "brand/model", e.g. "peugeot/3008".
	SearchStylePath SearchStyle = "path"
	// SearchStyleQuery produces "?q=brand+model".
	SearchStyleQuery SearchStyle = "query"
)

func (s SearchStyle) Valid() bool {
	switch s {
	case SearchStyleSlug, SearchStylePath, SearchStyleQuery:
		return true
	}
	return false
}

// Term builds the relative search reference for brand and model.
func (s SearchStyle) Term(brand, model string) string {
	switch s {
	case SearchStylePath:
		return url.PathEscape(slugify(brand)) + "/" + url.PathEscape(slugify(model))
	case SearchStyleQuery:
		q := strings.TrimSpace(brand) + " " + strings.TrimSpace(model)
		return "?" + url.Values{"q": {q}}.Encode()
	default:
		return url.PathEscape(slugify(brand + " " + model))
	}
}

// SearchURL joins the site base URL with the search term for brand and model.
func (d *Descriptor) SearchURL(brand, model string) (string, error) {
	ref, err := url.Parse(d.SearchStyle.Term(brand, model))
	if err != nil {
		return "", fmt.Errorf("failed to build search term for %s: %w", d.Name, err)
	}
	return d.base.ResolveReference(ref).String(), nil
}

// slugify lowercases s, folds accents and joins the remaining words with dashes.
// Transformers and casers are stateful; build them per call.
func slugify(s string) string {
	foldAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(foldAccents, s)
	if err != nil {
		folded = s
	}
	folded = cases.Lower(language.French).String(folded)

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}
