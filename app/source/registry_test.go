package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultRegistryOrder(t *testing.T) {
	registry := Default()

	var names []string
	for _, desc := range registry.Sources() {
		names = append(names, desc.Name)
	}

	want := []string{"caradisiac", "largus", "autoplus", "turbo", "automobile-magazine"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Unexpected source order (-want +got):\n%s", diff)
	}
}

func TestSearchURL(t *testing.T) {
	registry := Default()

	tests := []struct {
		source string
		brand  string
		model  string
		want   string
	}{
		{"caradisiac", "Peugeot", "208", "https://www.caradisiac.com/essai-auto/peugeot-208"},
		{"largus", "Renault", "Clio V", "https://www.largus.fr/essai/renault-clio-v"},
		{"autoplus", "Peugeot", "3008", "https://www.autoplus.fr/essai/peugeot/3008"},
		{"turbo", "Citroën", "C5 Aircross", "https://www.turbo.fr/essais-auto/citroen-c5-aircross"},
		{"automobile-magazine", "Volkswagen", "ID.3", "https://www.automobile-magazine.fr/essais/volkswagen-id.3"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			desc, ok := registry.Get(tt.source)
			if !ok {
				t.Fatalf("Expected source %s to be registered", tt.source)
			}

			got, err := desc.SearchURL(tt.brand, tt.model)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Expected search URL '%s', got '%s'", tt.want, got)
			}
		})
	}
}

func TestSearchStyleQuery(t *testing.T) {
	registry, err := Parse([]byte(`
sources:
  - name: example
    base_url: https://example.com/search
    review_link_pattern: /review/
    search_style: query
`))
	if err != nil {
		t.Fatal(err)
	}

	desc, _ := registry.Get("example")
	got, err := desc.SearchURL("Land Rover", "Defender")
	if err != nil {
		t.Fatal(err)
	}

	want := "https://example.com/search?q=Land+Rover+Defender"
	if got != want {
		t.Errorf("Expected search URL '%s', got '%s'", want, got)
	}
}

func TestSearchTermIsPure(t *testing.T) {
	first := SearchStyleSlug.Term("Škoda", "Octavia Combi")
	second := SearchStyleSlug.Term("Škoda", "Octavia Combi")

	if first != second {
		t.Errorf("Expected identical terms, got '%s' and '%s'", first, second)
	}
	if first != "skoda-octavia-combi" {
		t.Errorf("Expected 'skoda-octavia-combi', got '%s'", first)
	}
}

func TestMatchesReviewLink(t *testing.T) {
	desc, _ := Default().Get("caradisiac")

	if !desc.MatchesReviewLink("/essai-auto/essai-peugeot-208-2024-123.html") {
		t.Error("Expected review link to match")
	}
	if desc.MatchesReviewLink("/actualite/peugeot-208") {
		t.Error("Expected news link not to match")
	}
}

func TestLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()

	content := `
sources:
  - name: second
    base_url: https://second.example.com/
    review_link_pattern: /test/
  - name: first
    base_url: https://first.example.com/
    review_link_pattern: /test/
    search_style: path
`
	path := filepath.Join(tempDir, "sources.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	registry, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if registry.Len() != 2 {
		t.Fatalf("Expected 2 sources, got %d", registry.Len())
	}

	sources := registry.Sources()
	if sources[0].Name != "second" {
		t.Errorf("Expected declared order to be kept, got '%s' first", sources[0].Name)
	}
	if sources[0].SearchStyle != SearchStyleSlug {
		t.Errorf("Expected default search style 'slug', got '%s'", sources[0].SearchStyle)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	registry, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if registry.Len() != 5 {
		t.Errorf("Expected 5 built-in sources, got %d", registry.Len())
	}
}

func TestParseInvalidRegistries(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{"empty", `sources: []`, "at least one source"},
		{"missing base url", `
sources:
  - name: a
    review_link_pattern: /x/
`, "base_url is required"},
		{"relative base url", `
sources:
  - name: a
    base_url: /relative/
    review_link_pattern: /x/
`, "absolute http(s) URL"},
		{"bad scheme", `
sources:
  - name: a
    base_url: ftp://example.com/
    review_link_pattern: /x/
`, "absolute http(s) URL"},
		{"bad pattern", `
sources:
  - name: a
    base_url: https://example.com/
    review_link_pattern: "(["
`, "invalid review_link_pattern"},
		{"bad style", `
sources:
  - name: a
    base_url: https://example.com/
    review_link_pattern: /x/
    search_style: lambda
`, "unknown search_style"},
		{"duplicate", `
sources:
  - name: a
    base_url: https://example.com/
    review_link_pattern: /x/
  - name: a
    base_url: https://example.org/
    review_link_pattern: /x/
`, "duplicate name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("Expected error for invalid registry")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("Expected error containing '%s', got '%v'", tt.errPart, err)
			}
		})
	}
}
