package locator

import (
	"context"
	"testing"

	"github.com/BRA7534/CARFAST/app/fetcher"
	"github.com/BRA7534/CARFAST/app/source"
	"github.com/google/go-cmp/cmp"
)

type stubFetcher struct {
	responses map[string]fetcher.Result
	requested []string
}

func (f *stubFetcher) Fetch(ctx context.Context, rawURL string) fetcher.Result {
	f.requested = append(f.requested, rawURL)
	if res, ok := f.responses[rawURL]; ok {
		return res
	}
	return fetcher.Result{Status: fetcher.StatusRejected}
}

func testSource(t *testing.T) *source.Descriptor {
	t.Helper()

	registry, err := source.Parse([]byte(`
sources:
  - name: cars
    base_url: https://cars.example/essais/
    review_link_pattern: /essai-
`))
	if err != nil {
		t.Fatal(err)
	}
	desc, _ := registry.Get("cars")
	return desc
}

const searchPage = `<html><body>
<a href="/actualite/peugeot-208">Actualité</a>
<a href="/essais/essai-peugeot-208-2024#comments">Essai</a>
<a href="/essais/essai-peugeot-208-2024">Essai (bis)</a>
<a href="javascript:void('/essai-')">Script</a>
<a href="./essai-peugeot-208-gt">GT</a>
<a href=" https://other.example/essai-peugeot-208-long ">Long terme</a>
<a href="/essais/essai-peugeot-208-hybride">Hybride</a>
</body></html>`

func TestLocateSelectsFirstDistinctLinks(t *testing.T) {
	stub := &stubFetcher{responses: map[string]fetcher.Result{
		"https://cars.example/essais/peugeot-208": {
			Status:      fetcher.StatusOK,
			Body:        []byte(searchPage),
			ContentType: "text/html",
		},
	}}

	links := New(stub).Locate(context.Background(), testSource(t), "Peugeot", "208")

	want := []string{
		"https://cars.example/essais/essai-peugeot-208-2024",
		"https://cars.example/essais/essai-peugeot-208-gt",
		"https://other.example/essai-peugeot-208-long",
	}
	if diff := cmp.Diff(want, links); diff != "" {
		t.Errorf("Unexpected links (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"https://cars.example/essais/peugeot-208"}, stub.requested); diff != "" {
		t.Errorf("Unexpected requests (-want +got):\n%s", diff)
	}
}

func TestLocateIsRestartable(t *testing.T) {
	stub := &stubFetcher{responses: map[string]fetcher.Result{
		"https://cars.example/essais/peugeot-208": {Status: fetcher.StatusOK, Body: []byte(searchPage), ContentType: "text/html"},
	}}
	locator := New(stub)
	desc := testSource(t)

	first := locator.Locate(context.Background(), desc, "Peugeot", "208")
	second := locator.Locate(context.Background(), desc, "Peugeot", "208")

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Expected identical results (-first +second):\n%s", diff)
	}
}

func TestLocateUnavailableSearchPage(t *testing.T) {
	for _, status := range []fetcher.Status{fetcher.StatusRejected, fetcher.StatusNetworkError} {
		stub := &stubFetcher{responses: map[string]fetcher.Result{
			"https://cars.example/essais/peugeot-208": {Status: status},
		}}

		links := New(stub).Locate(context.Background(), testSource(t), "Peugeot", "208")
		if len(links) != 0 {
			t.Errorf("Expected no links for status %s, got %v", status, links)
		}
	}
}

func TestLocateUnparseablePage(t *testing.T) {
	stub := &stubFetcher{responses: map[string]fetcher.Result{
		"https://cars.example/essais/peugeot-208": {Status: fetcher.StatusOK, Body: []byte("<<<>>> not html"), ContentType: "text/html"},
	}}

	links := New(stub).Locate(context.Background(), testSource(t), "Peugeot", "208")
	if len(links) != 0 {
		t.Errorf("Expected no links, got %v", links)
	}
}

func TestLocateFeedSearchPage(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Essais</title>
<item><title>Essai 208</title><link>https://cars.example/essais/essai-peugeot-208-2024</link></item>
<item><title>Actu</title><link>https://cars.example/actualite/208</link></item>
<item><title>Essai 208 GTi</title><link>https://cars.example/essais/essai-peugeot-208-gti</link></item>
</channel></rss>`

	stub := &stubFetcher{responses: map[string]fetcher.Result{
		"https://cars.example/essais/peugeot-208": {Status: fetcher.StatusOK, Body: []byte(feed), ContentType: "application/xml"},
	}}

	links := New(stub).Locate(context.Background(), testSource(t), "Peugeot", "208")

	want := []string{
		"https://cars.example/essais/essai-peugeot-208-2024",
		"https://cars.example/essais/essai-peugeot-208-gti",
	}
	if diff := cmp.Diff(want, links); diff != "" {
		t.Errorf("Unexpected links (-want +got):\n%s", diff)
	}
}
