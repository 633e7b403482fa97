package source

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

const maxNameLength = 50

//go:embed default_sources.yml
var defaultSources []byte

// Registry is the fixed, ordered list of sites a harvest walks through.
type Registry struct {
	sources []*Descriptor
	byName  map[string]*Descriptor
}

// Load reads the registry from a YAML file. An empty path selects the
// built-in list of sites.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Parse(defaultSources)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	registry, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid source registry %s: %w", path, err)
	}
	return registry, nil
}

// Default returns the built-in registry.
func Default() *Registry {
	registry, err := Parse(defaultSources)
	if err != nil {
		panic("built-in source registry is invalid: " + err.Error())
	}
	return registry
}

// Parse builds a registry from YAML data, keeping the declared order.
func Parse(data []byte) (*Registry, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}

	registry := &Registry{
		sources: make([]*Descriptor, 0, len(cfg.Sources)),
		byName:  make(map[string]*Descriptor, len(cfg.Sources)),
	}

	for i, entry := range cfg.Sources {
		desc, err := newDescriptor(entry)
		if err != nil {
			return nil, fmt.Errorf("source at index %d: %w", i, err)
		}
		if _, exists := registry.byName[desc.Name]; exists {
			return nil, fmt.Errorf("source at index %d: duplicate name %q", i, desc.Name)
		}

		registry.sources = append(registry.sources, desc)
		registry.byName[desc.Name] = desc

		slog.Debug("Source registered", "source", desc.Name, "base_url", desc.BaseURL, "search_style", desc.SearchStyle)
	}

	return registry, nil
}

func newDescriptor(entry entryConfig) (*Descriptor, error) {
	requiredFields := map[string]string{
		"name":                entry.Name,
		"base_url":            entry.BaseURL,
		"review_link_pattern": entry.ReviewLinkPattern,
	}
	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return nil, fmt.Errorf("%s is required", fieldName)
		}
	}

	if len([]rune(entry.Name)) > maxNameLength {
		return nil, fmt.Errorf("name %q exceeds %d characters", entry.Name, maxNameLength)
	}

	base, err := url.Parse(entry.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base_url must be an absolute http(s) URL: %s", entry.BaseURL)
	}

	pattern, err := regexp.Compile(entry.ReviewLinkPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid review_link_pattern: %w", err)
	}

	style := SearchStyle(entry.SearchStyle)
	if entry.SearchStyle == "" {
		style = SearchStyleSlug
	}
	if !style.Valid() {
		return nil, fmt.Errorf("unknown search_style %q", entry.SearchStyle)
	}

	return &Descriptor{
		Name:              entry.Name,
		BaseURL:           entry.BaseURL,
		ReviewLinkPattern: entry.ReviewLinkPattern,
		SearchStyle:       style,
		base:              base,
		linkPattern:       pattern,
	}, nil
}

// Sources returns the descriptors in registry order.
func (r *Registry) Sources() []*Descriptor {
	out := make([]*Descriptor, len(r.sources))
	copy(out, r.sources)
	return out
}

func (r *Registry) Get(name string) (*Descriptor, bool) {
	desc, ok := r.byName[name]
	return desc, ok
}

func (r *Registry) Len() int {
	return len(r.sources)
}
