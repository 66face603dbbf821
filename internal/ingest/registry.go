package ingest

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/david/opportunity-finder/internal/models"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

var (
	ErrUnknownSource   = errors.New("unknown source")
	ErrInactiveSource  = errors.New("source is not active")
	ErrDuplicateSource = errors.New("duplicate source id")
)

// registryDefaults fill variables the environment leaves unset.
var registryDefaults = map[string]string{
	"DATA_DIR": "data",
}

// Registry holds the configuration for all data sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig defines one scraper whose output the pipeline ingests.
type SourceConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Active      bool   `yaml:"active"`
	Schedule    string `yaml:"schedule,omitempty"`

	// Input is the JSON batch the scraper writes (an array of raw records).
	Input string `yaml:"input"`

	// Ownership: a stored record belongs to this source when its source label
	// is listed in Labels or its source_url is on Domain. Re-ingesting the
	// source replaces exactly those records.
	Labels []string `yaml:"labels,omitempty"`
	Domain string   `yaml:"domain,omitempty"`
}

// LoadRegistry reads the registry at path, falling back to the embedded
// sources.yaml when path is empty or missing.
func LoadRegistry(path string) (*Registry, error) {
	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
	}
	if path == "" || err != nil {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
		if err != nil {
			return nil, err
		}
	}

	// Expand environment variables within the YAML content (e.g. ${DATA_DIR})
	expanded := os.Expand(string(data), func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return registryDefaults[key]
	})

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks that ids are unique and every source names an input.
func (r *Registry) Validate() error {
	seen := make(map[string]bool, len(r.Sources))
	for i, s := range r.Sources {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("source #%d: missing id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, s.ID)
		}
		seen[s.ID] = true
		if strings.TrimSpace(s.Input) == "" {
			return fmt.Errorf("source %s: missing input", s.ID)
		}
	}
	return nil
}

// Get looks a source up by id.
func (r *Registry) Get(id string) (SourceConfig, error) {
	for _, s := range r.Sources {
		if s.ID == id {
			return s, nil
		}
	}
	return SourceConfig{}, fmt.Errorf("%w: %s", ErrUnknownSource, id)
}

// Active returns the sources that take part in a full cycle, in file order.
func (r *Registry) Active() []SourceConfig {
	var out []SourceConfig
	for _, s := range r.Sources {
		if s.Active {
			out = append(out, s)
		}
	}
	return out
}

// Owns reports whether a stored record was produced by this source.
func (s SourceConfig) Owns(opp models.Opportunity) bool {
	for _, l := range s.Labels {
		if strings.EqualFold(l, opp.Source) {
			return true
		}
	}
	if s.Domain == "" {
		return false
	}
	d := extractDomain(opp.SourceURL)
	want := strings.ToLower(s.Domain)
	return d == want || strings.HasSuffix(d, "."+want)
}
