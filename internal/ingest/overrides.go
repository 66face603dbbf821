package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/david/opportunity-finder/internal/models"
)

// Override is a manual edit kept outside the scraped data so it survives
// re-ingestion. Nil fields are left alone.
type Override struct {
	Deleted         bool                `yaml:"deleted" json:"deleted"`
	Note            string              `yaml:"note" json:"note"`
	Name            *string             `yaml:"name" json:"name"`
	Description     *string             `yaml:"description" json:"description"`
	URL             *string             `yaml:"url" json:"url"`
	Deadline        *string             `yaml:"deadline" json:"deadline"`
	DeadlineDisplay *string             `yaml:"deadline_display" json:"deadline_display"`
	Tags            map[string][]string `yaml:"tags" json:"tags"`
}

// BlockedSite is a source that cannot be scraped and needs manual checking.
type BlockedSite struct {
	Domain string `yaml:"domain" json:"domain"`
	Reason string `yaml:"reason" json:"reason"`
}

// Overrides is the parsed overrides file, keyed by opportunity id.
type Overrides struct {
	Overrides    map[string]Override `yaml:"overrides" json:"overrides"`
	BlockedSites []BlockedSite       `yaml:"blocked_sites" json:"blocked_sites"`
}

// OverrideStats counts what Apply did.
type OverrideStats struct {
	Applied int
	Deleted int
}

// LoadOverrides reads an overrides file. YAML and JSON are both accepted.
// A missing file yields an empty set.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Overrides{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse overrides %s: %w", path, err)
	}
	return &o, nil
}

// IsEmpty reports whether there is nothing to apply or report.
func (o *Overrides) IsEmpty() bool {
	return o == nil || (len(o.Overrides) == 0 && len(o.BlockedSites) == 0)
}

// Apply returns a new slice with edits applied and deleted ids removed.
// The input slice is not modified. Edited deadlines and tags go through the
// same interpretation as scraped ones.
func (o *Overrides) Apply(opps []models.Opportunity) ([]models.Opportunity, OverrideStats) {
	var stats OverrideStats
	if o == nil || len(o.Overrides) == 0 {
		return append([]models.Opportunity(nil), opps...), stats
	}

	out := make([]models.Opportunity, 0, len(opps))
	for _, opp := range opps {
		ov, ok := o.Overrides[opp.ID]
		if !ok {
			out = append(out, opp)
			continue
		}
		if ov.Deleted {
			stats.Deleted++
			continue
		}
		out = append(out, ov.applyTo(opp))
		stats.Applied++
	}
	return out, stats
}

func (ov Override) applyTo(opp models.Opportunity) models.Opportunity {
	if ov.Name != nil {
		if name := cleanInline(*ov.Name); name != "" {
			opp.Name = name
		}
	}
	if ov.Description != nil {
		opp.Description = HTMLToText(*ov.Description)
	}
	if ov.URL != nil {
		opp.URL = *ov.URL
	}
	if ov.Tags != nil {
		opp.Tags = NormalizeTags(ov.Tags)
	}

	if ov.Deadline != nil || ov.DeadlineDisplay != nil {
		display := opp.DeadlineDisplay
		if ov.DeadlineDisplay != nil {
			display = nil
			if d := cleanInline(*ov.DeadlineDisplay); d != "" {
				display = &d
			}
		}
		// A display-only edit is re-read from the new text alone.
		opp.Deadline = InterpretDeadline(ov.Deadline, display)
		opp.DeadlineDisplay = display
	}
	return opp
}
