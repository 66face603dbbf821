// Package catalog publishes the in-memory opportunity set to readers.
package catalog

import (
	"sync/atomic"
	"time"

	"github.com/david/opportunity-finder/internal/models"
)

// Snapshot is one immutable generation of the opportunity set. Nothing may
// modify Opportunities after the snapshot is published.
type Snapshot struct {
	Version       uint64
	LoadedAt      time.Time
	Opportunities []models.Opportunity

	byID map[string]int
}

// Get finds an opportunity by id.
func (s *Snapshot) Get(id string) (models.Opportunity, bool) {
	if s == nil {
		return models.Opportunity{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return models.Opportunity{}, false
	}
	return s.Opportunities[i], true
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Opportunities)
}

// Catalog holds the current snapshot. Replace swaps it atomically; readers
// that already hold a snapshot keep using it.
type Catalog struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	now     func() time.Time
}

// New returns a catalog serving opps.
func New(opps []models.Opportunity) *Catalog {
	c := &Catalog{now: time.Now}
	c.Replace(opps)
	return c
}

// Current returns the latest snapshot. It is never nil.
func (c *Catalog) Current() *Snapshot {
	return c.current.Load()
}

// Replace publishes a new generation built from a private copy of opps.
func (c *Catalog) Replace(opps []models.Opportunity) *Snapshot {
	owned := append([]models.Opportunity(nil), opps...)
	if owned == nil {
		owned = []models.Opportunity{}
	}
	byID := make(map[string]int, len(owned))
	for i, o := range owned {
		byID[o.ID] = i
	}

	snap := &Snapshot{
		Version:       c.version.Add(1),
		LoadedAt:      c.now(),
		Opportunities: owned,
		byID:          byID,
	}
	c.current.Store(snap)
	return snap
}
