package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/david/opportunity-finder/internal/models"
)

// Batch is one scraper's output for a cycle.
type Batch struct {
	Source     string // registry id, or a label for ad-hoc files
	ObservedAt time.Time
	Records    []models.RawRecord

	// Invalid holds records that did not decode. Index is the position in
	// the file.
	Invalid []*RecordError

	// positions maps Records back to file positions when some were dropped.
	positions []int
}

// position is the file position of Records[i].
func (b Batch) position(i int) int {
	if i < len(b.positions) {
		return b.positions[i]
	}
	return i
}

// LoadBatch reads a JSON array of raw records. Each element is decoded on
// its own, so a malformed record lands in Invalid instead of failing the
// batch. The file's modification time stands in for scraped_at on records
// that lack one.
func LoadBatch(source, path string) (Batch, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Batch{}, fmt.Errorf("stat batch %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Batch{}, fmt.Errorf("read batch %s: %w", path, err)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return Batch{}, fmt.Errorf("decode batch %s: %w", path, err)
	}

	b := Batch{
		Source:     source,
		ObservedAt: info.ModTime().UTC(),
		Records:    make([]models.RawRecord, 0, len(elems)),
		positions:  make([]int, 0, len(elems)),
	}
	for i, elem := range elems {
		var raw models.RawRecord
		if err := json.Unmarshal(elem, &raw); err != nil {
			b.Invalid = append(b.Invalid, &RecordError{Source: source, Index: i, Err: fmt.Errorf("decode: %w", err)})
			continue
		}
		b.Records = append(b.Records, raw)
		b.positions = append(b.positions, i)
	}
	return b, nil
}
