package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/david/opportunity-finder/internal/logger"
	"github.com/david/opportunity-finder/internal/models"
)

// FileStore keeps the snapshot as the JSON interchange file that scrapers and
// the frontend share.
type FileStore struct {
	// Log receives records skipped by Load. Nil discards them.
	Log logger.Logger

	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Load reads the snapshot. A missing file is an empty snapshot.
func (s *FileStore) Load(ctx context.Context) ([]models.Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Opportunity{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}

	opps := make([]models.Opportunity, 0, len(elems))
	for i, elem := range elems {
		opp, err := decodeOpportunity(elem)
		if err != nil {
			s.log().Warn("Skipping unreadable snapshot record",
				logger.String("path", s.path),
				logger.Int("index", i),
				logger.Error(err),
			)
			continue
		}
		opp.Tags = opp.Tags.Filled()
		opps = append(opps, opp)
	}
	return opps, nil
}

// lenientOpportunity shadows the deadline so a hand-edited value that is not
// in the interchange form does not cost the whole record.
type lenientOpportunity struct {
	models.Opportunity
	Deadline json.RawMessage `json:"deadline"`
}

// decodeOpportunity decodes one snapshot record. A deadline that does not
// parse becomes Unknown, and its text is kept as the display string when the
// record has none.
func decodeOpportunity(data []byte) (models.Opportunity, error) {
	var opp models.Opportunity
	err := json.Unmarshal(data, &opp)
	if err == nil {
		return opp, nil
	}

	var lenient lenientOpportunity
	if json.Unmarshal(data, &lenient) != nil {
		return models.Opportunity{}, err
	}
	opp = lenient.Opportunity
	opp.Deadline = models.UnknownDeadline()
	var text string
	if json.Unmarshal(lenient.Deadline, &text) == nil {
		if text = strings.TrimSpace(text); text != "" && opp.DeadlineDisplay == nil {
			opp.DeadlineDisplay = &text
		}
	}
	return opp, nil
}

func (s *FileStore) log() logger.Logger {
	if s.Log == nil {
		return logger.NewNop()
	}
	return s.Log
}

// Replace writes the snapshot to a temp file in the same directory and
// renames it over the old one.
func (s *FileStore) Replace(ctx context.Context, opps []models.Opportunity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}
	data, err := json.MarshalIndent(opps, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}
