// Package jobs keeps a local ledger of submitted server-side jobs so their
// ids can be tracked after the submitting command exits.
package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lydakis/coex/internal/paths"
)

// Record is one submission.
type Record struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"`
	URL       string            `json:"url,omitempty"`
	Params    map[string]string `json:"params"`
	JobIDs    []string          `json:"job_ids"`
	Submitted time.Time         `json:"submitted"`
}

var nowFn = time.Now

// Put stores rec, assigning an ID and submission time when unset.
func Put(rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Submitted.IsZero() {
		rec.Submitted = nowFn().UTC()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, fmt.Errorf("encoding job record: %w", err)
	}
	if err := paths.WriteFileAtomic(entryPath(rec.ID), data, 0600); err != nil {
		return Record{}, fmt.Errorf("writing job record: %w", err)
	}
	return rec, nil
}

// List returns stored records, newest first. Unreadable records are removed.
func List() ([]Record, error) {
	entries, err := os.ReadDir(paths.JobsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading job ledger: %w", err)
	}

	var recs []Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(paths.JobsDir(), e.Name())
		rec, ok := readEntry(path)
		if !ok {
			_ = os.Remove(path)
			continue
		}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Submitted.Equal(recs[j].Submitted) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].Submitted.After(recs[j].Submitted)
	})
	return recs, nil
}

// Find returns the record containing jobID, either as a ledger ID or as one
// of the server job ids.
func Find(jobID string) (Record, bool, error) {
	recs, err := List()
	if err != nil {
		return Record{}, false, err
	}
	for _, rec := range recs {
		if rec.ID == jobID {
			return rec, true, nil
		}
		for _, id := range rec.JobIDs {
			if id == jobID {
				return rec, true, nil
			}
		}
	}
	return Record{}, false, nil
}

func readEntry(path string) (Record, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.ID == "" {
		return Record{}, false
	}
	return rec, true
}

func entryPath(id string) string {
	return filepath.Join(paths.JobsDir(), id+".json")
}
