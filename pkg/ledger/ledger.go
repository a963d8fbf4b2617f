// Package ledger persists per-entry delivery state between runs. The store
// is a single JSON file mapping entry id to a delivery record. Each run
// loads the file once, mutates the in-memory copy and saves it once at the
// end, so the ledger needs no locking.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
)

// Ledger holds the delivery records for one database file
type Ledger struct {
	path    string
	records map[string]*Record
}

// Load reads the ledger from path. A missing or unreadable file yields an
// empty ledger. Content that is not the structured JSON format is treated
// as the legacy format, one entry id per line, and each id gets a minimal
// record stamped with the current time. The legacy file is upgraded on the
// next save, never during load. An empty path yields a ledger that
// persists nothing.
func Load(path string) *Ledger {
	res := &Ledger{path: path, records: map[string]*Record{}}
	if path == "" {
		return res
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			lgr.Printf("[WARN] can't read ledger %s: %v", path, err)
		}
		return res
	}

	var records map[string]*Record
	if err := json.Unmarshal(data, &records); err == nil {
		if records != nil {
			res.records = records
		}
		return res
	}

	// legacy format, whitespace separated entry ids
	now := float64(time.Now().Unix())
	for _, id := range strings.Fields(string(data)) {
		res.records[id] = &Record{LastSeen: now}
	}
	if len(res.records) > 0 {
		lgr.Printf("[INFO] converted legacy ledger %s, %d entries", path, len(res.records))
	}
	return res
}

// Get returns the record for the entry id, or nil if the id was never seen
func (l *Ledger) Get(id string) *Record {
	return l.records[id]
}

// Upsert returns the record for the entry id, creating an empty one on
// first observation
func (l *Ledger) Upsert(id string) *Record {
	rec, ok := l.records[id]
	if !ok {
		rec = &Record{}
		l.records[id] = rec
	}
	return rec
}

// Len returns the number of records
func (l *Ledger) Len() int {
	return len(l.records)
}

// Prune drops every record not seen after the cutoff and returns how many
// were removed. Records without a last seen time count as stale. The caller
// decides whether to prune at all, a zero retention means keep forever.
func (l *Ledger) Prune(cutoff time.Time) int {
	limit := float64(cutoff.Unix())
	removed := 0
	for id, rec := range l.records {
		if rec.LastSeen > limit {
			continue
		}
		delete(l.records, id)
		removed++
	}
	return removed
}

// Save writes the full record set to the ledger file. The write goes to a
// temporary file in the same directory which is then renamed over the
// target, so a crash never leaves a partial file visible. Parent
// directories are created as needed. No-op for a ledger without a path.
func (l *Ledger) Save() error {
	if l.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("make ledger dir %s: %w", dir, err)
		}
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger temp file: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger %s: %w", l.path, err)
	}
	return nil
}
