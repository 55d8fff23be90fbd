package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
)

// DocumentVersion is written into every saved document.
const DocumentVersion = 2

var (
	// ErrNoState reports that the backend holds no saved document yet.
	ErrNoState = errors.New("storage: no saved state")
	ErrClosed  = errors.New("storage: closed")
)

// Config configures storage.
//
// Driver values:
//   - "file" (default): JSON document at Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Fs backs the file driver. Nil means the OS filesystem.
	Fs afero.Fs
}

// Backend loads and saves the whole document.
type Backend interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	Close() error
}

// Document is the persisted reminder table.
type Document struct {
	Version int                 `json:"version,omitempty"`
	Tasks   map[string][]Record `json:"tasks"`
	NextIDs map[string]int      `json:"next_task_ids,omitempty"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Version: DocumentVersion,
		Tasks:   map[string][]Record{},
		NextIDs: map[string]int{},
	}
}

// Count returns the number of records across all destinations.
func (d *Document) Count() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, recs := range d.Tasks {
		n += len(recs)
	}
	return n
}

// Record is one stored task. Optional fields are nil when absent.
type Record struct {
	Time          string   `json:"time"`
	Content       string   `json:"content"`
	ID            int      `json:"id"`
	CountdownDays *int     `json:"countdown_days"`
	StartDate     *string  `json:"start_date"` // YYYY-MM-DD
	Target        *string  `json:"target"`
	Images        []string `json:"images"`
}

type recordObject Record

// UnmarshalJSON accepts the object shape and the legacy positional array
// [time, content, id, countdown_days, start_date, target, images] of arity 3, 5, 6 or 7.
func (r *Record) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("storage: empty record")
	}
	if b[0] == '{' {
		var o recordObject
		if err := json.Unmarshal(b, &o); err != nil {
			return err
		}
		*r = Record(o)
		return nil
	}
	if b[0] != '[' {
		return fmt.Errorf("storage: unexpected record %s", truncate(b, 32))
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) < 3 {
		return fmt.Errorf("storage: legacy record has %d fields, want at least 3", len(parts))
	}

	var out Record
	if err := json.Unmarshal(parts[0], &out.Time); err != nil {
		return fmt.Errorf("storage: legacy time: %w", err)
	}
	if err := json.Unmarshal(parts[1], &out.Content); err != nil {
		return fmt.Errorf("storage: legacy content: %w", err)
	}
	if err := json.Unmarshal(parts[2], &out.ID); err != nil {
		return fmt.Errorf("storage: legacy id: %w", err)
	}
	if len(parts) >= 5 {
		if err := json.Unmarshal(parts[3], &out.CountdownDays); err != nil {
			return fmt.Errorf("storage: legacy countdown: %w", err)
		}
		if err := json.Unmarshal(parts[4], &out.StartDate); err != nil {
			return fmt.Errorf("storage: legacy start date: %w", err)
		}
	}
	if len(parts) >= 6 {
		if err := json.Unmarshal(parts[5], &out.Target); err != nil {
			return fmt.Errorf("storage: legacy target: %w", err)
		}
	}
	if len(parts) >= 7 {
		if err := json.Unmarshal(parts[6], &out.Images); err != nil {
			return fmt.Errorf("storage: legacy images: %w", err)
		}
	}
	*r = out
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// DecodeDocument parses a JSON document in either record shape.
// Version stays 0 for documents written before versioning.
func DecodeDocument(b []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(b, doc); err != nil {
		return nil, err
	}
	if doc.Tasks == nil {
		doc.Tasks = map[string][]Record{}
	}
	if doc.NextIDs == nil {
		doc.NextIDs = map[string]int{}
	}
	return doc, nil
}

// EncodeDocument renders doc as indented JSON in the object shape.
func EncodeDocument(doc *Document) ([]byte, error) {
	if doc == nil {
		doc = NewDocument()
	}
	out := *doc
	out.Version = DocumentVersion
	if out.Tasks == nil {
		out.Tasks = map[string][]Record{}
	}
	b, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
