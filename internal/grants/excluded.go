package grants

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"
)

// Excluded is the on-disk list of grants a user dismissed. They never reach recommendations again.
type Excluded struct {
	Items []*ExcludedGrant `json:"items"`
}

type ExcludedGrant struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ExcludedAt time.Time `json:"excluded_at"`
}

// LoadExcluded reads an exclude file. A missing or empty file yields an empty list.
func LoadExcluded(path string) (*Excluded, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Excluded{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() == 0 {
		return &Excluded{}, nil
	}

	var excluded Excluded
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (e *Excluded) Add(grant *Grant, reason string, at time.Time) {
	if grant == nil || e.Has(grant.ID) {
		return
	}
	e.Items = append(e.Items, &ExcludedGrant{
		ID:         grant.ID,
		Title:      grant.Title,
		Reason:     reason,
		ExcludedAt: at.UTC(),
	})
}

func (e *Excluded) Has(id string) bool {
	if e == nil {
		return false
	}
	for _, item := range e.Items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func (e *Excluded) IDs() []string {
	ids := make([]string, 0)
	if e == nil {
		return ids
	}
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// ToFile overwrites path with the list.
func (e *Excluded) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
