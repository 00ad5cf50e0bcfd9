package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// JSONStore persists tables in a single local JSON file.
type JSONStore struct {
	filePath string
	mutex    sync.RWMutex
	tables   map[string]*TableRecord
}

// NewJSONStore loads the file at filePath, creating it if it doesn't exist.
func NewJSONStore(filePath string) (*JSONStore, error) {
	store := &JSONStore{
		filePath: filePath,
		tables:   make(map[string]*TableRecord),
	}

	if _, err := os.Stat(filePath); err == nil {
		if err := store.loadFromFile(); err != nil {
			return nil, fmt.Errorf("load json store: %w", err)
		}
	} else if err := store.saveToFile(); err != nil {
		return nil, fmt.Errorf("create json store: %w", err)
	}

	return store, nil
}

func (js *JSONStore) loadFromFile() error {
	js.mutex.Lock()
	defer js.mutex.Unlock()

	data, err := os.ReadFile(js.filePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &js.tables)
}

func (js *JSONStore) saveToFile() error {
	js.mutex.RLock()
	data, err := json.MarshalIndent(js.tables, "", "  ")
	js.mutex.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(js.filePath, data, 0644)
}

// SaveTable stores a copy of the record, replacing any record of the same name.
func (js *JSONStore) SaveTable(rec *TableRecord) error {
	if err := rec.validate(); err != nil {
		return fmt.Errorf("save table: %w", err)
	}
	stored := *rec
	stored.Q = rec.Q.Clone()
	stored.Layout = cloneLayout(rec.Layout)
	stored.Policy = append(stored.Policy[:0:0], rec.Policy...)
	if stored.SavedAt.IsZero() {
		stored.SavedAt = time.Now().UTC()
	}

	js.mutex.Lock()
	js.tables[rec.Name] = &stored
	js.mutex.Unlock()

	if err := js.saveToFile(); err != nil {
		return fmt.Errorf("save table %s: %w", rec.Name, err)
	}
	return nil
}

func (js *JSONStore) LoadTable(name string) (*TableRecord, error) {
	js.mutex.RLock()
	defer js.mutex.RUnlock()

	rec, exists := js.tables[name]
	if !exists {
		return nil, fmt.Errorf("load table %s: %w", name, ErrNotFound)
	}
	if rec == nil || rec.Q == nil {
		return nil, fmt.Errorf("load table %s: stored record has no q table", name)
	}
	loaded := *rec
	loaded.Q = rec.Q.Clone()
	loaded.Layout = cloneLayout(rec.Layout)
	loaded.Policy = append(rec.Policy[:0:0], rec.Policy...)
	return &loaded, nil
}

// Close is a no-op; every save is flushed to disk immediately.
func (js *JSONStore) Close() error {
	return nil
}
