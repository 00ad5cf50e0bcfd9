package persistence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gridmdp/models"
)

var ErrNotFound = errors.New("table not found")

// TableRecord is a trained action-value table with the run that produced it.
type TableRecord struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
	// Param is the swept hyper-parameter: the discount factor or the success probability.
	Param float64 `json:"param"`
	// Layout is the token layout of the grid the table was trained on.
	Layout  [][]string     `json:"layout,omitempty"`
	Q       *models.QTable `json:"q"`
	Policy  models.Policy  `json:"policy"`
	SavedAt time.Time      `json:"savedAt"`
}

func (rec *TableRecord) validate() error {
	switch {
	case rec.Name == "":
		return errors.New("record has no name")
	case rec.Q == nil:
		return fmt.Errorf("record %s has no q table", rec.Name)
	}
	return nil
}

func cloneLayout(layout [][]string) [][]string {
	if layout == nil {
		return nil
	}
	cloned := make([][]string, len(layout))
	for i, row := range layout {
		cloned[i] = append([]string(nil), row...)
	}
	return cloned
}

// Store defines the interface for table persistence, keyed by run name.
type Store interface {
	SaveTable(rec *TableRecord) error
	LoadTable(name string) (*TableRecord, error)
	Close() error
}

// NewStore opens a PostgresStore for postgres:// connection strings and a JSONStore otherwise.
func NewStore(location string) (Store, error) {
	if strings.HasPrefix(location, "postgres://") || strings.HasPrefix(location, "postgresql://") {
		return NewPostgresStore(location)
	}
	return NewJSONStore(location)
}
