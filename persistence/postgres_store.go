package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore persists tables in PostgreSQL, with the table and policy as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (ps *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS q_tables (
		name TEXT PRIMARY KEY,
		algorithm TEXT NOT NULL,
		param DOUBLE PRECISION NOT NULL,
		num_states INTEGER NOT NULL,
		q JSONB NOT NULL,
		policy JSONB NOT NULL,
		layout JSONB,
		saved_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	ALTER TABLE q_tables ADD COLUMN IF NOT EXISTS layout JSONB;
	`
	_, err := ps.db.Exec(schema)
	return err
}

// SaveTable upserts the record by name.
func (ps *PostgresStore) SaveTable(rec *TableRecord) error {
	if err := rec.validate(); err != nil {
		return fmt.Errorf("save table: %w", err)
	}
	qJSON, err := json.Marshal(rec.Q)
	if err != nil {
		return fmt.Errorf("marshal q table: %w", err)
	}
	policyJSON, err := json.Marshal(rec.Policy)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	layoutJSON, err := json.Marshal(rec.Layout)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}

	query := `
	INSERT INTO q_tables (name, algorithm, param, num_states, q, policy, layout)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (name)
	DO UPDATE SET
		algorithm = $2, param = $3, num_states = $4, q = $5, policy = $6, layout = $7,
		saved_at = NOW()
	`
	_, err = ps.db.Exec(query,
		rec.Name, rec.Algorithm, rec.Param, rec.Q.NumStates(),
		string(qJSON), string(policyJSON), string(layoutJSON))
	if err != nil {
		return fmt.Errorf("save table %s: %w", rec.Name, err)
	}
	return nil
}

func (ps *PostgresStore) LoadTable(name string) (*TableRecord, error) {
	query := `
	SELECT name, algorithm, param, q, policy, COALESCE(layout, 'null'::jsonb), saved_at
	FROM q_tables WHERE name = $1`

	rec := &TableRecord{}
	var qJSON, policyJSON, layoutJSON string
	err := ps.db.QueryRow(query, name).Scan(
		&rec.Name, &rec.Algorithm, &rec.Param, &qJSON, &policyJSON, &layoutJSON, &rec.SavedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load table %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("load table %s: %w", name, err)
	}

	if err = json.Unmarshal([]byte(qJSON), &rec.Q); err != nil {
		return nil, fmt.Errorf("unmarshal q table: %w", err)
	}
	if rec.Q == nil {
		return nil, fmt.Errorf("load table %s: stored record has no q table", name)
	}
	if err = json.Unmarshal([]byte(layoutJSON), &rec.Layout); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}
	if err = json.Unmarshal([]byte(policyJSON), &rec.Policy); err != nil {
		return nil, fmt.Errorf("unmarshal policy: %w", err)
	}
	return rec, nil
}

func (ps *PostgresStore) Close() error {
	log.Println("Closing database connection...")
	return ps.db.Close()
}
