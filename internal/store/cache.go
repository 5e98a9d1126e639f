package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/wfsproxy-manager/api"
	_ "modernc.org/sqlite"
)

// Cache persists fetched service configs and the last catalog in SQLite so
// the manager can work without the admin API.
type Cache struct {
	db *sql.DB
}

// OpenCache opens or creates the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		record JSON NOT NULL,
		fetched INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS catalog (
		position INTEGER PRIMARY KEY,
		url TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// SaveService stores the raw config document of a service.
func (c *Cache) SaveService(id string, raw []byte, fetched time.Time) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO services (id, record, fetched) VALUES (?, ?, ?)`,
		id, string(raw), fetched.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save service %s: %w", id, err)
	}
	return nil
}

// LoadService returns the raw config document of a service and when it was fetched.
func (c *Cache) LoadService(id string) ([]byte, time.Time, error) {
	var raw string
	var fetched int64
	err := c.db.QueryRow(`SELECT record, fetched FROM services WHERE id = ?`, id).Scan(&raw, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, fmt.Errorf("cached service %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load service %s: %w", id, err)
	}
	return []byte(raw), time.Unix(0, fetched), nil
}

// DeleteService drops a cached service.
func (c *Cache) DeleteService(id string) error {
	_, err := c.db.Exec(`DELETE FROM services WHERE id = ?`, id)
	return err
}

// StreamServices calls fn for every cached service in id order.
func (c *Cache) StreamServices(fn func(id string, raw []byte) error) error {
	rows, err := c.db.Query(`SELECT id, record FROM services ORDER BY id`)
	if err != nil {
		return fmt.Errorf("query services: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if err := fn(id, []byte(raw)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SaveCatalog replaces the cached catalog.
func (c *Cache) SaveCatalog(urls []string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM catalog`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear catalog: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO catalog (position, url) VALUES (?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }() // safe to ignore
	for i, u := range urls {
		if _, err := stmt.Exec(i, u); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert catalog url: %w", err)
		}
	}
	return tx.Commit()
}

// LoadCatalog returns the cached catalog in stored order.
func (c *Cache) LoadCatalog() ([]string, error) {
	rows, err := c.db.Query(`SELECT url FROM catalog ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Hydrate loads every cached service and the catalog into s.
func (c *Cache) Hydrate(s *Store) error {
	err := c.StreamServices(func(id string, raw []byte) error {
		var cfg api.ServiceConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("parse cached service %s: %w", id, err)
		}
		s.Put(&cfg)
		return nil
	})
	if err != nil {
		return err
	}
	urls, err := c.LoadCatalog()
	if err != nil {
		return err
	}
	s.SetCatalog(urls)
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
