/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package postgres reads gate events from a PostgreSQL table and owns that table's schema.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/numaproj/parksession/pkg/config"
	"github.com/numaproj/parksession/pkg/events"
)

// DefaultTable is the table created by the embedded migrations.
const DefaultTable = "gate_events"

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Source struct {
	name  string
	table string
	db    *sql.DB
}

// Open opens a connection pool to databaseURL and checks it is reachable.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// New opens the database lazily; the first Fetch establishes the connection.
func New(cfg config.SourceConfig) (*Source, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return NewWithDB(cfg.Name, cfg.Table, db), nil
}

// NewWithDB reads from table, or DefaultTable when table is empty.
func NewWithDB(name, table string, db *sql.DB) *Source {
	if table == "" {
		table = DefaultTable
	}
	return &Source{name: name, table: table, db: db}
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) query() string {
	return fmt.Sprintf(`SELECT id, plate, gate_label, "timestamp", category, color, zone, description FROM %s ORDER BY id`,
		pq.QuoteIdentifier(s.table))
}

// Fetch reads every row of the table.
func (s *Source) Fetch(ctx context.Context) (events.Batch, error) {
	rows, err := s.db.QueryContext(ctx, s.query())
	if err != nil {
		return events.Batch{}, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	var batch events.Batch
	for rows.Next() {
		var (
			e                                     events.RawEvent
			ts, category, color, zone, description sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Plate, &e.GateLabel, &ts, &category, &color, &zone, &description); err != nil {
			return events.Batch{}, fmt.Errorf("scan %s: %w", s.table, err)
		}
		e.Timestamp = nullable(ts)
		e.Category = nullable(category)
		e.Color = nullable(color)
		e.Zone = nullable(zone)
		e.Description = nullable(description)
		batch.Events = append(batch.Events, e)
	}
	if err := rows.Err(); err != nil {
		return events.Batch{}, fmt.Errorf("iterate %s: %w", s.table, err)
	}
	return batch, nil
}

func (s *Source) Close() error {
	return s.db.Close()
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return events.Optional(ns.String)
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
