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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/parksession/pkg/config"
	"github.com/numaproj/parksession/pkg/events"
)

var eventColumns = []string{"id", "plate", "gate_label", "timestamp", "category", "color", "zone", "description"}

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func TestSource_Fetch(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT id, plate, gate_label, "timestamp", category, color, zone, description FROM "gate_events" ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow(1, "ABC123", "north_in", "2025-01-01T08:00:00Z", "car", "blue", nil, "").
			AddRow(2, "ABC123", "south_out", nil, nil, nil, "Z1", nil))

	s := NewWithDB("db", "", db)
	assert.Equal(t, "db", s.Name())
	batch, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, batch.Events, 2)

	first := batch.Events[0]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "2025-01-01T08:00:00Z", events.StringOrEmpty(first.Timestamp))
	assert.Equal(t, "car", events.StringOrEmpty(first.Category))
	assert.Nil(t, first.Zone)
	assert.Nil(t, first.Description)

	second := batch.Events[1]
	assert.Nil(t, second.Timestamp)
	assert.Equal(t, "Z1", events.StringOrEmpty(second.Zone))
	assert.Zero(t, batch.Skipped)
}

func TestSource_FetchCustomTable(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT id, plate, gate_label, "timestamp", category, color, zone, description FROM "lot 7" ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(eventColumns))

	batch, err := NewWithDB("db", "lot 7", db).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batch.Events)
}

func TestSource_FetchError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT id, plate, gate_label, "timestamp", category, color, zone, description FROM "gate_events" ORDER BY id`).
		WillReturnError(errors.New("connection refused"))

	_, err := NewWithDB("db", "", db).Fetch(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestSource_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	require.NoError(t, NewWithDB("db", "", db).Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew(t *testing.T) {
	s, err := New(config.SourceConfig{Name: "pg", Type: config.SourcePostgres, DatabaseURL: "postgres://localhost/parking?sslmode=disable"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, s.table)
	assert.NoError(t, s.Close())
}

func TestMigrations_Embedded(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"migrations/000001_create_gate_events.down.sql",
		"migrations/000001_create_gate_events.up.sql",
	}, files)
	up, err := fs.ReadFile(migrationsFS, "migrations/000001_create_gate_events.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS gate_events")
}
