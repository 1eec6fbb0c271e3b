// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package store provides the Postgres-backed configuration store for parser
// definitions and mappings, and the table extracted records are written to.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcem/emailparser/internal/models"
)

// Store reads definitions and mappings and writes extracted records.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store backed by the given Postgres pool.
// It ensures the parser tables exist on creation.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure parser schema: %w", err)
	}
	slog.Info("parser store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS parser_definitions (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			target_entity_name TEXT NOT NULL,
			subject_pattern    TEXT NOT NULL,
			sender_address     TEXT DEFAULT '',
			active             BOOLEAN DEFAULT TRUE,
			created_at         TIMESTAMPTZ DEFAULT NOW(),
			updated_at         TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS parser_mappings (
			id                BIGSERIAL PRIMARY KEY,
			definition_id     TEXT NOT NULL REFERENCES parser_definitions(id) ON DELETE CASCADE,
			start_marker      TEXT NOT NULL,
			end_marker        TEXT NOT NULL,
			target_field_name TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS extracted_records (
			id            UUID PRIMARY KEY,
			entity_type   TEXT NOT NULL,
			definition_id TEXT DEFAULT '',
			message_id    TEXT DEFAULT '',
			fields        JSONB NOT NULL,
			created_at    TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_defs_active ON parser_definitions(active);
		CREATE INDEX IF NOT EXISTS idx_mappings_def ON parser_mappings(definition_id);
		CREATE INDEX IF NOT EXISTS idx_records_type ON extracted_records(entity_type);
	`)
	return err
}

// ListActiveDefinitions returns every active definition, oldest first.
func (s *Store) ListActiveDefinitions(ctx context.Context) ([]models.Definition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, target_entity_name, subject_pattern, sender_address, active
		FROM parser_definitions
		WHERE active
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	var defs []models.Definition
	for rows.Next() {
		var d models.Definition
		if err := rows.Scan(&d.ID, &d.Name, &d.TargetEntityName, &d.SubjectPattern, &d.SenderAddress, &d.Active); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// ListMappings returns the mappings owned by a definition in insertion order.
func (s *Store) ListMappings(ctx context.Context, definitionID string) ([]models.Mapping, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, definition_id, start_marker, end_marker, target_field_name
		FROM parser_mappings
		WHERE definition_id = $1
		ORDER BY id
	`, definitionID)
	if err != nil {
		return nil, fmt.Errorf("query mappings: %w", err)
	}
	defer rows.Close()

	var mappings []models.Mapping
	for rows.Next() {
		var m models.Mapping
		if err := rows.Scan(&m.ID, &m.DefinitionID, &m.StartMarker, &m.EndMarker, &m.TargetFieldName); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// CreateRecord inserts a new extracted record and returns its generated ID.
func (s *Store) CreateRecord(ctx context.Context, rec *models.ExtractedRecord) (string, error) {
	id := uuid.New().String()
	fields := rec.Fields
	if fields == nil {
		fields = map[string]string{}
	}

	var createdAt time.Time
	err := s.pool.QueryRow(ctx, `
		INSERT INTO extracted_records (id, entity_type, definition_id, message_id, fields)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, id, rec.EntityType, rec.DefinitionID, rec.MessageID, fields).Scan(&createdAt)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	rec.CreatedAt = createdAt
	return id, nil
}

// UpsertDefinition inserts or replaces a definition together with its
// mappings. Existing mappings of the definition are removed first.
func (s *Store) UpsertDefinition(ctx context.Context, d models.Definition, mappings []models.Mapping) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO parser_definitions
			(id, name, target_entity_name, subject_pattern, sender_address, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name               = EXCLUDED.name,
			target_entity_name = EXCLUDED.target_entity_name,
			subject_pattern    = EXCLUDED.subject_pattern,
			sender_address     = EXCLUDED.sender_address,
			active             = EXCLUDED.active,
			updated_at         = NOW()
	`, d.ID, d.Name, d.TargetEntityName, d.SubjectPattern, d.SenderAddress, d.Active)
	if err != nil {
		return fmt.Errorf("upsert definition %s: %w", d.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM parser_mappings WHERE definition_id = $1`, d.ID); err != nil {
		return fmt.Errorf("clear mappings %s: %w", d.ID, err)
	}

	if len(mappings) > 0 {
		batch := &pgx.Batch{}
		for _, m := range mappings {
			batch.Queue(`
				INSERT INTO parser_mappings (definition_id, start_marker, end_marker, target_field_name)
				VALUES ($1, $2, $3, $4)
			`, d.ID, m.StartMarker, m.EndMarker, m.TargetFieldName)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert mappings %s: %w", d.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// SetActive enables or disables a definition.
func (s *Store) SetActive(ctx context.Context, definitionID string, active bool) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE parser_definitions
		SET active = $1, updated_at = NOW()
		WHERE id = $2
	`, active, definitionID)
	return err
}

// Ping checks the Postgres connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
