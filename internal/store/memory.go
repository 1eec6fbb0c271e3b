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


package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bcem/emailparser/internal/models"
)

// MemoryStore keeps definitions, mappings and records in memory. It is used
// for dry runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	defs     []models.Definition
	mappings map[string][]models.Mapping
	records  []*models.ExtractedRecord
	nextID   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mappings: make(map[string][]models.Mapping),
		nextID:   1,
	}
}

// UpsertDefinition stores a definition and replaces its mappings. A new
// definition is appended, so list order is insertion order.
func (s *MemoryStore) UpsertDefinition(_ context.Context, d models.Definition, mappings []models.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	for i := range s.defs {
		if s.defs[i].ID == d.ID {
			s.defs[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		s.defs = append(s.defs, d)
	}

	ms := make([]models.Mapping, 0, len(mappings))
	for _, m := range mappings {
		m.ID = s.nextID
		m.DefinitionID = d.ID
		s.nextID++
		ms = append(ms, m)
	}
	s.mappings[d.ID] = ms
	return nil
}

// ListActiveDefinitions returns active definitions in insertion order.
func (s *MemoryStore) ListActiveDefinitions(_ context.Context) ([]models.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Definition
	for _, d := range s.defs {
		if d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

// ListMappings returns a copy of the mappings owned by a definition.
func (s *MemoryStore) ListMappings(_ context.Context, definitionID string) ([]models.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms := s.mappings[definitionID]
	out := make([]models.Mapping, len(ms))
	copy(out, ms)
	return out, nil
}

// CreateRecord stores the record and returns a generated ID.
func (s *MemoryStore) CreateRecord(_ context.Context, rec *models.ExtractedRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	stored.ID = uuid.New().String()
	stored.CreatedAt = time.Now().UTC()
	stored.Fields = make(map[string]string, len(rec.Fields))
	for k, v := range rec.Fields {
		stored.Fields[k] = v
	}
	s.records = append(s.records, &stored)

	rec.CreatedAt = stored.CreatedAt
	return stored.ID, nil
}

// Records returns all stored records in creation order.
func (s *MemoryStore) Records() []*models.ExtractedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ExtractedRecord, len(s.records))
	copy(out, s.records)
	return out
}
