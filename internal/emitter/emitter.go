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


// Package emitter turns extracted fields into a new record and hands it to
// the record store.
package emitter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bcem/emailparser/internal/metrics"
	"github.com/bcem/emailparser/internal/models"
)

// RecordStore persists extracted records. Implemented by store.Store and
// store.MemoryStore.
type RecordStore interface {
	CreateRecord(ctx context.Context, rec *models.ExtractedRecord) (string, error)
}

// Notifier is told about each record after it has been stored.
// Implemented by queue.Publisher.
type Notifier interface {
	PublishRecord(ctx context.Context, rec *models.ExtractedRecord) error
}

// Emitter creates one record per call. It does not retry; retry policy
// belongs to the store.
type Emitter struct {
	store    RecordStore
	notifier Notifier
}

// New creates an emitter. notifier may be nil.
func New(store RecordStore, notifier Notifier) *Emitter {
	return &Emitter{
		store:    store,
		notifier: notifier,
	}
}

// Emit builds a record of def's target type holding exactly the given
// fields and persists it. The store's identifier or error is returned.
func (e *Emitter) Emit(ctx context.Context, def models.Definition, messageID string, fields map[string]string) (string, error) {
	rec := &models.ExtractedRecord{
		EntityType:   def.TargetEntityName,
		DefinitionID: def.ID,
		MessageID:    messageID,
		Fields:       make(map[string]string, len(fields)),
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}

	id, err := e.store.CreateRecord(ctx, rec)
	if err != nil {
		metrics.RecordsEmitted.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("create %s record: %w", def.TargetEntityName, err)
	}
	metrics.RecordsEmitted.WithLabelValues("success").Inc()
	rec.ID = id

	if e.notifier != nil {
		if err := e.notifier.PublishRecord(ctx, rec); err != nil {
			// The record exists; a lost notification is not a failed emission.
			slog.Warn("record notification failed",
				"record_id", id,
				"entity_type", rec.EntityType,
				"error", err,
			)
		}
	}

	return id, nil
}
