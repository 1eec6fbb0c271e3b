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


// Package pipeline is the single entry point of the parser: it takes one
// email, selects the definitions whose subject pattern matches, extracts
// each definition's fields from the body and emits one record per match.
//
// Processing is not idempotent. Running the same email twice creates two
// sets of records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bcem/emailparser/internal/emitter"
	"github.com/bcem/emailparser/internal/extract"
	"github.com/bcem/emailparser/internal/matcher"
	"github.com/bcem/emailparser/internal/metrics"
	"github.com/bcem/emailparser/internal/models"
	"github.com/bcem/emailparser/internal/normalize"
)

// ConfigStore is the read side of the configuration store.
type ConfigStore interface {
	ListActiveDefinitions(ctx context.Context) ([]models.Definition, error)
	ListMappings(ctx context.Context, definitionID string) ([]models.Mapping, error)
}

// Store is the full set of store capabilities the pipeline needs.
type Store interface {
	ConfigStore
	emitter.RecordStore
}

// Tracer receives progress messages. It has no influence on control flow.
type Tracer interface {
	Trace(ctx context.Context, msg string, args ...any)
}

// SlogTracer writes trace messages to an slog logger at debug level.
type SlogTracer struct {
	Logger *slog.Logger
}

// Trace implements Tracer.
func (t SlogTracer) Trace(ctx context.Context, msg string, args ...any) {
	l := t.Logger
	if l == nil {
		l = slog.Default()
	}
	l.DebugContext(ctx, msg, args...)
}

type nopTracer struct{}

func (nopTracer) Trace(context.Context, string, ...any) {}

// Result summarises one run.
type Result struct {
	Matched       int
	RecordIDs     []string
	PatternErrors []*matcher.PatternError
}

// Config holds the dependencies of a Processor.
type Config struct {
	Store      Store
	Tracer     Tracer               // optional
	Normalizer normalize.Normalizer // zero value strips <body> and decodes entities
	Matcher    *matcher.Matcher     // optional, a fresh matcher is created when nil
	Notifier   emitter.Notifier     // optional
}

// Processor runs the parser pipeline. It keeps no state between runs and
// is safe for concurrent use.
type Processor struct {
	store      Store
	tracer     Tracer
	normalizer normalize.Normalizer
	matcher    *matcher.Matcher
	emitter    *emitter.Emitter
}

// New creates a Processor.
func New(cfg Config) *Processor {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = nopTracer{}
	}
	m := cfg.Matcher
	if m == nil {
		m = matcher.New()
	}
	return &Processor{
		store:      cfg.Store,
		tracer:     tracer,
		normalizer: cfg.Normalizer,
		matcher:    m,
		emitter:    emitter.New(cfg.Store, cfg.Notifier),
	}
}

// Process parses one email. It fails only when the subject is missing or
// the store rejects a read or write; records emitted before a store failure
// remain written. Zero matching definitions is a successful run with no
// output.
func (p *Processor) Process(ctx context.Context, email *models.Email) (*Result, error) {
	if email == nil || email.Subject == nil {
		metrics.EmailsProcessed.WithLabelValues("invalid").Inc()
		return nil, matcher.ErrInvalidInput
	}

	defs, err := p.store.ListActiveDefinitions(ctx)
	if err != nil {
		metrics.EmailsProcessed.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load definitions: %w", err)
	}
	p.tracer.Trace(ctx, "definitions loaded", "count", len(defs), "message_id", email.MessageID)

	sel, err := p.matcher.Select(email.Subject, defs)
	if err != nil {
		metrics.EmailsProcessed.WithLabelValues("invalid").Inc()
		return nil, err
	}

	result := &Result{
		Matched:       len(sel.Matched),
		PatternErrors: sel.PatternErrors,
	}

	for _, pe := range sel.PatternErrors {
		metrics.PatternErrors.Inc()
		slog.Warn("skipping definition with invalid subject pattern",
			"definition_id", pe.DefinitionID,
			"pattern", pe.Pattern,
			"error", pe.Err,
		)
	}

	if len(sel.Matched) == 0 {
		p.tracer.Trace(ctx, "no matching definitions", "subject", *email.Subject)
		metrics.EmailsProcessed.WithLabelValues("no_match").Inc()
		return result, nil
	}
	metrics.DefinitionsMatched.Add(float64(len(sel.Matched)))

	body := p.normalizer.Normalize(email.Body)

	for _, d := range sel.Matched {
		id, err := p.processDefinition(ctx, d, email.MessageID, body)
		if err != nil {
			metrics.EmailsProcessed.WithLabelValues("error").Inc()
			return result, err
		}
		result.RecordIDs = append(result.RecordIDs, id)
	}

	metrics.EmailsProcessed.WithLabelValues("matched").Inc()
	return result, nil
}

func (p *Processor) processDefinition(ctx context.Context, d models.Definition, messageID, body string) (string, error) {
	mappings, err := p.store.ListMappings(ctx, d.ID)
	if err != nil {
		return "", fmt.Errorf("load mappings for definition %s: %w", d.ID, err)
	}
	p.tracer.Trace(ctx, "mappings loaded", "definition_id", d.ID, "count", len(mappings))

	fields, gaps := extract.Extract(body, mappings)
	metrics.FieldsExtracted.WithLabelValues("found").Add(float64(len(mappings) - len(gaps)))
	metrics.FieldsExtracted.WithLabelValues("gap").Add(float64(len(gaps)))
	for _, g := range gaps {
		p.tracer.Trace(ctx, "field not extracted",
			"definition_id", d.ID,
			"field", g.Field,
			"reason", g.Reason,
		)
	}

	id, err := p.emitter.Emit(ctx, d, messageID, fields)
	if err != nil {
		return "", err
	}
	p.tracer.Trace(ctx, "email parsed",
		"definition_id", d.ID,
		"entity_type", d.TargetEntityName,
		"record_id", id,
		"fields", len(fields),
	)
	return id, nil
}

// IsInvalidInput reports whether err means the email itself was unusable.
func IsInvalidInput(err error) bool {
	return errors.Is(err, matcher.ErrInvalidInput)
}
