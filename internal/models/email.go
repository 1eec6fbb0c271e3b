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


// Package models defines the data structures shared across the parser service.
package models

import "time"

// Email is the inbound message handed to the pipeline.
//
// Subject is a pointer so that a missing subject (JSON null or absent) can be
// told apart from an empty one. A nil subject is rejected by the matcher.
type Email struct {
	MessageID  string  `json:"message_id,omitempty"`
	Subject    *string `json:"subject"`
	From       string  `json:"from,omitempty"`
	Body       string  `json:"body"`
	ReceivedAt string  `json:"received_at,omitempty"`
}

// SubjectOrEmpty returns the subject, or "" when it is missing.
func (e *Email) SubjectOrEmpty() string {
	if e == nil || e.Subject == nil {
		return ""
	}
	return *e.Subject
}

// StringPtr is a small helper for building emails in code and tests.
func StringPtr(s string) *string {
	return &s
}

// Definition is a rule-set: a subject pattern mapped to the record type
// produced when it matches.
type Definition struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	TargetEntityName string `json:"target_entity_name"`
	SubjectPattern   string `json:"subject_pattern"`
	SenderAddress    string `json:"sender_address,omitempty"` // stored, not used for matching
	Active           bool   `json:"active"`
}

// Mapping is a single field-extraction rule belonging to a Definition.
// StartMarker and EndMarker are literal substrings, not patterns.
type Mapping struct {
	ID              int64  `json:"id,omitempty" yaml:"-"`
	DefinitionID    string `json:"definition_id" yaml:"-"`
	StartMarker     string `json:"start_marker" yaml:"start"`
	EndMarker       string `json:"end_marker" yaml:"end"`
	TargetFieldName string `json:"target_field_name" yaml:"field"`
}

// ExtractedRecord is the output of one Email/Definition pairing: a record
// type tag plus the fields that were found. Missing fields are absent from
// Fields, never present with an empty value.
type ExtractedRecord struct {
	ID           string            `json:"id"`
	EntityType   string            `json:"entity_type"`
	DefinitionID string            `json:"definition_id,omitempty"`
	MessageID    string            `json:"message_id,omitempty"`
	Fields       map[string]string `json:"fields"`
	CreatedAt    time.Time         `json:"created_at"`
}
