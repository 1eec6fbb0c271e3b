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


// Package metrics exposes Prometheus counters for the parser pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emailparser_emails_processed_total",
			Help: "Total number of emails run through the parser, by outcome",
		},
		[]string{"result"}, // matched, no_match, invalid, error
	)

	DefinitionsMatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emailparser_definitions_matched_total",
			Help: "Total number of definition matches across all emails",
		},
	)

	PatternErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emailparser_pattern_errors_total",
			Help: "Total number of definitions skipped because their subject pattern did not compile",
		},
	)

	FieldsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emailparser_fields_extracted_total",
			Help: "Total number of mapping evaluations, by outcome",
		},
		[]string{"result"}, // found, gap
	)

	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emailparser_records_emitted_total",
			Help: "Total number of extracted records written to the store, by outcome",
		},
		[]string{"result"}, // success, failure
	)
)

// Queue consumer metrics
var (
	QueueMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emailparser_queue_messages_total",
			Help: "Total number of messages read from the email queue, by outcome",
		},
		[]string{"result"}, // processed, duplicate, invalid, failed
	)
)
