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


// Package extract pulls field values out of a normalized email body using
// literal start/end marker pairs.
package extract

import (
	"strings"

	"github.com/bcem/emailparser/internal/models"
)

// Reasons a mapping produced no value.
const (
	ReasonStartNotFound = "start marker not found"
	ReasonEndNotFound   = "end marker not found"
)

// Gap describes a mapping that was skipped because its markers were not
// both present. Gaps are expected and never fail a run.
type Gap struct {
	Field  string
	Reason string
}

// Extract applies each mapping to body independently. For every mapping it
// finds the first occurrence of the start marker, then the first occurrence
// of the end marker after it, and stores the trimmed text in between under
// the mapping's target field. A later mapping for the same field overwrites
// an earlier one.
func Extract(body string, mappings []models.Mapping) (map[string]string, []Gap) {
	fields := make(map[string]string, len(mappings))
	var gaps []Gap

	for _, m := range mappings {
		value, reason, ok := between(body, m.StartMarker, m.EndMarker)
		if !ok {
			gaps = append(gaps, Gap{Field: m.TargetFieldName, Reason: reason})
			continue
		}
		fields[m.TargetFieldName] = value
	}

	return fields, gaps
}

// Fields is Extract without the gap report.
func Fields(body string, mappings []models.Mapping) map[string]string {
	fields, _ := Extract(body, mappings)
	return fields
}

// between returns the trimmed text between the first start marker and the
// first end marker that follows it. Comparison is byte-exact.
func between(body, start, end string) (string, string, bool) {
	i := strings.Index(body, start)
	if i < 0 {
		return "", ReasonStartNotFound, false
	}
	from := i + len(start)

	j := strings.Index(body[from:], end)
	if j < 0 {
		return "", ReasonEndNotFound, false
	}

	return strings.TrimSpace(body[from : from+j]), "", true
}
