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


package extract

import (
	"testing"

	"github.com/bcem/emailparser/internal/models"
	"github.com/bcem/emailparser/internal/normalize"
)

func mapping(start, end, field string) models.Mapping {
	return models.Mapping{StartMarker: start, EndMarker: end, TargetFieldName: field}
}

func TestFields_RoundTrip(t *testing.T) {
	body := normalize.Normalize("<body>Hello NAME:John END.</body>")

	got := Fields(body, []models.Mapping{mapping("NAME:", "END.", "field")})
	if len(got) != 1 || got["field"] != "John" {
		t.Errorf("fields = %v, want map[field:John]", got)
	}
}

func TestExtract(t *testing.T) {
	body := "Order: 1234\nCustomer: Jane Doe\nTotal: 99.50 EUR\nNotes: none"

	tests := []struct {
		name     string
		mappings []models.Mapping
		want     map[string]string
		gaps     []Gap
	}{
		{
			name: "multiple fields",
			mappings: []models.Mapping{
				mapping("Order:", "\n", "order_no"),
				mapping("Customer:", "\n", "customer"),
				mapping("Total:", "EUR", "total"),
			},
			want: map[string]string{"order_no": "1234", "customer": "Jane Doe", "total": "99.50"},
		},
		{
			name:     "start marker missing",
			mappings: []models.Mapping{mapping("Invoice:", "\n", "invoice")},
			want:     map[string]string{},
			gaps:     []Gap{{Field: "invoice", Reason: ReasonStartNotFound}},
		},
		{
			name:     "end marker missing after start",
			mappings: []models.Mapping{mapping("Notes:", "\n", "notes")},
			want:     map[string]string{},
			gaps:     []Gap{{Field: "notes", Reason: ReasonEndNotFound}},
		},
		{
			name: "end marker only before start",
			// "Order" occurs before "Total:" but never after it.
			mappings: []models.Mapping{mapping("Total:", "Order", "total")},
			want:     map[string]string{},
			gaps:     []Gap{{Field: "total", Reason: ReasonEndNotFound}},
		},
		{
			name: "later mapping overwrites",
			mappings: []models.Mapping{
				mapping("Order:", "\n", "ref"),
				mapping("Customer:", "\n", "ref"),
			},
			want: map[string]string{"ref": "Jane Doe"},
		},
		{
			name: "missing later mapping keeps earlier value",
			mappings: []models.Mapping{
				mapping("Order:", "\n", "ref"),
				mapping("Missing:", "\n", "ref"),
			},
			want: map[string]string{"ref": "1234"},
			gaps: []Gap{{Field: "ref", Reason: ReasonStartNotFound}},
		},
		{
			name: "adjacent markers yield empty value",
			mappings: []models.Mapping{
				mapping("Order: 1234", "\n", "empty"),
			},
			want: map[string]string{"empty": ""},
		},
		{
			name:     "case sensitive markers",
			mappings: []models.Mapping{mapping("order:", "\n", "order_no")},
			want:     map[string]string{},
			gaps:     []Gap{{Field: "order_no", Reason: ReasonStartNotFound}},
		},
		{
			name:     "no mappings",
			mappings: nil,
			want:     map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gaps := Extract(body, tt.mappings)

			if len(got) != len(tt.want) {
				t.Fatalf("fields = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if gv, ok := got[k]; !ok || gv != v {
					t.Errorf("fields[%q] = %q (present=%v), want %q", k, gv, ok, v)
				}
			}

			if len(gaps) != len(tt.gaps) {
				t.Fatalf("gaps = %v, want %v", gaps, tt.gaps)
			}
			for i := range gaps {
				if gaps[i] != tt.gaps[i] {
					t.Errorf("gaps[%d] = %+v, want %+v", i, gaps[i], tt.gaps[i])
				}
			}
		})
	}
}

func TestExtract_FirstOccurrenceOnly(t *testing.T) {
	body := "ID: 1; ID: 2; ID: 3;"

	got := Fields(body, []models.Mapping{mapping("ID:", ";", "id")})
	if got["id"] != "1" {
		t.Errorf("id = %q, want first occurrence 1", got["id"])
	}
}

func TestExtract_EndSearchStartsAfterStartMarker(t *testing.T) {
	// The start and end markers overlap; the end must be found after the
	// start marker, not inside it.
	body := "--value--"

	got := Fields(body, []models.Mapping{mapping("--", "--", "v")})
	if got["v"] != "value" {
		t.Errorf("v = %q, want value", got["v"])
	}
}

func TestExtract_MultiByteText(t *testing.T) {
	body := "Name: Zoë Ångström\nCity: Malmö\n"

	got := Fields(body, []models.Mapping{
		mapping("Name:", "\n", "name"),
		mapping("City:", "\n", "city"),
	})
	if got["name"] != "Zoë Ångström" || got["city"] != "Malmö" {
		t.Errorf("fields = %v", got)
	}
}
