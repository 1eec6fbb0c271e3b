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


package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bcem/emailparser/internal/models"
)

// Rule is a definition together with its mappings as written in a rules
// file:
//
//	definitions:
//	  - id: invoices
//	    name: Supplier invoices
//	    target_entity_name: invoice
//	    subject_pattern: 'Invoice #\d+'
//	    active: true
//	    mappings:
//	      - {start: "Number:", end: "\n", field: number}
type Rule struct {
	Definition models.Definition
	Mappings   []models.Mapping
}

// rawRule mirrors one entry of the rules file.
type rawRule struct {
	ID               string           `yaml:"id"`
	Name             string           `yaml:"name"`
	TargetEntityName string           `yaml:"target_entity_name"`
	SubjectPattern   string           `yaml:"subject_pattern"`
	SenderAddress    string           `yaml:"sender_address"`
	Active           *bool            `yaml:"active"`
	Mappings         []models.Mapping `yaml:"mappings"`
}

// LoadRules reads a rules file. Definitions without an explicit active
// flag are active.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	var raw struct {
		Definitions []rawRule `yaml:"definitions"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rules YAML: %w", err)
	}

	rules := make([]Rule, 0, len(raw.Definitions))
	for i, d := range raw.Definitions {
		if d.ID == "" {
			return nil, fmt.Errorf("definition %d: id is required", i)
		}
		if d.TargetEntityName == "" {
			return nil, fmt.Errorf("definition %s: target_entity_name is required", d.ID)
		}

		r := Rule{
			Definition: models.Definition{
				ID:               d.ID,
				Name:             firstNonEmpty(d.Name, d.ID),
				TargetEntityName: d.TargetEntityName,
				SubjectPattern:   d.SubjectPattern,
				SenderAddress:    d.SenderAddress,
				Active:           d.Active == nil || *d.Active,
			},
			Mappings: d.Mappings,
		}
		for j := range r.Mappings {
			r.Mappings[j].DefinitionID = d.ID
		}
		rules = append(rules, r)
	}
	return rules, nil
}
