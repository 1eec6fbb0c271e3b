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


// Package matcher selects the parser definitions whose subject pattern
// matches an email subject.
package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/bcem/emailparser/internal/models"
)

// ErrInvalidInput is returned when the email has no subject at all. It is
// fatal for the whole run.
var ErrInvalidInput = errors.New("invalid input: email subject is missing")

// PatternError records a definition whose subject pattern does not compile.
// Only that definition is skipped.
type PatternError struct {
	DefinitionID string
	Pattern      string
	Err          error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("definition %s: invalid subject pattern %q: %v", e.DefinitionID, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// Selection is the outcome of matching one subject against a set of
// definitions. An empty Matched slice is a valid result, not an error.
type Selection struct {
	Matched       []models.Definition
	PatternErrors []*PatternError
}

// Matcher evaluates subject patterns. Compiled patterns are cached, so a
// single Matcher should be shared across runs. Safe for concurrent use.
type Matcher struct {
	cache sync.Map // pattern -> *regexp.Regexp
}

// New creates a Matcher with an empty pattern cache.
func New() *Matcher {
	return &Matcher{}
}

// Select returns the active definitions whose pattern occurs somewhere in
// subject, in the order they were given. A nil subject fails with
// ErrInvalidInput.
func (m *Matcher) Select(subject *string, defs []models.Definition) (*Selection, error) {
	if subject == nil {
		return nil, ErrInvalidInput
	}

	sel := &Selection{}
	for _, d := range defs {
		if !d.Active {
			continue
		}

		re, err := m.compile(d.SubjectPattern)
		if err != nil {
			sel.PatternErrors = append(sel.PatternErrors, &PatternError{
				DefinitionID: d.ID,
				Pattern:      d.SubjectPattern,
				Err:          err,
			})
			continue
		}

		if re.MatchString(*subject) {
			sel.Matched = append(sel.Matched, d)
		}
	}

	return sel, nil
}

func (m *Matcher) compile(pattern string) (*regexp.Regexp, error) {
	if v, ok := m.cache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m.cache.Store(pattern, re)
	return re, nil
}

// Select matches with a throwaway Matcher.
func Select(subject *string, defs []models.Definition) (*Selection, error) {
	return New().Select(subject, defs)
}
