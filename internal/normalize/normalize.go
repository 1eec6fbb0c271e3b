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


// Package normalize isolates the meaningful text of a raw email body and
// decodes HTML entities so that extraction markers can be matched against
// literal characters.
package normalize

import (
	"html"
	"regexp"

	"github.com/k3a/html2text"
)

var (
	// Everything up to and including the first <body>. Case-sensitive,
	// dot matches newline.
	bodyStart = regexp.MustCompile(`(?s)^.*?<body>`)
	// Everything from the first </body> to the end.
	bodyEnd = regexp.MustCompile(`(?s)</body>.*$`)
)

// Normalizer turns a raw email payload into extraction-ready text.
type Normalizer struct {
	// HTMLToText renders the isolated body to plain text instead of only
	// decoding entities. Tags inside the body are dropped in this mode.
	HTMLToText bool
}

// Normalize strips the payload down to the contents of <body> and decodes
// entities. It never fails; input without body markers is only decoded.
func (n Normalizer) Normalize(raw string) string {
	body := StripBody(raw)
	if n.HTMLToText {
		// html2text decodes entities itself; decoding again would turn
		// an escaped "&amp;lt;" into "<".
		return html2text.HTML2Text(body)
	}
	return html.UnescapeString(body)
}

// StripBody removes everything outside the first <body>...</body> pair.
// When a marker is missing the corresponding removal is skipped.
func StripBody(raw string) string {
	out := bodyStart.ReplaceAllLiteralString(raw, "")
	return bodyEnd.ReplaceAllLiteralString(out, "")
}

// Normalize applies the default normalizer.
func Normalize(raw string) string {
	return Normalizer{}.Normalize(raw)
}
