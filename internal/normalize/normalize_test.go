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


package normalize

import (
	"strings"
	"testing"
)

func TestStripBody(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "wrapped",
			raw:  "<html><head><title>x</title></head><body>Hello</body></html>",
			want: "Hello",
		},
		{
			name: "spans lines",
			raw:  "<html>\r\n<head></head>\r\n<body>\nline one\nline two\n</body>\n</html>",
			want: "\nline one\nline two\n",
		},
		{
			name: "no markers",
			raw:  "plain text body",
			want: "plain text body",
		},
		{
			name: "only opening marker",
			raw:  "header<body>content",
			want: "content",
		},
		{
			name: "only closing marker",
			raw:  "content</body>trailer",
			want: "content",
		},
		{
			name: "case sensitive",
			raw:  "<BODY>content</BODY>",
			want: "<BODY>content</BODY>",
		},
		{
			name: "first body tag wins",
			raw:  "a<body>b<body>c</body>d</body>e",
			want: "b<body>c",
		},
		{
			name: "empty",
			raw:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripBody(tt.raw); got != tt.want {
				t.Errorf("StripBody(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalize_DecodesEntities(t *testing.T) {
	raw := "<body>Total: &pound;10 &amp; VAT &lt;20%&gt; &#8364;5 &#x41;</body>"

	got := Normalize(raw)
	want := "Total: £10 & VAT <20%> €5 A"
	if got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalize_DecodesAfterStripping(t *testing.T) {
	// Encoded tags are content, not markers.
	raw := "&lt;body&gt;kept&lt;/body&gt;"

	got := Normalize(raw)
	if got != "<body>kept</body>" {
		t.Errorf("Normalize = %q, want encoded markers decoded but kept", got)
	}
}

func TestNormalizer_HTMLToText(t *testing.T) {
	n := Normalizer{HTMLToText: true}
	raw := "<html><body><p>NAME: <b>John</b> END.</p><p>Tom &amp; Jerry</p></body></html>"

	got := n.Normalize(raw)
	if strings.Contains(got, "<b>") || strings.Contains(got, "<p>") {
		t.Errorf("expected tags removed, got %q", got)
	}
	if !strings.Contains(got, "NAME: John END.") {
		t.Errorf("expected inline text preserved, got %q", got)
	}
	if !strings.Contains(got, "Tom & Jerry") {
		t.Errorf("expected entities decoded, got %q", got)
	}
}
