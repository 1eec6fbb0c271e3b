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


package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchMessage(t *testing.T) {
	var gotPath, gotPrefer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPrefer = r.Header.Get("Prefer")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg-1",
			"subject": "Invoice #42",
			"from": {"emailAddress": {"address": "billing@example.com", "name": "Billing"}},
			"body": {"contentType": "html", "content": "<html><body>Number: 42\n</body></html>"},
			"receivedDateTime": "2026-01-02T03:04:05Z"
		}`))
	}))
	defer server.Close()

	f := NewFetcher(map[string]*http.Client{"contoso": server.Client()}, server.URL)

	msg, err := f.FetchMessage(context.Background(), "contoso", "user@contoso.com", "msg-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/users/user@contoso.com/messages/msg-1" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotPrefer, "html") {
		t.Errorf("Prefer = %q, want html body", gotPrefer)
	}

	email := msg.Email()
	if email.MessageID != "msg-1" || email.SubjectOrEmpty() != "Invoice #42" {
		t.Errorf("email = %+v", email)
	}
	if email.From != "billing@example.com" || email.ReceivedAt != "2026-01-02T03:04:05Z" {
		t.Errorf("email = %+v", email)
	}
	if !strings.Contains(email.Body, "Number: 42") {
		t.Errorf("body = %q", email.Body)
	}
}

func TestFetchMessage_NullSubject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "m", "subject": null, "body": {"content": "x"}}`))
	}))
	defer server.Close()

	f := NewFetcher(map[string]*http.Client{"t": server.Client()}, server.URL)

	msg, err := f.FetchMessage(context.Background(), "t", "u", "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Email().Subject != nil {
		t.Error("subject = non-nil, want nil")
	}
}

func TestFetchMessage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantNil bool
		wantErr bool
	}{
		{name: "not found", status: http.StatusNotFound, wantNil: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
		{name: "throttled", status: http.StatusTooManyRequests, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			f := NewFetcher(map[string]*http.Client{"t": server.Client()}, server.URL)
			msg, err := f.FetchMessage(context.Background(), "t", "u", "m")

			if tt.wantErr && err == nil {
				t.Error("expected error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantNil && msg != nil {
				t.Errorf("msg = %+v, want nil", msg)
			}
		})
	}
}

func TestFetchMessage_UnknownTenant(t *testing.T) {
	f := NewFetcher(map[string]*http.Client{}, "http://unused")
	if _, err := f.FetchMessage(context.Background(), "nope", "u", "m"); err == nil {
		t.Error("expected error for unknown tenant")
	}
}
