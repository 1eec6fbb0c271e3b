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


// Package graph fetches full messages from the Microsoft Graph API so that
// mailbox change notifications can be fed to the parser.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// Fetcher retrieves messages from the Graph API using per-tenant clients.
type Fetcher struct {
	clients      map[string]*http.Client // keyed by tenant alias
	graphBaseURL string
}

// NewFetcher creates a Graph API message fetcher. Each client is expected
// to carry its tenant's OAuth2 token source.
func NewFetcher(clients map[string]*http.Client, graphBaseURL string) *Fetcher {
	return &Fetcher{
		clients:      clients,
		graphBaseURL: graphBaseURL,
	}
}

// FetchMessage retrieves one message with an HTML body. It returns nil,
// nil when the message no longer exists.
func (f *Fetcher) FetchMessage(ctx context.Context, tenantAlias, userID, messageID string) (*Message, error) {
	client, ok := f.clients[tenantAlias]
	if !ok {
		return nil, fmt.Errorf("no graph client for tenant %q", tenantAlias)
	}

	u := fmt.Sprintf("%s/users/%s/messages/%s?$select=id,subject,from,body,receivedDateTime",
		f.graphBaseURL, url.PathEscape(userID), url.PathEscape(messageID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// Markers are configured against the HTML body, as stored by the mail
	// system; the normalizer does the <body> isolation.
	req.Header.Set("Prefer", "outlook.body-content-type=\"html\"")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Warn("message not found (may have been deleted)",
			"tenant", tenantAlias,
			"user_id", userID,
			"message_id", messageID,
		)
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph API returned HTTP %d for message %s", resp.StatusCode, messageID)
	}

	msg, err := parseMessage(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return msg, nil
}
