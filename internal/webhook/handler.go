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


// Package webhook exposes the parser over HTTP. Emails can be posted
// directly, or arrive as Microsoft Graph change notifications for
// subscribed mailboxes, in which case the full message is fetched first.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/bcem/emailparser/internal/graph"
	"github.com/bcem/emailparser/internal/models"
	"github.com/bcem/emailparser/internal/pipeline"
)

// maxBodyBytes bounds a posted email.
const maxBodyBytes = 10 << 20

// EmailProcessor runs the parser for one email.
type EmailProcessor interface {
	Process(ctx context.Context, email *models.Email) (*pipeline.Result, error)
}

// MessageFetcher retrieves a mailbox message. Implemented by graph.Fetcher.
type MessageFetcher interface {
	FetchMessage(ctx context.Context, tenantAlias, userID, messageID string) (*graph.Message, error)
}

// ChangeNotification represents a single Graph API change notification.
type ChangeNotification struct {
	SubscriptionID string `json:"subscriptionId"`
	ChangeType     string `json:"changeType"`
	Resource       string `json:"resource"`
	ClientState    string `json:"clientState"`
	TenantID       string `json:"tenantId"`
}

// NotificationPayload is the wrapper Graph sends.
type NotificationPayload struct {
	Value []ChangeNotification `json:"value"`
}

// ProcessResponse is returned by POST /emails.
type ProcessResponse struct {
	Matched       int      `json:"matched"`
	RecordIDs     []string `json:"record_ids"`
	PatternErrors []string `json:"pattern_errors,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the parser's HTTP endpoints.
type Handler struct {
	processor    EmailProcessor
	fetcher      MessageFetcher
	clientStates map[string]string // tenant alias -> expected clientState
}

// NewHandler creates the HTTP handler. fetcher may be nil when no Graph
// tenants are configured.
func NewHandler(processor EmailProcessor, fetcher MessageFetcher, clientStates map[string]string) *Handler {
	if clientStates == nil {
		clientStates = map[string]string{}
	}
	return &Handler{
		processor:    processor,
		fetcher:      fetcher,
		clientStates: clientStates,
	}
}

// Register adds the handler's routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/emails", h.ServeEmail)
	mux.HandleFunc("/webhook/", h.ServeNotification)
}

// ServeEmail parses a posted email synchronously and reports the records
// it created.
func (h *Handler) ServeEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var email models.Email
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&email); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid email JSON: %v", err)})
		return
	}

	res, err := h.processor.Process(r.Context(), &email)
	if err != nil {
		if pipeline.IsInvalidInput(err) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		slog.Error("email parse failed", "message_id", email.MessageID, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	resp := ProcessResponse{
		Matched:   res.Matched,
		RecordIDs: res.RecordIDs,
	}
	if resp.RecordIDs == nil {
		resp.RecordIDs = []string{}
	}
	for _, pe := range res.PatternErrors {
		resp.PatternErrors = append(resp.PatternErrors, pe.Error())
	}

	status := http.StatusOK
	if len(res.RecordIDs) > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// ServeNotification handles Graph change notification webhook requests
// at /webhook/{tenant}.
//
// Graph API validation flow:
//   - When creating a subscription, Graph sends a POST with ?validationToken=<token>
//   - We must respond 200 OK with the token in plain text
//
// Normal notification flow:
//   - We respond 202 Accepted immediately
//   - Fetch and parse each new message in the background
func (h *Handler) ServeNotification(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("validationToken"); token != "" {
		slog.Info("subscription validation probe received")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(token))
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		slog.Error("failed to read notification body", "error", err)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	var payload NotificationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Info("notification body not valid JSON, treating as probe",
			"body_len", len(body),
		)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	// Respond immediately, Graph expects a fast response
	w.WriteHeader(http.StatusAccepted)

	tenantAlias := strings.Trim(strings.TrimPrefix(r.URL.Path, "/webhook/"), "/")
	if h.fetcher == nil {
		slog.Warn("graph notification received but no fetcher configured", "tenant", tenantAlias)
		return
	}

	go h.processNotifications(context.Background(), tenantAlias, payload.Value)
}

// processNotifications fetches and parses each newly created message.
func (h *Handler) processNotifications(ctx context.Context, tenantAlias string, notifications []ChangeNotification) {
	for _, n := range notifications {
		if n.ChangeType != "created" {
			slog.Debug("skipping non-created notification",
				"change_type", n.ChangeType,
				"resource", n.Resource,
			)
			continue
		}

		if want, ok := h.clientStates[tenantAlias]; ok && want != "" && n.ClientState != want {
			slog.Warn("clientState mismatch, possible spoofed notification",
				"tenant", tenantAlias,
				"subscription_id", n.SubscriptionID,
			)
			continue
		}

		userID, messageID, err := parseResource(n.Resource)
		if err != nil {
			slog.Warn("failed to parse notification resource",
				"resource", n.Resource,
				"error", err,
			)
			continue
		}

		msg, err := h.fetcher.FetchMessage(ctx, tenantAlias, userID, messageID)
		if err != nil {
			slog.Error("fetch message failed",
				"tenant", tenantAlias,
				"message_id", messageID,
				"error", err,
			)
			continue
		}
		if msg == nil {
			continue
		}

		res, err := h.processor.Process(ctx, msg.Email())
		if err != nil {
			slog.Error("email parse failed",
				"tenant", tenantAlias,
				"message_id", messageID,
				"error", err,
			)
			continue
		}

		slog.Info("parsed mailbox message",
			"tenant", tenantAlias,
			"user", userID,
			"message_id", messageID,
			"matched", res.Matched,
			"records", len(res.RecordIDs),
		)
	}
}

// parseResource extracts userID and messageID from a Graph notification resource string.
// Format: "users/{userId}/messages/{messageId}"
func parseResource(resource string) (userID, messageID string, err error) {
	resource = strings.TrimPrefix(resource, "/")

	parts := strings.Split(resource, "/")
	// Graph may send capitalised variants: "Users", "Messages"
	if len(parts) != 4 || !strings.EqualFold(parts[0], "users") || !strings.EqualFold(parts[2], "messages") {
		return "", "", fmt.Errorf("unexpected resource format: %s", resource)
	}

	return parts[1], parts[3], nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Serve starts an HTTP server for mux on the given port. It binds the port
// immediately and signals readiness via the returned channel before
// starting to accept connections. The server closes when ctx is done.
func Serve(ctx context.Context, port int, mux http.Handler) (<-chan struct{}, error) {
	server := &http.Server{
		Handler: mux,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("http server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("http server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	return ready, nil
}
