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
	"encoding/json"
	"fmt"
	"io"

	"github.com/bcem/emailparser/internal/models"
)

// Message is the subset of a Graph message the parser needs.
type Message struct {
	ID      string  `json:"id"`
	Subject *string `json:"subject"`
	From    struct {
		EmailAddress struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		} `json:"emailAddress"`
	} `json:"from"`
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ReceivedDateTime string `json:"receivedDateTime"`
}

func parseMessage(body io.Reader) (*Message, error) {
	var msg Message
	if err := json.NewDecoder(body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode graph message: %w", err)
	}
	return &msg, nil
}

// Email converts the Graph message into the parser's input. A null Graph
// subject stays nil.
func (m *Message) Email() *models.Email {
	return &models.Email{
		MessageID:  m.ID,
		Subject:    m.Subject,
		From:       m.From.EmailAddress.Address,
		Body:       m.Body.Content,
		ReceivedAt: m.ReceivedDateTime,
	}
}
