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


// Package eml reads RFC 5322 message files into parser input.
package eml

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/bcem/emailparser/internal/models"
)

// Read parses a message and returns its subject and body. The first
// text/html part is preferred; the first text/plain part is used when the
// message has no HTML. A message without a Subject header yields a nil
// subject.
func Read(r io.Reader) (*models.Email, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read message header: %w", err)
	}
	defer mr.Close()

	email := &models.Email{}

	h := mr.Header
	if h.Has("Subject") {
		subject, err := h.Subject()
		if err != nil {
			// Undecodable encoded-word; keep the raw value.
			subject = h.Get("Subject")
		}
		email.Subject = &subject
	}
	if id, err := h.MessageID(); err == nil {
		email.MessageID = id
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		email.From = from[0].Address
	}
	if date, err := h.Date(); err == nil && !date.IsZero() {
		email.ReceivedAt = date.UTC().Format("2006-01-02T15:04:05Z")
	}

	var htmlBody, textBody *string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("read message part: %w", err)
		}

		ih, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue // attachment
		}
		mediaType, _, _ := ih.ContentType()
		if mediaType == "" {
			mediaType = "text/plain"
		}

		switch {
		case strings.EqualFold(mediaType, "text/html") && htmlBody == nil:
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("read html part: %w", err)
			}
			s := string(b)
			htmlBody = &s
		case strings.EqualFold(mediaType, "text/plain") && textBody == nil:
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("read text part: %w", err)
			}
			s := string(b)
			textBody = &s
		}
	}

	switch {
	case htmlBody != nil:
		email.Body = *htmlBody
	case textBody != nil:
		email.Body = *textBody
	}
	return email, nil
}
