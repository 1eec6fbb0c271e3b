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


package eml

import (
	"strings"
	"testing"
)

const multipartMessage = "From: Billing <billing@example.com>\r\n" +
	"To: ap@example.org\r\n" +
	"Subject: Invoice #123\r\n" +
	"Message-Id: <abc@example.com>\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Number: 123 (plain)\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"<html><body>Number: 123 &amp; more=\r\n" +
	"</body></html>\r\n" +
	"--XYZ--\r\n"

func TestRead_PrefersHTML(t *testing.T) {
	email, err := Read(strings.NewReader(multipartMessage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if email.SubjectOrEmpty() != "Invoice #123" {
		t.Errorf("subject = %q", email.SubjectOrEmpty())
	}
	if email.MessageID != "abc@example.com" {
		t.Errorf("message id = %q", email.MessageID)
	}
	if email.From != "billing@example.com" {
		t.Errorf("from = %q", email.From)
	}
	if email.ReceivedAt != "2006-01-02T15:04:05Z" {
		t.Errorf("received at = %q", email.ReceivedAt)
	}
	if !strings.Contains(email.Body, "<body>Number: 123 &amp; more</body>") {
		t.Errorf("body = %q, want decoded html part", email.Body)
	}
}

func TestRead_PlainTextOnly(t *testing.T) {
	raw := "Subject: =?utf-8?q?Order_confirm=C3=A9?=\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Order: 55\r\n"

	email, err := Read(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email.SubjectOrEmpty() != "Order confirmé" {
		t.Errorf("subject = %q", email.SubjectOrEmpty())
	}
	if email.Body != "Order: 55\r\n" {
		t.Errorf("body = %q", email.Body)
	}
}

func TestRead_MissingSubject(t *testing.T) {
	raw := "From: a@example.com\r\n\r\nhello\r\n"

	email, err := Read(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email.Subject != nil {
		t.Errorf("subject = %q, want nil", *email.Subject)
	}
	if email.Body != "hello\r\n" {
		t.Errorf("body = %q", email.Body)
	}
}
