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


package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bcem/emailparser/internal/models"
	"github.com/bcem/emailparser/internal/pipeline"
)

type fakeProcessor struct {
	emails []*models.Email
	err    error
}

func (f *fakeProcessor) Process(_ context.Context, email *models.Email) (*pipeline.Result, error) {
	f.emails = append(f.emails, email)
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{Matched: 1, RecordIDs: []string{"r1"}}, nil
}

type fakeDedup struct {
	seen map[string]bool
	err  error
}

func (f *fakeDedup) IsNew(_ context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

func TestEncodeDecodeTask(t *testing.T) {
	email := &models.Email{
		MessageID: "msg-1",
		Subject:   models.StringPtr("Invoice #1"),
		Body:      "<body>Number: 1\n</body>",
	}

	raw, err := encodeTask("emails", TaskParseEmail, "task-1", email)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		t.Fatalf("envelope is not JSON: %v", err)
	}
	props := envelope["properties"].(map[string]interface{})
	if props["routing_key"] != "emails" || props["correlation_id"] != "task-1" {
		t.Errorf("properties = %v", props)
	}

	taskID, got, err := decodeTask(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if taskID != "task-1" {
		t.Errorf("task id = %q, want task-1", taskID)
	}
	if got.MessageID != "msg-1" || got.SubjectOrEmpty() != "Invoice #1" || got.Body != email.Body {
		t.Errorf("email = %+v", got)
	}
}

func TestDecodeTask_BareEmail(t *testing.T) {
	taskID, email, err := decodeTask(`{"message_id":"m","subject":"Hello","body":"<body>x</body>"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if taskID != "" {
		t.Errorf("task id = %q, want empty", taskID)
	}
	if email.SubjectOrEmpty() != "Hello" || email.Body != "<body>x</body>" {
		t.Errorf("email = %+v", email)
	}
}

func TestDecodeTask_NullSubjectPreserved(t *testing.T) {
	_, email, err := decodeTask(`{"subject":null,"body":"x"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email.Subject != nil {
		t.Errorf("subject = %q, want nil", *email.Subject)
	}
}

func TestDecodeTask_Invalid(t *testing.T) {
	record, _ := encodeTask("records", TaskRecordExtracted, "t", &models.ExtractedRecord{ID: "r"})

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "nope"},
		{name: "wrong task", raw: record},
		{name: "bad body", raw: `{"body":"{","headers":{"task":"parser.tasks.parse_email"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := decodeTask(tt.raw); err == nil {
				t.Error("expected error, got none")
			}
		})
	}
}

func TestConsumer_Handle(t *testing.T) {
	proc := &fakeProcessor{}
	c := NewConsumer(ConsumerConfig{
		QueueName: "emails",
		Processor: proc,
		Dedup:     &fakeDedup{seen: map[string]bool{}},
	})

	raw, _ := encodeTask("emails", TaskParseEmail, "task-1", &models.Email{Subject: models.StringPtr("s")})

	c.Handle(context.Background(), raw)
	c.Handle(context.Background(), raw) // redelivery
	c.Handle(context.Background(), "garbage")

	if len(proc.emails) != 1 {
		t.Errorf("processed = %d, want 1", len(proc.emails))
	}
}

func TestConsumer_HandleWithoutTaskIDSkipsDedup(t *testing.T) {
	proc := &fakeProcessor{}
	c := NewConsumer(ConsumerConfig{
		Processor: proc,
		Dedup:     &fakeDedup{seen: map[string]bool{}},
	})

	raw := `{"subject":"same","body":"same"}`
	c.Handle(context.Background(), raw)
	c.Handle(context.Background(), raw)

	if len(proc.emails) != 2 {
		t.Errorf("processed = %d, want 2", len(proc.emails))
	}
}

func TestConsumer_HandleDedupErrorProceeds(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("store down")}
	c := NewConsumer(ConsumerConfig{
		Processor: proc,
		Dedup:     &fakeDedup{err: errors.New("redis down")},
	})

	raw, _ := encodeTask("emails", TaskParseEmail, "task-2", &models.Email{Subject: models.StringPtr("s")})
	c.Handle(context.Background(), raw)

	if len(proc.emails) != 1 {
		t.Errorf("processed = %d, want 1", len(proc.emails))
	}
}
