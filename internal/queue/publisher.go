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


// Package queue moves emails and extracted-record notifications through
// Redis lists using Celery-compatible task messages, so the parser can sit
// behind the ingestion service and in front of Python workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/emailparser/internal/models"
)

// Task names.
const (
	TaskParseEmail      = "parser.tasks.parse_email"
	TaskRecordExtracted = "parser.tasks.record_extracted"
)

// Publisher sends tasks to a Redis list in Celery format.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a new Redis publisher targeting the specified queue.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// celeryTask represents a Celery-compatible task message.
type celeryTask struct {
	ID      string        `json:"id"`
	Task    string        `json:"task"`
	Args    []interface{} `json:"args"`
	Kwargs  interface{}   `json:"kwargs"`
	Retries int           `json:"retries"`
	ETA     *string       `json:"eta"`
}

// celeryMessage wraps a task for Redis transport.
type celeryMessage struct {
	Body            string                 `json:"body"`
	ContentEncoding string                 `json:"content-encoding"`
	ContentType     string                 `json:"content-type"`
	Headers         map[string]interface{} `json:"headers"`
	Properties      map[string]interface{} `json:"properties"`
}

// PublishRecord announces a newly stored extracted record.
func (p *Publisher) PublishRecord(ctx context.Context, rec *models.ExtractedRecord) error {
	taskID, err := p.publish(ctx, TaskRecordExtracted, rec)
	if err != nil {
		return err
	}
	slog.Info("published extracted record",
		"task_id", taskID,
		"record_id", rec.ID,
		"entity_type", rec.EntityType,
		"queue", p.queueName,
	)
	return nil
}

// PublishEmail enqueues an email for parsing and returns the task ID.
func (p *Publisher) PublishEmail(ctx context.Context, email *models.Email) (string, error) {
	taskID, err := p.publish(ctx, TaskParseEmail, email)
	if err != nil {
		return "", err
	}
	slog.Info("published email for parsing",
		"task_id", taskID,
		"message_id", email.MessageID,
		"queue", p.queueName,
	)
	return taskID, nil
}

func (p *Publisher) publish(ctx context.Context, taskName string, payload interface{}) (string, error) {
	taskID := uuid.New().String()
	msg, err := encodeTask(p.queueName, taskName, taskID, payload)
	if err != nil {
		return "", err
	}

	// Celery consumers BRPOP, so producers LPUSH
	if err := p.rdb.LPush(ctx, p.queueName, msg).Err(); err != nil {
		return "", fmt.Errorf("redis LPUSH: %w", err)
	}
	return taskID, nil
}

// encodeTask builds the Celery envelope. The payload is carried as a JSON
// string in the first positional argument.
func encodeTask(queueName, taskName, taskID string, payload interface{}) (string, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	task := celeryTask{
		ID:     taskID,
		Task:   taskName,
		Args:   []interface{}{string(payloadJSON)},
		Kwargs: map[string]interface{}{},
	}

	taskBody, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("marshal celery task: %w", err)
	}

	msg := celeryMessage{
		Body:            string(taskBody),
		ContentEncoding: "utf-8",
		ContentType:     "application/json",
		Headers: map[string]interface{}{
			"lang":    "py",
			"task":    taskName,
			"id":      taskID,
			"retries": 0,
		},
		Properties: map[string]interface{}{
			"correlation_id": taskID,
			"delivery_mode":  2,
			"delivery_tag":   taskID,
			"body_encoding":  "utf-8",
			"exchange":       queueName,
			"routing_key":    queueName,
			"delivery_info": map[string]string{
				"exchange":    queueName,
				"routing_key": queueName,
			},
		},
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal celery message: %w", err)
	}
	return string(msgJSON), nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
