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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bcem/emailparser/internal/metrics"
	"github.com/bcem/emailparser/internal/models"
	"github.com/bcem/emailparser/internal/pipeline"
)

// EmailProcessor runs the parser for one email. Implemented by
// pipeline.Processor.
type EmailProcessor interface {
	Process(ctx context.Context, email *models.Email) (*pipeline.Result, error)
}

// DedupFilter reports whether a task ID is seen for the first time.
// Implemented by dedup.Filter.
type DedupFilter interface {
	IsNew(ctx context.Context, id string) (bool, error)
}

// Consumer pops emails from a Redis list and runs them through the parser.
type Consumer struct {
	rdb       *redis.Client
	queueName string
	processor EmailProcessor
	dedup     DedupFilter
	block     time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ConsumerConfig holds the dependencies of a Consumer.
type ConsumerConfig struct {
	Redis     *redis.Client
	QueueName string
	Processor EmailProcessor
	Dedup     DedupFilter   // optional
	Block     time.Duration // BRPOP timeout per poll
}

// NewConsumer creates a queue consumer.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	return &Consumer{
		rdb:       cfg.Redis,
		queueName: cfg.QueueName,
		processor: cfg.Processor,
		dedup:     cfg.Dedup,
		block:     block,
	}
}

// Start launches the consume loop in the background.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		slog.Info("email queue consumer started", "queue", c.queueName)
		c.run(ctx)
		slog.Info("email queue consumer stopped", "queue", c.queueName)
	}()
}

// Stop cancels the consume loop and waits for the in-flight email.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Consumer) run(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := c.rdb.BRPop(ctx, c.block, c.queueName).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("redis BRPOP failed", "queue", c.queueName, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		// BRPOP returns [queue, value]
		if len(res) != 2 {
			continue
		}
		c.Handle(ctx, res[1])
	}
}

// Handle processes one raw queue message. Failures are logged; the message
// is not requeued.
func (c *Consumer) Handle(ctx context.Context, raw string) {
	taskID, email, err := decodeTask(raw)
	if err != nil {
		metrics.QueueMessages.WithLabelValues("invalid").Inc()
		slog.Warn("dropping undecodable queue message", "queue", c.queueName, "error", err)
		return
	}

	if c.dedup != nil && taskID != "" {
		isNew, err := c.dedup.IsNew(ctx, taskID)
		if err != nil {
			slog.Warn("dedup check failed, proceeding", "error", err)
		} else if !isNew {
			metrics.QueueMessages.WithLabelValues("duplicate").Inc()
			slog.Debug("skipping redelivered task", "task_id", taskID)
			return
		}
	}

	res, err := c.processor.Process(ctx, email)
	if err != nil {
		metrics.QueueMessages.WithLabelValues("failed").Inc()
		slog.Error("email parse failed",
			"task_id", taskID,
			"message_id", email.MessageID,
			"error", err,
		)
		return
	}

	metrics.QueueMessages.WithLabelValues("processed").Inc()
	slog.Info("email parsed from queue",
		"task_id", taskID,
		"message_id", email.MessageID,
		"matched", res.Matched,
		"records", len(res.RecordIDs),
	)
}

// decodeTask accepts either a Celery envelope as written by Publisher or a
// bare Email JSON object. Bare emails have no task ID.
func decodeTask(raw string) (string, *models.Email, error) {
	var msg celeryMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return "", nil, fmt.Errorf("decode message: %w", err)
	}

	// Both shapes have a "body" key; only envelopes carry a task header.
	if _, isTask := msg.Headers["task"]; !isTask {
		var email models.Email
		if err := json.Unmarshal([]byte(raw), &email); err != nil {
			return "", nil, fmt.Errorf("decode email: %w", err)
		}
		return "", &email, nil
	}

	var task celeryTask
	if err := json.Unmarshal([]byte(msg.Body), &task); err != nil {
		return "", nil, fmt.Errorf("decode celery task: %w", err)
	}
	if task.Task != TaskParseEmail {
		return "", nil, fmt.Errorf("unexpected task %q", task.Task)
	}
	if len(task.Args) != 1 {
		return "", nil, fmt.Errorf("task %s: expected 1 argument, got %d", task.ID, len(task.Args))
	}
	payload, ok := task.Args[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("task %s: argument is not a JSON string", task.ID)
	}

	var email models.Email
	if err := json.Unmarshal([]byte(payload), &email); err != nil {
		return "", nil, fmt.Errorf("task %s: decode email: %w", task.ID, err)
	}
	return task.ID, &email, nil
}
