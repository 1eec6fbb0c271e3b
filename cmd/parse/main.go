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


// Email Parser: single email command
//
// Runs one email through the parser. The email comes from an .eml file or
// from --subject and --body-file. By default the definitions are read from
// and records written to Postgres; --rules switches to a dry run against a
// rules file with records printed to stdout; --enqueue pushes the email onto
// the Redis queue for the service to pick up instead.
//
// Usage:
//
//	go run ./cmd/parse/ --eml message.eml [--rules rules.yaml | --enqueue]
//	go run ./cmd/parse/ --subject "Invoice #123" --body-file body.html --rules rules.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/emailparser/internal/config"
	"github.com/bcem/emailparser/internal/eml"
	"github.com/bcem/emailparser/internal/models"
	"github.com/bcem/emailparser/internal/normalize"
	"github.com/bcem/emailparser/internal/pipeline"
	"github.com/bcem/emailparser/internal/queue"
	"github.com/bcem/emailparser/internal/store"
)

func main() {
	// --- CLI Flags ---
	emlFlag := flag.String("eml", "", "Path to an RFC 5322 message file")
	subjectFlag := flag.String("subject", "", "Email subject (when not using --eml)")
	bodyFileFlag := flag.String("body-file", "", "Path to the raw email body (when not using --eml)")
	rulesFlag := flag.String("rules", "", "Dry run: load definitions from this rules file and print records")
	enqueueFlag := flag.Bool("enqueue", false, "Push the email onto the Redis queue instead of parsing it here")
	textFlag := flag.Bool("html-to-text", false, "Render the HTML body to plain text before extraction")
	verboseFlag := flag.Bool("v", false, "Log pipeline traces")
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	email, err := readEmail(*emlFlag, *subjectFlag, *bodyFileFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()

	if *enqueueFlag {
		if err := enqueue(ctx, email); err != nil {
			slog.Error("enqueue failed", "error", err)
			os.Exit(1)
		}
		return
	}

	var (
		st  pipeline.Store
		mem *store.MemoryStore
	)
	if *rulesFlag != "" {
		mem, err = loadRules(ctx, *rulesFlag)
		if err != nil {
			slog.Error("failed to load rules", "error", err)
			os.Exit(1)
		}
		st = mem
	} else {
		cfg, err := config.Load()
		if err != nil {
			slog.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to create Postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg, err := store.New(ctx, pool)
		if err != nil {
			slog.Error("failed to initialise parser store", "error", err)
			os.Exit(1)
		}
		st = pg
		*textFlag = *textFlag || cfg.HTMLToText
	}

	processor := pipeline.New(pipeline.Config{
		Store:      st,
		Tracer:     pipeline.SlogTracer{Logger: logger},
		Normalizer: normalize.Normalizer{HTMLToText: *textFlag},
	})

	res, err := processor.Process(ctx, email)
	if err != nil {
		slog.Error("parse failed", "error", err)
		os.Exit(1)
	}

	for _, pe := range res.PatternErrors {
		slog.Warn("definition skipped", "error", pe)
	}
	slog.Info("parse complete",
		"matched", res.Matched,
		"records", len(res.RecordIDs),
	)

	if mem != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(mem.Records()); err != nil {
			slog.Error("failed to print records", "error", err)
			os.Exit(1)
		}
	}
}

func readEmail(emlPath, subject, bodyPath string) (*models.Email, error) {
	if emlPath != "" {
		f, err := os.Open(emlPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return eml.Read(f)
	}

	if bodyPath == "" {
		return nil, fmt.Errorf("--eml or --body-file is required")
	}
	body, err := os.ReadFile(bodyPath)
	if err != nil {
		return nil, err
	}

	email := &models.Email{Body: string(body)}
	// An unset flag means a missing subject, which the parser rejects.
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "subject" {
			email.Subject = models.StringPtr(subject)
		}
	})
	return email, nil
}

func loadRules(ctx context.Context, path string) (*store.MemoryStore, error) {
	rules, err := config.LoadRules(path)
	if err != nil {
		return nil, err
	}
	mem := store.NewMemoryStore()
	for _, r := range rules {
		if err := mem.UpsertDefinition(ctx, r.Definition, r.Mappings); err != nil {
			return nil, err
		}
	}
	return mem, nil
}

func enqueue(ctx context.Context, email *models.Email) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	publisher := queue.NewPublisher(rdb, cfg.EmailsQueue)
	if err := publisher.Ping(ctx); err != nil {
		return fmt.Errorf("connect to Redis: %w", err)
	}

	taskID, err := publisher.PublishEmail(ctx, email)
	if err != nil {
		return err
	}
	fmt.Println(taskID)
	return nil
}
