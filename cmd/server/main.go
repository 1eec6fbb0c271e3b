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


// Email Parser Service
//
// Entry point for the parser service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL (definitions, mappings, records) and Redis
//  3. Builds the parser pipeline
//  4. Serves POST /emails, Graph change notifications, /health and /metrics
//  5. Consumes emails from the Redis queue
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/bcem/emailparser/internal/config"
	"github.com/bcem/emailparser/internal/dedup"
	"github.com/bcem/emailparser/internal/emitter"
	"github.com/bcem/emailparser/internal/graph"
	"github.com/bcem/emailparser/internal/normalize"
	"github.com/bcem/emailparser/internal/pipeline"
	"github.com/bcem/emailparser/internal/queue"
	"github.com/bcem/emailparser/internal/store"
	"github.com/bcem/emailparser/internal/webhook"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting email parser service",
		"tenants", len(cfg.Tenants),
		"emails_queue", cfg.EmailsQueue,
		"records_queue", cfg.RecordsQueue,
		"html_to_text", cfg.HTMLToText,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	st, err := store.New(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise parser store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Record notifications (optional) ---
	var notifier emitter.Notifier
	if cfg.RecordsQueue != "" {
		notifier = queue.NewPublisher(rdb, cfg.RecordsQueue)
	}

	// --- Pipeline ---
	processor := pipeline.New(pipeline.Config{
		Store:      st,
		Tracer:     pipeline.SlogTracer{Logger: logger},
		Normalizer: normalize.Normalizer{HTMLToText: cfg.HTMLToText},
		Notifier:   notifier,
	})

	// --- Graph clients per tenant ---
	var fetcher webhook.MessageFetcher
	clientStates := make(map[string]string)
	if len(cfg.Tenants) > 0 {
		graphClients := make(map[string]*http.Client)
		for _, tenant := range cfg.Tenants {
			creds := &clientcredentials.Config{
				ClientID:     tenant.ClientID,
				ClientSecret: tenant.ClientSecret,
				TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenant.TenantID),
				Scopes:       []string{"https://graph.microsoft.com/.default"},
			}
			graphClients[tenant.Alias] = creds.Client(ctx)
			clientStates[tenant.Alias] = tenant.ClientState
		}
		fetcher = graph.NewFetcher(graphClients, graphBaseURL)
	}

	// --- HTTP server ---
	mux := http.NewServeMux()
	webhook.NewHandler(processor, fetcher, clientStates).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := rdb.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	ready, err := webhook.Serve(ctx, cfg.Port, mux)
	if err != nil {
		slog.Error("failed to start http server", "error", err)
		os.Exit(1)
	}
	<-ready

	// --- Queue consumer ---
	consumer := queue.NewConsumer(queue.ConsumerConfig{
		Redis:     rdb,
		QueueName: cfg.EmailsQueue,
		Processor: processor,
		Dedup:     dedup.NewFilter(rdb, dedup.DefaultTTL),
		Block:     cfg.ConsumerBlock,
	})
	consumer.Start(ctx)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel() // stops the http server and the consumer loop
	consumer.Stop()

	slog.Info("email parser service stopped")
}
