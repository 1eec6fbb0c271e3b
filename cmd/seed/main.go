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


// Email Parser: rules loader
//
// Loads definitions and their mappings from a rules file into Postgres.
// Existing definitions with the same ID are replaced, mappings included.
//
// Usage:
//
//	go run ./cmd/seed/ --rules rules.yaml [--prune]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcem/emailparser/internal/config"
	"github.com/bcem/emailparser/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rulesFlag := flag.String("rules", "", "Rules file to load (required)")
	pruneFlag := flag.Bool("prune", false, "Deactivate stored definitions that are not in the rules file")
	flag.Parse()

	if *rulesFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: --rules is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	rules, err := config.LoadRules(*rulesFlag)
	if err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st, err := store.New(ctx, pool)
	if err != nil {
		slog.Error("failed to initialise parser store", "error", err)
		os.Exit(1)
	}

	keep := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := st.UpsertDefinition(ctx, r.Definition, r.Mappings); err != nil {
			slog.Error("failed to store definition", "definition_id", r.Definition.ID, "error", err)
			os.Exit(1)
		}
		keep[r.Definition.ID] = true
		slog.Info("definition loaded",
			"definition_id", r.Definition.ID,
			"entity", r.Definition.TargetEntityName,
			"active", r.Definition.Active,
			"mappings", len(r.Mappings),
		)
	}

	if *pruneFlag {
		active, err := st.ListActiveDefinitions(ctx)
		if err != nil {
			slog.Error("failed to list definitions", "error", err)
			os.Exit(1)
		}
		for _, d := range active {
			if keep[d.ID] {
				continue
			}
			if err := st.SetActive(ctx, d.ID, false); err != nil {
				slog.Error("failed to deactivate definition", "definition_id", d.ID, "error", err)
				os.Exit(1)
			}
			slog.Info("definition deactivated", "definition_id", d.ID)
		}
	}

	slog.Info("rules loaded", "definitions", len(rules))
}
