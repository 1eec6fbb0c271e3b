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


// Package dedup suppresses redelivered queue tasks using Redis SETNX keys
// with a TTL. It keys on task IDs, not on email content: enqueueing the
// same email twice yields two tasks and two parses.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a task ID is remembered.
	DefaultTTL = 24 * time.Hour

	defaultPrefix = "emailparser:task:"
)

// Filter tracks which task IDs have already been handled.
type Filter struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewFilter creates a dedup filter backed by Redis. A zero ttl selects
// DefaultTTL.
func NewFilter(rdb *redis.Client, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Filter{
		rdb:    rdb,
		ttl:    ttl,
		prefix: defaultPrefix,
	}
}

func (f *Filter) key(id string) string {
	return f.prefix + id
}

// IsNew returns true if id has NOT been seen before and marks it as seen
// in the same round trip.
func (f *Filter) IsNew(ctx context.Context, id string) (bool, error) {
	set, err := f.rdb.SetNX(ctx, f.key(id), 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}
	return set, nil
}
