/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package logging

import (
	"sync/atomic"

	"github.com/go-logr/logr"
)

// DefaultCycleLogLimit is the number of messages a Capped logger lets through
// per collection cycle.
const DefaultCycleLogLimit = 10

// Capped forwards at most limit messages between two calls to Reset and
// silently counts the rest. It is safe for concurrent use.
type Capped struct {
	logger  logr.Logger
	limit   int64
	emitted atomic.Int64
}

// NewCapped returns a Capped logger. A limit <= 0 uses DefaultCycleLogLimit.
func NewCapped(logger logr.Logger, limit int) *Capped {
	if limit <= 0 {
		limit = DefaultCycleLogLimit
	}
	return &Capped{logger: logger, limit: int64(limit)}
}

// Reset starts a new window and returns how many messages were dropped in the
// previous one.
func (c *Capped) Reset() int {
	n := c.emitted.Swap(0)
	if n <= c.limit {
		return 0
	}
	return int(n - c.limit)
}

// Info logs msg unless the window is exhausted.
func (c *Capped) Info(msg string, keysAndValues ...any) {
	if c.allow() {
		c.logger.Info(msg, keysAndValues...)
	}
}

// Error logs err unless the window is exhausted.
func (c *Capped) Error(err error, msg string, keysAndValues ...any) {
	if c.allow() {
		c.logger.Error(err, msg, keysAndValues...)
	}
}

// Suppressed is the number of messages dropped so far in the current window.
func (c *Capped) Suppressed() int {
	n := c.emitted.Load()
	if n <= c.limit {
		return 0
	}
	return int(n - c.limit)
}

func (c *Capped) allow() bool {
	return c.emitted.Add(1) <= c.limit
}
