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

// Package morcache is the thread-safe store of resolved managed objects that
// the collector polls, with TTL purge and quota-aware query batching.
package morcache

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// ErrNotFound is returned when a named record is not cached.
var ErrNotFound = errors.New("mor not found in cache")

// Record is a cached, resolved managed object.
type Record struct {
	Ref      vsphere.ObjectRef
	Category vsphere.Category
	// Hostname is empty when metrics are reported without a host.
	Hostname string
	Tags     []string
	// ExcludedTags are tags kept off the host and attached to each metric.
	ExcludedTags []string
	// Counters are the resolved historical counters. Nil means not resolved
	// yet; a historical record is query-eligible only once resolved.
	Counters []vsphere.MetricID
	// Interval is the polling interval of realtime records, in seconds.
	Interval int32
	// Created is stamped on first insertion and never changes afterwards.
	Created time.Time
}

// Name is the cache key of the record.
func (r Record) Name() string {
	return r.Ref.String()
}

// Resolved reports whether the counters of a historical record are known.
// Realtime records are always resolved.
func (r Record) Resolved() bool {
	return r.Category != vsphere.CategoryHistorical || r.Counters != nil
}

// HistoricalCount is the number of historical counters the record adds to a
// query. Realtime records count zero.
func (r Record) HistoricalCount() int {
	if r.Category != vsphere.CategoryHistorical {
		return 0
	}
	return len(r.Counters)
}

func (r Record) clone() Record {
	r.Tags = slices.Clone(r.Tags)
	r.ExcludedTags = slices.Clone(r.ExcludedTags)
	if r.Counters != nil {
		r.Counters = slices.Clone(r.Counters)
	}
	return r
}

// Option configures a Cache.
type Option func(*Cache)

// WithQuotaExceededHandler registers fn to be called for every record that
// Batches leaves out because it alone exceeds the historical quota.
func WithQuotaExceededHandler(fn func(rec Record, maxHistorical int)) Option {
	return func(c *Cache) {
		c.onQuotaExceeded = fn
	}
}

// Cache maps record names to records under one coarse lock.
type Cache struct {
	mu      sync.RWMutex
	records map[string]*Record

	clock           clock.PassiveClock
	logger          logr.Logger
	onQuotaExceeded func(Record, int)
}

// New returns an empty Cache stamping creation times from clk.
func New(clk clock.PassiveClock, logger logr.Logger, opts ...Option) *Cache {
	c := &Cache{
		records: make(map[string]*Record),
		clock:   clk,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set inserts or overwrites the record stored under name.
//
// Created is stamped only when name is not cached yet; re-inserting a cached
// object keeps its original age. A re-insert carrying unresolved counters
// keeps the counters already resolved for that name.
func (c *Cache) Set(name string, rec Record) {
	rec = rec.clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.records[name]; ok {
		rec.Created = existing.Created
		if rec.Counters == nil {
			rec.Counters = existing.Counters
		}
	} else {
		rec.Created = c.clock.Now()
	}
	c.records[name] = &rec
}

// Get returns a copy of the record stored under name.
func (c *Cache) Get(name string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[name]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// SetCounters replaces the resolved counters of name.
func (c *Cache) SetCounters(name string, counters []vsphere.MetricID) error {
	if counters == nil {
		counters = []vsphere.MetricID{}
	}
	counters = slices.Clone(counters)

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[name]
	if !ok {
		return ErrNotFound
	}
	rec.Counters = counters
	return nil
}

// Remove deletes name. It reports whether the record was cached.
func (c *Cache) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.records[name]
	delete(c.records, name)
	return ok
}

// Purge removes every record older than ttl and returns how many were
// removed. The whole pass runs in a single critical section.
func (c *Cache) Purge(ttl time.Duration) int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for name, rec := range c.records {
		if now.Sub(rec.Created) > ttl {
			delete(c.records, name)
			removed++
		}
	}
	return removed
}

// Len is the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Names returns the cached names in sorted order.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.records))
}

// CountByCategory returns the number of cached records per category.
func (c *Cache) CountByCategory() map[vsphere.Category]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[vsphere.Category]int, len(vsphere.Categories))
	for _, rec := range c.records {
		out[rec.Category]++
	}
	return out
}

// snapshot copies every record, ordered by name.
func (c *Cache) snapshot() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Record, 0, len(c.records))
	for _, name := range slices.Sorted(maps.Keys(c.records)) {
		out = append(out, c.records[name].clone())
	}
	return out
}
