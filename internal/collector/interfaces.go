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

package collector

import (
	"context"
	"iter"
	"time"

	"github.com/llm-d/vsphere-inventory-collector/internal/morcache"
	"github.com/llm-d/vsphere-inventory-collector/internal/objectsqueue"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
	"github.com/llm-d/vsphere-inventory-collector/internal/workerpool"
)

// Discoverer produces the tagged inventory of one instance.
type Discoverer interface {
	Discover(ctx context.Context, client vsphere.Client) (map[vsphere.Category][]objectsqueue.Entry, error)
}

// Cache is the mor cache as used by a Check.
type Cache interface {
	Set(name string, rec morcache.Record)
	SetCounters(name string, counters []vsphere.MetricID) error
	Remove(name string) bool
	Purge(ttl time.Duration) int
	Batches(batchSize, maxHistorical int) iter.Seq[[]morcache.Record]
	Len() int
	CountByCategory() map[vsphere.Category]int
}

// Batcher turns a batch of cached records into query specs. now is the server
// time of the cycle.
type Batcher interface {
	Specs(batch []morcache.Record, now time.Time) []vsphere.QuerySpec
}

// Collector queries and emits the values of one batch.
type Collector interface {
	Collect(ctx context.Context, client vsphere.Client, batch []morcache.Record, now time.Time) error
}

// Sink receives the telemetry of one instance.
type Sink interface {
	// Gauge records value for name. An empty hostname means the value is not
	// attached to a host.
	Gauge(name string, value float64, hostname string, tags []string)
	// HostTags attaches tags to hostname.
	HostTags(hostname string, tags []string)
	// ServiceCheck reports a binary health status.
	ServiceCheck(name string, status ServiceCheckStatus, tags []string, message string)
	// Flush publishes what was recorded since the previous Flush. Series not
	// recorded again are dropped.
	Flush()
}

// Observer receives the self-monitoring signals of one instance.
type Observer interface {
	CycleCompleted(duration time.Duration, err error)
	PhaseCompleted(phase Phase, stats workerpool.Stats)
	ObjectsCached(counts map[vsphere.Category]int)
	ObjectsQueued(n int)
	QuotaExceeded(rec morcache.Record, maxHistorical int)
}

// NopObserver discards every signal.
type NopObserver struct{}

func (NopObserver) CycleCompleted(time.Duration, error)    {}
func (NopObserver) PhaseCompleted(Phase, workerpool.Stats) {}
func (NopObserver) ObjectsCached(map[vsphere.Category]int) {}
func (NopObserver) ObjectsQueued(int)                      {}
func (NopObserver) QuotaExceeded(morcache.Record, int)     {}
