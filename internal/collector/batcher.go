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
	"time"

	"github.com/llm-d/vsphere-inventory-collector/internal/metadata"
	"github.com/llm-d/vsphere-inventory-collector/internal/morcache"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// DefaultHistoricalWindow is how far back historical queries look.
const DefaultHistoricalWindow = time.Hour

// AllInstances selects every instance of a counter.
const AllInstances = "*"

// QueryBatcher builds query specs from the wanted counters of the metadata
// cache and the resolved counters of historical records.
type QueryBatcher struct {
	metadata metadata.Reader
	window   time.Duration
}

var _ Batcher = (*QueryBatcher)(nil)

// NewQueryBatcher returns a QueryBatcher. A window <= 0 uses
// DefaultHistoricalWindow.
func NewQueryBatcher(meta metadata.Reader, window time.Duration) *QueryBatcher {
	if window <= 0 {
		window = DefaultHistoricalWindow
	}
	return &QueryBatcher{metadata: meta, window: window}
}

// Specs returns one spec per query-eligible record of batch. Realtime records
// ask for the most recent sample of every wanted counter; historical records
// ask for their resolved counters over the window ending at now. Historical
// records whose counters are unresolved or empty are skipped.
func (b *QueryBatcher) Specs(batch []morcache.Record, now time.Time) []vsphere.QuerySpec {
	var realtime []vsphere.MetricID
	for _, id := range b.metadata.WantedCounterIDs() {
		realtime = append(realtime, vsphere.MetricID{CounterID: id, Instance: AllInstances})
	}
	start := now.Add(-b.window)

	specs := make([]vsphere.QuerySpec, 0, len(batch))
	for _, rec := range batch {
		switch rec.Category {
		case vsphere.CategoryRealtime:
			if len(realtime) == 0 {
				continue
			}
			interval := rec.Interval
			if interval == 0 {
				interval = vsphere.RealtimeIntervalID
			}
			specs = append(specs, vsphere.QuerySpec{
				Entity:     rec.Ref,
				Metrics:    realtime,
				IntervalID: interval,
				MaxSample:  1,
			})
		case vsphere.CategoryHistorical:
			if len(rec.Counters) == 0 {
				continue
			}
			specs = append(specs, vsphere.QuerySpec{
				Entity:    rec.Ref,
				Metrics:   rec.Counters,
				StartTime: &start,
			})
		}
	}
	return specs
}
