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
	"fmt"
	"time"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/vsphere-inventory-collector/internal/logging"
	"github.com/llm-d/vsphere-inventory-collector/internal/metadata"
	"github.com/llm-d/vsphere-inventory-collector/internal/morcache"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

const percentUnit = "percent"

// ValueCollector runs the query of a batch and emits one gauge per returned
// (object, counter, instance).
type ValueCollector struct {
	batcher  Batcher
	metadata metadata.Reader
	sink     Sink
}

var _ Collector = (*ValueCollector)(nil)

// NewValueCollector returns a ValueCollector emitting to sink.
func NewValueCollector(batcher Batcher, meta metadata.Reader, sink Sink) *ValueCollector {
	return &ValueCollector{batcher: batcher, metadata: meta, sink: sink}
}

func (v *ValueCollector) Collect(ctx context.Context, client vsphere.Client, batch []morcache.Record, now time.Time) error {
	specs := v.batcher.Specs(batch, now)
	if len(specs) == 0 {
		return nil
	}
	results, err := client.QueryPerf(ctx, specs)
	if err != nil {
		return fmt.Errorf("querying %d entities: %w", len(specs), err)
	}

	logger := ctrl.LoggerFrom(ctx)
	records := make(map[vsphere.ObjectRef]morcache.Record, len(batch))
	for _, rec := range batch {
		records[rec.Ref] = rec
	}

	for _, em := range results {
		rec, ok := records[em.Entity]
		if !ok {
			logger.V(logging.DEBUG).Info("Skipping values of an entity outside the batch", "mor", em.Entity.String())
			continue
		}
		for _, series := range em.Series {
			meta, ok := v.metadata.Lookup(series.ID.CounterID)
			if !ok {
				logger.V(logging.DEBUG).Info("Skipping unknown counter",
					"mor", rec.Name(),
					"counterID", series.ID.CounterID)
				continue
			}
			value, ok := latestValue(series.Values)
			if !ok {
				continue
			}
			if meta.Unit == percentUnit {
				value /= 100
			}
			v.sink.Gauge(MetricPrefix+meta.Name, value, rec.Hostname, metricTags(rec, series.ID.Instance))
		}
		if rec.Hostname != "" && len(rec.Tags) > 0 {
			v.sink.HostTags(rec.Hostname, rec.Tags)
		}
	}
	return nil
}

// latestValue returns the most recent sample. Negative samples mean the
// server has no data.
func latestValue(values []int64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	raw := values[len(values)-1]
	if raw < 0 {
		return 0, false
	}
	return float64(raw), true
}

// metricTags are the tags sent with each value of rec. Records reported under
// a hostname carry only their excluded tags; the rest are host tags.
func metricTags(rec morcache.Record, instance string) []string {
	var tags []string
	if rec.Hostname == "" {
		tags = append(tags, rec.Tags...)
	}
	tags = append(tags, rec.ExcludedTags...)
	if instance != "" {
		tags = append(tags, "instance:"+instance)
	}
	return tags
}
