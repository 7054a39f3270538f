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

package morcache

import (
	"iter"
	"math"
)

// Batches yields the cached records grouped for batched counter queries.
//
// Each batch holds at most batchSize records (no cap when batchSize <= 0) and
// at most maxHistorical historical counters in aggregate (no cap when
// maxHistorical <= 0). Realtime records and historical records without
// counters are added unconditionally. A historical record whose own counter
// count reaches maxHistorical can never fit and is left out with a warning.
// When a historical record would push the running total over the quota, the
// current batch is yielded early and the record starts a new one.
//
// Records are read from a snapshot taken when iteration starts, so a
// concurrent Purge is observed either entirely or not at all.
func (c *Cache) Batches(batchSize, maxHistorical int) iter.Seq[[]Record] {
	if maxHistorical <= 0 {
		maxHistorical = math.MaxInt
	}
	return func(yield func([]Record) bool) {
		var (
			batch []Record
			total int
		)
		for _, rec := range c.snapshot() {
			if n := rec.HistoricalCount(); n > 0 {
				if n >= maxHistorical {
					c.logger.Info("Warning: object has more historical counters than the per-query limit, skipping it",
						"mor", rec.Name(),
						"counters", n,
						"maxHistoricalMetrics", maxHistorical)
					if c.onQuotaExceeded != nil {
						c.onQuotaExceeded(rec, maxHistorical)
					}
					continue
				}
				if total+n > maxHistorical {
					if len(batch) > 0 && !yield(batch) {
						return
					}
					batch, total = nil, 0
				}
				total += n
			}

			batch = append(batch, rec)
			if batchSize > 0 && len(batch) >= batchSize {
				if !yield(batch) {
					return
				}
				batch, total = nil, 0
			}
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}
