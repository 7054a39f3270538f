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

package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/llm-d/vsphere-inventory-collector/internal/collector"
	"github.com/llm-d/vsphere-inventory-collector/internal/morcache"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
	"github.com/llm-d/vsphere-inventory-collector/internal/workerpool"
)

// Self metric names.
const (
	CycleDurationSeconds = "vsphere_collector_cycle_duration_seconds"
	JobsTotal            = "vsphere_collector_jobs_total"
	CachedObjects        = "vsphere_collector_cached_objects"
	QueuedObjects        = "vsphere_collector_queued_objects"
	QuotaExclusionsTotal = "vsphere_collector_quota_exclusions_total"
)

// Values of the result label.
const (
	ResultOK          = "ok"
	ResultUnreachable = "unreachable"
	ResultError       = "error"
	ResultCompleted   = "completed"
	ResultFailed      = "failed"
	ResultDropped     = "dropped"
)

type selfMetrics struct {
	cycleDuration   *prometheus.HistogramVec
	jobs            *prometheus.CounterVec
	cachedObjects   *prometheus.GaugeVec
	queuedObjects   *prometheus.GaugeVec
	quotaExclusions *prometheus.CounterVec
}

func newSelfMetrics(registry prometheus.Registerer) (*selfMetrics, error) {
	m := &selfMetrics{
		cycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    CycleDurationSeconds,
				Help:    "Duration of collection cycles",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{LabelInstance, LabelResult},
		),
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: JobsTotal,
				Help: "Worker jobs by phase and outcome",
			},
			[]string{LabelInstance, LabelPhase, LabelResult},
		),
		cachedObjects: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: CachedObjects,
				Help: "Objects currently polled, by category",
			},
			[]string{LabelInstance, LabelCategory},
		),
		queuedObjects: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: QueuedObjects,
				Help: "Discovered objects waiting for counter resolution",
			},
			[]string{LabelInstance},
		),
		quotaExclusions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: QuotaExclusionsTotal,
				Help: "Historical objects skipped because they expose more counters than a query allows",
			},
			[]string{LabelInstance},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		CycleDurationSeconds: m.cycleDuration,
		JobsTotal:            m.jobs,
		CachedObjects:        m.cachedObjects,
		QueuedObjects:        m.queuedObjects,
		QuotaExclusionsTotal: m.quotaExclusions,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register %s metric: %w", name, err)
		}
	}
	return m, nil
}

func (s *InstanceSink) CycleCompleted(duration time.Duration, err error) {
	result := ResultOK
	var connErr *collector.ConnectivityError
	switch {
	case errors.As(err, &connErr):
		result = ResultUnreachable
	case err != nil:
		result = ResultError
	}
	s.self.cycleDuration.WithLabelValues(s.name, result).Observe(duration.Seconds())
}

func (s *InstanceSink) PhaseCompleted(phase collector.Phase, stats workerpool.Stats) {
	for result, n := range map[string]int{
		ResultCompleted: stats.Completed,
		ResultFailed:    stats.Failed,
		ResultDropped:   stats.Dropped,
	} {
		if n > 0 {
			s.self.jobs.WithLabelValues(s.name, string(phase), result).Add(float64(n))
		}
	}
}

func (s *InstanceSink) ObjectsCached(counts map[vsphere.Category]int) {
	for _, category := range vsphere.Categories {
		s.self.cachedObjects.WithLabelValues(s.name, string(category)).Set(float64(counts[category]))
	}
}

func (s *InstanceSink) ObjectsQueued(n int) {
	s.self.queuedObjects.WithLabelValues(s.name).Set(float64(n))
}

func (s *InstanceSink) QuotaExceeded(morcache.Record, int) {
	s.self.quotaExclusions.WithLabelValues(s.name).Inc()
}
