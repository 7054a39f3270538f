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

// Package metrics exposes the collected vSphere values and the collector's own
// health on a Prometheus registry.
package metrics

import (
	"maps"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/llm-d/vsphere-inventory-collector/internal/collector"
)

// Names of the series built from service checks and host tags.
const (
	CanConnect = "vsphere_can_connect"
	HostTags   = "vsphere_host_tags"
)

type series struct {
	name   string
	help   string
	labels map[string]string
	value  float64
}

// Emitter is a prometheus.Collector publishing the values recorded by its
// InstanceSinks, plus the self metrics of every instance.
type Emitter struct {
	mu        sync.RWMutex
	instances map[string]*InstanceSink

	self *selfMetrics
}

var _ prometheus.Collector = (*Emitter)(nil)

// NewEmitter creates an Emitter and registers it with registry.
func NewEmitter(registry prometheus.Registerer) (*Emitter, error) {
	self, err := newSelfMetrics(registry)
	if err != nil {
		return nil, err
	}
	e := &Emitter{instances: map[string]*InstanceSink{}, self: self}
	if err := registry.Register(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Instance returns the sink of the named instance, creating it on first use.
func (e *Emitter) Instance(name string) *InstanceSink {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.instances[name]; ok {
		return s
	}
	s := &InstanceSink{
		name:    name,
		self:    e.self,
		pending: map[string]series{},
	}
	e.instances[name] = s
	return s
}

// Describe sends nothing: the series depend on the discovered inventory, so
// the Emitter is an unchecked collector.
func (e *Emitter) Describe(chan<- *prometheus.Desc) {}

func (e *Emitter) Collect(ch chan<- prometheus.Metric) {
	e.mu.RLock()
	sinks := slices.Collect(maps.Values(e.instances))
	e.mu.RUnlock()

	for _, s := range sinks {
		for _, ser := range s.snapshot() {
			names := slices.Sorted(maps.Keys(ser.labels))
			values := make([]string, len(names))
			for i, n := range names {
				values[i] = ser.labels[n]
			}
			desc := prometheus.NewDesc(ser.name, ser.help, names, nil)
			m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, ser.value, values...)
			if err != nil {
				m = prometheus.NewInvalidMetric(desc, err)
			}
			ch <- m
		}
	}
}

// InstanceSink implements collector.Sink and collector.Observer for one
// instance. Recorded values are only exposed after Flush.
type InstanceSink struct {
	name string
	self *selfMetrics

	mu        sync.Mutex
	pending   map[string]series
	published []series
}

var (
	_ collector.Sink     = (*InstanceSink)(nil)
	_ collector.Observer = (*InstanceSink)(nil)
)

func (s *InstanceSink) base() map[string]string {
	return map[string]string{LabelInstance: s.name}
}

func (s *InstanceSink) record(ser series) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[ser.name+"{"+labelSetKey(ser.labels)+"}"] = ser
}

func (s *InstanceSink) Gauge(name string, value float64, hostname string, tags []string) {
	base := s.base()
	if hostname != "" {
		base[LabelHostname] = hostname
	}
	s.record(series{
		name:   MetricName(name),
		help:   "vSphere performance counter " + name + ".",
		labels: tagsToLabels(base, tags),
		value:  value,
	})
}

func (s *InstanceSink) HostTags(hostname string, tags []string) {
	base := s.base()
	base[LabelHostname] = hostname
	s.record(series{
		name:   HostTags,
		help:   "Tags attached to a vSphere host, as labels. Always 1.",
		labels: tagsToLabels(base, tags),
		value:  1,
	})
}

func (s *InstanceSink) ServiceCheck(name string, status collector.ServiceCheckStatus, tags []string, _ string) {
	value := 0.0
	if status == collector.StatusOK {
		value = 1
	}
	s.record(series{
		name:   MetricName(name),
		help:   "Whether the collector could open a session on the vCenter (1) or not (0).",
		labels: tagsToLabels(s.base(), tags),
		value:  value,
	})
}

// Flush replaces the exposed series with those recorded since the last Flush.
func (s *InstanceSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = slices.Collect(maps.Values(s.pending))
	s.pending = make(map[string]series, len(s.pending))
}

func (s *InstanceSink) snapshot() []series {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published
}
