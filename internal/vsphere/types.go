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

// Package vsphere holds the domain model of the collector: managed object
// references, resource categories, performance counter descriptions and the
// contract of the remote inventory/metrics API.
package vsphere

import (
	"fmt"
	"time"
)

// Kind is the managed object type of a reference, using the vim25 type names.
type Kind string

const (
	KindVirtualMachine  Kind = "VirtualMachine"
	KindHost            Kind = "HostSystem"
	KindDatastore       Kind = "Datastore"
	KindDatacenter      Kind = "Datacenter"
	KindCluster         Kind = "ClusterComputeResource"
	KindComputeResource Kind = "ComputeResource"
	KindFolder          Kind = "Folder"
)

// AllKinds lists every kind fetched during an inventory walk, metric-bearing
// kinds first and the containers used only for tag resolution last.
var AllKinds = []Kind{
	KindVirtualMachine,
	KindHost,
	KindDatastore,
	KindDatacenter,
	KindCluster,
	KindComputeResource,
	KindFolder,
}

// Category partitions metric-bearing kinds by how their counters are queried.
type Category string

const (
	// CategoryRealtime objects (VMs, hosts) are sampled at a fixed 20s interval,
	// most recent sample only.
	CategoryRealtime Category = "realtime"
	// CategoryHistorical objects (datastores, datacenters, clusters) are queried
	// over a time window and need their available counters resolved first.
	CategoryHistorical Category = "historical"
)

// Categories lists both categories in processing order.
var Categories = []Category{CategoryRealtime, CategoryHistorical}

// RealtimeIntervalID is the sampling period, in seconds, of realtime counters.
const RealtimeIntervalID int32 = 20

// HistoricalIntervalID is the shortest historical rollup, in seconds. It is the
// interval used when asking which counters an object exposes.
const HistoricalIntervalID int32 = 300

// CategoryOf returns the category of a metric-bearing kind. Containers
// (folders, standalone compute resources) have none.
func CategoryOf(kind Kind) (Category, bool) {
	switch kind {
	case KindVirtualMachine, KindHost:
		return CategoryRealtime, true
	case KindDatastore, KindDatacenter, KindCluster:
		return CategoryHistorical, true
	default:
		return "", false
	}
}

// ObjectRef is an opaque handle to a remote inventory entity.
type ObjectRef struct {
	Kind  Kind
	Value string
}

// String returns "Kind:Value", the key used by the caches.
func (r ObjectRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.Value)
}

// IsZero reports whether r is the empty reference.
func (r ObjectRef) IsZero() bool {
	return r.Kind == "" && r.Value == ""
}

// CounterInfo describes one entry of the performance counter catalog.
type CounterInfo struct {
	Key    int32
	Group  string
	Name   string
	Unit   string
	Rollup string
	Level  int32
}

// MetricID names a counter on an object, optionally scoped to a device
// instance. Instance "*" asks for every instance, "" for the aggregate.
type MetricID struct {
	CounterID int32
	Instance  string
}

// QuerySpec is one entry of a batched counter-value query.
type QuerySpec struct {
	Entity  ObjectRef
	Metrics []MetricID
	// IntervalID is set for realtime queries only.
	IntervalID int32
	// MaxSample limits realtime queries to the most recent sample.
	MaxSample int32
	// StartTime bounds historical queries.
	StartTime *time.Time
}

// MetricSeries holds the raw samples of one counter instance.
type MetricSeries struct {
	ID     MetricID
	Values []int64
}

// EntityMetrics is the query result for one entity.
type EntityMetrics struct {
	Entity ObjectRef
	Series []MetricSeries
}
