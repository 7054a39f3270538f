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

package vsphere

import (
	"context"
	"time"
)

// Property paths requested during an inventory walk.
const (
	PropName        = "name"
	PropParent      = "parent"
	PropCustomValue = "customValue"
	PropPowerState  = "runtime.powerState"
	PropRuntimeHost = "runtime.host"
	PropGuestHost   = "guest.hostName"
)

// PoweredOn is the only VM power state that is collected.
const PoweredOn = "poweredOn"

// CustomValue is a custom attribute set on a managed object.
type CustomValue struct {
	Key   int32
	Value string
}

// ObjectContent carries the requested properties of one object. Property
// values are converted to domain types: string for names, power state and
// guest hostname, ObjectRef for parent and runtime.host, []CustomValue for
// customValue.
type ObjectContent struct {
	Ref        ObjectRef
	Properties map[string]any
	// Missing lists the requested properties the server could not return.
	Missing []string
}

// PropertyRequest lists, per kind, the property paths to fetch for every
// object under the root folder.
type PropertyRequest struct {
	Properties map[Kind][]string
	// PageSize caps the objects per page. Zero lets the server decide.
	PageSize int32
}

// PropertyPage is one page of a paginated property retrieval. An empty Token
// means the retrieval is complete.
type PropertyPage struct {
	Objects []ObjectContent
	Token   string
}

// Client is the session-scoped remote inventory/metrics API.
type Client interface {
	// CurrentTime is the liveness probe of the session.
	CurrentTime(ctx context.Context) (time.Time, error)

	// RetrieveProperties starts a paginated bulk fetch.
	RetrieveProperties(ctx context.Context, req PropertyRequest) (*PropertyPage, error)
	// ContinueRetrieveProperties fetches the page identified by token.
	ContinueRetrieveProperties(ctx context.Context, token string) (*PropertyPage, error)

	// PerfCounters returns the full counter catalog.
	PerfCounters(ctx context.Context) ([]CounterInfo, error)
	// PerfCountersByLevel returns the counters the server collects at level.
	PerfCountersByLevel(ctx context.Context, level int32) ([]CounterInfo, error)
	// AvailableCounters lists the counters an entity exposes at intervalID.
	AvailableCounters(ctx context.Context, ref ObjectRef, intervalID int32) ([]MetricID, error)
	// QueryPerf runs one batched counter-value query.
	QueryPerf(ctx context.Context, specs []QuerySpec) ([]EntityMetrics, error)
	// MaxQueryMetrics returns the server cap on historical counters per query.
	// A value <= 0 means the server sets no cap.
	MaxQueryMetrics(ctx context.Context) (int, error)
}

// Connector supplies an authenticated Client. Implementations may reuse a
// session across calls.
type Connector interface {
	Connect(ctx context.Context) (Client, error)
	Close(ctx context.Context) error
}
