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
	"fmt"
)

// ServiceCheckStatus is the status of a service check.
type ServiceCheckStatus int

const (
	StatusOK       ServiceCheckStatus = 0
	StatusWarning  ServiceCheckStatus = 1
	StatusCritical ServiceCheckStatus = 2
	StatusUnknown  ServiceCheckStatus = 3
)

func (s ServiceCheckStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// CanConnectCheck is the service check reporting session health.
const CanConnectCheck = "vsphere.can_connect"

// MetricPrefix prefixes every emitted counter value.
const MetricPrefix = "vsphere."

// Phase names a stage of the collection cycle.
type Phase string

const (
	PhaseConnect   Phase = "connect"
	PhaseMetadata  Phase = "metadata"
	PhaseDiscovery Phase = "discovery"
	PhaseResolve   Phase = "resolve"
	PhasePurge     Phase = "purge"
	PhaseCollect   Phase = "collect"
)

// ConnectivityError reports that the session of an instance could not be
// established or validated. The cycle that returned it did nothing else.
type ConnectivityError struct {
	Instance string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("instance %s: vCenter unreachable: %v", e.Instance, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}
