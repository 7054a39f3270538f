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

package metadata

import (
	"fmt"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

var shortRollup = map[string]string{
	"average":   "avg",
	"summation": "sum",
	"maximum":   "max",
	"minimum":   "min",
	"latest":    "latest",
	"none":      "raw",
}

// MetricName formats the metric name of a counter. The compatibility scheme
// drops the rollup suffix.
func MetricName(info vsphere.CounterInfo, compat bool) string {
	if compat {
		return fmt.Sprintf("%s.%s", info.Group, info.Name)
	}
	rollup, ok := shortRollup[info.Rollup]
	if !ok {
		rollup = info.Rollup
	}
	return fmt.Sprintf("%s.%s.%s", info.Group, info.Name, rollup)
}
