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
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/prometheus/common/model"
)

// Label names set by the emitter.
const (
	LabelInstance = "vsphere_instance"
	LabelHostname = "hostname"
	// LabelCounterInstance carries the "instance" tag, which would clash with
	// the scrape target label.
	LabelCounterInstance = "counter_instance"
	LabelCategory        = "category"
	LabelPhase           = "phase"
	LabelResult          = "result"
)

// MetricName converts a dotted counter name to a Prometheus metric name.
func MetricName(name string) string {
	return model.EscapeName(name, model.UnderscoreEscaping)
}

// tagsToLabels converts key:value tags to labels. Repeated keys keep every
// value, comma separated, in tag order. Tags without a value become "true".
func tagsToLabels(base map[string]string, tags []string) map[string]string {
	labels := maps.Clone(base)
	if labels == nil {
		labels = map[string]string{}
	}
	for _, t := range tags {
		key, value, ok := strings.Cut(t, ":")
		if !ok {
			value = "true"
		}
		key = labelName(key)
		if key == "" {
			continue
		}
		if prev, dup := labels[key]; dup {
			if _, reserved := base[key]; reserved {
				continue
			}
			value = prev + "," + value
		}
		labels[key] = value
	}
	return labels
}

func labelName(key string) string {
	if key == "instance" {
		return LabelCounterInstance
	}
	return model.EscapeName(key, model.UnderscoreEscaping)
}

// labelSetKey converts a label map to a deterministic string key.
func labelSetKey(labels map[string]string) string {
	keys := slices.Sorted(maps.Keys(labels))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, labels[k])
	}
	return strings.Join(parts, ",")
}
