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

package vcenter

import (
	"github.com/vmware/govmomi/vim25/types"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

func toRef(ref types.ManagedObjectReference) vsphere.ObjectRef {
	return vsphere.ObjectRef{Kind: vsphere.Kind(ref.Type), Value: ref.Value}
}

func toMoRef(ref vsphere.ObjectRef) types.ManagedObjectReference {
	return types.ManagedObjectReference{Type: string(ref.Kind), Value: ref.Value}
}

// toObjectContent converts the properties of one retrieved object to domain
// values. Properties of an unexpected type are dropped.
func toObjectContent(oc types.ObjectContent) vsphere.ObjectContent {
	out := vsphere.ObjectContent{
		Ref:        toRef(oc.Obj),
		Properties: make(map[string]any, len(oc.PropSet)),
	}
	for _, prop := range oc.PropSet {
		if v, ok := toValue(prop.Val); ok {
			out.Properties[prop.Name] = v
		}
	}
	for _, missing := range oc.MissingSet {
		out.Missing = append(out.Missing, missing.Path)
	}
	return out
}

func toValue(val types.AnyType) (any, bool) {
	switch v := val.(type) {
	case string:
		return v, true
	case types.ManagedObjectReference:
		return toRef(v), true
	case *types.ManagedObjectReference:
		if v == nil {
			return nil, false
		}
		return toRef(*v), true
	case types.VirtualMachinePowerState:
		return string(v), true
	case types.ArrayOfCustomFieldValue:
		return toCustomValues(v.CustomFieldValue), true
	case []types.BaseCustomFieldValue:
		return toCustomValues(v), true
	default:
		return nil, false
	}
}

func toCustomValues(values []types.BaseCustomFieldValue) []vsphere.CustomValue {
	out := make([]vsphere.CustomValue, 0, len(values))
	for _, base := range values {
		if sv, ok := base.(*types.CustomFieldStringValue); ok {
			out = append(out, vsphere.CustomValue{Key: sv.Key, Value: sv.Value})
		}
	}
	return out
}

func toCounterInfo(info types.PerfCounterInfo) vsphere.CounterInfo {
	out := vsphere.CounterInfo{
		Key:    info.Key,
		Rollup: string(info.RollupType),
		Level:  info.Level,
	}
	if info.GroupInfo != nil {
		out.Group = info.GroupInfo.GetElementDescription().Key
	}
	if info.NameInfo != nil {
		out.Name = info.NameInfo.GetElementDescription().Key
	}
	if info.UnitInfo != nil {
		out.Unit = info.UnitInfo.GetElementDescription().Key
	}
	return out
}

func toCounterInfos(infos []types.PerfCounterInfo) []vsphere.CounterInfo {
	out := make([]vsphere.CounterInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, toCounterInfo(info))
	}
	return out
}

func toMetricIDs(ids []types.PerfMetricId) []vsphere.MetricID {
	out := make([]vsphere.MetricID, 0, len(ids))
	for _, id := range ids {
		out = append(out, vsphere.MetricID{CounterID: id.CounterId, Instance: id.Instance})
	}
	return out
}

func toPerfQuerySpec(spec vsphere.QuerySpec) types.PerfQuerySpec {
	ids := make([]types.PerfMetricId, 0, len(spec.Metrics))
	for _, m := range spec.Metrics {
		ids = append(ids, types.PerfMetricId{CounterId: m.CounterID, Instance: m.Instance})
	}
	return types.PerfQuerySpec{
		Entity:     toMoRef(spec.Entity),
		MetricId:   ids,
		IntervalId: spec.IntervalID,
		MaxSample:  spec.MaxSample,
		StartTime:  spec.StartTime,
		Format:     string(types.PerfFormatNormal),
	}
}

func toEntityMetrics(base types.BasePerfEntityMetricBase) (vsphere.EntityMetrics, bool) {
	em, ok := base.(*types.PerfEntityMetric)
	if !ok {
		return vsphere.EntityMetrics{}, false
	}
	out := vsphere.EntityMetrics{Entity: toRef(em.Entity)}
	for _, s := range em.Value {
		series, ok := s.(*types.PerfMetricIntSeries)
		if !ok {
			continue
		}
		out.Series = append(out.Series, vsphere.MetricSeries{
			ID:     vsphere.MetricID{CounterID: series.Id.CounterId, Instance: series.Id.Instance},
			Values: series.Value,
		})
	}
	return out, true
}
