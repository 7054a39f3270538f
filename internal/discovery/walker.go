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

package discovery

import (
	"context"
	"fmt"
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/vsphere-inventory-collector/internal/logging"
	"github.com/llm-d/vsphere-inventory-collector/internal/objectsqueue"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// DefaultMonitoredValue is the custom attribute value marking a virtual
// machine as monitored.
const DefaultMonitoredValue = "VSphereCollectorMonitored"

// Config drives one instance's inventory walks.
type Config struct {
	Filters Filters
	// IncludeOnlyMarked requires virtual machines to carry a custom attribute
	// whose value is MonitoredValue.
	IncludeOnlyMarked bool
	MonitoredValue    string
	// UseGuestHostname reports virtual machines under their guest OS hostname
	// when the guest tools provide one.
	UseGuestHostname bool
	// ExcludedHostTags lists tag keys that stay on the metrics of host-bearing
	// objects instead of becoming host tags.
	ExcludedHostTags []string
	// InstanceTags are appended to every object's own tags.
	InstanceTags []string
	// PageSize caps the objects per retrieved page. Zero lets the server decide.
	PageSize int32
}

// Walker discovers the inventory of one instance.
type Walker struct {
	cfg      Config
	excluded sets.Set[string]
}

// NewWalker returns a Walker for cfg.
func NewWalker(cfg Config) *Walker {
	if cfg.MonitoredValue == "" {
		cfg.MonitoredValue = DefaultMonitoredValue
	}
	return &Walker{cfg: cfg, excluded: sets.New(cfg.ExcludedHostTags...)}
}

// PropertyRequest lists the properties fetched per kind.
func (w *Walker) PropertyRequest() vsphere.PropertyRequest {
	base := []string{vsphere.PropName, vsphere.PropParent, vsphere.PropCustomValue}
	props := make(map[vsphere.Kind][]string, len(vsphere.AllKinds))
	for _, kind := range vsphere.AllKinds {
		props[kind] = slices.Clone(base)
	}
	vm := append(props[vsphere.KindVirtualMachine], vsphere.PropPowerState, vsphere.PropRuntimeHost)
	if w.cfg.UseGuestHostname {
		vm = append(vm, vsphere.PropGuestHost)
	}
	props[vsphere.KindVirtualMachine] = vm
	return vsphere.PropertyRequest{Properties: props, PageSize: w.cfg.PageSize}
}

// Discover runs one inventory walk and returns the kept objects per category.
// Only a failed retrieval is an error.
func (w *Walker) Discover(ctx context.Context, client vsphere.Client) (map[vsphere.Category][]objectsqueue.Entry, error) {
	logger := ctrl.LoggerFrom(ctx)
	capped := logging.NewCapped(logger, logging.DefaultCycleLogLimit)

	objs, err := w.fetch(ctx, client, capped)
	if err != nil {
		return nil, err
	}
	if n := capped.Suppressed(); n > 0 {
		logger.Info("Suppressed missing property messages", "count", n)
	}

	resolver := newTagResolver(objs)
	excludedHosts := sets.New[vsphere.ObjectRef]()
	for _, obj := range objs {
		if obj.Ref.Kind == vsphere.KindHost && !w.cfg.Filters.match(obj.Ref.Kind, stringProp(obj, vsphere.PropName)) {
			excludedHosts.Insert(obj.Ref)
		}
	}

	out := map[vsphere.Category][]objectsqueue.Entry{}
	var skipped int
	for _, obj := range objs {
		category, ok := vsphere.CategoryOf(obj.Ref.Kind)
		if !ok {
			continue
		}
		if !w.keep(obj, excludedHosts) {
			skipped++
			continue
		}
		out[category] = append(out[category], w.entry(obj, category, resolver))
	}

	logger.V(logging.DEBUG).Info("Inventory walk complete",
		"objects", len(objs),
		"realtime", len(out[vsphere.CategoryRealtime]),
		"historical", len(out[vsphere.CategoryHistorical]),
		"excluded", skipped)
	return out, nil
}

func (w *Walker) fetch(ctx context.Context, client vsphere.Client, capped *logging.Capped) ([]vsphere.ObjectContent, error) {
	page, err := client.RetrieveProperties(ctx, w.PropertyRequest())
	if err != nil {
		return nil, fmt.Errorf("retrieving inventory: %w", err)
	}
	var objs []vsphere.ObjectContent
	for {
		for _, obj := range page.Objects {
			for _, prop := range obj.Missing {
				capped.Info("Unable to retrieve property for object, treating it as absent",
					"mor", obj.Ref.String(),
					"property", prop)
			}
		}
		objs = append(objs, page.Objects...)
		if page.Token == "" {
			return objs, nil
		}
		if page, err = client.ContinueRetrieveProperties(ctx, page.Token); err != nil {
			return nil, fmt.Errorf("retrieving inventory page: %w", err)
		}
	}
}

func (w *Walker) keep(obj vsphere.ObjectContent, excludedHosts sets.Set[vsphere.ObjectRef]) bool {
	kind := obj.Ref.Kind
	if !w.cfg.Filters.match(kind, stringProp(obj, vsphere.PropName)) {
		return false
	}
	if kind != vsphere.KindVirtualMachine {
		return true
	}
	if stringProp(obj, vsphere.PropPowerState) != vsphere.PoweredOn {
		return false
	}
	if host, ok := refProp(obj, vsphere.PropRuntimeHost); ok && excludedHosts.Has(host) {
		return false
	}
	return !w.cfg.IncludeOnlyMarked || w.marked(obj)
}

func (w *Walker) marked(obj vsphere.ObjectContent) bool {
	values, _ := obj.Properties[vsphere.PropCustomValue].([]vsphere.CustomValue)
	return slices.ContainsFunc(values, func(cv vsphere.CustomValue) bool {
		return cv.Value == w.cfg.MonitoredValue
	})
}

func (w *Walker) entry(obj vsphere.ObjectContent, category vsphere.Category, resolver *tagResolver) objectsqueue.Entry {
	tags := resolver.ownTags(obj)
	tags = append(tags, w.cfg.InstanceTags...)
	tags = append(tags, resolver.ancestorTags(obj)...)

	e := objectsqueue.Entry{
		Ref:      obj.Ref,
		Category: category,
		Hostname: w.hostname(obj),
	}
	if e.Hostname == "" {
		e.Tags = tags
		return e
	}
	e.Tags, e.ExcludedTags = splitExcluded(tags, w.excluded)
	return e
}

// hostname is the name metrics of obj are reported under. Only virtual
// machines and hosts have one.
func (w *Walker) hostname(obj vsphere.ObjectContent) string {
	switch obj.Ref.Kind {
	case vsphere.KindVirtualMachine:
		if w.cfg.UseGuestHostname {
			if guest := stringProp(obj, vsphere.PropGuestHost); guest != "" {
				return guest
			}
		}
		return stringProp(obj, vsphere.PropName)
	case vsphere.KindHost:
		return stringProp(obj, vsphere.PropName)
	default:
		return ""
	}
}
