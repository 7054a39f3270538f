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

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/util/sets"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/vsphere-inventory-collector/internal/collector"
	"github.com/llm-d/vsphere-inventory-collector/internal/discovery"
	"github.com/llm-d/vsphere-inventory-collector/internal/metadata"
	"github.com/llm-d/vsphere-inventory-collector/internal/vcenter"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// TagVCenterServer is added to every object and service check of an instance.
const TagVCenterServer = "vcenter_server"

// ErrNoInstances is returned when the file configures no instance.
var ErrNoInstances = errors.New("no instances configured")

var resourceKinds = map[string]vsphere.Kind{
	"vm":         vsphere.KindVirtualMachine,
	"host":       vsphere.KindHost,
	"datastore":  vsphere.KindDatastore,
	"datacenter": vsphere.KindDatacenter,
	"cluster":    vsphere.KindCluster,
}

// Instance is a validated instance, split into what each component needs.
type Instance struct {
	Name        string
	Credentials vcenter.Credentials
	Options     collector.Options
	Discovery   discovery.Config
}

// Instances merges, validates and converts every configured instance. All
// problems are reported together.
func (f *File) Instances() ([]Instance, error) {
	if len(f.Instances) == 0 {
		return nil, ErrNoInstances
	}
	var errs error
	names := sets.New[string]()
	out := make([]Instance, 0, len(f.Instances))
	for i, c := range f.Merged() {
		name := c.InstanceName()
		if err := c.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("instance %d (%s): %w", i, name, err))
			continue
		}
		if names.Has(name) {
			errs = multierr.Append(errs, fmt.Errorf("instance %d: duplicate name %q", i, name))
			continue
		}
		names.Insert(name)
		inst, err := c.build()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("instance %d (%s): %w", i, name, err))
			continue
		}
		out = append(out, inst)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// build converts a validated instance.
func (c InstanceConfig) build() (Instance, error) {
	opts, err := c.options()
	if err != nil {
		return Instance{}, err
	}
	disc, err := c.discovery()
	if err != nil {
		return Instance{}, err
	}
	inst := Instance{
		Name: opts.Name,
		Credentials: vcenter.Credentials{
			Host:     c.Host,
			Username: os.ExpandEnv(c.Username),
			Password: os.ExpandEnv(c.Password),
			Insecure: c.SSLVerify != nil && !*c.SSLVerify,
		},
		Options:   opts,
		Discovery: disc,
	}
	ctrl.Log.Info("Configured vCenter instance", "instance", inst.Name, "host", c.Host,
		"selection", c.MetricSelection, "filters", len(disc.Filters))
	return inst, nil
}

func (c InstanceConfig) options() (collector.Options, error) {
	selector, err := metadata.NewSelector(metadata.SelectionMode(c.MetricSelection), c.CollectionLevel)
	if err != nil {
		return collector.Options{}, err
	}
	opts := collector.Options{
		Name:                 c.InstanceName(),
		WorkerPoolSize:       c.WorkerPoolSize,
		ResolveBatchSize:     intOr(c.ResolveBatchSize, DefaultResolveBatchSize),
		BatchCollectorSize:   intOr(c.BatchCollectorSize, DefaultBatchCollectorSize),
		MaxHistoricalMetrics: intOr(c.MaxHistoricalMetrics, 0),
		Selector:             selector,
		Tags:                 c.instanceTags(),
	}
	if opts.WorkerPoolSize == 0 {
		opts.WorkerPoolSize = DefaultWorkerPoolSize
	}
	if opts.RefreshMorsInterval, err = intervalOr(c.RefreshMorsInterval, DefaultRefreshMorsInterval); err != nil {
		return collector.Options{}, err
	}
	if opts.RefreshMetadataInterval, err = intervalOr(c.RefreshMetadataInterval, DefaultRefreshMetadataInterval); err != nil {
		return collector.Options{}, err
	}
	if opts.CleanMorsInterval, err = intervalOr(c.CleanMorsInterval, 2*opts.RefreshMorsInterval); err != nil {
		return collector.Options{}, err
	}
	if opts.CollectionInterval, err = intervalOr(c.CollectionInterval, DefaultCollectionInterval); err != nil {
		return collector.Options{}, err
	}
	if opts.HistoricalWindow, err = intervalOr(c.HistoricalWindow, collector.DefaultHistoricalWindow); err != nil {
		return collector.Options{}, err
	}
	return opts, nil
}

func (c InstanceConfig) discovery() (discovery.Config, error) {
	filters := make(discovery.Filters, len(c.ResourceFilters))
	for _, rf := range c.ResourceFilters {
		var f discovery.Filter
		var err error
		if rf.Include != "" {
			if f.Include, err = regexp.Compile(rf.Include); err != nil {
				return discovery.Config{}, err
			}
		}
		if rf.Exclude != "" {
			if f.Exclude, err = regexp.Compile(rf.Exclude); err != nil {
				return discovery.Config{}, err
			}
		}
		filters[resourceKinds[rf.Resource]] = f
	}
	return discovery.Config{
		Filters:           filters,
		IncludeOnlyMarked: c.IncludeOnlyMarked != nil && *c.IncludeOnlyMarked,
		MonitoredValue:    c.MonitoredFieldValue,
		UseGuestHostname:  c.UseGuestHostname != nil && *c.UseGuestHostname,
		ExcludedHostTags:  c.ExcludedHostTags,
		InstanceTags:      c.instanceTags(),
		PageSize:          c.PropertyPageSize,
	}, nil
}

// instanceTags are the static tags shared by the service check and every
// object of the instance.
func (c InstanceConfig) instanceTags() []string {
	return append([]string{TagVCenterServer + ":" + c.Host}, c.Tags...)
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func intervalOr(s string, def time.Duration) (time.Duration, error) {
	d, err := ParseInterval(s)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
