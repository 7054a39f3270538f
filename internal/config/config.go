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

// Package config loads the collector configuration file: a set of vCenter
// instances and the defaults they inherit.
package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/vsphere-inventory-collector/internal/logging"
	"github.com/llm-d/vsphere-inventory-collector/internal/metadata"
)

// Built-in defaults applied when neither the instance nor the defaults
// section sets a value.
const (
	DefaultWorkerPoolSize          = 10
	DefaultRefreshMorsInterval     = 300 * time.Second
	DefaultRefreshMetadataInterval = 600 * time.Second
	DefaultCollectionInterval      = 20 * time.Second
	DefaultResolveBatchSize        = 50
	DefaultBatchCollectorSize      = 500
)

// ResourceFilter restricts one resource type by name.
type ResourceFilter struct {
	// Resource is one of vm, host, datastore, datacenter or cluster.
	Resource string `yaml:"resource"`
	Include  string `yaml:"include,omitempty"`
	Exclude  string `yaml:"exclude,omitempty"`
}

// InstanceConfig is the configuration of one vCenter instance as written in
// the file. Unset fields inherit from the defaults section.
type InstanceConfig struct {
	Name      string `yaml:"name,omitempty"`
	Host      string `yaml:"host,omitempty"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	SSLVerify *bool  `yaml:"ssl_verify,omitempty"`

	WorkerPoolSize int `yaml:"worker_pool_size,omitempty"`

	// Intervals accept Go durations ("5m") or a number of seconds.
	RefreshMorsInterval     string `yaml:"refresh_mors_interval,omitempty"`
	RefreshMetadataInterval string `yaml:"refresh_metrics_metadata_interval,omitempty"`
	CleanMorsInterval       string `yaml:"clean_mors_interval,omitempty"`
	CollectionInterval      string `yaml:"collection_interval,omitempty"`
	HistoricalWindow        string `yaml:"historical_window,omitempty"`

	ResolveBatchSize     *int  `yaml:"resolve_batch_size,omitempty"`
	BatchCollectorSize   *int  `yaml:"batch_collector_size,omitempty"`
	MaxHistoricalMetrics *int  `yaml:"max_historical_metrics,omitempty"`
	PropertyPageSize     int32 `yaml:"property_page_size,omitempty"`

	MetricSelection string `yaml:"metric_selection,omitempty"`
	CollectionLevel int32  `yaml:"collection_level,omitempty"`

	ResourceFilters     []ResourceFilter `yaml:"resource_filters,omitempty"`
	IncludeOnlyMarked   *bool            `yaml:"include_only_marked,omitempty"`
	MonitoredFieldValue string           `yaml:"monitored_field_value,omitempty"`
	UseGuestHostname    *bool            `yaml:"use_guest_hostname,omitempty"`
	ExcludedHostTags    []string         `yaml:"excluded_host_tags,omitempty"`
	Tags                []string         `yaml:"tags,omitempty"`
}

// File is the top level of the configuration file.
type File struct {
	Defaults  InstanceConfig   `yaml:"defaults,omitempty"`
	Instances []InstanceConfig `yaml:"instances"`
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a configuration file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ctrl.Log.V(logging.DEBUG).Info("Parsed collector config", "instances", len(f.Instances))
	return &f, nil
}

// Merged returns every instance with the defaults section applied. Non-zero
// instance fields win over the defaults.
func (f *File) Merged() []InstanceConfig {
	out := make([]InstanceConfig, 0, len(f.Instances))
	for _, inst := range f.Instances {
		out = append(out, inst.over(f.Defaults))
	}
	return out
}

func (c InstanceConfig) over(d InstanceConfig) InstanceConfig {
	merged := d
	// Defaults never name an instance.
	merged.Name = c.Name
	if c.Host != "" {
		merged.Host = c.Host
	}
	if c.Username != "" {
		merged.Username = c.Username
	}
	if c.Password != "" {
		merged.Password = c.Password
	}
	if c.SSLVerify != nil {
		merged.SSLVerify = c.SSLVerify
	}
	if c.WorkerPoolSize != 0 {
		merged.WorkerPoolSize = c.WorkerPoolSize
	}
	if c.RefreshMorsInterval != "" {
		merged.RefreshMorsInterval = c.RefreshMorsInterval
	}
	if c.RefreshMetadataInterval != "" {
		merged.RefreshMetadataInterval = c.RefreshMetadataInterval
	}
	if c.CleanMorsInterval != "" {
		merged.CleanMorsInterval = c.CleanMorsInterval
	}
	if c.CollectionInterval != "" {
		merged.CollectionInterval = c.CollectionInterval
	}
	if c.HistoricalWindow != "" {
		merged.HistoricalWindow = c.HistoricalWindow
	}
	if c.ResolveBatchSize != nil {
		merged.ResolveBatchSize = c.ResolveBatchSize
	}
	if c.BatchCollectorSize != nil {
		merged.BatchCollectorSize = c.BatchCollectorSize
	}
	if c.MaxHistoricalMetrics != nil {
		merged.MaxHistoricalMetrics = c.MaxHistoricalMetrics
	}
	if c.PropertyPageSize != 0 {
		merged.PropertyPageSize = c.PropertyPageSize
	}
	if c.MetricSelection != "" {
		merged.MetricSelection = c.MetricSelection
	}
	if c.CollectionLevel != 0 {
		merged.CollectionLevel = c.CollectionLevel
	}
	if len(c.ResourceFilters) > 0 {
		merged.ResourceFilters = c.ResourceFilters
	}
	if c.IncludeOnlyMarked != nil {
		merged.IncludeOnlyMarked = c.IncludeOnlyMarked
	}
	if c.MonitoredFieldValue != "" {
		merged.MonitoredFieldValue = c.MonitoredFieldValue
	}
	if c.UseGuestHostname != nil {
		merged.UseGuestHostname = c.UseGuestHostname
	}
	if len(c.ExcludedHostTags) > 0 {
		merged.ExcludedHostTags = c.ExcludedHostTags
	}
	if len(c.Tags) > 0 {
		merged.Tags = append(append([]string{}, d.Tags...), c.Tags...)
	}
	return merged
}

// InstanceName returns the configured name, falling back to the host.
func (c InstanceConfig) InstanceName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Host
}

// Validate reports every problem of a merged instance at once.
func (c InstanceConfig) Validate() error {
	var errs error
	if c.Host == "" {
		errs = multierr.Append(errs, fmt.Errorf("host is required"))
	}
	if c.Username == "" {
		errs = multierr.Append(errs, fmt.Errorf("username is required"))
	}
	if c.WorkerPoolSize < 0 {
		errs = multierr.Append(errs, fmt.Errorf("worker_pool_size must be positive, got %d", c.WorkerPoolSize))
	}
	if c.PropertyPageSize < 0 {
		errs = multierr.Append(errs, fmt.Errorf("property_page_size must not be negative, got %d", c.PropertyPageSize))
	}
	if c.MaxHistoricalMetrics != nil && *c.MaxHistoricalMetrics < 0 {
		errs = multierr.Append(errs, fmt.Errorf("max_historical_metrics must not be negative, got %d", *c.MaxHistoricalMetrics))
	}
	for _, iv := range []struct{ key, value string }{
		{"refresh_mors_interval", c.RefreshMorsInterval},
		{"refresh_metrics_metadata_interval", c.RefreshMetadataInterval},
		{"clean_mors_interval", c.CleanMorsInterval},
		{"collection_interval", c.CollectionInterval},
		{"historical_window", c.HistoricalWindow},
	} {
		if _, err := ParseInterval(iv.value); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", iv.key, err))
		}
	}
	if _, err := metadata.NewSelector(metadata.SelectionMode(c.MetricSelection), c.CollectionLevel); err != nil {
		errs = multierr.Append(errs, err)
	}
	seen := make(map[string]bool)
	for _, f := range c.ResourceFilters {
		if _, ok := resourceKinds[f.Resource]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("unknown filter resource %q", f.Resource))
			continue
		}
		if seen[f.Resource] {
			errs = multierr.Append(errs, fmt.Errorf("duplicate filter for resource %q", f.Resource))
		}
		seen[f.Resource] = true
		for _, pattern := range []string{f.Include, f.Exclude} {
			if pattern == "" {
				continue
			}
			if _, err := regexp.Compile(pattern); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("invalid %s filter %q: %w", f.Resource, pattern, err))
			}
		}
	}
	return errs
}

// ParseInterval parses a Go duration or a plain number of seconds. Empty
// yields zero.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		secs, convErr := strconv.Atoi(s)
		if convErr != nil {
			return 0, fmt.Errorf("invalid interval %q", s)
		}
		d = time.Duration(secs) * time.Second
	}
	if d < 0 {
		return 0, fmt.Errorf("interval %q must not be negative", s)
	}
	return d, nil
}
