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
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// SelectionMode picks how the wanted counters are chosen from the catalog.
type SelectionMode string

const (
	// ModeBasic selects a fixed allow-list of counters and names them with the
	// compatibility scheme (no rollup suffix).
	ModeBasic SelectionMode = "basic"
	// ModeLevel lets the server decide: every counter it collects at the
	// configured level is selected.
	ModeLevel SelectionMode = "level"
)

// Selector chooses the counters an instance queries.
type Selector interface {
	// Select returns the subset of catalog to collect.
	Select(ctx context.Context, client vsphere.Client, catalog []vsphere.CounterInfo) ([]vsphere.CounterInfo, error)
	// Compatibility reports whether metric names use the compatibility scheme.
	Compatibility() bool
}

// NewSelector is a factory that creates the Selector for mode.
func NewSelector(mode SelectionMode, level int32) (Selector, error) {
	switch mode {
	case ModeBasic, "":
		return NewBasicSelector(BasicMetrics), nil
	case ModeLevel:
		return NewLevelSelector(level)
	default:
		return nil, fmt.Errorf("unsupported metric selection mode: %q", mode)
	}
}

// BasicMetrics is the compatibility allow-list, keyed by group.name.rollup
// with short rollup names.
var BasicMetrics = []string{
	"cpu.extra.sum",
	"cpu.ready.sum",
	"cpu.usage.avg",
	"cpu.usagemhz.avg",
	"cpu.totalmhz.avg",
	"disk.commandsAborted.sum",
	"disk.deviceLatency.avg",
	"disk.deviceReadLatency.avg",
	"disk.deviceWriteLatency.avg",
	"disk.totalLatency.avg",
	"disk.capacity.latest",
	"disk.provisioned.latest",
	"disk.used.latest",
	"mem.active.avg",
	"mem.compressed.avg",
	"mem.consumed.avg",
	"mem.overhead.avg",
	"mem.usage.avg",
	"mem.vmmemctl.avg",
	"net.received.avg",
	"net.transmitted.avg",
	"net.usage.avg",
	"sys.uptime.latest",
	"vmop.numPoweron.latest",
	"vmop.numPoweroff.latest",
}

// BasicSelector keeps the catalog entries named in an allow-list.
type BasicSelector struct {
	allowed sets.Set[string]
}

// NewBasicSelector returns a BasicSelector over names.
func NewBasicSelector(names []string) *BasicSelector {
	return &BasicSelector{allowed: sets.New(names...)}
}

func (s *BasicSelector) Select(_ context.Context, _ vsphere.Client, catalog []vsphere.CounterInfo) ([]vsphere.CounterInfo, error) {
	var out []vsphere.CounterInfo
	for _, info := range catalog {
		if s.allowed.Has(MetricName(info, false)) {
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *BasicSelector) Compatibility() bool { return true }

// LevelSelector keeps the counters the server collects at Level.
type LevelSelector struct {
	Level int32
}

// NewLevelSelector validates level (1 to 4) and returns a LevelSelector.
func NewLevelSelector(level int32) (*LevelSelector, error) {
	if level < 1 || level > 4 {
		return nil, fmt.Errorf("collection level must be between 1 and 4, got %d", level)
	}
	return &LevelSelector{Level: level}, nil
}

func (s *LevelSelector) Select(ctx context.Context, client vsphere.Client, catalog []vsphere.CounterInfo) ([]vsphere.CounterInfo, error) {
	atLevel, err := client.PerfCountersByLevel(ctx, s.Level)
	if err != nil {
		return nil, fmt.Errorf("querying counters at level %d: %w", s.Level, err)
	}
	keys := sets.New[int32]()
	for _, info := range atLevel {
		keys.Insert(info.Key)
	}
	var out []vsphere.CounterInfo
	for _, info := range catalog {
		if keys.Has(info.Key) {
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *LevelSelector) Compatibility() bool { return false }
