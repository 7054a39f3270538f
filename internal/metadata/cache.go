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

// Package metadata caches the performance counter catalog: which counters an
// instance queries, and the metric name and unit of each counter id.
package metadata

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/clock"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// CounterMetadata is the human readable description of a counter id.
type CounterMetadata struct {
	Name string
	Unit string
}

// Reader provides read-only access to the metadata cache.
type Reader interface {
	// Lookup returns the metadata of id. Absence is a normal condition.
	Lookup(id int32) (CounterMetadata, bool)
	// WantedCounterIDs returns the counter ids selected at the last refresh.
	WantedCounterIDs() []int32
	// WantedSet returns the selected ids as a set.
	WantedSet() sets.Set[int32]
}

// Cache holds the id→metadata map and the wanted counter list of one instance.
type Cache struct {
	mu        sync.RWMutex
	byID      map[int32]CounterMetadata
	wanted    []int32
	refreshed time.Time

	selector Selector
	clock    clock.PassiveClock
}

var _ Reader = (*Cache)(nil)

// New returns an empty Cache that selects counters with selector.
func New(selector Selector, clk clock.PassiveClock) *Cache {
	return &Cache{
		byID:     map[int32]CounterMetadata{},
		selector: selector,
		clock:    clk,
	}
}

// Refresh fetches the counter catalog and replaces both the metadata map and
// the wanted list. Nothing from the previous catalog survives; on error the
// cache is left untouched.
func (c *Cache) Refresh(ctx context.Context, client vsphere.Client) error {
	catalog, err := client.PerfCounters(ctx)
	if err != nil {
		return fmt.Errorf("fetching counter catalog: %w", err)
	}
	selected, err := c.selector.Select(ctx, client, catalog)
	if err != nil {
		return err
	}

	compat := c.selector.Compatibility()
	byID := make(map[int32]CounterMetadata, len(selected))
	for _, info := range selected {
		byID[info.Key] = CounterMetadata{
			Name: MetricName(info, compat),
			Unit: info.Unit,
		}
	}
	wanted := make([]int32, 0, len(byID))
	for id := range byID {
		wanted = append(wanted, id)
	}
	slices.Sort(wanted)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = byID
	c.wanted = wanted
	c.refreshed = c.clock.Now()
	return nil
}

func (c *Cache) Lookup(id int32) (CounterMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.byID[id]
	return meta, ok
}

func (c *Cache) WantedCounterIDs() []int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.wanted)
}

func (c *Cache) WantedSet() sets.Set[int32] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sets.New(c.wanted...)
}

// Len is the number of known counters.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// LastRefresh returns when Refresh last succeeded, or the zero time.
func (c *Cache) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed
}

// Stale reports whether the cache was never refreshed or its last refresh is
// at least interval old.
func (c *Cache) Stale(interval time.Duration) bool {
	last := c.LastRefresh()
	return last.IsZero() || c.clock.Since(last) >= interval
}
