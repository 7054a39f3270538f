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

// Package vspheretest provides an in-memory vsphere.Client for tests.
package vspheretest

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// Client is a scriptable vsphere.Client. Exported fields may be set before use;
// call counters are safe to read after the code under test returns.
type Client struct {
	mu sync.Mutex

	Objects     []vsphere.ObjectContent
	PageSize    int
	RetrieveErr error

	Catalog    []vsphere.CounterInfo
	CatalogErr error
	// Levels maps a collection level to the counter keys collected at it.
	Levels map[int32][]int32

	Available    map[vsphere.ObjectRef][]vsphere.MetricID
	AvailableErr map[vsphere.ObjectRef]error

	Samples      map[vsphere.ObjectRef][]vsphere.MetricSeries
	QueryPerfErr error

	MaxQuery    int
	MaxQueryErr error

	Now            time.Time
	CurrentTimeErr error

	Queries        [][]vsphere.QuerySpec
	Requests       []vsphere.PropertyRequest
	AvailableCalls int
	PageCalls      int

	pages map[string][]vsphere.ObjectContent
}

var _ vsphere.Client = (*Client)(nil)

// NewClient returns a Client with a default server quota of 64.
func NewClient() *Client {
	return &Client{
		Levels:       map[int32][]int32{},
		Available:    map[vsphere.ObjectRef][]vsphere.MetricID{},
		AvailableErr: map[vsphere.ObjectRef]error{},
		Samples:      map[vsphere.ObjectRef][]vsphere.MetricSeries{},
		MaxQuery:     64,
		Now:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (c *Client) CurrentTime(_ context.Context) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Now, c.CurrentTimeErr
}

func (c *Client) RetrieveProperties(_ context.Context, req vsphere.PropertyRequest) (*vsphere.PropertyPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)
	c.PageCalls++
	if c.RetrieveErr != nil {
		return nil, c.RetrieveErr
	}

	var selected []vsphere.ObjectContent
	for _, obj := range c.Objects {
		paths, ok := req.Properties[obj.Ref.Kind]
		if !ok {
			continue
		}
		selected = append(selected, project(obj, paths))
	}
	c.pages = map[string][]vsphere.ObjectContent{}
	return c.page(selected, 0), nil
}

func (c *Client) ContinueRetrieveProperties(_ context.Context, token string) (*vsphere.PropertyPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PageCalls++
	rest, ok := c.pages[token]
	if !ok {
		return nil, fmt.Errorf("unknown continuation token %q", token)
	}
	delete(c.pages, token)
	n, _ := strconv.Atoi(token)
	return c.page(rest, n), nil
}

func (c *Client) page(objs []vsphere.ObjectContent, n int) *vsphere.PropertyPage {
	if c.PageSize <= 0 || len(objs) <= c.PageSize {
		return &vsphere.PropertyPage{Objects: objs}
	}
	token := strconv.Itoa(n + 1)
	c.pages[token] = objs[c.PageSize:]
	return &vsphere.PropertyPage{Objects: objs[:c.PageSize], Token: token}
}

// project keeps the requested properties of obj.
func project(obj vsphere.ObjectContent, paths []string) vsphere.ObjectContent {
	out := vsphere.ObjectContent{
		Ref:        obj.Ref,
		Properties: map[string]any{},
		Missing:    obj.Missing,
	}
	for _, p := range paths {
		if v, ok := obj.Properties[p]; ok {
			out.Properties[p] = v
		}
	}
	return out
}

func (c *Client) PerfCounters(_ context.Context) ([]vsphere.CounterInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CatalogErr != nil {
		return nil, c.CatalogErr
	}
	return slices.Clone(c.Catalog), nil
}

func (c *Client) PerfCountersByLevel(_ context.Context, level int32) ([]vsphere.CounterInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.Levels[level]
	var out []vsphere.CounterInfo
	for _, info := range c.Catalog {
		if slices.Contains(keys, info.Key) {
			out = append(out, info)
		}
	}
	return out, nil
}

func (c *Client) AvailableCounters(_ context.Context, ref vsphere.ObjectRef, _ int32) ([]vsphere.MetricID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AvailableCalls++
	if err := c.AvailableErr[ref]; err != nil {
		return nil, err
	}
	return slices.Clone(c.Available[ref]), nil
}

func (c *Client) QueryPerf(_ context.Context, specs []vsphere.QuerySpec) ([]vsphere.EntityMetrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queries = append(c.Queries, slices.Clone(specs))
	if c.QueryPerfErr != nil {
		return nil, c.QueryPerfErr
	}
	var out []vsphere.EntityMetrics
	for _, spec := range specs {
		em := vsphere.EntityMetrics{Entity: spec.Entity}
		for _, series := range c.Samples[spec.Entity] {
			if wanted(spec.Metrics, series.ID) {
				em.Series = append(em.Series, series)
			}
		}
		out = append(out, em)
	}
	return out, nil
}

func wanted(ids []vsphere.MetricID, id vsphere.MetricID) bool {
	for _, w := range ids {
		if w.CounterID == id.CounterID && (w.Instance == "*" || w.Instance == id.Instance) {
			return true
		}
	}
	return false
}

func (c *Client) MaxQueryMetrics(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.MaxQuery, c.MaxQueryErr
}

// QueryCount returns the number of QueryPerf calls made so far.
func (c *Client) QueryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Queries)
}

// Connector hands out Client, or fails with Err.
type Connector struct {
	Client *Client
	Err    error

	mu       sync.Mutex
	Connects int
	Closed   bool
}

var _ vsphere.Connector = (*Connector)(nil)

func (c *Connector) Connect(_ context.Context) (vsphere.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Connects++
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Client, nil
}

func (c *Connector) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}
