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

// Package vcenter implements the vsphere contracts on top of govmomi.
package vcenter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/performance"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// MaxQueryMetricsSetting is the vCenter advanced setting capping the counters
// of a historical query.
const MaxQueryMetricsSetting = "config.vpxd.stats.maxQueryMetrics"

// ErrNoSetting is returned when the server does not expose a setting.
var ErrNoSetting = errors.New("setting not available")

// Client is a vsphere.Client bound to one govmomi session.
type Client struct {
	vim   *vim25.Client
	perf  *performance.Manager
	views *view.Manager

	// mu guards the container view backing an in-progress retrieval.
	mu   sync.Mutex
	view *view.ContainerView
}

var _ vsphere.Client = (*Client)(nil)

// NewClient wraps an authenticated vim25 client.
func NewClient(c *vim25.Client) *Client {
	return &Client{
		vim:   c,
		perf:  performance.NewManager(c),
		views: view.NewManager(c),
	}
}

func (c *Client) CurrentTime(ctx context.Context) (time.Time, error) {
	now, err := methods.GetCurrentTime(ctx, c.vim)
	if err != nil {
		return time.Time{}, err
	}
	return *now, nil
}

// RetrieveProperties creates a container view over the root folder for the
// requested kinds and fetches its first page. The view is destroyed once the
// last page has been read or when another retrieval starts.
func (c *Client) RetrieveProperties(ctx context.Context, req vsphere.PropertyRequest) (*vsphere.PropertyPage, error) {
	kinds := make([]string, 0, len(req.Properties))
	props := make([]types.PropertySpec, 0, len(req.Properties))
	for kind, paths := range req.Properties {
		kinds = append(kinds, string(kind))
		props = append(props, types.PropertySpec{Type: string(kind), PathSet: paths})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyView(ctx)

	v, err := c.views.CreateContainerView(ctx, c.vim.ServiceContent.RootFolder, kinds, true)
	if err != nil {
		return nil, fmt.Errorf("creating container view: %w", err)
	}
	c.view = v

	res, err := methods.RetrievePropertiesEx(ctx, c.vim, &types.RetrievePropertiesEx{
		This: c.vim.ServiceContent.PropertyCollector,
		SpecSet: []types.PropertyFilterSpec{{
			ObjectSet: []types.ObjectSpec{{
				Obj:  v.Reference(),
				Skip: types.NewBool(true),
				SelectSet: []types.BaseSelectionSpec{
					&types.TraversalSpec{Type: "ContainerView", Path: "view", Skip: types.NewBool(false)},
				},
			}},
			PropSet: props,
		}},
		Options: types.RetrieveOptions{MaxObjects: req.PageSize},
	})
	if err != nil {
		c.destroyView(ctx)
		return nil, err
	}
	return c.page(ctx, res.Returnval), nil
}

func (c *Client) ContinueRetrieveProperties(ctx context.Context, token string) (*vsphere.PropertyPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := methods.ContinueRetrievePropertiesEx(ctx, c.vim, &types.ContinueRetrievePropertiesEx{
		This:  c.vim.ServiceContent.PropertyCollector,
		Token: token,
	})
	if err != nil {
		c.destroyView(ctx)
		return nil, err
	}
	return c.page(ctx, &res.Returnval), nil
}

// page converts a retrieval result. Callers hold mu.
func (c *Client) page(ctx context.Context, res *types.RetrieveResult) *vsphere.PropertyPage {
	out := &vsphere.PropertyPage{}
	if res != nil {
		out.Token = res.Token
		out.Objects = make([]vsphere.ObjectContent, 0, len(res.Objects))
		for _, oc := range res.Objects {
			out.Objects = append(out.Objects, toObjectContent(oc))
		}
	}
	if out.Token == "" {
		c.destroyView(ctx)
	}
	return out
}

func (c *Client) destroyView(ctx context.Context) {
	if c.view == nil {
		return
	}
	_ = c.view.Destroy(ctx)
	c.view = nil
}

// PerfCounters reads the counter catalog from the server on every call;
// performance.Manager.CounterInfo caches it for the life of the session.
func (c *Client) PerfCounters(ctx context.Context) ([]vsphere.CounterInfo, error) {
	var pm mo.PerformanceManager
	err := property.DefaultCollector(c.vim).RetrieveOne(ctx, *c.vim.ServiceContent.PerfManager, []string{"perfCounter"}, &pm)
	if err != nil {
		return nil, err
	}
	return toCounterInfos(pm.PerfCounter), nil
}

func (c *Client) PerfCountersByLevel(ctx context.Context, level int32) ([]vsphere.CounterInfo, error) {
	res, err := methods.QueryPerfCounterByLevel(ctx, c.vim, &types.QueryPerfCounterByLevel{
		This:  *c.vim.ServiceContent.PerfManager,
		Level: level,
	})
	if err != nil {
		return nil, err
	}
	return toCounterInfos(res.Returnval), nil
}

func (c *Client) AvailableCounters(ctx context.Context, ref vsphere.ObjectRef, intervalID int32) ([]vsphere.MetricID, error) {
	ids, err := c.perf.AvailableMetric(ctx, toMoRef(ref), intervalID)
	if err != nil {
		return nil, err
	}
	return toMetricIDs(ids), nil
}

func (c *Client) QueryPerf(ctx context.Context, specs []vsphere.QuerySpec) ([]vsphere.EntityMetrics, error) {
	query := make([]types.PerfQuerySpec, 0, len(specs))
	for _, spec := range specs {
		query = append(query, toPerfQuerySpec(spec))
	}
	res, err := c.perf.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]vsphere.EntityMetrics, 0, len(res))
	for _, base := range res {
		if em, ok := toEntityMetrics(base); ok {
			out = append(out, em)
		}
	}
	return out, nil
}

func (c *Client) MaxQueryMetrics(ctx context.Context) (int, error) {
	if c.vim.ServiceContent.Setting == nil {
		return 0, ErrNoSetting
	}
	opts, err := object.NewOptionManager(c.vim, *c.vim.ServiceContent.Setting).Query(ctx, MaxQueryMetricsSetting)
	if err != nil {
		return 0, err
	}
	if len(opts) == 0 {
		return 0, ErrNoSetting
	}
	return parseQuota(opts[0].GetOptionValue().Value)
}

func parseQuota(v any) (int, error) {
	switch n := v.(type) {
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case string:
		q, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("parsing %s: %w", MaxQueryMetricsSetting, err)
		}
		return q, nil
	default:
		return 0, fmt.Errorf("unexpected %s value type %T", MaxQueryMetricsSetting, v)
	}
}
