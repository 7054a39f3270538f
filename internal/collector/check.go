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

package collector

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/vsphere-inventory-collector/internal/logging"
	"github.com/llm-d/vsphere-inventory-collector/internal/metadata"
	"github.com/llm-d/vsphere-inventory-collector/internal/morcache"
	"github.com/llm-d/vsphere-inventory-collector/internal/objectsqueue"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
	"github.com/llm-d/vsphere-inventory-collector/internal/workerpool"
)

// DefaultMaxHistoricalMetrics is the historical quota used when the server
// setting cannot be read.
const DefaultMaxHistoricalMetrics = 64

// Options configure a Check.
type Options struct {
	Name           string
	WorkerPoolSize int

	RefreshMorsInterval     time.Duration
	RefreshMetadataInterval time.Duration
	// CleanMorsInterval is both how often and how old records are purged. It
	// is raised to RefreshMorsInterval when lower.
	CleanMorsInterval time.Duration
	// CollectionInterval is the period between two cycles under a Runner.
	CollectionInterval time.Duration

	// ResolveBatchSize is the number of historical objects resolved by one
	// pool job. The whole queue is resolved every cycle; zero or less means
	// one object per job.
	ResolveBatchSize int
	// BatchCollectorSize caps the records per query. Zero or less removes
	// the cap.
	BatchCollectorSize int
	// MaxHistoricalMetrics overrides the server quota when positive.
	MaxHistoricalMetrics int
	HistoricalWindow     time.Duration

	Selector metadata.Selector
	// Tags are sent with the service check.
	Tags []string
}

// Check is the collection state of one instance.
type Check struct {
	opts       Options
	connector  vsphere.Connector
	discoverer Discoverer
	sink       Sink
	observer   Observer
	clock      clock.Clock

	queue     *objectsqueue.Queue
	cache     Cache
	metadata  *metadata.Cache
	collector Collector

	// jobLog caps worker failure messages per cycle.
	jobLog *logging.Capped

	maxHistorical int
	lastDiscovery time.Time
	lastClean     time.Time
}

// NewCheck wires a Check. observer may be nil.
func NewCheck(opts Options, connector vsphere.Connector, discoverer Discoverer, sink Sink, observer Observer, clk clock.Clock) (*Check, error) {
	if opts.Name == "" {
		return nil, errors.New("check name is required")
	}
	if opts.Selector == nil {
		return nil, fmt.Errorf("instance %s: no metric selector", opts.Name)
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if opts.CleanMorsInterval < opts.RefreshMorsInterval {
		opts.CleanMorsInterval = opts.RefreshMorsInterval
	}
	logger := ctrl.Log.WithName("check").WithValues("instance", opts.Name)

	c := &Check{
		opts:       opts,
		connector:  connector,
		discoverer: discoverer,
		sink:       sink,
		observer:   observer,
		clock:      clk,
		queue:      objectsqueue.New(),
		metadata:   metadata.New(opts.Selector, clk),
		jobLog:     logging.NewCapped(logger, logging.DefaultCycleLogLimit),
	}
	c.cache = morcache.New(clk, logger, morcache.WithQuotaExceededHandler(observer.QuotaExceeded))
	c.collector = NewValueCollector(NewQueryBatcher(c.metadata, opts.HistoricalWindow), c.metadata, sink)
	return c, nil
}

// Name is the instance name.
func (c *Check) Name() string { return c.opts.Name }

// Interval is the period between two cycles.
func (c *Check) Interval() time.Duration { return c.opts.CollectionInterval }

// Run performs one collection cycle. Only a *ConnectivityError is returned;
// every other failure is logged and the cycle goes on.
func (c *Check) Run(ctx context.Context) (err error) {
	logger := ctrl.LoggerFrom(ctx).WithValues("instance", c.opts.Name)
	ctx = ctrl.LoggerInto(ctx, logger)
	start := c.clock.Now()
	defer func() {
		c.observer.CycleCompleted(c.clock.Since(start), err)
	}()

	if dropped := c.jobLog.Reset(); dropped > 0 {
		logger.Info("Worker failure messages were suppressed in the previous cycle", "count", dropped)
	}

	client, now, err := c.connect(ctx)
	if err != nil {
		c.sink.ServiceCheck(CanConnectCheck, StatusCritical, c.opts.Tags, err.Error())
		c.sink.Flush()
		return err
	}
	c.sink.ServiceCheck(CanConnectCheck, StatusOK, c.opts.Tags, "")

	c.refreshMetadata(ctx, logger, client)
	c.discover(ctx, logger, client)
	c.resolve(ctx, client)
	c.purge(logger)
	c.collect(ctx, client, now)
	return nil
}

func (c *Check) connect(ctx context.Context) (vsphere.Client, time.Time, error) {
	client, err := c.connector.Connect(ctx)
	if err != nil {
		return nil, time.Time{}, &ConnectivityError{Instance: c.opts.Name, Err: err}
	}
	now, err := client.CurrentTime(ctx)
	if err != nil {
		return nil, time.Time{}, &ConnectivityError{Instance: c.opts.Name, Err: err}
	}
	return client, now, nil
}

func (c *Check) refreshMetadata(ctx context.Context, logger logr.Logger, client vsphere.Client) {
	if !c.metadata.Stale(c.opts.RefreshMetadataInterval) {
		return
	}
	if err := c.metadata.Refresh(ctx, client); err != nil {
		logger.Error(err, "Failed to refresh counter metadata, keeping the previous catalog")
	} else {
		logger.V(logging.DEBUG).Info("Refreshed counter metadata", "counters", c.metadata.Len())
	}
	c.maxHistorical = c.historicalQuota(ctx, logger, client)
}

// historicalQuota returns the counters allowed per historical query. Zero
// means no cap.
func (c *Check) historicalQuota(ctx context.Context, logger logr.Logger, client vsphere.Client) int {
	if c.opts.MaxHistoricalMetrics > 0 {
		return c.opts.MaxHistoricalMetrics
	}
	n, err := client.MaxQueryMetrics(ctx)
	if err != nil {
		logger.Info("Unable to read the server historical quota, using the default",
			"error", err.Error(),
			"default", DefaultMaxHistoricalMetrics)
		return DefaultMaxHistoricalMetrics
	}
	if n <= 0 {
		return 0
	}
	return n
}

func (c *Check) discover(ctx context.Context, logger logr.Logger, client vsphere.Client) {
	if !c.queue.IsEmpty() {
		return
	}
	if !c.lastDiscovery.IsZero() && c.clock.Since(c.lastDiscovery) < c.opts.RefreshMorsInterval {
		return
	}
	entries, err := c.discoverer.Discover(ctx, client)
	if err != nil {
		logger.Error(err, "Inventory discovery failed")
		return
	}
	c.queue.Fill(entries)
	// An object is either queued or cached. Rediscovered objects leave the
	// cache and come back with a fresh creation time once resolved.
	evicted := 0
	for _, category := range vsphere.Categories {
		for _, e := range entries[category] {
			if c.cache.Remove(e.Name()) {
				evicted++
			}
		}
	}
	if evicted > 0 {
		logger.V(logging.DEBUG).Info("Requeued rediscovered objects", "count", evicted)
	}
	c.lastDiscovery = c.clock.Now()
	c.observer.ObjectsQueued(c.queue.Size(vsphere.CategoryRealtime) + c.queue.Size(vsphere.CategoryHistorical))
}

func (c *Check) resolve(ctx context.Context, client vsphere.Client) {
	for _, e := range c.queue.PopN(vsphere.CategoryRealtime, 0) {
		c.cache.Set(e.Name(), recordFromEntry(e, vsphere.RealtimeIntervalID))
	}

	size := max(c.opts.ResolveBatchSize, 1)
	pool := workerpool.New(ctx, string(PhaseResolve), c.opts.WorkerPoolSize, c.jobLog)
	for chunk := range slices.Chunk(c.queue.PopN(vsphere.CategoryHistorical, 0), size) {
		pool.Submit(chunk[0].Name(), func(ctx context.Context) error {
			var errs error
			for _, e := range chunk {
				errs = multierr.Append(errs, c.resolveHistorical(ctx, client, e))
			}
			return errs
		})
	}
	c.observer.PhaseCompleted(PhaseResolve, pool.Wait())
	c.observer.ObjectsQueued(c.queue.Size(vsphere.CategoryRealtime) + c.queue.Size(vsphere.CategoryHistorical))
}

// resolveHistorical caches e with the wanted counters it exposes.
func (c *Check) resolveHistorical(ctx context.Context, client vsphere.Client, e objectsqueue.Entry) error {
	available, err := client.AvailableCounters(ctx, e.Ref, vsphere.HistoricalIntervalID)
	if err != nil {
		return fmt.Errorf("listing counters of %s: %w", e.Name(), err)
	}
	wanted := c.metadata.WantedSet()
	counters := make([]vsphere.MetricID, 0, len(available))
	for _, id := range available {
		if wanted.Has(id.CounterID) {
			counters = append(counters, id)
		}
	}
	c.cache.Set(e.Name(), recordFromEntry(e, 0))
	return c.cache.SetCounters(e.Name(), counters)
}

func (c *Check) purge(logger logr.Logger) {
	now := c.clock.Now()
	if !c.lastClean.IsZero() && now.Sub(c.lastClean) < c.opts.CleanMorsInterval {
		return
	}
	c.lastClean = now
	if n := c.cache.Purge(c.opts.CleanMorsInterval); n > 0 {
		logger.V(logging.DEBUG).Info("Purged outdated objects", "count", n)
	}
}

func (c *Check) collect(ctx context.Context, client vsphere.Client, now time.Time) {
	c.observer.ObjectsCached(c.cache.CountByCategory())

	pool := workerpool.New(ctx, string(PhaseCollect), c.opts.WorkerPoolSize, c.jobLog)
	i := 0
	for batch := range c.cache.Batches(c.opts.BatchCollectorSize, c.maxHistorical) {
		pool.Submit(fmt.Sprintf("batch-%d", i), func(ctx context.Context) error {
			return c.collector.Collect(ctx, client, batch, now)
		})
		i++
	}
	c.observer.PhaseCompleted(PhaseCollect, pool.Wait())
	c.sink.Flush()
}

func recordFromEntry(e objectsqueue.Entry, interval int32) morcache.Record {
	return morcache.Record{
		Ref:          e.Ref,
		Category:     e.Category,
		Hostname:     e.Hostname,
		Tags:         e.Tags,
		ExcludedTags: e.ExcludedTags,
		Interval:     interval,
	}
}
