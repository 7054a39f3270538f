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

// Package workerpool runs the jobs of one collection phase on a fixed number
// of goroutines. A Pool is created for a phase and is finished once Wait
// returns; it is never reused.
package workerpool

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/vsphere-inventory-collector/internal/logging"
)

// Job is one unit of work. Its error is logged and counted, never propagated.
type Job func(ctx context.Context) error

// Stats summarizes a finished phase.
type Stats struct {
	Submitted int
	Completed int
	// Failed counts jobs that returned an error or panicked.
	Failed int
	// Dropped counts jobs that never ran because the pool was terminated.
	Dropped int
}

// Pool is a bounded set of workers for one phase.
type Pool struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
	log    *logging.Capped

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// New returns a Pool running at most size jobs at a time. Job failures are
// reported through log, which callers share across the phases of a cycle.
// A nil log creates a private one.
func New(ctx context.Context, name string, size int, log *logging.Capped) *Pool {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = logging.NewCapped(ctrl.LoggerFrom(ctx), logging.DefaultCycleLogLimit)
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{name: name, ctx: ctx, cancel: cancel, log: log}
	// Plain group, not WithContext: a failing job must not cancel its siblings.
	p.group.SetLimit(size)
	return p
}

// Submit queues job. It blocks while all workers are busy. Jobs submitted
// after Terminate are dropped.
func (p *Pool) Submit(name string, job Job) {
	p.submitted.Add(1)
	if p.ctx.Err() != nil {
		p.dropped.Add(1)
		return
	}
	p.group.Go(func() error {
		if p.ctx.Err() != nil {
			p.dropped.Add(1)
			return nil
		}
		p.run(name, job)
		return nil
	})
}

func (p *Pool) run(name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.log.Error(fmt.Errorf("panic: %v", r), "Worker job panicked",
				"pool", p.name,
				"job", name)
		}
	}()
	if err := job(p.ctx); err != nil {
		p.failed.Add(1)
		p.log.Error(err, "Worker job failed",
			"pool", p.name,
			"job", name)
		return
	}
	p.completed.Add(1)
}

// Wait blocks until every submitted job has run or been dropped, then
// releases the pool.
func (p *Pool) Wait() Stats {
	_ = p.group.Wait()
	p.cancel()
	stats := p.Stats()
	ctrl.LoggerFrom(p.ctx).V(logging.DEBUG).Info("Worker pool drained",
		"pool", p.name,
		"submitted", stats.Submitted,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"dropped", stats.Dropped)
	return stats
}

// Terminate cancels running jobs and drops every job that has not started.
// Callers still call Wait to join the running ones.
func (p *Pool) Terminate() {
	p.cancel()
}

// Stats returns the counters so far.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: int(p.submitted.Load()),
		Completed: int(p.completed.Load()),
		Failed:    int(p.failed.Load()),
		Dropped:   int(p.dropped.Load()),
	}
}
