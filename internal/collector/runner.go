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
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"
	ctrl "sigs.k8s.io/controller-runtime"
)

// Instance is a periodically run unit of collection.
type Instance interface {
	// Name returns the unique name of the instance.
	Name() string
	// Interval returns the period between the end of a cycle and the start of
	// the next one.
	Interval() time.Duration
	// Run performs one cycle.
	Run(ctx context.Context) error
}

var _ Instance = (*Check)(nil)

// Runner runs every Instance on its own loop until its context is done.
// Instances share nothing; a slow or failing one does not delay the others.
type Runner struct {
	instances []Instance
}

// NewRunner returns a Runner over instances.
func NewRunner(instances ...Instance) *Runner {
	return &Runner{instances: instances}
}

// Start blocks until ctx is done and every loop has returned.
func (r *Runner) Start(ctx context.Context) error {
	logger := ctrl.LoggerFrom(ctx)
	var g errgroup.Group
	for _, inst := range r.instances {
		g.Go(func() error {
			instLogger := logger.WithValues("instance", inst.Name())
			wait.UntilWithContext(ctx, func(ctx context.Context) {
				if err := inst.Run(ctx); err != nil {
					var connErr *ConnectivityError
					if errors.As(err, &connErr) {
						instLogger.Error(connErr.Err, "Cannot connect to vCenter, retrying next cycle")
						return
					}
					instLogger.Error(err, "Collection cycle failed")
				}
			}, inst.Interval())
			return nil
		})
	}
	logger.Info("Started collection", "instances", len(r.instances))
	return g.Wait()
}
