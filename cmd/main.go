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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/vsphere-inventory-collector/internal/collector"
	"github.com/llm-d/vsphere-inventory-collector/internal/config"
	"github.com/llm-d/vsphere-inventory-collector/internal/discovery"
	"github.com/llm-d/vsphere-inventory-collector/internal/logging"
	"github.com/llm-d/vsphere-inventory-collector/internal/metrics"
	"github.com/llm-d/vsphere-inventory-collector/internal/vcenter"
)

const envPrefix = "VSPHERE_COLLECTOR"

const (
	flagConfig      = "config"
	flagMetricsAddr = "metrics-bind-address"
	flagVerbosity   = "verbosity"
	flagDevLogging  = "dev-logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "vsphere-collector",
		Short: "Discover vSphere inventories and expose their performance metrics",
		Long: `vsphere-collector connects to one or more vCenter servers, discovers
their virtual machines, hosts, datastores, datacenters and clusters, and
exposes the performance counters of those objects on a Prometheus endpoint.

Every setting can also be given through the environment, e.g.
  VSPHERE_COLLECTOR_CONFIG=/etc/collector.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(v)
		},
	}
	addFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.Flags())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return cmd
}

func addFlags(flags *pflag.FlagSet) {
	flags.String(flagConfig, "/etc/vsphere-collector/config.yaml", "Path to the instances configuration file")
	flags.String(flagMetricsAddr, ":8080", "The address the metrics endpoint binds to")
	flags.Int(flagVerbosity, 0, "Log verbosity, 1 for debug and 2 for trace")
	flags.Bool(flagDevLogging, false, "Human readable console logs")
}

func run(v *viper.Viper) error {
	logging.Setup(logging.Options{
		Development: v.GetBool(flagDevLogging),
		Verbosity:   v.GetInt(flagVerbosity),
	})
	setupLog := ctrl.Log.WithName("setup")

	file, err := config.Load(v.GetString(flagConfig))
	if err != nil {
		return err
	}
	instances, err := file.Instances()
	if err != nil {
		setupLog.Error(err, "Invalid configuration")
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	emitter, err := metrics.NewEmitter(registry)
	if err != nil {
		return err
	}

	checks := make([]collector.Instance, 0, len(instances))
	connectors := make([]*vcenter.Connector, 0, len(instances))
	for _, inst := range instances {
		conn := vcenter.NewConnector(inst.Credentials)
		sink := emitter.Instance(inst.Name)
		check, err := collector.NewCheck(inst.Options, conn, discovery.NewWalker(inst.Discovery), sink, sink, clock.RealClock{})
		if err != nil {
			return fmt.Errorf("failed to create check for instance %s: %w", inst.Name, err)
		}
		checks = append(checks, check)
		connectors = append(connectors, conn)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{
		Addr:              v.GetString(flagMetricsAddr),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctrl.SetupSignalHandler())
	g.Go(func() error {
		setupLog.Info("Serving metrics", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return collector.NewRunner(checks...).Start(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, conn := range connectors {
			if err := conn.Close(shutdownCtx); err != nil {
				setupLog.Error(err, "Failed to close vCenter session")
			}
		}
		return server.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	setupLog.Info("Collector stopped")
	return err
}
