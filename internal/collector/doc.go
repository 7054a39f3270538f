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

// Package collector runs the collection cycle of a vSphere instance.
//
// # Overview
//
// One Check exists per configured vCenter. Each call to Check.Run performs a
// full cycle made of ordered phases. Phases never overlap within a Check;
// distinct Checks share nothing and run independently under a Runner.
//
//	connect ─► metadata ─► discovery ─► resolve ─► purge ─► collect
//
// # Phases
//
// Connect: obtains a session from the vsphere.Connector and probes it with
// CurrentTime. A failure aborts the cycle with a *ConnectivityError and a
// CRITICAL service check. This is the only error Run returns.
//
// Metadata: when the metadata cache is older than the metadata refresh
// interval, the counter catalog is reloaded and the historical quota
// (counters per query) is recomputed: the configured override wins, then the
// server setting, then DefaultMaxHistoricalMetrics if the server call fails.
//
// Discovery: when the discovery interval has elapsed and the objects queue is
// empty, the Discoverer walks the inventory and refills the queue. Queued
// objects are removed from the mor cache: an object is never in both.
//
// Resolve: drains the queue. Realtime entries go straight into the mor cache.
// Historical entries are split into worker jobs of the resolve batch size; a
// job asks the server which counters each object exposes and keeps those the
// metadata cache wants.
//
// Purge: once per clean interval, records older than the clean interval are
// dropped from the mor cache. Rediscovered objects are re-inserted fresh, so
// only objects the inventory no longer returns age out.
//
// Collect: the mor cache is cut into quota-aware batches; each batch becomes
// one worker job that builds the query specs, runs QueryPerf and emits the
// values through the Sink. The Sink is flushed once the phase is drained.
//
// # Failure handling
//
// Job errors and panics are absorbed by the worker pool and logged at most
// logging.DefaultCycleLogLimit times per cycle. Missing objects or counters
// are skipped with a debug message. A historical object with more counters
// than the quota is never collected and is reported to the Observer.
package collector
