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

// Package discovery walks the remote inventory once per discovery pass and
// turns it into tagged objects queue entries.
//
// A pass has three steps:
//
//  1. Fetch every object of every kind in one paginated property retrieval,
//     requesting only the properties needed for filtering and tagging.
//  2. Filter: objects failing their kind's name patterns are dropped, as are
//     virtual machines that are not powered on, that lack the monitoring
//     flag when it is required, or that run on an excluded host. Exclusion is
//     never an error.
//  3. Tag: each kept object gets its own tags followed by one tag per
//     ancestor (host, folder, cluster, compute resource, datacenter), root-most
//     ancestor first and nearest ancestor last.
//
// Properties the server fails to return are logged, at most
// logging.DefaultCycleLogLimit times per pass, and treated as absent.
package discovery
