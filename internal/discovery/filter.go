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

package discovery

import (
	"regexp"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// Filter selects objects of one kind by name. A nil pattern matches
// nothing for Exclude and everything for Include.
type Filter struct {
	Include *regexp.Regexp
	Exclude *regexp.Regexp
}

// Match reports whether an object named name passes the filter.
func (f Filter) Match(name string) bool {
	if f.Include != nil && !f.Include.MatchString(name) {
		return false
	}
	return f.Exclude == nil || !f.Exclude.MatchString(name)
}

// Filters holds one Filter per kind. Kinds without an entry are not filtered.
type Filters map[vsphere.Kind]Filter

func (fs Filters) match(kind vsphere.Kind, name string) bool {
	f, ok := fs[kind]
	return !ok || f.Match(name)
}
