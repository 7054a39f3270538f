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

// Package objectsqueue stages discovered objects that have not had their
// queryable counters resolved yet.
package objectsqueue

import (
	"sync"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// Entry is a discovered object awaiting promotion into the mor cache.
type Entry struct {
	Ref      vsphere.ObjectRef
	Category vsphere.Category
	// Hostname is empty for objects reported without a host.
	Hostname     string
	Tags         []string
	ExcludedTags []string
}

// Name is the cache key of the entry.
func (e Entry) Name() string {
	return e.Ref.String()
}

// Queue holds entries per category in FIFO order. One Queue serves one
// configured instance.
type Queue struct {
	mu      sync.Mutex
	buckets map[vsphere.Category][]Entry
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{buckets: make(map[vsphere.Category][]Entry)}
}

// Fill replaces the queue contents with entries.
//
// Callers must check IsEmpty first: refilling while a previous fill is still
// being drained would drop the undrained entries. This is not enforced.
func (q *Queue) Fill(entries map[vsphere.Category][]Entry) {
	buckets := make(map[vsphere.Category][]Entry, len(entries))
	for cat, list := range entries {
		if len(list) == 0 {
			continue
		}
		buckets[cat] = append([]Entry(nil), list...)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.buckets = buckets
}

// Pop removes and returns the oldest entry of category. The boolean is false
// when the category is empty.
func (q *Queue) Pop(category vsphere.Category) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.buckets[category]
	if len(list) == 0 {
		return Entry{}, false
	}
	head := list[0]
	list[0] = Entry{}
	q.buckets[category] = list[1:]
	return head, true
}

// PopN removes up to n entries of category. n <= 0 drains the category.
func (q *Queue) PopN(category vsphere.Category, n int) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.buckets[category]
	if n <= 0 || n > len(list) {
		n = len(list)
	}
	out := append([]Entry(nil), list[:n]...)
	q.buckets[category] = list[n:]
	return out
}

// Size is the current depth of category.
func (q *Queue) Size(category vsphere.Category) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buckets[category])
}

// IsEmpty reports whether every category is drained.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, list := range q.buckets {
		if len(list) > 0 {
			return false
		}
	}
	return true
}
