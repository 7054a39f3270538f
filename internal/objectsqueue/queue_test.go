package objectsqueue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

func entry(kind vsphere.Kind, value string) Entry {
	cat, _ := vsphere.CategoryOf(kind)
	return Entry{Ref: vsphere.ObjectRef{Kind: kind, Value: value}, Category: cat}
}

func TestPopIsFIFOPerCategory(t *testing.T) {
	q := New()
	q.Fill(map[vsphere.Category][]Entry{
		vsphere.CategoryRealtime: {
			entry(vsphere.KindVirtualMachine, "vm-1"),
			entry(vsphere.KindVirtualMachine, "vm-2"),
		},
		vsphere.CategoryHistorical: {
			entry(vsphere.KindDatastore, "ds-1"),
		},
	})

	assert.Equal(t, 2, q.Size(vsphere.CategoryRealtime))
	assert.Equal(t, 1, q.Size(vsphere.CategoryHistorical))

	first, ok := q.Pop(vsphere.CategoryRealtime)
	require.True(t, ok)
	assert.Equal(t, "VirtualMachine:vm-1", first.Name())

	second, ok := q.Pop(vsphere.CategoryRealtime)
	require.True(t, ok)
	assert.Equal(t, "vm-2", second.Ref.Value)

	_, ok = q.Pop(vsphere.CategoryRealtime)
	assert.False(t, ok, "empty category must report the empty sentinel")
	assert.False(t, q.IsEmpty())

	_, ok = q.Pop(vsphere.CategoryHistorical)
	require.True(t, ok)
	assert.True(t, q.IsEmpty())
}

func TestFillReplacesContents(t *testing.T) {
	q := New()
	q.Fill(map[vsphere.Category][]Entry{
		vsphere.CategoryRealtime: {entry(vsphere.KindHost, "host-1")},
	})
	q.Fill(map[vsphere.Category][]Entry{
		vsphere.CategoryHistorical: {entry(vsphere.KindCluster, "domain-c1")},
	})

	assert.Equal(t, 0, q.Size(vsphere.CategoryRealtime))
	assert.Equal(t, 1, q.Size(vsphere.CategoryHistorical))
}

func TestFillCopiesInput(t *testing.T) {
	input := []Entry{entry(vsphere.KindHost, "host-1")}
	q := New()
	q.Fill(map[vsphere.Category][]Entry{vsphere.CategoryRealtime: input})
	input[0] = entry(vsphere.KindHost, "host-9")

	got, ok := q.Pop(vsphere.CategoryRealtime)
	require.True(t, ok)
	assert.Equal(t, "host-1", got.Ref.Value)
}

func TestPopN(t *testing.T) {
	q := New()
	q.Fill(map[vsphere.Category][]Entry{
		vsphere.CategoryHistorical: {
			entry(vsphere.KindDatastore, "ds-1"),
			entry(vsphere.KindDatastore, "ds-2"),
			entry(vsphere.KindDatastore, "ds-3"),
		},
	})

	got := q.PopN(vsphere.CategoryHistorical, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "ds-1", got[0].Ref.Value)
	assert.Equal(t, 1, q.Size(vsphere.CategoryHistorical))

	assert.Len(t, q.PopN(vsphere.CategoryHistorical, 0), 1)
	assert.True(t, q.IsEmpty())
	assert.Empty(t, q.PopN(vsphere.CategoryHistorical, 5))
}

func TestConcurrentPopDeliversEachEntryOnce(t *testing.T) {
	const n = 200
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = entry(vsphere.KindVirtualMachine, fmt.Sprintf("vm-%d", i))
	}
	q := New()
	q.Fill(map[vsphere.Category][]Entry{vsphere.CategoryRealtime: entries})

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, ok := q.Pop(vsphere.CategoryRealtime)
				if !ok {
					return
				}
				mu.Lock()
				seen[e.Name()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for name, count := range seen {
		assert.Equal(t, 1, count, name)
	}
}
