package logging

import (
	"errors"
	"sync"
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
)

func TestCappedLimitsMessagesPerWindow(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)
	sink := funcr.New(func(prefix, args string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, args)
	}, funcr.Options{})

	capped := NewCapped(sink, 3)
	for i := 0; i < 5; i++ {
		capped.Error(errors.New("boom"), "job failed", "attempt", i)
	}
	assert.Len(t, lines, 3)
	assert.Equal(t, 2, capped.Suppressed())

	assert.Equal(t, 2, capped.Reset())
	capped.Info("after reset")
	assert.Len(t, lines, 4)
	assert.Equal(t, 0, capped.Suppressed())
}

func TestCappedDefaultsLimit(t *testing.T) {
	capped := NewCapped(funcr.New(func(string, string) {}, funcr.Options{}), 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			capped.Info("concurrent")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50-DefaultCycleLogLimit, capped.Suppressed())
}
