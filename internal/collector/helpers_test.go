package collector

import (
	"sync"
	"time"

	"github.com/llm-d/vsphere-inventory-collector/internal/morcache"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere/vspheretest"
	"github.com/llm-d/vsphere-inventory-collector/internal/workerpool"
)

type gauge struct {
	Name     string
	Value    float64
	Hostname string
	Tags     []string
}

type serviceCheck struct {
	Status  ServiceCheckStatus
	Message string
}

// recordingSink keeps everything it receives. Safe for concurrent use.
type recordingSink struct {
	mu       sync.Mutex
	gauges   []gauge
	hostTags map[string][]string
	checks   []serviceCheck
	flushes  int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{hostTags: map[string][]string{}}
}

func (s *recordingSink) Gauge(name string, value float64, hostname string, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges = append(s.gauges, gauge{Name: name, Value: value, Hostname: hostname, Tags: tags})
}

func (s *recordingSink) HostTags(hostname string, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostTags[hostname] = tags
}

func (s *recordingSink) ServiceCheck(_ string, status ServiceCheckStatus, _ []string, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, serviceCheck{Status: status, Message: message})
}

func (s *recordingSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
}

func (s *recordingSink) lastCheck() serviceCheck {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.checks) == 0 {
		return serviceCheck{Status: StatusUnknown}
	}
	return s.checks[len(s.checks)-1]
}

func (s *recordingSink) find(name, hostname string) (gauge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.gauges {
		if g.Name == name && g.Hostname == hostname {
			return g, true
		}
	}
	return gauge{}, false
}

type recordingObserver struct {
	NopObserver
	mu       sync.Mutex
	cycles   int
	errs     []error
	phases   map[Phase]workerpool.Stats
	exceeded []string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{phases: map[Phase]workerpool.Stats{}}
}

func (o *recordingObserver) CycleCompleted(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cycles++
	o.errs = append(o.errs, err)
}

func (o *recordingObserver) PhaseCompleted(phase Phase, stats workerpool.Stats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases[phase] = stats
}

func (o *recordingObserver) QuotaExceeded(rec morcache.Record, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exceeded = append(o.exceeded, rec.Name())
}

var (
	cpuUsage  = vsphere.CounterInfo{Key: 2, Group: "cpu", Name: "usage", Unit: "percent", Rollup: "average", Level: 1}
	memActive = vsphere.CounterInfo{Key: 5, Group: "mem", Name: "active", Unit: "kiloBytes", Rollup: "average", Level: 1}
	diskUsed  = vsphere.CounterInfo{Key: 240, Group: "disk", Name: "used", Unit: "kiloBytes", Rollup: "latest", Level: 1}
)

var (
	vm1 = vspheretest.Ref(vsphere.KindVirtualMachine, "vm-1")
	vm2 = vspheretest.Ref(vsphere.KindVirtualMachine, "vm-2")
	ds1 = vspheretest.Ref(vsphere.KindDatastore, "ds-1")
	dc1 = vspheretest.Ref(vsphere.KindDatacenter, "dc-1")
)

// fixtureClient serves the shared inventory with cpu, memory and datastore
// samples.
func fixtureClient() *vspheretest.Client {
	client := vspheretest.NewClient()
	client.Objects = vspheretest.Inventory()
	client.Catalog = []vsphere.CounterInfo{cpuUsage, memActive, diskUsed}
	client.Available[ds1] = []vsphere.MetricID{{CounterID: 240}, {CounterID: 999}}
	client.Samples[vm1] = []vsphere.MetricSeries{
		{ID: vsphere.MetricID{CounterID: 2}, Values: []int64{1000, 1500}},
		{ID: vsphere.MetricID{CounterID: 5}, Values: []int64{-1}},
	}
	client.Samples[vm2] = []vsphere.MetricSeries{
		{ID: vsphere.MetricID{CounterID: 2}, Values: []int64{250}},
	}
	client.Samples[ds1] = []vsphere.MetricSeries{
		{ID: vsphere.MetricID{CounterID: 240}, Values: []int64{1024}},
	}
	return client
}
