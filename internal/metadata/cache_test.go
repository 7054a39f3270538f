package metadata

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere/vspheretest"
)

type failingSelector struct{}

func (failingSelector) Select(context.Context, vsphere.Client, []vsphere.CounterInfo) ([]vsphere.CounterInfo, error) {
	return nil, errors.New("selector failed")
}

func (failingSelector) Compatibility() bool { return false }

var (
	cpuUsage   = vsphere.CounterInfo{Key: 2, Group: "cpu", Name: "usage", Unit: "percent", Rollup: "average", Level: 1}
	cpuUsageMx = vsphere.CounterInfo{Key: 3, Group: "cpu", Name: "usage", Unit: "percent", Rollup: "maximum", Level: 4}
	memActive  = vsphere.CounterInfo{Key: 5, Group: "mem", Name: "active", Unit: "kiloBytes", Rollup: "average", Level: 2}
	diskUsed   = vsphere.CounterInfo{Key: 240, Group: "disk", Name: "used", Unit: "kiloBytes", Rollup: "latest", Level: 1}
	netPackets = vsphere.CounterInfo{Key: 150, Group: "net", Name: "packetsRx", Unit: "number", Rollup: "summation", Level: 3}
)

var _ = Describe("Cache", func() {
	var (
		ctx    context.Context
		client *vspheretest.Client
		clk    *clocktesting.FakePassiveClock
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = vspheretest.NewClient()
		client.Catalog = []vsphere.CounterInfo{cpuUsage, cpuUsageMx, memActive, diskUsed, netPackets}
		client.Levels = map[int32][]int32{
			1: {2, 240},
			2: {2, 240, 5},
		}
		clk = clocktesting.NewFakePassiveClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	})

	Context("in basic mode", func() {
		It("should select the allow-listed counters with compatibility names", func() {
			selector, err := NewSelector(ModeBasic, 0)
			Expect(err).NotTo(HaveOccurred())
			cache := New(selector, clk)

			Expect(cache.Refresh(ctx, client)).To(Succeed())

			Expect(cache.WantedCounterIDs()).To(Equal([]int32{2, 5, 240}))
			meta, ok := cache.Lookup(2)
			Expect(ok).To(BeTrue())
			Expect(meta).To(Equal(CounterMetadata{Name: "cpu.usage", Unit: "percent"}))

			_, ok = cache.Lookup(3)
			Expect(ok).To(BeFalse(), "maximum rollup of cpu.usage is not allow-listed")
		})
	})

	Context("in level mode", func() {
		It("should select the counters the server collects at the level", func() {
			selector, err := NewSelector(ModeLevel, 2)
			Expect(err).NotTo(HaveOccurred())
			cache := New(selector, clk)

			Expect(cache.Refresh(ctx, client)).To(Succeed())

			Expect(cache.WantedSet().UnsortedList()).To(ConsistOf(int32(2), int32(5), int32(240)))
			meta, ok := cache.Lookup(240)
			Expect(ok).To(BeTrue())
			Expect(meta.Name).To(Equal("disk.used.latest"))
			_, ok = cache.Lookup(150)
			Expect(ok).To(BeFalse())
		})

		It("should reject levels outside 1 to 4", func() {
			_, err := NewSelector(ModeLevel, 5)
			Expect(err).To(HaveOccurred())
		})
	})

	It("should reject unknown modes", func() {
		_, err := NewSelector("everything", 1)
		Expect(err).To(MatchError(ContainSubstring("unsupported metric selection mode")))
	})

	It("should drop counters missing from a refreshed catalog", func() {
		selector, _ := NewSelector(ModeLevel, 2)
		cache := New(selector, clk)
		Expect(cache.Refresh(ctx, client)).To(Succeed())
		_, ok := cache.Lookup(5)
		Expect(ok).To(BeTrue())

		client.Catalog = []vsphere.CounterInfo{cpuUsage, diskUsed}
		Expect(cache.Refresh(ctx, client)).To(Succeed())

		_, ok = cache.Lookup(5)
		Expect(ok).To(BeFalse())
		Expect(cache.WantedCounterIDs()).NotTo(ContainElement(int32(5)))
		Expect(cache.Len()).To(Equal(2))
	})

	It("should keep the previous catalog when a refresh fails", func() {
		selector, _ := NewSelector(ModeBasic, 0)
		cache := New(selector, clk)
		Expect(cache.Refresh(ctx, client)).To(Succeed())
		refreshed := cache.LastRefresh()

		clk.SetTime(clk.Now().Add(time.Hour))
		client.CatalogErr = errors.New("session expired")
		Expect(cache.Refresh(ctx, client)).To(MatchError(ContainSubstring("session expired")))

		Expect(cache.Len()).To(Equal(3))
		Expect(cache.LastRefresh()).To(Equal(refreshed))
	})

	It("should surface selector failures", func() {
		cache := New(failingSelector{}, clk)
		Expect(cache.Refresh(ctx, client)).NotTo(Succeed())
		Expect(cache.Len()).To(BeZero())
		Expect(cache.Stale(time.Hour)).To(BeTrue())
	})

	It("should track staleness from the last refresh", func() {
		selector, _ := NewSelector(ModeBasic, 0)
		cache := New(selector, clk)
		Expect(cache.Stale(time.Minute)).To(BeTrue())

		Expect(cache.Refresh(ctx, client)).To(Succeed())
		Expect(cache.Stale(time.Minute)).To(BeFalse())

		clk.SetTime(clk.Now().Add(time.Minute))
		Expect(cache.Stale(time.Minute)).To(BeTrue())
	})
})

var _ = Describe("MetricName", func() {
	DescribeTable("formats counter names",
		func(info vsphere.CounterInfo, compat bool, want string) {
			Expect(MetricName(info, compat)).To(Equal(want))
		},
		Entry("average rollup", cpuUsage, false, "cpu.usage.avg"),
		Entry("summation rollup", netPackets, false, "net.packetsRx.sum"),
		Entry("compatibility scheme", cpuUsageMx, true, "cpu.usage"),
		Entry("unknown rollup is kept", vsphere.CounterInfo{Group: "g", Name: "n", Rollup: "odd"}, false, "g.n.odd"),
	)
})
