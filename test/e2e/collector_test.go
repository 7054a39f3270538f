package e2e

import (
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"k8s.io/utils/clock"

	"github.com/llm-d/vsphere-inventory-collector/internal/collector"
	"github.com/llm-d/vsphere-inventory-collector/internal/config"
	"github.com/llm-d/vsphere-inventory-collector/internal/discovery"
	"github.com/llm-d/vsphere-inventory-collector/internal/metrics"
	"github.com/llm-d/vsphere-inventory-collector/internal/vcenter"
)

// newCheck wires one instance the way the collector binary does.
func newCheck(emitter *metrics.Emitter, yamlConfig string) (*collector.Check, *vcenter.Connector) {
	file, err := config.Parse([]byte(yamlConfig))
	Expect(err).NotTo(HaveOccurred())
	instances, err := file.Instances()
	Expect(err).NotTo(HaveOccurred())
	Expect(instances).To(HaveLen(1))

	inst := instances[0]
	conn := vcenter.NewConnector(inst.Credentials)
	sink := emitter.Instance(inst.Name)
	check, err := collector.NewCheck(inst.Options, conn, discovery.NewWalker(inst.Discovery), sink, sink, clock.RealClock{})
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() { _ = conn.Close(context.Background()) })
	return check, conn
}

func gather(registry *prometheus.Registry) map[string]*dto.MetricFamily {
	families, err := registry.Gather()
	Expect(err).NotTo(HaveOccurred())
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	return byName
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// gaugeFor returns the value of the series of family whose label equals value.
func gaugeFor(families map[string]*dto.MetricFamily, family, label, value string) (float64, bool) {
	mf, ok := families[family]
	if !ok {
		return 0, false
	}
	for _, m := range mf.GetMetric() {
		if labelValue(m, label) == value {
			return m.GetGauge().GetValue(), true
		}
	}
	return 0, false
}

var _ = Describe("Collector", func() {
	var (
		registry *prometheus.Registry
		emitter  *metrics.Emitter
	)

	BeforeEach(func() {
		registry = prometheus.NewRegistry()
		var err error
		emitter, err = metrics.NewEmitter(registry)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should discover the inventory and publish its counters", func() {
		if externalURL != "" {
			Skip("inventory sizes are only known for the simulator")
		}
		check, _ := newCheck(emitter, fmt.Sprintf(`
instances:
  - name: sim
    host: %s
    username: %s
    password: %s
    ssl_verify: false
    tags: ["env:e2e"]
`, vcenterURL, username, password))

		By("running two cycles")
		ctx := context.Background()
		Expect(check.Run(ctx)).To(Succeed())
		Expect(check.Run(ctx)).To(Succeed())

		families := gather(registry)

		By("reporting the vCenter as reachable")
		value, ok := gaugeFor(families, metrics.CanConnect, metrics.LabelInstance, "sim")
		Expect(ok).To(BeTrue(), "service check should be published")
		Expect(value).To(Equal(1.0))
		cc := families[metrics.CanConnect].GetMetric()[0]
		Expect(labelValue(cc, "env")).To(Equal("e2e"))
		Expect(labelValue(cc, config.TagVCenterServer)).To(Equal(vcenterURL))

		By("caching every powered on VM and every host")
		value, ok = gaugeFor(families, metrics.CachedObjects, metrics.LabelCategory, "realtime")
		Expect(ok).To(BeTrue())
		Expect(value).To(Equal(8.0))

		By("recording both cycles as successful")
		hist := families[metrics.CycleDurationSeconds].GetMetric()
		Expect(hist).To(HaveLen(1))
		Expect(labelValue(hist[0], metrics.LabelResult)).To(Equal(metrics.ResultOK))
		Expect(hist[0].GetHistogram().GetSampleCount()).To(BeEquivalentTo(2))

		By("labelling published counters with the instance")
		for name, mf := range families {
			if !strings.HasPrefix(name, "vsphere_") || strings.HasPrefix(name, "vsphere_collector_") ||
				name == metrics.CanConnect || name == metrics.HostTags {
				continue
			}
			for _, m := range mf.GetMetric() {
				Expect(labelValue(m, metrics.LabelInstance)).To(Equal("sim"), "metric %s", name)
			}
		}
	})

	It("should report an unreachable vCenter and keep going", func() {
		check, _ := newCheck(emitter, `
instances:
  - name: offline
    host: https://127.0.0.1:1/sdk
    username: nobody
    password: nothing
    ssl_verify: false
`)
		err := check.Run(context.Background())
		var connErr *collector.ConnectivityError
		Expect(errors.As(err, &connErr)).To(BeTrue())
		Expect(connErr.Instance).To(Equal("offline"))

		families := gather(registry)
		value, ok := gaugeFor(families, metrics.CanConnect, metrics.LabelInstance, "offline")
		Expect(ok).To(BeTrue())
		Expect(value).To(BeZero())
		hist := families[metrics.CycleDurationSeconds].GetMetric()
		Expect(labelValue(hist[0], metrics.LabelResult)).To(Equal(metrics.ResultUnreachable))
	})

	It("should only collect objects passing the resource filters", func() {
		if externalURL != "" {
			Skip("inventory names are only known for the simulator")
		}
		check, _ := newCheck(emitter, fmt.Sprintf(`
instances:
  - name: filtered
    host: %s
    username: %s
    password: %s
    ssl_verify: false
    resource_filters:
      - resource: vm
        include: "^DC0_H0_VM"
      - resource: host
        exclude: "^DC0_C0_"
`, vcenterURL, username, password))
		ctx := context.Background()
		Expect(check.Run(ctx)).To(Succeed())
		Expect(check.Run(ctx)).To(Succeed())

		value, ok := gaugeFor(gather(registry), metrics.CachedObjects, metrics.LabelCategory, "realtime")
		Expect(ok).To(BeTrue())
		By("keeping the standalone host and its two VMs")
		Expect(value).To(Equal(3.0))
	})
})
