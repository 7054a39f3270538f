package discovery

import (
	"context"
	"errors"
	"regexp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d/vsphere-inventory-collector/internal/objectsqueue"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere/vspheretest"
)

func names(entries []objectsqueue.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Ref.Value)
	}
	return out
}

func find(entries []objectsqueue.Entry, value string) objectsqueue.Entry {
	for _, e := range entries {
		if e.Ref.Value == value {
			return e
		}
	}
	Fail("entry " + value + " not discovered")
	return objectsqueue.Entry{}
}

func objectIndex(objs []vsphere.ObjectContent, value string) int {
	for i, obj := range objs {
		if obj.Ref.Value == value {
			return i
		}
	}
	Fail("object " + value + " not in fixture")
	return -1
}

var _ = Describe("Walker", func() {
	var (
		ctx    context.Context
		client *vspheretest.Client
		objs   []vsphere.ObjectContent
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = vspheretest.NewClient()
		objs = vspheretest.Inventory()
	})

	discover := func(cfg Config) map[vsphere.Category][]objectsqueue.Entry {
		client.Objects = objs
		out, err := NewWalker(cfg).Discover(ctx, client)
		Expect(err).NotTo(HaveOccurred())
		return out
	}

	It("should queue powered-on VMs and hosts as realtime, the rest as historical", func() {
		out := discover(Config{})

		Expect(names(out[vsphere.CategoryRealtime])).To(Equal([]string{"host-1", "host-2", "vm-1", "vm-2"}))
		Expect(names(out[vsphere.CategoryHistorical])).To(Equal([]string{"dc-1", "domain-c1", "ds-1"}))
		Expect(client.Requests).To(HaveLen(1))
	})

	It("should tag a VM with its host and its ancestors root-most first", func() {
		vm := find(discover(Config{})[vsphere.CategoryRealtime], "vm-1")

		Expect(vm.Hostname).To(Equal("web1"))
		Expect(vm.Tags).To(Equal([]string{
			"vsphere_type:vm",
			"vsphere_vm:web1",
			"vsphere_host:esx1",
			"vsphere_datacenter:dc1",
			"vsphere_folder:vm",
		}))
		Expect(vm.ExcludedTags).To(BeEmpty())
	})

	It("should keep every tag on objects without a hostname", func() {
		ds := find(discover(Config{ExcludedHostTags: []string{TagDatacenter}})[vsphere.CategoryHistorical], "ds-1")

		Expect(ds.Hostname).To(BeEmpty())
		Expect(ds.Tags).To(Equal([]string{
			"vsphere_type:datastore",
			"vsphere_datastore:ds1",
			"vsphere_datacenter:dc1",
			"vsphere_folder:datastore",
		}))
		Expect(ds.ExcludedTags).To(BeEmpty())
	})

	It("should split excluded host tags out of a host's tags", func() {
		host := find(discover(Config{
			ExcludedHostTags: []string{TagCluster},
			InstanceTags:     []string{"vcenter_server:vc.local"},
		})[vsphere.CategoryRealtime], "host-1")

		Expect(host.Hostname).To(Equal("esx1"))
		Expect(host.Tags).To(Equal([]string{
			"vsphere_type:host",
			"vsphere_host:esx1",
			"vcenter_server:vc.local",
			"vsphere_datacenter:dc1",
			"vsphere_folder:host",
		}))
		Expect(host.ExcludedTags).To(Equal([]string{"vsphere_cluster:cluster1"}))
	})

	It("should exclude VMs running on an excluded host without error", func() {
		out := discover(Config{Filters: Filters{
			vsphere.KindHost: {Exclude: regexp.MustCompile(`^esx2$`)},
		}})

		Expect(names(out[vsphere.CategoryRealtime])).To(Equal([]string{"host-1", "vm-1"}))
	})

	It("should apply include patterns per kind", func() {
		out := discover(Config{Filters: Filters{
			vsphere.KindVirtualMachine: {Include: regexp.MustCompile(`^web2`)},
			vsphere.KindDatastore:      {Include: regexp.MustCompile(`^nfs`)},
		}})

		Expect(names(out[vsphere.CategoryRealtime])).To(Equal([]string{"host-1", "host-2", "vm-2"}))
		Expect(names(out[vsphere.CategoryHistorical])).To(Equal([]string{"dc-1", "domain-c1"}))
	})

	It("should require the monitoring flag when configured", func() {
		i := objectIndex(objs, "vm-2")
		objs[i] = vspheretest.WithCustomValues(objs[i], vsphere.CustomValue{Key: 101, Value: DefaultMonitoredValue})

		out := discover(Config{IncludeOnlyMarked: true})

		Expect(names(out[vsphere.CategoryRealtime])).To(Equal([]string{"host-1", "host-2", "vm-2"}))
		Expect(find(out[vsphere.CategoryRealtime], "vm-2").Tags).To(ContainElement("vsphere_custom_101:" + DefaultMonitoredValue))
	})

	It("should prefer the guest hostname when configured", func() {
		i := objectIndex(objs, "vm-1")
		objs[i].Properties[vsphere.PropGuestHost] = "web1.example.com"

		Expect(find(discover(Config{})[vsphere.CategoryRealtime], "vm-1").Hostname).To(Equal("web1"))
		Expect(find(discover(Config{UseGuestHostname: true})[vsphere.CategoryRealtime], "vm-1").Hostname).To(Equal("web1.example.com"))
		Expect(find(discover(Config{UseGuestHostname: true})[vsphere.CategoryRealtime], "vm-2").Hostname).To(Equal("web2"))
	})

	It("should request the guest hostname only when it is used", func() {
		Expect(NewWalker(Config{}).PropertyRequest().Properties[vsphere.KindVirtualMachine]).NotTo(ContainElement(vsphere.PropGuestHost))
		req := NewWalker(Config{UseGuestHostname: true, PageSize: 50}).PropertyRequest()
		Expect(req.Properties[vsphere.KindVirtualMachine]).To(ContainElements(vsphere.PropPowerState, vsphere.PropRuntimeHost, vsphere.PropGuestHost))
		Expect(req.Properties[vsphere.KindDatastore]).To(Equal([]string{vsphere.PropName, vsphere.PropParent, vsphere.PropCustomValue}))
		Expect(req.PageSize).To(Equal(int32(50)))
	})

	It("should follow pagination tokens until the last page", func() {
		client.PageSize = 5
		out := discover(Config{})

		Expect(client.PageCalls).To(Equal(3))
		Expect(out[vsphere.CategoryRealtime]).To(HaveLen(4))
		Expect(out[vsphere.CategoryHistorical]).To(HaveLen(3))
	})

	It("should treat missing properties as absent", func() {
		i := objectIndex(objs, "ds-1")
		delete(objs[i].Properties, vsphere.PropName)
		objs[i].Missing = []string{vsphere.PropName}

		ds := find(discover(Config{})[vsphere.CategoryHistorical], "ds-1")
		Expect(ds.Tags).To(Equal([]string{
			"vsphere_type:datastore",
			"vsphere_datacenter:dc1",
			"vsphere_folder:datastore",
		}))
	})

	It("should stop at a cycle in the parent chain", func() {
		a := vspheretest.Ref(vsphere.KindFolder, "group-a")
		b := vspheretest.Ref(vsphere.KindFolder, "group-b")
		objs = []vsphere.ObjectContent{
			vspheretest.Object(a, "a", b),
			vspheretest.Object(b, "b", a),
			vspheretest.Object(vspheretest.Ref(vsphere.KindDatastore, "ds-9"), "ds9", a),
		}

		ds := find(discover(Config{})[vsphere.CategoryHistorical], "ds-9")
		Expect(ds.Tags).To(Equal([]string{
			"vsphere_type:datastore",
			"vsphere_datastore:ds9",
			"vsphere_folder:b",
			"vsphere_folder:a",
		}))
	})

	It("should fail when the inventory cannot be retrieved", func() {
		client.RetrieveErr = errors.New("not authenticated")
		client.Objects = objs

		_, err := NewWalker(Config{}).Discover(ctx, client)
		Expect(err).To(MatchError(ContainSubstring("not authenticated")))
	})
})

var _ = Describe("Filter", func() {
	DescribeTable("matches names",
		func(f Filter, name string, want bool) {
			Expect(f.Match(name)).To(Equal(want))
		},
		Entry("no patterns", Filter{}, "anything", true),
		Entry("include hit", Filter{Include: regexp.MustCompile(`^prod-`)}, "prod-db", true),
		Entry("include miss", Filter{Include: regexp.MustCompile(`^prod-`)}, "dev-db", false),
		Entry("exclude wins over include", Filter{Include: regexp.MustCompile(`db`), Exclude: regexp.MustCompile(`^dev-`)}, "dev-db", false),
	)
})
