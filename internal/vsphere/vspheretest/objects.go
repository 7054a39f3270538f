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

package vspheretest

import "github.com/llm-d/vsphere-inventory-collector/internal/vsphere"

// Ref builds an ObjectRef.
func Ref(kind vsphere.Kind, value string) vsphere.ObjectRef {
	return vsphere.ObjectRef{Kind: kind, Value: value}
}

// Object builds an ObjectContent with a name and an optional parent.
func Object(ref vsphere.ObjectRef, name string, parent vsphere.ObjectRef) vsphere.ObjectContent {
	props := map[string]any{vsphere.PropName: name}
	if !parent.IsZero() {
		props[vsphere.PropParent] = parent
	}
	return vsphere.ObjectContent{Ref: ref, Properties: props}
}

// VM builds a virtual machine running on host in the given power state.
func VM(value, name string, parent, host vsphere.ObjectRef, powerState string) vsphere.ObjectContent {
	obj := Object(Ref(vsphere.KindVirtualMachine, value), name, parent)
	obj.Properties[vsphere.PropPowerState] = powerState
	if !host.IsZero() {
		obj.Properties[vsphere.PropRuntimeHost] = host
	}
	return obj
}

// WithCustomValues sets the customValue property of obj.
func WithCustomValues(obj vsphere.ObjectContent, values ...vsphere.CustomValue) vsphere.ObjectContent {
	obj.Properties[vsphere.PropCustomValue] = values
	return obj
}

// Inventory is a small datacenter used across tests:
//
//	Folder:group-d1 "Datacenters"
//	└── Datacenter:dc-1 "dc1"
//	    ├── Folder:group-h1 "host"
//	    │   └── ClusterComputeResource:domain-c1 "cluster1"
//	    │       ├── HostSystem:host-1 "esx1"
//	    │       └── HostSystem:host-2 "esx2"
//	    ├── Folder:group-v1 "vm"
//	    │   ├── VirtualMachine:vm-1 "web1" (on esx1, poweredOn)
//	    │   ├── VirtualMachine:vm-2 "web2" (on esx2, poweredOn)
//	    │   └── VirtualMachine:vm-3 "batch" (on esx1, poweredOff)
//	    └── Folder:group-s1 "datastore"
//	        └── Datastore:ds-1 "ds1"
func Inventory() []vsphere.ObjectContent {
	root := Ref(vsphere.KindFolder, "group-d1")
	dc := Ref(vsphere.KindDatacenter, "dc-1")
	hostFolder := Ref(vsphere.KindFolder, "group-h1")
	vmFolder := Ref(vsphere.KindFolder, "group-v1")
	dsFolder := Ref(vsphere.KindFolder, "group-s1")
	cluster := Ref(vsphere.KindCluster, "domain-c1")
	esx1 := Ref(vsphere.KindHost, "host-1")
	esx2 := Ref(vsphere.KindHost, "host-2")

	return []vsphere.ObjectContent{
		Object(root, "Datacenters", vsphere.ObjectRef{}),
		Object(dc, "dc1", root),
		Object(hostFolder, "host", dc),
		Object(vmFolder, "vm", dc),
		Object(dsFolder, "datastore", dc),
		Object(cluster, "cluster1", hostFolder),
		Object(esx1, "esx1", cluster),
		Object(esx2, "esx2", cluster),
		VM("vm-1", "web1", vmFolder, esx1, vsphere.PoweredOn),
		VM("vm-2", "web2", vmFolder, esx2, vsphere.PoweredOn),
		VM("vm-3", "batch", vmFolder, esx1, "poweredOff"),
		Object(Ref(vsphere.KindDatastore, "ds-1"), "ds1", dsFolder),
	}
}
