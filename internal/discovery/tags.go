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
	"fmt"
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// Tag keys.
const (
	TagType       = "vsphere_type"
	TagHost       = "vsphere_host"
	TagFolder     = "vsphere_folder"
	TagCluster    = "vsphere_cluster"
	TagCompute    = "vsphere_compute"
	TagDatacenter = "vsphere_datacenter"
	TagDatastore  = "vsphere_datastore"
	TagVM         = "vsphere_vm"
	// TagCustomPrefix prefixes the key of custom attribute tags.
	TagCustomPrefix = "vsphere_custom_"
)

var shortKind = map[vsphere.Kind]string{
	vsphere.KindVirtualMachine:  "vm",
	vsphere.KindHost:            "host",
	vsphere.KindDatastore:       "datastore",
	vsphere.KindDatacenter:      "datacenter",
	vsphere.KindCluster:         "cluster",
	vsphere.KindComputeResource: "compute",
	vsphere.KindFolder:          "folder",
}

var nameTagKey = map[vsphere.Kind]string{
	vsphere.KindVirtualMachine:  TagVM,
	vsphere.KindHost:            TagHost,
	vsphere.KindDatastore:       TagDatastore,
	vsphere.KindDatacenter:      TagDatacenter,
	vsphere.KindCluster:         TagCluster,
	vsphere.KindComputeResource: TagCompute,
	vsphere.KindFolder:          TagFolder,
}

func tag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}

// TagKey returns the key part of a key:value tag, or the whole tag.
func TagKey(t string) string {
	key, _, _ := strings.Cut(t, ":")
	return key
}

// tagResolver derives tags from the objects fetched in one pass.
type tagResolver struct {
	index map[vsphere.ObjectRef]vsphere.ObjectContent
}

func newTagResolver(objs []vsphere.ObjectContent) *tagResolver {
	index := make(map[vsphere.ObjectRef]vsphere.ObjectContent, len(objs))
	for _, obj := range objs {
		index[obj.Ref] = obj
	}
	return &tagResolver{index: index}
}

func (r *tagResolver) name(ref vsphere.ObjectRef) string {
	return stringProp(r.index[ref], vsphere.PropName)
}

// ownTags are the tags describing obj itself.
func (r *tagResolver) ownTags(obj vsphere.ObjectContent) []string {
	kind := obj.Ref.Kind
	tags := []string{tag(TagType, shortKind[kind])}
	if name := stringProp(obj, vsphere.PropName); name != "" {
		tags = append(tags, tag(nameTagKey[kind], name))
	}
	if kind == vsphere.KindVirtualMachine {
		if host, ok := refProp(obj, vsphere.PropRuntimeHost); ok {
			if hostName := r.name(host); hostName != "" {
				tags = append(tags, tag(TagHost, hostName))
			}
		}
	}
	if values, ok := obj.Properties[vsphere.PropCustomValue].([]vsphere.CustomValue); ok {
		for _, cv := range values {
			if cv.Value == "" {
				continue
			}
			tags = append(tags, tag(fmt.Sprintf("%s%d", TagCustomPrefix, cv.Key), cv.Value))
		}
	}
	return tags
}

// ancestorTags ascends the parent chain of obj once and returns one tag per
// ancestor, root-most first. The root folder is not tagged. A cycle in the
// parent chain ends the walk.
func (r *tagResolver) ancestorTags(obj vsphere.ObjectContent) []string {
	var tags []string
	visited := sets.New(obj.Ref)
	parentRef, ok := refProp(obj, vsphere.PropParent)
	for ok && !visited.Has(parentRef) {
		visited.Insert(parentRef)
		parent, found := r.index[parentRef]
		if !found {
			break
		}
		grandparent, hasParent := refProp(parent, vsphere.PropParent)
		if t, tagged := ancestorTag(parent, hasParent); tagged {
			tags = append(tags, t)
		}
		parentRef, ok = grandparent, hasParent
	}
	slices.Reverse(tags)
	return tags
}

func ancestorTag(obj vsphere.ObjectContent, hasParent bool) (string, bool) {
	if obj.Ref.Kind == vsphere.KindFolder && !hasParent {
		return "", false
	}
	key, ok := nameTagKey[obj.Ref.Kind]
	if !ok || obj.Ref.Kind == vsphere.KindVirtualMachine || obj.Ref.Kind == vsphere.KindDatastore {
		return "", false
	}
	name := stringProp(obj, vsphere.PropName)
	if name == "" {
		return "", false
	}
	return tag(key, name), true
}

// splitExcluded partitions tags into those whose key is in excluded and the rest.
func splitExcluded(tags []string, excluded sets.Set[string]) (kept, matched []string) {
	for _, t := range tags {
		if excluded.Has(TagKey(t)) {
			matched = append(matched, t)
		} else {
			kept = append(kept, t)
		}
	}
	return kept, matched
}

func stringProp(obj vsphere.ObjectContent, path string) string {
	s, _ := obj.Properties[path].(string)
	return s
}

func refProp(obj vsphere.ObjectContent, path string) (vsphere.ObjectRef, bool) {
	ref, ok := obj.Properties[path].(vsphere.ObjectRef)
	return ref, ok && !ref.IsZero()
}
