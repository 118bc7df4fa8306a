package backends

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// defaultInstanceType is launched when RunInstances names no type.
const defaultInstanceType = string(types.InstanceTypeM1Small)

var sizeVCPUs = map[string]int{
	"nano": 2, "micro": 2, "small": 2, "medium": 2, "large": 2, "xlarge": 4,
}

// loadInstanceTypeCatalog fills the instance type table from the SDK enum once per store.
func loadInstanceTypeCatalog(store *state.Store) {
	table := store.Table(state.KindInstanceType)
	if table.Len() > 0 {
		return
	}
	for _, it := range types.InstanceType("").Values() {
		table.Put(catalogEntry(string(it)))
	}
}

// catalogEntry derives plausible hardware figures from the type name.
func catalogEntry(name string) *resources.InstanceTypeInfo {
	family, size, _ := strings.Cut(name, ".")
	info := &resources.InstanceTypeInfo{}
	info.InstanceType = name
	info.Hypervisor = "nitro"
	info.BareMetal = strings.HasPrefix(size, "metal")
	info.ProcessorInfo.SupportedArchitectures = []string{architectureOf(family)}

	vcpus, known := sizeVCPUs[size]
	switch {
	case known:
	case info.BareMetal:
		vcpus = 96
	case strings.HasSuffix(size, "xlarge"):
		n, err := strconv.Atoi(strings.TrimSuffix(size, "xlarge"))
		if err != nil {
			n = 1
		}
		vcpus = 4 * n
	default:
		vcpus = 2
	}
	if size == "nano" || size == "micro" || size == "small" {
		if strings.HasPrefix(family, "t1") || strings.HasPrefix(family, "m1") || strings.HasPrefix(family, "t2") {
			vcpus = 1
		}
	}
	info.VCPUInfo.DefaultVCpus = vcpus

	memoryPerVCPU := 4096
	switch family[0] {
	case 'c', 't':
		memoryPerVCPU = 2048
	case 'r', 'x', 'z', 'u':
		memoryPerVCPU = 8192
	}
	switch size {
	case "nano":
		info.MemoryInfo.SizeInMiB = 512
	case "micro":
		info.MemoryInfo.SizeInMiB = 1024
	default:
		info.MemoryInfo.SizeInMiB = vcpus * memoryPerVCPU
	}

	gen := generationOf(family)
	info.CurrentGeneration = gen >= 3 || family == "t2"
	if gen < 3 {
		info.Hypervisor = "xen"
	}
	return info
}

// generationOf returns the digit following the family letters ("m5d" -> 5).
func generationOf(family string) int {
	for i, r := range family {
		if unicode.IsDigit(r) {
			return int(family[i] - '0')
		}
	}
	return 0
}

func architectureOf(family string) string {
	switch {
	case family == "mac1":
		return string(types.ArchitectureTypeX8664Mac)
	case strings.HasPrefix(family, "mac"):
		return string(types.ArchitectureTypeArm64Mac)
	case family == "a1":
		return string(types.ArchitectureTypeArm64)
	}
	// Graviton families carry a "g" right after the generation digit (m6g, c7gn, t4g).
	for i, r := range family {
		if unicode.IsDigit(r) {
			rest := family[i+1:]
			if strings.HasPrefix(rest, "g") {
				return string(types.ArchitectureTypeArm64)
			}
			break
		}
	}
	return string(types.ArchitectureTypeX8664)
}

// burstable reports whether the type belongs to a credit based family.
func burstable(instanceType string) bool {
	family, _, _ := strings.Cut(instanceType, ".")
	switch family {
	case "t2", "t3", "t3a", "t4g":
		return true
	}
	return false
}

// isMac reports whether the type is an EC2 Mac type.
func isMac(instanceType string) bool {
	return strings.HasPrefix(instanceType, "mac")
}

// InstanceTypeBackend serves the read-only instance type catalog.
type InstanceTypeBackend struct {
	*base
}

var instanceTypeMatcher = filters.Matcher[*resources.InstanceTypeInfo]{
	Fields: map[string]filters.Field[*resources.InstanceTypeInfo]{
		"instance-type":      filters.Value(func(t *resources.InstanceTypeInfo) string { return t.InstanceType }),
		"current-generation": filters.Bool(func(t *resources.InstanceTypeInfo) bool { return t.CurrentGeneration }),
		"bare-metal":         filters.Bool(func(t *resources.InstanceTypeInfo) bool { return t.BareMetal }),
		"hypervisor":         filters.Value(func(t *resources.InstanceTypeInfo) string { return t.Hypervisor }),
		"processor-info.supported-architecture": filters.Values(func(t *resources.InstanceTypeInfo) []string {
			return t.ProcessorInfo.SupportedArchitectures
		}),
		"vcpu-info.default-vcpus": filters.Int(func(t *resources.InstanceTypeInfo) int { return t.VCPUInfo.DefaultVCpus }),
		"memory-info.size-in-mib": filters.Int(func(t *resources.InstanceTypeInfo) int { return t.MemoryInfo.SizeInMiB }),
	},
}

// DescribeInstanceTypesResponse lists catalog entries.
type DescribeInstanceTypesResponse struct {
	Meta
	InstanceTypes []resources.InstanceTypeView `xml:"instanceTypeSet>item"`
	NextToken     string                       `xml:"nextToken,omitempty"`
}

// DescribeInstanceTypes lists the catalog.
func (b *InstanceTypeBackend) DescribeInstanceTypes(p params.Params) (*DescribeInstanceTypesResponse, error) {
	views, next, err := describe(b.base, state.KindInstanceType, p, idList(p, "InstanceType"),
		instanceTypeMatcher, (*resources.InstanceTypeInfo).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeInstanceTypesResponse{InstanceTypes: views, NextToken: next}, nil
}
