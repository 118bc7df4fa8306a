package backends

import (
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// ElasticGpuBackend lists the elastic GPUs attached at launch.
type ElasticGpuBackend struct {
	*base
}

var elasticGpuMatcher = filters.Matcher[*resources.ElasticGpu]{
	Fields: map[string]filters.Field[*resources.ElasticGpu]{
		"availability-zone":  filters.Value(func(g *resources.ElasticGpu) string { return g.AvailabilityZone }),
		"elastic-gpu-health": filters.Value(func(g *resources.ElasticGpu) string { return g.ElasticGpuHealth.Status }),
		"elastic-gpu-state":  filters.Value(func(g *resources.ElasticGpu) string { return g.ElasticGpuState }),
		"elastic-gpu-type":   filters.Value(func(g *resources.ElasticGpu) string { return g.ElasticGpuType }),
		"instance-id":        filters.Value(func(g *resources.ElasticGpu) string { return g.InstanceID }),
	},
	Tags: tagsOf[*resources.ElasticGpu],
}

// DescribeElasticGpusResponse lists elastic GPUs.
type DescribeElasticGpusResponse struct {
	Meta
	ElasticGpuSet []resources.ElasticGpuView `xml:"elasticGpuSet>item"`
	NextToken     string                     `xml:"nextToken,omitempty"`
}

// DescribeElasticGpus lists elastic GPUs.
func (b *ElasticGpuBackend) DescribeElasticGpus(p params.Params) (*DescribeElasticGpusResponse, error) {
	views, next, err := describe(b.base, state.KindElasticGpu, p, idList(p, "ElasticGpuId"),
		elasticGpuMatcher, (*resources.ElasticGpu).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeElasticGpusResponse{ElasticGpuSet: views, NextToken: next}, nil
}
