package backends

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

const (
	spotStatusFulfilled        = "fulfilled"
	spotStatusCancelled        = "request-canceled-and-instance-running"
	spotProductDescription     = "Linux/UNIX"
	spotDefaultInterruption    = "terminate"
	spotStatusFulfilledMessage = "Your spot request is fulfilled."
)

// SpotInstanceBackend implements the spot instance request actions. Every request is
// fulfilled immediately with one instance launched through the instance backend.
type SpotInstanceBackend struct {
	*base
	instances *InstanceBackend
}

var spotRequestMatcher = filters.Matcher[*resources.SpotInstanceRequest]{
	Fields: map[string]filters.Field[*resources.SpotInstanceRequest]{
		"spot-instance-request-id":           filters.Value(func(r *resources.SpotInstanceRequest) string { return r.SpotInstanceRequestID }),
		"spot-price":                         filters.Value(func(r *resources.SpotInstanceRequest) string { return r.SpotPrice }),
		"state":                              filters.Value(func(r *resources.SpotInstanceRequest) string { return r.State }),
		"status-code":                        filters.Value(func(r *resources.SpotInstanceRequest) string { return r.Status.Code }),
		"type":                               filters.Value(func(r *resources.SpotInstanceRequest) string { return r.Type }),
		"instance-id":                        filters.Value(func(r *resources.SpotInstanceRequest) string { return r.InstanceID }),
		"product-description":                filters.Value(func(r *resources.SpotInstanceRequest) string { return r.ProductDescription }),
		"launched-availability-zone":         filters.Value(func(r *resources.SpotInstanceRequest) string { return r.LaunchedAvailabilityZone }),
		"launch.image-id":                    filters.Value(func(r *resources.SpotInstanceRequest) string { return r.LaunchSpecification.ImageID }),
		"launch.instance-type":               filters.Value(func(r *resources.SpotInstanceRequest) string { return r.LaunchSpecification.InstanceType }),
		"launch.key-name":                    filters.Value(func(r *resources.SpotInstanceRequest) string { return r.LaunchSpecification.KeyName }),
		"launch.network-interface.subnet-id": filters.Value(func(r *resources.SpotInstanceRequest) string { return r.LaunchSpecification.SubnetID }),
	},
	Tags: tagsOf[*resources.SpotInstanceRequest],
}

// SpotInstanceRequestsResponse lists spot requests.
type SpotInstanceRequestsResponse struct {
	Meta
	SpotInstanceRequests []resources.SpotInstanceRequestView `xml:"spotInstanceRequestSet>item"`
	NextToken            string                              `xml:"nextToken,omitempty"`
}

// RequestSpotInstances creates InstanceCount requests from one launch specification. The
// whole launch is planned before any request is stored.
func (b *SpotInstanceBackend) RequestSpotInstances(p params.Params) (*SpotInstanceRequestsResponse, error) {
	count, err := p.Int("InstanceCount", 1)
	if err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, errors.InvalidValue("InstanceCount", p.String("InstanceCount"), "InstanceCount must be at least 1.")
	}
	if count > maxLaunchCount {
		return nil, errors.InvalidValue("InstanceCount", p.String("InstanceCount"),
			fmt.Sprintf("InstanceCount must be at most %d.", maxLaunchCount))
	}
	requestType := orDefault(p.String("Type"), string(types.SpotInstanceTypeOneTime))
	if err := oneOf("Type", requestType, valuesOf(types.SpotInstanceType("").Values())...); err != nil {
		return nil, err
	}
	interruption := orDefault(p.String("InstanceInterruptionBehavior"), spotDefaultInterruption)
	if err := oneOf("InstanceInterruptionBehavior", interruption,
		valuesOf(types.InstanceInterruptionBehavior("").Values())...); err != nil {
		return nil, err
	}

	spec := p.Sub("LaunchSpecification")
	plan, err := b.instances.plan(spec, count)
	if err != nil {
		return nil, err
	}
	plan.lifecycle = string(types.InstanceLifecycleTypeSpot)
	tags := p.TagSpecifications(string(types.ResourceTypeSpotInstancesRequest))

	resp := &SpotInstanceRequestsResponse{}
	for i := 0; i < count; i++ {
		single := *plan
		single.count = 1
		single.spotRequestID = b.store.NewID(state.KindSpotInstanceRequest)
		_, launched, err := b.instances.launch(&single)
		if err != nil {
			return nil, err
		}
		inst := launched[0]

		now := b.timestamp()
		req := &resources.SpotInstanceRequest{SpotInstanceRequestView: resources.SpotInstanceRequestView{
			SpotInstanceRequestID: single.spotRequestID,
			SpotPrice:             p.String("SpotPrice"),
			Type:                  requestType,
			State:                 string(types.SpotInstanceStateActive),
			Status: resources.SpotStatus{
				Code:       spotStatusFulfilled,
				Message:    spotStatusFulfilledMessage,
				UpdateTime: now,
			},
			LaunchSpecification: resources.LaunchSpecification{
				ImageID:      inst.ImageID,
				InstanceType: inst.InstanceType,
				KeyName:      inst.KeyName,
				SubnetID:     inst.SubnetID,
			},
			InstanceID:                   inst.InstanceID,
			CreateTime:                   now,
			ProductDescription:           spotProductDescription,
			LaunchedAvailabilityZone:     inst.Placement.AvailabilityZone,
			InstanceInterruptionBehavior: interruption,
			ValidUntil:                   p.String("ValidUntil"),
		}}
		req.Tags = tags.Clone()
		b.store.Table(state.KindSpotInstanceRequest).Put(req)
		registerChild(state.KindSpotInstanceRequest, req.SpotInstanceRequestID, inst)
		resp.SpotInstanceRequests = append(resp.SpotInstanceRequests, req.View())

		b.log.Debug("Spot instance request fulfilled",
			zap.String("operation", "RequestSpotInstances"),
			zap.String("spot_instance_request_id", req.SpotInstanceRequestID),
			zap.String("instance_id", inst.InstanceID),
		)
	}
	return resp, nil
}

// CancelledSpotInstanceRequest reports one cancelled request.
type CancelledSpotInstanceRequest struct {
	SpotInstanceRequestID string `xml:"spotInstanceRequestId"`
	State                 string `xml:"state"`
}

// CancelSpotInstanceRequestsResponse lists cancelled requests.
type CancelSpotInstanceRequestsResponse struct {
	Meta
	CancelledSpotInstanceRequests []CancelledSpotInstanceRequest `xml:"spotInstanceRequestSet>item"`
}

// CancelSpotInstanceRequests cancels requests. Their instances keep running and stop
// being held by the request.
func (b *SpotInstanceBackend) CancelSpotInstanceRequests(p params.Params) (*CancelSpotInstanceRequestsResponse, error) {
	ids := idList(p, "SpotInstanceRequestId")
	if len(ids) == 0 {
		return nil, errors.MissingParameter("SpotInstanceRequestId")
	}
	requests, err := state.Resolve[*resources.SpotInstanceRequest](b.store, state.KindSpotInstanceRequest, ids)
	if err != nil {
		return nil, err
	}
	resp := &CancelSpotInstanceRequestsResponse{}
	for _, req := range requests {
		if req.Active() {
			unregisterChild(b.store, state.KindSpotInstanceRequest, req.SpotInstanceRequestID, state.KindInstance, req.InstanceID)
			req.Status = resources.SpotStatus{Code: spotStatusCancelled, Message: "Spot request canceled", UpdateTime: b.timestamp()}
		}
		req.State = string(types.SpotInstanceStateCancelled)
		resp.CancelledSpotInstanceRequests = append(resp.CancelledSpotInstanceRequests, CancelledSpotInstanceRequest{
			SpotInstanceRequestID: req.SpotInstanceRequestID,
			State:                 req.State,
		})
		b.log.Debug("Spot instance request cancelled",
			zap.String("operation", "CancelSpotInstanceRequests"),
			zap.String("spot_instance_request_id", req.SpotInstanceRequestID),
		)
	}
	return resp, nil
}

// DescribeSpotInstanceRequests lists spot requests, cancelled ones included.
func (b *SpotInstanceBackend) DescribeSpotInstanceRequests(p params.Params) (*SpotInstanceRequestsResponse, error) {
	views, next, err := describe(b.base, state.KindSpotInstanceRequest, p, idList(p, "SpotInstanceRequestId"),
		spotRequestMatcher, (*resources.SpotInstanceRequest).View, true)
	if err != nil {
		return nil, err
	}
	return &SpotInstanceRequestsResponse{SpotInstanceRequests: views, NextToken: next}, nil
}
