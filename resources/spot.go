package resources

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// SpotStatus is the fulfilment status of a spot request.
type SpotStatus struct {
	Code       string `xml:"code"`
	Message    string `xml:"message"`
	UpdateTime string `xml:"updateTime"`
}

// LaunchSpecification is the launch template of a spot request.
type LaunchSpecification struct {
	ImageID      string `xml:"imageId"`
	InstanceType string `xml:"instanceType"`
	KeyName      string `xml:"keyName,omitempty"`
	SubnetID     string `xml:"subnetId,omitempty"`
}

// SpotInstanceRequestView is the public shape of a spot instance request.
type SpotInstanceRequestView struct {
	SpotInstanceRequestID        string              `xml:"spotInstanceRequestId"`
	SpotPrice                    string              `xml:"spotPrice"`
	Type                         string              `xml:"type"`
	State                        string              `xml:"state"`
	Status                       SpotStatus          `xml:"status"`
	LaunchSpecification          LaunchSpecification `xml:"launchSpecification"`
	InstanceID                   string              `xml:"instanceId,omitempty"`
	CreateTime                   string              `xml:"createTime"`
	ProductDescription           string              `xml:"productDescription"`
	LaunchedAvailabilityZone     string              `xml:"launchedAvailabilityZone,omitempty"`
	InstanceInterruptionBehavior string              `xml:"instanceInterruptionBehavior"`
	ValidUntil                   string              `xml:"validUntil,omitempty"`
	Tagged
}

// SpotInstanceRequest is a stored spot instance request. Cancelled requests stay stored.
type SpotInstanceRequest struct {
	SpotInstanceRequestView
}

func (r *SpotInstanceRequest) ID() string { return r.SpotInstanceRequestID }
func (r *SpotInstanceRequest) ResourceType() string {
	return string(types.ResourceTypeSpotInstancesRequest)
}

// Active reports whether the request still holds its instance.
func (r *SpotInstanceRequest) Active() bool {
	return r.InstanceID != "" && r.State != string(types.SpotInstanceStateCancelled) &&
		r.State != string(types.SpotInstanceStateClosed)
}

// View returns a detached copy of the public fields.
func (r *SpotInstanceRequest) View() SpotInstanceRequestView {
	out := r.SpotInstanceRequestView
	out.Tags = out.Tags.Clone()
	return out
}

// SpotFleetRequestConfig is the configuration of a spot fleet.
type SpotFleetRequestConfig struct {
	IamFleetRole                     string `xml:"iamFleetRole"`
	TargetCapacity                   int    `xml:"targetCapacity"`
	OnDemandTargetCapacity           int    `xml:"onDemandTargetCapacity"`
	AllocationStrategy               string `xml:"allocationStrategy"`
	Type                             string `xml:"type"`
	ExcessCapacityTerminationPolicy  string `xml:"excessCapacityTerminationPolicy,omitempty"`
	SpotPrice                        string `xml:"spotPrice,omitempty"`
	TerminateInstancesWithExpiration bool   `xml:"terminateInstancesWithExpiration"`
	ValidFrom                        string `xml:"validFrom,omitempty"`
	ValidUntil                       string `xml:"validUntil,omitempty"`
}

// SpotFleetRequestView is the public shape of a spot fleet request.
type SpotFleetRequestView struct {
	SpotFleetRequestID     string                 `xml:"spotFleetRequestId"`
	SpotFleetRequestState  string                 `xml:"spotFleetRequestState"`
	ActivityStatus         string                 `xml:"activityStatus"`
	CreateTime             string                 `xml:"createTime"`
	SpotFleetRequestConfig SpotFleetRequestConfig `xml:"spotFleetRequestConfig"`
	Tagged
}

// SpotFleetRequest is a stored spot fleet request. Cancelled fleets stay stored.
type SpotFleetRequest struct {
	SpotFleetRequestView
}

func (r *SpotFleetRequest) ID() string { return r.SpotFleetRequestID }
func (r *SpotFleetRequest) ResourceType() string {
	return string(types.ResourceTypeSpotFleetRequest)
}

// View returns a detached copy of the public fields.
func (r *SpotFleetRequest) View() SpotFleetRequestView {
	out := r.SpotFleetRequestView
	out.Tags = out.Tags.Clone()
	return out
}
