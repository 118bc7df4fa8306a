package backends

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// SpotFleetBackend implements the spot fleet request actions.
type SpotFleetBackend struct {
	*base
}

var spotFleetMatcher = filters.Matcher[*resources.SpotFleetRequest]{
	Fields: map[string]filters.Field[*resources.SpotFleetRequest]{
		"spot-fleet-request-id":    filters.Value(func(r *resources.SpotFleetRequest) string { return r.SpotFleetRequestID }),
		"spot-fleet-request-state": filters.Value(func(r *resources.SpotFleetRequest) string { return r.SpotFleetRequestState }),
		"activity-status":          filters.Value(func(r *resources.SpotFleetRequest) string { return r.ActivityStatus }),
	},
	Tags: tagsOf[*resources.SpotFleetRequest],
}

func fleetCancelled(r *resources.SpotFleetRequest) bool {
	switch types.BatchState(r.SpotFleetRequestState) {
	case types.BatchStateCancelled, types.BatchStateCancelledRunning, types.BatchStateCancelledTerminatingInstances:
		return true
	}
	return false
}

// RequestSpotFleetResponse carries the new fleet id.
type RequestSpotFleetResponse struct {
	Meta
	SpotFleetRequestID string `xml:"spotFleetRequestId"`
}

// RequestSpotFleet stores a fleet request. Fleets are accepted as fulfilled without
// launching instances.
func (b *SpotFleetBackend) RequestSpotFleet(p params.Params) (*RequestSpotFleetResponse, error) {
	if err := p.Require("SpotFleetRequestConfig.IamFleetRole", "SpotFleetRequestConfig.TargetCapacity"); err != nil {
		return nil, err
	}
	cfg := p.Sub("SpotFleetRequestConfig")
	target, err := cfg.Int("TargetCapacity", 0)
	if err != nil {
		return nil, err
	}
	onDemand, err := cfg.Int("OnDemandTargetCapacity", 0)
	if err != nil {
		return nil, err
	}
	if target < 1 || onDemand < 0 || onDemand > target {
		return nil, errors.InvalidValue("SpotFleetRequestConfig.TargetCapacity", cfg.String("TargetCapacity"),
			"TargetCapacity must be at least 1 and not below OnDemandTargetCapacity.")
	}
	strategy := orDefault(cfg.String("AllocationStrategy"), string(types.AllocationStrategyLowestPrice))
	if err := oneOf("SpotFleetRequestConfig.AllocationStrategy", strategy,
		valuesOf(types.AllocationStrategy("").Values())...); err != nil {
		return nil, err
	}
	fleetType := orDefault(cfg.String("Type"), string(types.FleetTypeMaintain))
	if err := oneOf("SpotFleetRequestConfig.Type", fleetType, valuesOf(types.FleetType("").Values())...); err != nil {
		return nil, err
	}
	terminateOnExpiry, err := cfg.Bool("TerminateInstancesWithExpiration", false)
	if err != nil {
		return nil, err
	}

	fleet := &resources.SpotFleetRequest{SpotFleetRequestView: resources.SpotFleetRequestView{
		SpotFleetRequestID:    b.store.NewID(state.KindSpotFleetRequest),
		SpotFleetRequestState: string(types.BatchStateActive),
		ActivityStatus:        string(types.ActivityStatusFulfilled),
		CreateTime:            b.timestamp(),
		SpotFleetRequestConfig: resources.SpotFleetRequestConfig{
			IamFleetRole:                     cfg.String("IamFleetRole"),
			TargetCapacity:                   target,
			OnDemandTargetCapacity:           onDemand,
			AllocationStrategy:               strategy,
			Type:                             fleetType,
			ExcessCapacityTerminationPolicy:  cfg.String("ExcessCapacityTerminationPolicy"),
			SpotPrice:                        cfg.String("SpotPrice"),
			TerminateInstancesWithExpiration: terminateOnExpiry,
			ValidFrom:                        cfg.String("ValidFrom"),
			ValidUntil:                       cfg.String("ValidUntil"),
		},
	}}
	fleet.Tags = cfg.TagSpecifications(fleet.ResourceType())
	b.store.Table(state.KindSpotFleetRequest).Put(fleet)

	b.log.Debug("Spot fleet requested",
		zap.String("operation", "RequestSpotFleet"),
		zap.String("spot_fleet_request_id", fleet.SpotFleetRequestID),
		zap.Int("target_capacity", target),
	)
	return &RequestSpotFleetResponse{SpotFleetRequestID: fleet.SpotFleetRequestID}, nil
}

// ModifySpotFleetRequest changes the capacity targets of a fleet that is not cancelled.
func (b *SpotFleetBackend) ModifySpotFleetRequest(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("SpotFleetRequestId"); err != nil {
		return nil, err
	}
	fleet, err := lookup[*resources.SpotFleetRequest](b.store, state.KindSpotFleetRequest, p.String("SpotFleetRequestId"))
	if err != nil {
		return nil, err
	}
	if fleetCancelled(fleet) {
		return nil, errors.API(errors.ErrIncorrectState,
			"The spot fleet request %s is in state %s.", fleet.SpotFleetRequestID, fleet.SpotFleetRequestState)
	}
	cfg := fleet.SpotFleetRequestConfig
	if cfg.TargetCapacity, err = p.Int("TargetCapacity", cfg.TargetCapacity); err != nil {
		return nil, err
	}
	if cfg.OnDemandTargetCapacity, err = p.Int("OnDemandTargetCapacity", cfg.OnDemandTargetCapacity); err != nil {
		return nil, err
	}
	if cfg.TargetCapacity < 1 || cfg.OnDemandTargetCapacity < 0 || cfg.OnDemandTargetCapacity > cfg.TargetCapacity {
		return nil, errors.InvalidValue("TargetCapacity", p.String("TargetCapacity"),
			"TargetCapacity must be at least 1 and not below OnDemandTargetCapacity.")
	}
	if policy := p.String("ExcessCapacityTerminationPolicy"); policy != "" {
		if err := oneOf("ExcessCapacityTerminationPolicy", policy,
			valuesOf(types.ExcessCapacityTerminationPolicy("").Values())...); err != nil {
			return nil, err
		}
		cfg.ExcessCapacityTerminationPolicy = policy
	}
	fleet.SpotFleetRequestConfig = cfg

	b.log.Debug("Spot fleet modified",
		zap.String("operation", "ModifySpotFleetRequest"),
		zap.String("spot_fleet_request_id", fleet.SpotFleetRequestID),
		zap.Int("target_capacity", cfg.TargetCapacity),
	)
	return ok(), nil
}

// CancelSpotFleetRequestsSuccess reports one cancelled fleet.
type CancelSpotFleetRequestsSuccess struct {
	SpotFleetRequestID            string `xml:"spotFleetRequestId"`
	CurrentSpotFleetRequestState  string `xml:"currentSpotFleetRequestState"`
	PreviousSpotFleetRequestState string `xml:"previousSpotFleetRequestState"`
}

// CancelSpotFleetRequestsFailure reports a fleet that could not be cancelled.
type CancelSpotFleetRequestsFailure struct {
	SpotFleetRequestID string `xml:"spotFleetRequestId"`
	Error              struct {
		Code    string `xml:"code"`
		Message string `xml:"message"`
	} `xml:"error"`
}

// CancelSpotFleetRequestsResponse lists the outcome per fleet.
type CancelSpotFleetRequestsResponse struct {
	Meta
	Successful   []CancelSpotFleetRequestsSuccess `xml:"successfulFleetRequestSet>item"`
	Unsuccessful []CancelSpotFleetRequestsFailure `xml:"unsuccessfulFleetRequestSet>item"`
}

// CancelSpotFleetRequests cancels fleets. Cancelled fleets stay describable in state
// cancelled_terminating or cancelled_running depending on TerminateInstances.
func (b *SpotFleetBackend) CancelSpotFleetRequests(p params.Params) (*CancelSpotFleetRequestsResponse, error) {
	if err := p.Require("TerminateInstances"); err != nil {
		return nil, err
	}
	terminate, err := p.Bool("TerminateInstances", false)
	if err != nil {
		return nil, err
	}
	ids := idList(p, "SpotFleetRequestId")
	if len(ids) == 0 {
		return nil, errors.MissingParameter("SpotFleetRequestId")
	}
	fleets, err := state.Resolve[*resources.SpotFleetRequest](b.store, state.KindSpotFleetRequest, ids)
	if err != nil {
		return nil, err
	}

	next := types.BatchStateCancelledRunning
	if terminate {
		next = types.BatchStateCancelledTerminatingInstances
	}
	resp := &CancelSpotFleetRequestsResponse{}
	for _, fleet := range fleets {
		if fleetCancelled(fleet) {
			failure := CancelSpotFleetRequestsFailure{SpotFleetRequestID: fleet.SpotFleetRequestID}
			failure.Error.Code = string(types.CancelBatchErrorCodeFleetRequestNotInCancellableState)
			failure.Error.Message = "The spot fleet request is already cancelled."
			resp.Unsuccessful = append(resp.Unsuccessful, failure)
			continue
		}
		previous := fleet.SpotFleetRequestState
		fleet.SpotFleetRequestState = string(next)
		resp.Successful = append(resp.Successful, CancelSpotFleetRequestsSuccess{
			SpotFleetRequestID:            fleet.SpotFleetRequestID,
			CurrentSpotFleetRequestState:  fleet.SpotFleetRequestState,
			PreviousSpotFleetRequestState: previous,
		})
		b.log.Debug("Spot fleet cancelled",
			zap.String("operation", "CancelSpotFleetRequests"),
			zap.String("spot_fleet_request_id", fleet.SpotFleetRequestID),
			zap.String("state", fleet.SpotFleetRequestState),
		)
	}
	return resp, nil
}

// DescribeSpotFleetRequestsResponse lists fleets.
type DescribeSpotFleetRequestsResponse struct {
	Meta
	SpotFleetRequestConfigs []resources.SpotFleetRequestView `xml:"spotFleetRequestConfigSet>item"`
	NextToken               string                           `xml:"nextToken,omitempty"`
}

// DescribeSpotFleetRequests lists fleets, cancelled ones included.
func (b *SpotFleetBackend) DescribeSpotFleetRequests(p params.Params) (*DescribeSpotFleetRequestsResponse, error) {
	views, next, err := describe(b.base, state.KindSpotFleetRequest, p, idList(p, "SpotFleetRequestId"),
		spotFleetMatcher, (*resources.SpotFleetRequest).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeSpotFleetRequestsResponse{SpotFleetRequestConfigs: views, NextToken: next}, nil
}
