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

// FlowLogBackend implements the VPC flow log actions for VPC and subnet resources.
type FlowLogBackend struct {
	*base
}

var flowLogMatcher = filters.Matcher[*resources.FlowLog]{
	Fields: map[string]filters.Field[*resources.FlowLog]{
		"flow-log-id":          filters.Value(func(f *resources.FlowLog) string { return f.FlowLogID }),
		"resource-id":          filters.Value(func(f *resources.FlowLog) string { return f.ResourceID }),
		"traffic-type":         filters.Value(func(f *resources.FlowLog) string { return f.TrafficType }),
		"log-destination-type": filters.Value(func(f *resources.FlowLog) string { return f.LogDestinationType }),
		"log-group-name":       filters.Value(func(f *resources.FlowLog) string { return f.LogGroupName }),
		"deliver-log-status":   filters.Value(func(f *resources.FlowLog) string { return f.DeliverLogsStatus }),
	},
	Tags: tagsOf[*resources.FlowLog],
}

var flowLogParents = map[string]state.Kind{
	string(types.FlowLogsResourceTypeVpc):    state.KindVpc,
	string(types.FlowLogsResourceTypeSubnet): state.KindSubnet,
}

// UnsuccessfulItem reports a per resource failure of a batch action.
type UnsuccessfulItem struct {
	ResourceID string `xml:"resourceId"`
	Error      struct {
		Code    string `xml:"code"`
		Message string `xml:"message"`
	} `xml:"error"`
}

func unsuccessful(id string, code errors.ErrorType, message string) UnsuccessfulItem {
	item := UnsuccessfulItem{ResourceID: id}
	item.Error.Code = string(code)
	item.Error.Message = message
	return item
}

// CreateFlowLogsResponse lists the created flow logs and the rejected resources.
type CreateFlowLogsResponse struct {
	Meta
	ClientToken  string             `xml:"clientToken,omitempty"`
	FlowLogIDs   []string           `xml:"flowLogIdSet>item"`
	Unsuccessful []UnsuccessfulItem `xml:"unsuccessful>item"`
}

// flowLogDestination validates the destination parameters and returns them as a template.
func flowLogDestination(p params.Params) (resources.FlowLogView, error) {
	view := resources.FlowLogView{
		TrafficType:              orDefault(p.String("TrafficType"), string(types.TrafficTypeAll)),
		LogDestinationType:       orDefault(p.String("LogDestinationType"), string(types.LogDestinationTypeCloudWatchLogs)),
		LogDestination:           p.String("LogDestination"),
		LogGroupName:             p.String("LogGroupName"),
		DeliverLogsPermissionArn: p.String("DeliverLogsPermissionArn"),
		LogFormat:                p.String("LogFormat"),
	}
	if err := oneOf("TrafficType", view.TrafficType, valuesOf(types.TrafficType("").Values())...); err != nil {
		return view, err
	}
	if err := oneOf("LogDestinationType", view.LogDestinationType, valuesOf(types.LogDestinationType("").Values())...); err != nil {
		return view, err
	}
	interval, err := p.Int("MaxAggregationInterval", 600)
	if err != nil {
		return view, err
	}
	if interval != 60 && interval != 600 {
		return view, errors.InvalidValue("MaxAggregationInterval", p.String("MaxAggregationInterval"), "Valid values are 60 and 600.")
	}
	view.MaxAggregationInterval = interval

	switch types.LogDestinationType(view.LogDestinationType) {
	case types.LogDestinationTypeCloudWatchLogs:
		if view.LogGroupName == "" && view.LogDestination == "" {
			return view, errors.MissingParameter("LogGroupName")
		}
		if view.LogGroupName != "" && view.LogDestination != "" {
			return view, errors.API(errors.ErrInvalidParameterCombo,
				"Please only provide LogGroupName or only provide LogDestination.")
		}
		if view.DeliverLogsPermissionArn == "" {
			return view, errors.MissingParameter("DeliverLogsPermissionArn")
		}
	default:
		if view.LogGroupName != "" {
			return view, errors.API(errors.ErrInvalidParameterCombo,
				"LogGroupName cannot be used with LogDestinationType %s.", view.LogDestinationType)
		}
		if view.LogDestination == "" {
			return view, errors.MissingParameter("LogDestination")
		}
	}
	return view, nil
}

func sameFlowLog(a, b resources.FlowLogView) bool {
	return a.ResourceID == b.ResourceID && a.TrafficType == b.TrafficType &&
		a.LogDestinationType == b.LogDestinationType && a.LogDestination == b.LogDestination &&
		a.LogGroupName == b.LogGroupName
}

// CreateFlowLogs creates one flow log per resource. Every resource must exist; a resource
// that already publishes to the same destination lands in the unsuccessful set.
func (b *FlowLogBackend) CreateFlowLogs(p params.Params) (*CreateFlowLogsResponse, error) {
	if err := p.Require("ResourceType"); err != nil {
		return nil, err
	}
	ids := idList(p, "ResourceId")
	if len(ids) == 0 {
		return nil, errors.MissingParameter("ResourceId")
	}
	parentKind, supported := flowLogParents[p.String("ResourceType")]
	if !supported {
		return nil, errors.InvalidValue("ResourceType", p.String("ResourceType"), "Valid values are VPC and Subnet.")
	}
	template, err := flowLogDestination(p)
	if err != nil {
		return nil, err
	}
	if missing := b.store.Table(parentKind).Missing(ids); len(missing) > 0 {
		return nil, parentKind.NotFound(missing...)
	}

	existing := state.All[*resources.FlowLog](b.store, state.KindFlowLog)
	tags := p.TagSpecifications(string(types.ResourceTypeVpcFlowLog))
	resp := &CreateFlowLogsResponse{ClientToken: p.String("ClientToken")}
	for _, id := range ids {
		candidate := template
		candidate.ResourceID = id
		duplicate := false
		for _, f := range existing {
			if sameFlowLog(f.FlowLogView, candidate) {
				duplicate = true
				break
			}
		}
		if duplicate {
			resp.Unsuccessful = append(resp.Unsuccessful, unsuccessful(id, "FlowLogAlreadyExists",
				"Error. There is an existing Flow Log with the same configuration and log destination."))
			continue
		}

		candidate.FlowLogID = b.store.NewID(state.KindFlowLog)
		candidate.FlowLogStatus = "ACTIVE"
		candidate.DeliverLogsStatus = "SUCCESS"
		candidate.CreationTime = b.timestamp()
		candidate.Tags = tags.Clone()
		fl := &resources.FlowLog{FlowLogView: candidate, ParentKind: parentKind}
		b.store.Table(state.KindFlowLog).Put(fl)
		rec, _ := b.store.Table(parentKind).Get(id)
		registerChild(state.KindFlowLog, fl.FlowLogID, rec.(resources.HasDependents))
		existing = append(existing, fl)
		resp.FlowLogIDs = append(resp.FlowLogIDs, fl.FlowLogID)

		b.log.Debug("Flow log created",
			zap.String("operation", "CreateFlowLogs"),
			zap.String("flow_log_id", fl.FlowLogID),
			zap.String("resource_id", id),
		)
	}
	return resp, nil
}

// DeleteFlowLogsResponse carries the per id failures, always empty since every id must
// resolve.
type DeleteFlowLogsResponse struct {
	Meta
	Unsuccessful []UnsuccessfulItem `xml:"unsuccessful>item"`
}

// DeleteFlowLogs removes flow logs and unregisters them from their resources.
func (b *FlowLogBackend) DeleteFlowLogs(p params.Params) (*DeleteFlowLogsResponse, error) {
	ids := idList(p, "FlowLogId")
	if len(ids) == 0 {
		return nil, errors.MissingParameter("FlowLogId")
	}
	logs, err := state.Resolve[*resources.FlowLog](b.store, state.KindFlowLog, ids)
	if err != nil {
		return nil, err
	}
	for _, fl := range logs {
		unregisterChild(b.store, state.KindFlowLog, fl.FlowLogID, fl.ParentKind, fl.ResourceID)
		b.store.Table(state.KindFlowLog).Delete(fl.FlowLogID)
		b.log.Debug("Flow log deleted", zap.String("operation", "DeleteFlowLogs"), zap.String("flow_log_id", fl.FlowLogID))
	}
	return &DeleteFlowLogsResponse{}, nil
}

// DescribeFlowLogsResponse lists flow logs.
type DescribeFlowLogsResponse struct {
	Meta
	FlowLogs  []resources.FlowLogView `xml:"flowLogSet>item"`
	NextToken string                  `xml:"nextToken,omitempty"`
}

// DescribeFlowLogs lists flow logs.
func (b *FlowLogBackend) DescribeFlowLogs(p params.Params) (*DescribeFlowLogsResponse, error) {
	views, next, err := describe(b.base, state.KindFlowLog, p, idList(p, "FlowLogId"), flowLogMatcher, (*resources.FlowLog).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeFlowLogsResponse{FlowLogs: views, NextToken: next}, nil
}
