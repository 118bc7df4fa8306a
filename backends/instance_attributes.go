package backends

import (
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// instanceAttribute is one entry of the attribute table, keyed by lowercase name.
type instanceAttribute struct {
	wire string
	// stopped attributes can only change while the instance is stopped.
	stopped bool
	get     func(*resources.Instance) string
	set     func(*InstanceBackend, *resources.Instance, string) error
	reset   func(*resources.Instance)
}

func boolSetter(name string, apply func(*resources.Instance, bool)) func(*InstanceBackend, *resources.Instance, string) error {
	return func(_ *InstanceBackend, inst *resources.Instance, v string) error {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return errors.InvalidValue(name, v, "Expected true or false.")
		}
		apply(inst, parsed)
		return nil
	}
}

var instanceAttributes = map[string]instanceAttribute{
	"instancetype": {
		wire:    "instanceType",
		stopped: true,
		get:     func(i *resources.Instance) string { return i.InstanceType },
		set: func(b *InstanceBackend, i *resources.Instance, v string) error {
			if _, err := lookup[*resources.InstanceTypeInfo](b.store, state.KindInstanceType, v); err != nil {
				return err
			}
			i.InstanceType = v
			return nil
		},
	},
	"kernel": {
		wire:    "kernel",
		stopped: true,
		get:     func(i *resources.Instance) string { return i.KernelID },
		set:     func(_ *InstanceBackend, i *resources.Instance, v string) error { i.KernelID = v; return nil },
		reset:   func(i *resources.Instance) { i.KernelID = "" },
	},
	"ramdisk": {
		wire:    "ramdisk",
		stopped: true,
		get:     func(i *resources.Instance) string { return i.RamdiskID },
		set:     func(_ *InstanceBackend, i *resources.Instance, v string) error { i.RamdiskID = v; return nil },
		reset:   func(i *resources.Instance) { i.RamdiskID = "" },
	},
	"userdata": {
		wire:    "userData",
		stopped: true,
		get:     func(i *resources.Instance) string { return i.UserData },
		set:     func(_ *InstanceBackend, i *resources.Instance, v string) error { i.UserData = v; return nil },
	},
	"disableapitermination": {
		wire: "disableApiTermination",
		get:  func(i *resources.Instance) string { return boolString(i.DisableAPITermination) },
		set: boolSetter("DisableApiTermination", func(i *resources.Instance, v bool) {
			i.DisableAPITermination = v
		}),
	},
	"disableapistop": {
		wire: "disableApiStop",
		get:  func(i *resources.Instance) string { return boolString(i.DisableAPIStop) },
		set:  boolSetter("DisableApiStop", func(i *resources.Instance, v bool) { i.DisableAPIStop = v }),
	},
	"instanceinitiatedshutdownbehavior": {
		wire: "instanceInitiatedShutdownBehavior",
		get:  func(i *resources.Instance) string { return i.InstanceInitiatedShutdownBehavior },
		set: func(_ *InstanceBackend, i *resources.Instance, v string) error {
			if err := oneOf("InstanceInitiatedShutdownBehavior", v, valuesOf(types.ShutdownBehavior("").Values())...); err != nil {
				return err
			}
			i.InstanceInitiatedShutdownBehavior = v
			return nil
		},
	},
	"rootdevicename": {
		wire: "rootDeviceName",
		get:  func(i *resources.Instance) string { return i.RootDeviceName },
	},
	"sourcedestcheck": {
		wire:  "sourceDestCheck",
		get:   func(i *resources.Instance) string { return boolString(i.SourceDestCheck) },
		set:   boolSetter("SourceDestCheck", func(i *resources.Instance, v bool) { i.SourceDestCheck = v }),
		reset: func(i *resources.Instance) { i.SourceDestCheck = true },
	},
	"ebsoptimized": {
		wire:    "ebsOptimized",
		stopped: true,
		get:     func(i *resources.Instance) string { return boolString(i.EbsOptimized) },
		set:     boolSetter("EbsOptimized", func(i *resources.Instance, v bool) { i.EbsOptimized = v }),
	},
	"enasupport": {
		wire:    "enaSupport",
		stopped: true,
		get:     func(i *resources.Instance) string { return boolString(i.EnaSupport) },
		set:     boolSetter("EnaSupport", func(i *resources.Instance, v bool) { i.EnaSupport = v }),
	},
	"sriovnetsupport": {
		wire:    "sriovNetSupport",
		stopped: true,
		get:     func(i *resources.Instance) string { return i.SriovNetSupport },
		set: func(_ *InstanceBackend, i *resources.Instance, v string) error {
			if err := oneOf("SriovNetSupport", v, "simple"); err != nil {
				return err
			}
			i.SriovNetSupport = v
			return nil
		},
	},
	"groupset": {
		wire: "groupSet",
	},
}

func attributeEntry(name string) (instanceAttribute, error) {
	attr, found := instanceAttributes[strings.ToLower(name)]
	if !found {
		return instanceAttribute{}, errors.InvalidValue("Attribute", name, "Unknown instance attribute.")
	}
	return attr, nil
}

func requireStopped(inst *resources.Instance) error {
	if inst.InstanceState != resources.StateStopped {
		return errors.API(errors.ErrIncorrectInstanceState,
			"The instance '%s' is not in the 'stopped' state.", inst.InstanceID)
	}
	return nil
}

// DescribeInstanceAttributeResponse carries one attribute.
type DescribeInstanceAttributeResponse struct {
	Meta
	InstanceID string         `xml:"instanceId"`
	Attribute  AttributeValue `xml:"attribute"`
}

// DescribeInstanceAttribute reads one attribute.
func (b *InstanceBackend) DescribeInstanceAttribute(p params.Params) (*DescribeInstanceAttributeResponse, error) {
	if err := p.Require("InstanceId", "Attribute"); err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}
	attr, err := attributeEntry(p.String("Attribute"))
	if err != nil {
		return nil, err
	}
	resp := &DescribeInstanceAttributeResponse{InstanceID: inst.InstanceID}
	if attr.wire == "groupSet" {
		resp.Attribute = AttributeValue{Name: attr.wire, Groups: inst.View().Groups}
	} else {
		resp.Attribute = AttributeValue{Name: attr.wire, Value: attr.get(inst)}
	}
	return resp, nil
}

// ModifyInstanceAttribute changes one attribute, given either as Attribute/Value, as
// <Attribute>.Value or, for security groups, as GroupId.N.
func (b *InstanceBackend) ModifyInstanceAttribute(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("InstanceId"); err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}

	type change struct{ name, value string }
	var changes []change
	if p.Has("Attribute") {
		changes = append(changes, change{p.String("Attribute"), p.String("Value")})
	}
	for key, attr := range instanceAttributes {
		if attr.set == nil {
			continue
		}
		for name, v := range p {
			if strings.EqualFold(name, attr.wire+".Value") {
				changes = append(changes, change{key, v})
			}
		}
	}
	if groups := idList(p, "GroupId"); len(groups) > 0 {
		changes = append(changes, change{"groupset", ""})
	}
	switch {
	case len(changes) == 0:
		return nil, errors.MissingParameter("Attribute")
	case len(changes) > 1:
		return nil, errors.API(errors.ErrInvalidParameterCombo, "Only one attribute can be modified at a time")
	}

	attr, err := attributeEntry(changes[0].name)
	if err != nil {
		return nil, err
	}
	if attr.stopped {
		if err := requireStopped(inst); err != nil {
			return nil, err
		}
	}
	switch {
	case attr.wire == "groupSet":
		ids := idList(p, "GroupId")
		if len(ids) == 0 {
			return nil, errors.MissingParameter("GroupId")
		}
		if err := b.replaceGroups(inst, ids); err != nil {
			return nil, err
		}
	case attr.set == nil:
		return nil, errors.InvalidValue("Attribute", changes[0].name, "The attribute cannot be modified.")
	default:
		if err := attr.set(b, inst, changes[0].value); err != nil {
			return nil, err
		}
	}

	b.log.Debug("Instance attribute modified",
		zap.String("operation", "ModifyInstanceAttribute"),
		zap.String("instance_id", inst.InstanceID),
		zap.String("attribute", attr.wire),
	)
	return ok(), nil
}

// replaceGroups moves the instance to a new set of security groups of its VPC.
func (b *InstanceBackend) replaceGroups(inst *resources.Instance, ids []string) error {
	groups, err := state.Resolve[*resources.SecurityGroup](b.store, state.KindSecurityGroup, ids)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if g.VpcID != inst.VpcID {
			return errors.API(errors.ErrInvalidParameter,
				"Security group %s and instance %s belong to different networks.", g.GroupID, inst.InstanceID)
		}
	}
	unregisterChild(b.store, state.KindInstance, inst.InstanceID, state.KindSecurityGroup, inst.SecurityGroupIDs()...)
	inst.Groups = inst.Groups[:0]
	for _, g := range groups {
		inst.Groups = append(inst.Groups, resources.GroupIdentifier{GroupID: g.GroupID, GroupName: g.GroupName})
		g.AddChild(state.KindInstance, inst.InstanceID)
	}
	return nil
}

// ResetInstanceAttribute restores kernel, ramdisk or sourceDestCheck.
func (b *InstanceBackend) ResetInstanceAttribute(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("InstanceId", "Attribute"); err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}
	attr, err := attributeEntry(p.String("Attribute"))
	if err != nil {
		return nil, err
	}
	if attr.reset == nil {
		return nil, errors.InvalidValue("Attribute", p.String("Attribute"), "Only kernel, ramdisk and sourceDestCheck can be reset.")
	}
	if attr.stopped {
		if err := requireStopped(inst); err != nil {
			return nil, err
		}
	}
	attr.reset(inst)
	return ok(), nil
}

// ModifyInstanceMetadataOptionsResponse echoes the new metadata options.
type ModifyInstanceMetadataOptionsResponse struct {
	Meta
	InstanceID      string                    `xml:"instanceId"`
	MetadataOptions resources.MetadataOptions `xml:"instanceMetadataOptions"`
}

// ModifyInstanceMetadataOptions updates only the metadata options present in the request.
func (b *InstanceBackend) ModifyInstanceMetadataOptions(p params.Params) (*ModifyInstanceMetadataOptionsResponse, error) {
	if err := p.Require("InstanceId"); err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}
	opts, err := applyMetadataOptions(inst.MetadataOptions, p)
	if err != nil {
		return nil, err
	}
	inst.MetadataOptions = opts
	return &ModifyInstanceMetadataOptionsResponse{InstanceID: inst.InstanceID, MetadataOptions: opts}, nil
}

// CreditSpecificationError explains why one instance could not be updated.
type CreditSpecificationError struct {
	Code    string `xml:"code"`
	Message string `xml:"message"`
}

// SuccessfulCreditSpecification names an updated instance.
type SuccessfulCreditSpecification struct {
	InstanceID string `xml:"instanceId"`
}

// UnsuccessfulCreditSpecification names an instance that was not updated.
type UnsuccessfulCreditSpecification struct {
	InstanceID string                   `xml:"instanceId"`
	Error      CreditSpecificationError `xml:"error"`
}

// ModifyInstanceCreditSpecificationResponse splits the request into updated and failed instances.
type ModifyInstanceCreditSpecificationResponse struct {
	Meta
	Successful   []SuccessfulCreditSpecification   `xml:"successfulInstanceCreditSpecificationSet>item"`
	Unsuccessful []UnsuccessfulCreditSpecification `xml:"unsuccessfulInstanceCreditSpecificationSet>item"`
}

// ModifyInstanceCreditSpecification sets the credit option of burstable instances. Each entry
// succeeds or fails on its own.
func (b *InstanceBackend) ModifyInstanceCreditSpecification(p params.Params) (*ModifyInstanceCreditSpecificationResponse, error) {
	entries := p.Indexed("InstanceCreditSpecification")
	if len(entries) == 0 {
		return nil, errors.MissingParameter("InstanceCreditSpecification")
	}
	resp := &ModifyInstanceCreditSpecificationResponse{}
	fail := func(id string, code errors.ErrorType, msg string) {
		resp.Unsuccessful = append(resp.Unsuccessful, UnsuccessfulCreditSpecification{
			InstanceID: id,
			Error:      CreditSpecificationError{Code: string(code), Message: msg},
		})
	}
	for _, entry := range entries {
		id, credits := entry.String("InstanceId"), entry.String("CpuCredits")
		inst, found := state.Get[*resources.Instance](b.store, state.KindInstance, id)
		switch {
		case !found:
			e := state.KindInstance.NotFound(id)
			fail(id, e.Type, e.Message)
		case !burstable(inst.InstanceType):
			fail(id, "InvalidInstanceType", "The instance type "+inst.InstanceType+" does not support credit specifications.")
		case credits != cpuCreditsStandard && credits != cpuCreditsUnlimited:
			fail(id, errors.ErrInvalidParameterValue, "CpuCredits must be standard or unlimited.")
		default:
			inst.CPUCredits = credits
			resp.Successful = append(resp.Successful, SuccessfulCreditSpecification{InstanceID: id})
		}
	}
	return resp, nil
}

// InstanceCreditSpecification is the credit option of one instance.
type InstanceCreditSpecification struct {
	InstanceID string `xml:"instanceId"`
	CPUCredits string `xml:"cpuCredits"`
}

// DescribeInstanceCreditSpecificationsResponse lists credit options.
type DescribeInstanceCreditSpecificationsResponse struct {
	Meta
	Specifications []InstanceCreditSpecification `xml:"instanceCreditSpecificationSet>item"`
	NextToken      string                        `xml:"nextToken,omitempty"`
}

// DescribeInstanceCreditSpecifications lists the credit option of burstable instances.
func (b *InstanceBackend) DescribeInstanceCreditSpecifications(p params.Params) (*DescribeInstanceCreditSpecificationsResponse, error) {
	instances, _, err := describe(b.base, state.KindInstance, p, idList(p, "InstanceId"), instanceMatcher,
		func(i *resources.Instance) *resources.Instance { return i }, false)
	if err != nil {
		return nil, err
	}
	var specs []InstanceCreditSpecification
	for _, inst := range instances {
		if !burstable(inst.InstanceType) {
			continue
		}
		credits := inst.CPUCredits
		if credits == "" {
			credits = defaultCPUCredits(b.store, inst.InstanceType)
		}
		specs = append(specs, InstanceCreditSpecification{InstanceID: inst.InstanceID, CPUCredits: credits})
	}
	page, err := p.Page()
	if err != nil {
		return nil, err
	}
	specs, next, err := filters.Paginate(specs, page, b.settings.DefaultMaxResults)
	if err != nil {
		return nil, err
	}
	return &DescribeInstanceCreditSpecificationsResponse{Specifications: specs, NextToken: next}, nil
}

// StatusDetail is one reachability check.
type StatusDetail struct {
	Name   string `xml:"name"`
	Status string `xml:"status"`
}

// StatusSummary is the result of a status check group.
type StatusSummary struct {
	Status  string         `xml:"status"`
	Details []StatusDetail `xml:"details>item"`
}

// InstanceStatus is the status of one instance.
type InstanceStatus struct {
	InstanceID       string                  `xml:"instanceId"`
	AvailabilityZone string                  `xml:"availabilityZone"`
	InstanceState    resources.InstanceState `xml:"instanceState"`
	SystemStatus     StatusSummary           `xml:"systemStatus"`
	InstanceStatus   StatusSummary           `xml:"instanceStatus"`
}

// DescribeInstanceStatusResponse lists instance statuses.
type DescribeInstanceStatusResponse struct {
	Meta
	Statuses  []InstanceStatus `xml:"instanceStatusSet>item"`
	NextToken string           `xml:"nextToken,omitempty"`
}

func statusOf(inst *resources.Instance) InstanceStatus {
	out := InstanceStatus{
		InstanceID:       inst.InstanceID,
		AvailabilityZone: inst.Placement.AvailabilityZone,
		InstanceState:    inst.InstanceState,
	}
	if inst.InstanceState != resources.StateRunning {
		na := StatusSummary{Status: string(types.SummaryStatusNotApplicable)}
		out.SystemStatus, out.InstanceStatus = na, na
		return out
	}
	passed := []StatusDetail{{Name: string(types.StatusNameReachability), Status: string(types.StatusTypePassed)}}
	out.SystemStatus = StatusSummary{Status: string(types.SummaryStatusOk), Details: passed}
	out.InstanceStatus = StatusSummary{Status: string(types.SummaryStatusOk), Details: passed}
	if inst.ReportedStatus == string(types.ReportStatusTypeImpaired) {
		out.InstanceStatus = StatusSummary{
			Status:  string(types.SummaryStatusImpaired),
			Details: []StatusDetail{{Name: string(types.StatusNameReachability), Status: string(types.StatusTypeFailed)}},
		}
	}
	return out
}

var instanceStatusMatcher = filters.Matcher[InstanceStatus]{
	Fields: map[string]filters.Field[InstanceStatus]{
		"instance-id":            filters.Value(func(s InstanceStatus) string { return s.InstanceID }),
		"availability-zone":      filters.Value(func(s InstanceStatus) string { return s.AvailabilityZone }),
		"instance-state-name":    filters.Value(func(s InstanceStatus) string { return s.InstanceState.Name }),
		"instance-state-code":    filters.Int(func(s InstanceStatus) int { return s.InstanceState.Code }),
		"instance-status.status": filters.Value(func(s InstanceStatus) string { return s.InstanceStatus.Status }),
		"system-status.status":   filters.Value(func(s InstanceStatus) string { return s.SystemStatus.Status }),
	},
}

// DescribeInstanceStatus reports status checks. Only running instances are listed unless
// IncludeAllInstances is set.
func (b *InstanceBackend) DescribeInstanceStatus(p params.Params) (*DescribeInstanceStatusResponse, error) {
	includeAll, err := p.Bool("IncludeAllInstances", false)
	if err != nil {
		return nil, err
	}
	var instances []*resources.Instance
	if ids := idList(p, "InstanceId"); len(ids) > 0 {
		if instances, err = state.Resolve[*resources.Instance](b.store, state.KindInstance, ids); err != nil {
			return nil, err
		}
	} else {
		instances = state.All[*resources.Instance](b.store, state.KindInstance)
	}
	statuses := make([]InstanceStatus, 0, len(instances))
	for _, inst := range instances {
		if includeAll || inst.InstanceState == resources.StateRunning {
			statuses = append(statuses, statusOf(inst))
		}
	}
	if statuses, err = instanceStatusMatcher.Apply(statuses, p.Filters()); err != nil {
		return nil, err
	}
	page, err := p.Page()
	if err != nil {
		return nil, err
	}
	statuses, next, err := filters.Paginate(statuses, page, b.settings.DefaultMaxResults)
	if err != nil {
		return nil, err
	}
	return &DescribeInstanceStatusResponse{Statuses: statuses, NextToken: next}, nil
}
