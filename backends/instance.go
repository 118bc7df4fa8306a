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

// maxLaunchCount bounds the instances one RunInstances or RequestSpotInstances call may create.
const maxLaunchCount = 1000

// InstanceBackend implements the instance lifecycle actions.
type InstanceBackend struct {
	*base
}

var instanceMatcher = filters.Matcher[*resources.Instance]{
	Fields: map[string]filters.Field[*resources.Instance]{
		"instance-id":                  filters.Value(func(i *resources.Instance) string { return i.InstanceID }),
		"image-id":                     filters.Value(func(i *resources.Instance) string { return i.ImageID }),
		"instance-type":                filters.Value(func(i *resources.Instance) string { return i.InstanceType }),
		"instance-state-name":          filters.Value(func(i *resources.Instance) string { return i.InstanceState.Name }),
		"instance-state-code":          filters.Int(func(i *resources.Instance) int { return i.InstanceState.Code }),
		"subnet-id":                    filters.Value(func(i *resources.Instance) string { return i.SubnetID }),
		"vpc-id":                       filters.Value(func(i *resources.Instance) string { return i.VpcID }),
		"key-name":                     filters.Value(func(i *resources.Instance) string { return i.KeyName }),
		"availability-zone":            filters.Value(func(i *resources.Instance) string { return i.Placement.AvailabilityZone }),
		"tenancy":                      filters.Value(func(i *resources.Instance) string { return i.Placement.Tenancy }),
		"private-ip-address":           filters.Value(func(i *resources.Instance) string { return i.PrivateIPAddress }),
		"ip-address":                   filters.Value(func(i *resources.Instance) string { return i.PublicIPAddress }),
		"private-dns-name":             filters.Value(func(i *resources.Instance) string { return i.PrivateDNSName }),
		"dns-name":                     filters.Value(func(i *resources.Instance) string { return i.DNSName }),
		"reservation-id":               filters.Value(func(i *resources.Instance) string { return i.ReservationID }),
		"architecture":                 filters.Value(func(i *resources.Instance) string { return i.Architecture }),
		"root-device-type":             filters.Value(func(i *resources.Instance) string { return i.RootDeviceType }),
		"monitoring-state":             filters.Value(func(i *resources.Instance) string { return i.Monitoring.State }),
		"instance-lifecycle":           filters.Value(func(i *resources.Instance) string { return i.InstanceLifecycle }),
		"spot-instance-request-id":     filters.Value(func(i *resources.Instance) string { return i.SpotInstanceRequestID }),
		"capacity-reservation-id":      filters.Value(func(i *resources.Instance) string { return i.CapacityReservationID }),
		"instance.group-id":            filters.Values((*resources.Instance).SecurityGroupIDs),
		"instance.group-name":          filters.Values(groupNames),
		"metadata-options.http-tokens": filters.Value(func(i *resources.Instance) string { return i.MetadataOptions.HTTPTokens }),
	},
	Tags: tagsOf[*resources.Instance],
}

func groupNames(i *resources.Instance) []string {
	names := make([]string, 0, len(i.Groups))
	for _, g := range i.Groups {
		names = append(names, g.GroupName)
	}
	return names
}

// launchPlan is a fully validated RunInstances request. Building one never mutates the store.
type launchPlan struct {
	image    *resources.Image
	subnet   *resources.Subnet
	vpc      *resources.Vpc
	groups   []*resources.SecurityGroup
	key      *resources.KeyPair
	capacity *resources.CapacityReservation
	itype    *resources.InstanceTypeInfo
	count    int

	zone               string
	tenancy            string
	gpuTypes           []string
	profile            *resources.IamInstanceProfile
	metadata           resources.MetadataOptions
	userData           string
	cpuCredits         string
	disableTermination bool
	disableStop        bool
	monitoring         bool
	ebsOptimized       bool
	shutdownBehavior   string
	tags               resources.Tags

	lifecycle     string
	spotRequestID string
}

// plan resolves every reference of a launch request for count instances. Any missing
// reference fails the whole request.
func (b *InstanceBackend) plan(p params.Params, count int) (*launchPlan, error) {
	if err := p.Require("ImageId"); err != nil {
		return nil, err
	}
	plan := &launchPlan{count: count}

	image, err := lookup[*resources.Image](b.store, state.KindImage, p.String("ImageId"))
	if err != nil {
		return nil, err
	}
	plan.image = image

	if plan.subnet, err = lookupOptional[*resources.Subnet](b.store, state.KindSubnet, p.String("SubnetId")); err != nil {
		return nil, err
	}
	vpcID := ""
	if plan.subnet != nil {
		if plan.vpc, err = lookup[*resources.Vpc](b.store, state.KindVpc, plan.subnet.VpcID); err != nil {
			return nil, err
		}
		vpcID = plan.vpc.VpcID
	}

	crID := p.String("CapacityReservationId")
	if crID == "" {
		crID = p.String("CapacityReservationSpecification.CapacityReservationTarget.CapacityReservationId")
	}
	if crID != "" {
		cr, err := lookup[*resources.CapacityReservation](b.store, state.KindCapacityReservation, crID)
		if err != nil {
			return nil, err
		}
		if cr.State != string(types.CapacityReservationStateActive) {
			return nil, errors.API(errors.ErrIncorrectState, "The capacity reservation '%s' is in state '%s'.", cr.CapacityReservationID, cr.State)
		}
		if cr.AvailableInstanceCount < count {
			return nil, errors.API("ReservationCapacityExceeded",
				"The requested number of instances exceeds the available capacity of reservation '%s' (%d).",
				cr.CapacityReservationID, cr.AvailableInstanceCount)
		}
		plan.capacity = cr
	}

	if plan.groups, err = b.resolveGroups(p, vpcID); err != nil {
		return nil, err
	}

	if name := p.String("KeyName"); name != "" {
		key, found := keyPairByName(b.store, name)
		if !found {
			return nil, state.KindKeyPair.NotFound(name)
		}
		plan.key = key
	}

	typeName := p.String("InstanceType")
	if typeName == "" {
		typeName = defaultInstanceType
		if plan.capacity != nil {
			typeName = plan.capacity.InstanceType
		}
	}
	if plan.itype, err = lookup[*resources.InstanceTypeInfo](b.store, state.KindInstanceType, typeName); err != nil {
		return nil, err
	}
	if plan.capacity != nil && plan.capacity.InstanceType != typeName {
		return nil, errors.API(errors.ErrInvalidParameterCombo,
			"The instance type %s does not match the capacity reservation type %s", typeName, plan.capacity.InstanceType)
	}

	if plan.subnet != nil && plan.subnet.AvailableIPAddressCount < count {
		return nil, errors.API("InsufficientFreeAddressesInSubnet",
			"There are not enough free addresses in subnet '%s' to satisfy the requested number of instances.", plan.subnet.SubnetID)
	}

	if err := b.planOptions(plan, p); err != nil {
		return nil, err
	}
	return plan, nil
}

// resolveGroups resolves SecurityGroupId.N and SecurityGroup.N (names, looked up in vpcID).
// With a subnet every group must belong to its VPC.
func (b *InstanceBackend) resolveGroups(p params.Params, vpcID string) ([]*resources.SecurityGroup, error) {
	groups, err := state.Resolve[*resources.SecurityGroup](b.store, state.KindSecurityGroup, idList(p, "SecurityGroupId"))
	if err != nil {
		return nil, err
	}
	for _, name := range p.List("SecurityGroup") {
		g, found := groupByName(b.store, vpcID, name)
		if !found {
			return nil, state.KindSecurityGroup.NotFound(name)
		}
		groups = append(groups, g)
	}
	seen := map[string]bool{}
	out := groups[:0]
	for _, g := range groups {
		if seen[g.GroupID] {
			continue
		}
		seen[g.GroupID] = true
		if vpcID != "" && g.VpcID != vpcID {
			return nil, errors.API(errors.ErrInvalidParameter,
				"Security group %s and subnet belong to different networks.", g.GroupID)
		}
		out = append(out, g)
	}
	return out, nil
}

// planOptions decodes the scalar launch options.
func (b *InstanceBackend) planOptions(plan *launchPlan, p params.Params) error {
	var err error
	plan.zone = p.String("Placement.AvailabilityZone")
	switch {
	case plan.subnet != nil && plan.zone != "" && plan.zone != plan.subnet.AvailabilityZone:
		return errors.API(errors.ErrInvalidParameterValue,
			"Placement zone %s does not match the zone of subnet %s", plan.zone, plan.subnet.SubnetID)
	case plan.subnet != nil:
		plan.zone = plan.subnet.AvailabilityZone
	case plan.capacity != nil:
		plan.zone = plan.capacity.AvailabilityZone
	case plan.zone == "":
		plan.zone = b.defaultZone()
	}

	plan.tenancy = p.String("Placement.Tenancy")
	if plan.tenancy == "" {
		plan.tenancy = string(types.TenancyDefault)
		if plan.vpc != nil {
			plan.tenancy = plan.vpc.InstanceTenancy
		}
	}
	if err := oneOf("Placement.Tenancy", plan.tenancy, valuesOf(types.Tenancy("").Values())...); err != nil {
		return err
	}

	for _, spec := range p.Indexed("ElasticGpuSpecification") {
		if err := spec.Require("Type"); err != nil {
			return errors.MissingParameter("ElasticGpuSpecification.Type")
		}
		plan.gpuTypes = append(plan.gpuTypes, spec.String("Type"))
	}

	if plan.profile, err = b.profileFromParams(p.Sub("IamInstanceProfile")); err != nil {
		return err
	}

	if plan.metadata, err = applyMetadataOptions(metadataDefaults(b.store), p.Sub("MetadataOptions")); err != nil {
		return err
	}

	if plan.disableTermination, err = p.Bool("DisableApiTermination", false); err != nil {
		return err
	}
	if plan.disableStop, err = p.Bool("DisableApiStop", false); err != nil {
		return err
	}
	if plan.monitoring, err = p.Bool("Monitoring.Enabled", false); err != nil {
		return err
	}
	if plan.ebsOptimized, err = p.Bool("EbsOptimized", false); err != nil {
		return err
	}

	plan.shutdownBehavior = orDefault(p.String("InstanceInitiatedShutdownBehavior"), string(types.ShutdownBehaviorStop))
	if err := oneOf("InstanceInitiatedShutdownBehavior", plan.shutdownBehavior,
		valuesOf(types.ShutdownBehavior("").Values())...); err != nil {
		return err
	}

	if burstable(plan.itype.InstanceType) {
		plan.cpuCredits = orDefault(p.String("CreditSpecification.CpuCredits"), defaultCPUCredits(b.store, plan.itype.InstanceType))
		if err := oneOf("CreditSpecification.CpuCredits", plan.cpuCredits, cpuCreditsStandard, cpuCreditsUnlimited); err != nil {
			return err
		}
	}

	plan.userData = p.String("UserData")
	plan.tags = p.TagSpecifications(string(types.ResourceTypeInstance))
	return nil
}

// launch creates the planned instances under one new reservation and registers each of
// them with every parent.
func (b *InstanceBackend) launch(plan *launchPlan) (*resources.Reservation, []*resources.Instance, error) {
	identifiers := make([]resources.GroupIdentifier, 0, len(plan.groups))
	for _, g := range plan.groups {
		identifiers = append(identifiers, resources.GroupIdentifier{GroupID: g.GroupID, GroupName: g.GroupName})
	}
	reservation := resources.NewReservation(b.store.NewID(state.KindReservation), b.settings.AccountID, identifiers)
	if plan.lifecycle == string(types.InstanceLifecycleTypeSpot) {
		reservation.RequesterID = b.settings.AccountID
	}
	b.store.Table(state.KindReservation).Put(reservation)

	launched := make([]*resources.Instance, 0, plan.count)
	for index := 0; index < plan.count; index++ {
		inst, err := b.create(plan, reservation, identifiers, index)
		if err != nil {
			return nil, nil, err
		}
		launched = append(launched, inst)
	}
	return reservation, launched, nil
}

func (b *InstanceBackend) create(plan *launchPlan, reservation *resources.Reservation,
	groups []resources.GroupIdentifier, index int) (*resources.Instance, error) {
	id := b.store.NewID(state.KindInstance)

	privateIP := derivedIP(172, 31, id)
	if plan.subnet != nil {
		ip, err := allocateIP(plan.subnet, id)
		if err != nil {
			return nil, err
		}
		privateIP = ip
	}
	publicIP, publicDNS := "", ""
	if plan.subnet == nil || plan.subnet.MapPublicIPOnLaunch {
		publicIP = derivedIP(54, 208, id)
		publicDNS = dnsName("ec2", publicIP, b.settings.Region)
	}

	monitoring := string(types.MonitoringStateDisabled)
	if plan.monitoring {
		monitoring = string(types.MonitoringStateEnabled)
	}

	view := resources.InstanceView{
		InstanceID:            id,
		ImageID:               plan.image.ImageID,
		InstanceState:         resources.StateRunning,
		PrivateDNSName:        dnsName("ip", privateIP, b.settings.Region),
		DNSName:               publicDNS,
		AmiLaunchIndex:        index,
		InstanceType:          plan.itype.InstanceType,
		LaunchTime:            b.timestamp(),
		Placement:             resources.Placement{AvailabilityZone: plan.zone, Tenancy: plan.tenancy},
		Monitoring:            resources.Monitoring{State: monitoring},
		PrivateIPAddress:      privateIP,
		PublicIPAddress:       publicIP,
		SourceDestCheck:       true,
		Groups:                append([]resources.GroupIdentifier(nil), groups...),
		Architecture:          plan.image.Architecture,
		RootDeviceType:        plan.image.RootDeviceType,
		RootDeviceName:        plan.image.RootDeviceName,
		VirtualizationType:    plan.image.VirtualizationType,
		Hypervisor:            plan.image.Hypervisor,
		EbsOptimized:          plan.ebsOptimized,
		EnaSupport:            plan.image.EnaSupport,
		MetadataOptions:       plan.metadata,
		InstanceLifecycle:     plan.lifecycle,
		SpotInstanceRequestID: plan.spotRequestID,
	}
	view.Tags = plan.tags.Clone()
	if plan.subnet != nil {
		view.SubnetID = plan.subnet.SubnetID
		view.VpcID = plan.vpc.VpcID
	}
	if plan.key != nil {
		view.KeyName = plan.key.KeyName
	}
	if plan.capacity != nil {
		view.CapacityReservationID = plan.capacity.CapacityReservationID
	}

	inst := resources.NewInstance(view)
	inst.ReservationID = reservation.ReservationID
	inst.DisableAPITermination = plan.disableTermination
	inst.DisableAPIStop = plan.disableStop
	inst.UserData = plan.userData
	inst.InstanceInitiatedShutdownBehavior = plan.shutdownBehavior
	inst.CPUCredits = plan.cpuCredits
	if plan.key != nil {
		inst.KeyPairID = plan.key.KeyPairID
	}
	b.store.Table(state.KindInstance).Put(inst)

	parents := []resources.HasDependents{plan.image, reservation}
	if plan.subnet != nil {
		parents = append(parents, plan.subnet, plan.vpc)
	}
	for _, g := range plan.groups {
		parents = append(parents, g)
	}
	if plan.key != nil {
		parents = append(parents, plan.key)
	}
	if plan.capacity != nil {
		parents = append(parents, plan.capacity)
		plan.capacity.AvailableInstanceCount--
	}
	registerChild(state.KindInstance, id, parents...)

	for _, gpuType := range plan.gpuTypes {
		b.attachElasticGpu(inst, gpuType)
	}
	if plan.profile != nil {
		b.associateProfile(inst, *plan.profile)
	}
	return inst, nil
}

func (b *InstanceBackend) attachElasticGpu(inst *resources.Instance, gpuType string) {
	gpu := &resources.ElasticGpu{ElasticGpuView: resources.ElasticGpuView{
		ElasticGpuID:     b.store.NewID(state.KindElasticGpu),
		ElasticGpuType:   gpuType,
		ElasticGpuState:  string(types.ElasticGpuStateAttached),
		AvailabilityZone: inst.Placement.AvailabilityZone,
		InstanceID:       inst.InstanceID,
	}}
	gpu.ElasticGpuHealth.Status = string(types.ElasticGpuStatusOk)
	b.store.Table(state.KindElasticGpu).Put(gpu)
	inst.ElasticGpuAssociations = append(inst.ElasticGpuAssociations, resources.ElasticGpuAssociation{
		ElasticGpuID:               gpu.ElasticGpuID,
		ElasticGpuAssociationID:    "egpu-assoc-" + gpu.ElasticGpuID[len("egpu-"):],
		ElasticGpuAssociationState: "associated",
		ElasticGpuAssociationTime:  b.timestamp(),
	})
	registerChild(state.KindElasticGpu, gpu.ElasticGpuID, inst)
}

// detach removes a terminated instance from every parent and drops the records it owns.
func (b *InstanceBackend) detach(inst *resources.Instance) {
	id := inst.InstanceID
	unregisterChild(b.store, state.KindInstance, id, state.KindImage, inst.ImageID)
	unregisterChild(b.store, state.KindInstance, id, state.KindVpc, inst.VpcID)
	unregisterChild(b.store, state.KindInstance, id, state.KindSecurityGroup, inst.SecurityGroupIDs()...)
	unregisterChild(b.store, state.KindInstance, id, state.KindKeyPair, inst.KeyPairID)

	if subnet, found := state.Get[*resources.Subnet](b.store, state.KindSubnet, inst.SubnetID); found {
		subnet.RemoveChild(state.KindInstance, id)
		releaseIP(subnet, id)
	}
	if cr, found := state.Get[*resources.CapacityReservation](b.store, state.KindCapacityReservation, inst.CapacityReservationID); found {
		cr.RemoveChild(state.KindInstance, id)
		if cr.State == string(types.CapacityReservationStateActive) {
			cr.AvailableInstanceCount++
		}
	}
	if res, found := state.Get[*resources.Reservation](b.store, state.KindReservation, inst.ReservationID); found {
		res.RemoveChild(state.KindInstance, id)
		if _, _, remaining := res.Blocking(); !remaining {
			b.store.Table(state.KindReservation).Delete(res.ReservationID)
		}
	}

	for _, assoc := range state.All[*resources.IamInstanceProfileAssociation](b.store, state.KindIamInstanceProfileAssociation) {
		if assoc.InstanceID == id {
			b.store.Table(state.KindIamInstanceProfileAssociation).Delete(assoc.AssociationID)
		}
	}
	for _, key := range state.All[*resources.NitroTpmKey](b.store, state.KindNitroTpmKey) {
		if key.InstanceID == id {
			b.store.Table(state.KindNitroTpmKey).Delete(key.ID())
		}
	}
}

// RunInstancesResponse is a reservation with the launched instances.
type RunInstancesResponse struct {
	Meta
	resources.ReservationView
}

// RunInstances launches MaxCount instances into one reservation.
func (b *InstanceBackend) RunInstances(p params.Params) (*RunInstancesResponse, error) {
	if err := p.Require("MinCount", "MaxCount"); err != nil {
		return nil, err
	}
	minCount, err := p.Int("MinCount", 1)
	if err != nil {
		return nil, err
	}
	maxCount, err := p.Int("MaxCount", 1)
	if err != nil {
		return nil, err
	}
	if minCount < 1 || maxCount < 1 {
		return nil, errors.InvalidValue("MinCount", p.String("MinCount"), "MinCount and MaxCount must be at least 1.")
	}
	if minCount > maxCount {
		return nil, errors.InvalidValue("MinCount", p.String("MinCount"), "MinCount must be less than or equal to MaxCount.")
	}
	if maxCount > maxLaunchCount {
		return nil, errors.InvalidValue("MaxCount", p.String("MaxCount"),
			fmt.Sprintf("MaxCount must be at most %d.", maxLaunchCount))
	}

	plan, err := b.plan(p, maxCount)
	if err != nil {
		return nil, err
	}
	reservation, launched, err := b.launch(plan)
	if err != nil {
		return nil, err
	}

	views := make([]resources.InstanceView, 0, len(launched))
	for _, inst := range launched {
		views = append(views, inst.View())
	}
	b.log.Debug("Instances launched",
		zap.String("operation", "RunInstances"),
		zap.String("reservation_id", reservation.ReservationID),
		zap.Int("count", len(launched)),
	)
	return &RunInstancesResponse{ReservationView: reservation.View(views)}, nil
}

// InstanceStateChange reports one instance transition.
type InstanceStateChange struct {
	InstanceID    string                  `xml:"instanceId"`
	CurrentState  resources.InstanceState `xml:"currentState"`
	PreviousState resources.InstanceState `xml:"previousState"`
}

// InstanceStateChangeResponse lists transitions.
type InstanceStateChangeResponse struct {
	Meta
	Instances []InstanceStateChange `xml:"instancesSet>item"`
}

// targets resolves the InstanceId.N list; every id must exist.
func (b *InstanceBackend) targets(p params.Params) ([]*resources.Instance, error) {
	ids := idList(p, "InstanceId")
	if len(ids) == 0 {
		return nil, errors.MissingParameter("InstanceId")
	}
	return state.Resolve[*resources.Instance](b.store, state.KindInstance, ids)
}

// TerminateInstances terminates and removes instances with empty dependency lists.
func (b *InstanceBackend) TerminateInstances(p params.Params) (*InstanceStateChangeResponse, error) {
	instances, err := b.targets(p)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		if inst.DisableAPITermination {
			return nil, errors.API(errors.ErrOperationNotPermitted,
				"The instance '%s' may not be terminated. Modify its 'disableApiTermination' instance attribute and try again.",
				inst.InstanceID)
		}
		if err := ensureNoDependents(inst); err != nil {
			return nil, err
		}
	}

	resp := &InstanceStateChangeResponse{}
	for _, inst := range instances {
		previous := inst.InstanceState
		inst.SetState(resources.StateTerminated)
		b.detach(inst)
		b.store.Table(state.KindInstance).Delete(inst.InstanceID)
		resp.Instances = append(resp.Instances, InstanceStateChange{
			InstanceID:    inst.InstanceID,
			CurrentState:  inst.InstanceState,
			PreviousState: previous,
		})
		b.log.Debug("Instance terminated", zap.String("operation", "TerminateInstances"), zap.String("instance_id", inst.InstanceID))
	}
	return resp, nil
}

// transition moves every instance currently in from to to and reports all of them.
func (b *InstanceBackend) transition(instances []*resources.Instance, from, to resources.InstanceState,
	reason *resources.StateReason) *InstanceStateChangeResponse {
	resp := &InstanceStateChangeResponse{}
	for _, inst := range instances {
		previous := inst.InstanceState
		if previous == from {
			inst.SetState(to)
			inst.StateReason = reason
			if reason != nil {
				inst.Reason = fmt.Sprintf("%s (%s)", reason.Message, b.timestamp())
			} else {
				inst.Reason = ""
			}
		}
		resp.Instances = append(resp.Instances, InstanceStateChange{
			InstanceID:    inst.InstanceID,
			CurrentState:  inst.InstanceState,
			PreviousState: previous,
		})
	}
	return resp
}

// StopInstances stops running instances. Others are reported unchanged.
func (b *InstanceBackend) StopInstances(p params.Params) (*InstanceStateChangeResponse, error) {
	instances, err := b.targets(p)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		if inst.DisableAPIStop {
			return nil, errors.API(errors.ErrOperationNotPermitted,
				"The instance '%s' may not be stopped. Modify its 'disableApiStop' instance attribute and try again.",
				inst.InstanceID)
		}
	}
	resp := b.transition(instances, resources.StateRunning, resources.StateStopped, &resources.StateReason{
		Code:    "Client.UserInitiatedShutdown",
		Message: "Client.UserInitiatedShutdown: User initiated shutdown",
	})
	b.log.Debug("Instances stopped", zap.String("operation", "StopInstances"), zap.Int("count", len(instances)))
	return resp, nil
}

// StartInstances starts stopped instances. Others are reported unchanged.
func (b *InstanceBackend) StartInstances(p params.Params) (*InstanceStateChangeResponse, error) {
	instances, err := b.targets(p)
	if err != nil {
		return nil, err
	}
	resp := b.transition(instances, resources.StateStopped, resources.StateRunning, nil)
	b.log.Debug("Instances started", zap.String("operation", "StartInstances"), zap.Int("count", len(instances)))
	return resp, nil
}

// RebootInstances records a reboot on every instance not terminated.
func (b *InstanceBackend) RebootInstances(p params.Params) (*ReturnResponse, error) {
	instances, err := b.targets(p)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		if inst.InstanceState == resources.StateTerminated {
			continue
		}
		inst.StateReason = &resources.StateReason{
			Code:    "Client.UserInitiatedReboot",
			Message: "Client.UserInitiatedReboot: User initiated reboot",
		}
	}
	return ok(), nil
}

// SendDiagnosticInterrupt records a diagnostic interrupt on one instance.
func (b *InstanceBackend) SendDiagnosticInterrupt(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("InstanceId"); err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}
	inst.StateReason = &resources.StateReason{
		Code:    "Client.DiagnosticInterrupt",
		Message: "Client.DiagnosticInterrupt: Diagnostic interrupt sent",
	}
	return ok(), nil
}

// InstanceMonitoring reports the monitoring state of one instance.
type InstanceMonitoring struct {
	InstanceID string               `xml:"instanceId"`
	Monitoring resources.Monitoring `xml:"monitoring"`
}

// MonitoringResponse lists monitoring states.
type MonitoringResponse struct {
	Meta
	Instances []InstanceMonitoring `xml:"instancesSet>item"`
}

func (b *InstanceBackend) setMonitoring(p params.Params, s types.MonitoringState) (*MonitoringResponse, error) {
	instances, err := b.targets(p)
	if err != nil {
		return nil, err
	}
	resp := &MonitoringResponse{}
	for _, inst := range instances {
		inst.Monitoring.State = string(s)
		resp.Instances = append(resp.Instances, InstanceMonitoring{InstanceID: inst.InstanceID, Monitoring: inst.Monitoring})
	}
	return resp, nil
}

// MonitorInstances enables detailed monitoring.
func (b *InstanceBackend) MonitorInstances(p params.Params) (*MonitoringResponse, error) {
	return b.setMonitoring(p, types.MonitoringStateEnabled)
}

// UnmonitorInstances disables detailed monitoring.
func (b *InstanceBackend) UnmonitorInstances(p params.Params) (*MonitoringResponse, error) {
	return b.setMonitoring(p, types.MonitoringStateDisabled)
}

// ReportInstanceStatus records a caller reported health status on running instances.
func (b *InstanceBackend) ReportInstanceStatus(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("Status"); err != nil {
		return nil, err
	}
	status := p.String("Status")
	if err := oneOf("Status", status, valuesOf(types.ReportStatusType("").Values())...); err != nil {
		return nil, err
	}
	instances, err := b.targets(p)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		if inst.InstanceState != resources.StateRunning {
			return nil, errors.API(errors.ErrIncorrectInstanceState,
				"The instance '%s' is not in a state from which it can report status.", inst.InstanceID)
		}
	}
	for _, inst := range instances {
		inst.ReportedStatus = status
	}
	return ok(), nil
}

// DescribeInstancesResponse lists reservations with their matching instances.
type DescribeInstancesResponse struct {
	Meta
	Reservations []resources.ReservationView `xml:"reservationSet>item"`
	NextToken    string                      `xml:"nextToken,omitempty"`
}

// DescribeInstances pages over instances, then groups each page by reservation.
func (b *InstanceBackend) DescribeInstances(p params.Params) (*DescribeInstancesResponse, error) {
	instances, next, err := describe(b.base, state.KindInstance, p, idList(p, "InstanceId"), instanceMatcher,
		func(i *resources.Instance) *resources.Instance { return i }, true)
	if err != nil {
		return nil, err
	}

	var order []string
	grouped := map[string][]resources.InstanceView{}
	for _, inst := range instances {
		if _, seen := grouped[inst.ReservationID]; !seen {
			order = append(order, inst.ReservationID)
		}
		grouped[inst.ReservationID] = append(grouped[inst.ReservationID], inst.View())
	}

	resp := &DescribeInstancesResponse{NextToken: next, Reservations: []resources.ReservationView{}}
	for _, id := range order {
		res, found := state.Get[*resources.Reservation](b.store, state.KindReservation, id)
		if !found {
			resp.Reservations = append(resp.Reservations, resources.ReservationView{
				ReservationID: id,
				OwnerID:       b.settings.AccountID,
				Instances:     grouped[id],
			})
			continue
		}
		resp.Reservations = append(resp.Reservations, res.View(grouped[id]))
	}
	return resp, nil
}
