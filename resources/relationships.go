package resources

import (
	"ec2emulator/state"
)

// Relationship declares that records of Child point at records of Parent, and that the
// parent lists them under its Child dependency list.
type Relationship struct {
	Child  state.Kind
	Parent state.Kind
	// Parents returns the parent ids the child record is registered under.
	Parents func(state.Record) []string
}

// Name identifies the relationship in logs and audit reports.
func (r Relationship) Name() string {
	return string(r.Child) + "->" + string(r.Parent)
}

func one(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

// Relationships lists every tracked parent/child reference.
func Relationships() []Relationship {
	return []Relationship{
		{state.KindSubnet, state.KindVpc, func(r state.Record) []string { return one(r.(*Subnet).VpcID) }},
		{state.KindSecurityGroup, state.KindVpc, func(r state.Record) []string { return one(r.(*SecurityGroup).VpcID) }},
		{state.KindRouteTable, state.KindVpc, func(r state.Record) []string { return one(r.(*RouteTable).VpcID) }},
		{state.KindFlowLog, state.KindVpc, func(r state.Record) []string {
			if f := r.(*FlowLog); f.ParentKind == state.KindVpc {
				return one(f.ResourceID)
			}
			return nil
		}},
		{state.KindFlowLog, state.KindSubnet, func(r state.Record) []string {
			if f := r.(*FlowLog); f.ParentKind == state.KindSubnet {
				return one(f.ResourceID)
			}
			return nil
		}},
		{state.KindInstance, state.KindVpc, func(r state.Record) []string { return one(r.(*Instance).VpcID) }},
		{state.KindInstance, state.KindSubnet, func(r state.Record) []string { return one(r.(*Instance).SubnetID) }},
		{state.KindInstance, state.KindSecurityGroup, func(r state.Record) []string { return r.(*Instance).SecurityGroupIDs() }},
		{state.KindInstance, state.KindKeyPair, func(r state.Record) []string { return one(r.(*Instance).KeyPairID) }},
		{state.KindInstance, state.KindImage, func(r state.Record) []string { return one(r.(*Instance).ImageID) }},
		{state.KindInstance, state.KindCapacityReservation, func(r state.Record) []string {
			return one(r.(*Instance).CapacityReservationID)
		}},
		{state.KindInstance, state.KindReservation, func(r state.Record) []string { return one(r.(*Instance).ReservationID) }},
		{state.KindRouteTableAssociation, state.KindSubnet, func(r state.Record) []string {
			return one(r.(*RouteTableAssociation).SubnetID)
		}},
		{state.KindRouteTableAssociation, state.KindRouteTable, func(r state.Record) []string {
			return one(r.(*RouteTableAssociation).RouteTableID)
		}},
		{state.KindRoute, state.KindRouteTable, func(r state.Record) []string { return one(r.(*Route).RouteTableID) }},
		{state.KindRoute, state.KindInstance, func(r state.Record) []string { return one(r.(*Route).InstanceID) }},
		{state.KindRoute, state.KindTransitGateway, func(r state.Record) []string { return one(r.(*Route).TransitGatewayID) }},
		{state.KindBundleTask, state.KindInstance, func(r state.Record) []string {
			if b := r.(*BundleTask); b.Active() {
				return one(b.InstanceID)
			}
			return nil
		}},
		{state.KindElasticGpu, state.KindInstance, func(r state.Record) []string { return one(r.(*ElasticGpu).InstanceID) }},
		{state.KindAddress, state.KindInstance, func(r state.Record) []string { return one(r.(*Address).InstanceID) }},
		{state.KindSpotInstanceRequest, state.KindInstance, func(r state.Record) []string {
			if s := r.(*SpotInstanceRequest); s.Active() {
				return one(s.InstanceID)
			}
			return nil
		}},
		{state.KindVerifiedAccessGroup, state.KindVerifiedAccessInstance, func(r state.Record) []string {
			return one(r.(*VerifiedAccessGroup).VerifiedAccessInstanceID)
		}},
		{state.KindVerifiedAccessEndpoint, state.KindVerifiedAccessGroup, func(r state.Record) []string {
			return one(r.(*VerifiedAccessEndpoint).VerifiedAccessGroupID)
		}},
		{state.KindVerifiedAccessEndpoint, state.KindSecurityGroup, func(r state.Record) []string {
			return append([]string(nil), r.(*VerifiedAccessEndpoint).SecurityGroupIDs...)
		}},
		{state.KindVpnConcentrator, state.KindTransitGateway, func(r state.Record) []string {
			return one(r.(*VpnConcentrator).TransitGatewayID)
		}},
	}
}
