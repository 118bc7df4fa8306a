package resources

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"ec2emulator/state"
)

// VpcView is the public shape of a VPC.
type VpcView struct {
	VpcID           string `xml:"vpcId"`
	State           string `xml:"state"`
	CidrBlock       string `xml:"cidrBlock"`
	DhcpOptionsID   string `xml:"dhcpOptionsId"`
	InstanceTenancy string `xml:"instanceTenancy"`
	IsDefault       bool   `xml:"isDefault"`
	OwnerID         string `xml:"ownerId"`
	Tagged
}

// Vpc is a stored VPC.
type Vpc struct {
	VpcView
	Dependents
	EnableDNSSupport   bool
	EnableDNSHostnames bool
}

// NewVpc returns a VPC tracking its subnets, instances, groups, route tables and flow logs.
func NewVpc(view VpcView) *Vpc {
	return &Vpc{
		VpcView: view,
		Dependents: NewDependents(state.KindSubnet, state.KindInstance, state.KindSecurityGroup,
			state.KindRouteTable, state.KindFlowLog),
		EnableDNSSupport: true,
	}
}

func (v *Vpc) ID() string           { return v.VpcID }
func (v *Vpc) ResourceType() string { return string(types.ResourceTypeVpc) }

// View returns a detached copy of the public fields.
func (v *Vpc) View() VpcView {
	out := v.VpcView
	out.Tags = out.Tags.Clone()
	return out
}

// SubnetView is the public shape of a subnet.
type SubnetView struct {
	SubnetID                string `xml:"subnetId"`
	SubnetArn               string `xml:"subnetArn"`
	State                   string `xml:"state"`
	VpcID                   string `xml:"vpcId"`
	CidrBlock               string `xml:"cidrBlock"`
	AvailableIPAddressCount int    `xml:"availableIpAddressCount"`
	AvailabilityZone        string `xml:"availabilityZone"`
	DefaultForAz            bool   `xml:"defaultForAz"`
	MapPublicIPOnLaunch     bool   `xml:"mapPublicIpOnLaunch"`
	OwnerID                 string `xml:"ownerId"`
	Tagged
}

// Subnet is a stored subnet. Allocated holds the host offsets handed to instances.
type Subnet struct {
	SubnetView
	Dependents
	Allocated map[uint32]string
}

// NewSubnet returns a subnet tracking its instances, flow logs and route table associations.
func NewSubnet(view SubnetView) *Subnet {
	return &Subnet{
		SubnetView: view,
		Dependents: NewDependents(state.KindInstance, state.KindFlowLog, state.KindRouteTableAssociation),
		Allocated:  map[uint32]string{},
	}
}

func (s *Subnet) ID() string           { return s.SubnetID }
func (s *Subnet) ResourceType() string { return string(types.ResourceTypeSubnet) }

// View returns a detached copy of the public fields.
func (s *Subnet) View() SubnetView {
	out := s.SubnetView
	out.Tags = out.Tags.Clone()
	return out
}

// SecurityGroupView is the public shape of a security group.
type SecurityGroupView struct {
	GroupID          string `xml:"groupId"`
	GroupName        string `xml:"groupName"`
	GroupDescription string `xml:"groupDescription"`
	VpcID            string `xml:"vpcId,omitempty"`
	OwnerID          string `xml:"ownerId"`
	Tagged
}

// SecurityGroup is a stored security group.
type SecurityGroup struct {
	SecurityGroupView
	Dependents
}

// NewSecurityGroup returns a group tracking the instances and endpoints using it.
func NewSecurityGroup(view SecurityGroupView) *SecurityGroup {
	return &SecurityGroup{
		SecurityGroupView: view,
		Dependents:        NewDependents(state.KindInstance, state.KindVerifiedAccessEndpoint),
	}
}

func (g *SecurityGroup) ID() string           { return g.GroupID }
func (g *SecurityGroup) ResourceType() string { return string(types.ResourceTypeSecurityGroup) }

// View returns a detached copy of the public fields.
func (g *SecurityGroup) View() SecurityGroupView {
	out := g.SecurityGroupView
	out.Tags = out.Tags.Clone()
	return out
}

// RouteView is the public shape of one route.
type RouteView struct {
	DestinationCidrBlock string `xml:"destinationCidrBlock"`
	GatewayID            string `xml:"gatewayId,omitempty"`
	InstanceID           string `xml:"instanceId,omitempty"`
	NatGatewayID         string `xml:"natGatewayId,omitempty"`
	TransitGatewayID     string `xml:"transitGatewayId,omitempty"`
	State                string `xml:"state"`
	Origin               string `xml:"origin"`
}

// Route is a stored route keyed by route table and destination.
type Route struct {
	RouteView
	RouteTableID string
}

// RouteKey builds the store key of a route.
func RouteKey(routeTableID, destination string) string {
	return routeTableID + "|" + destination
}

func (r *Route) ID() string { return RouteKey(r.RouteTableID, r.DestinationCidrBlock) }

// View returns a copy of the public fields.
func (r *Route) View() RouteView { return r.RouteView }

// RouteTableAssociationView is the public shape of a subnet association.
type RouteTableAssociationView struct {
	RouteTableAssociationID string           `xml:"routeTableAssociationId"`
	RouteTableID            string           `xml:"routeTableId"`
	SubnetID                string           `xml:"subnetId,omitempty"`
	Main                    bool             `xml:"main"`
	AssociationState        AssociationState `xml:"associationState"`
}

// AssociationState is the state wrapper used by association projections.
type AssociationState struct {
	State string `xml:"state"`
}

// RouteTableAssociation links a route table to a subnet.
type RouteTableAssociation struct {
	RouteTableAssociationView
}

func (a *RouteTableAssociation) ID() string { return a.RouteTableAssociationID }

// View returns a copy of the public fields.
func (a *RouteTableAssociation) View() RouteTableAssociationView {
	return a.RouteTableAssociationView
}

// RouteTableView is the public shape of a route table.
type RouteTableView struct {
	RouteTableID string                      `xml:"routeTableId"`
	VpcID        string                      `xml:"vpcId"`
	OwnerID      string                      `xml:"ownerId"`
	Routes       []RouteView                 `xml:"routeSet>item,omitempty"`
	Associations []RouteTableAssociationView `xml:"associationSet>item,omitempty"`
	Tagged
}

// RouteTable is a stored route table. Its local route is owned by the table and is not a
// separate record.
type RouteTable struct {
	RouteTableView
	Dependents
	LocalRoute RouteView
}

// NewRouteTable returns a table tracking its routes and subnet associations.
func NewRouteTable(view RouteTableView, vpcCidr string) *RouteTable {
	return &RouteTable{
		RouteTableView: view,
		Dependents:     NewDependents(state.KindRoute, state.KindRouteTableAssociation),
		LocalRoute: RouteView{
			DestinationCidrBlock: vpcCidr,
			GatewayID:            "local",
			State:                "active",
			Origin:               "CreateRouteTable",
		},
	}
}

func (t *RouteTable) ID() string           { return t.RouteTableID }
func (t *RouteTable) ResourceType() string { return string(types.ResourceTypeRouteTable) }

// View assembles the public shape from the table and its resolved children.
func (t *RouteTable) View(routes []RouteView, associations []RouteTableAssociationView) RouteTableView {
	out := t.RouteTableView
	out.Tags = out.Tags.Clone()
	out.Routes = append([]RouteView{t.LocalRoute}, routes...)
	out.Associations = associations
	return out
}

// FlowLogView is the public shape of a flow log.
type FlowLogView struct {
	FlowLogID                string `xml:"flowLogId"`
	ResourceID               string `xml:"resourceId"`
	TrafficType              string `xml:"trafficType"`
	LogDestinationType       string `xml:"logDestinationType"`
	LogDestination           string `xml:"logDestination,omitempty"`
	LogGroupName             string `xml:"logGroupName,omitempty"`
	DeliverLogsPermissionArn string `xml:"deliverLogsPermissionArn,omitempty"`
	LogFormat                string `xml:"logFormat,omitempty"`
	MaxAggregationInterval   int    `xml:"maxAggregationInterval"`
	FlowLogStatus            string `xml:"flowLogStatus"`
	DeliverLogsStatus        string `xml:"deliverLogsStatus"`
	CreationTime             string `xml:"creationTime"`
	Tagged
}

// FlowLog is a stored flow log attached to a VPC or a subnet.
type FlowLog struct {
	FlowLogView
	ParentKind state.Kind
}

func (f *FlowLog) ID() string           { return f.FlowLogID }
func (f *FlowLog) ResourceType() string { return string(types.ResourceTypeVpcFlowLog) }

// View returns a detached copy of the public fields.
func (f *FlowLog) View() FlowLogView {
	out := f.FlowLogView
	out.Tags = out.Tags.Clone()
	return out
}

// AddressView is the public shape of an Elastic IP.
type AddressView struct {
	AllocationID       string `xml:"allocationId"`
	PublicIP           string `xml:"publicIp"`
	Domain             string `xml:"domain"`
	PublicIPv4Pool     string `xml:"publicIpv4Pool"`
	NetworkBorderGroup string `xml:"networkBorderGroup"`
	InstanceID         string `xml:"instanceId,omitempty"`
	AssociationID      string `xml:"associationId,omitempty"`
	PrivateIPAddress   string `xml:"privateIpAddress,omitempty"`
	Tagged
}

// Address is a stored Elastic IP allocation.
type Address struct {
	AddressView
}

func (a *Address) ID() string           { return a.AllocationID }
func (a *Address) ResourceType() string { return string(types.ResourceTypeElasticIp) }

// View returns a detached copy of the public fields.
func (a *Address) View() AddressView {
	out := a.AddressView
	out.Tags = out.Tags.Clone()
	return out
}
