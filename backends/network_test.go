package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec2emulator/errors"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

func TestVerifiedAccess_Hierarchy(t *testing.T) {
	f := newFixture(t)
	va := f.be.VerifiedAccess

	vai, err := va.CreateVerifiedAccessInstance(params.Params{"Description": "corp"})
	require.NoError(t, err)
	instanceID := vai.VerifiedAccessInstance.VerifiedAccessInstanceID

	group, err := va.CreateVerifiedAccessGroup(params.Params{"VerifiedAccessInstanceId": instanceID})
	require.NoError(t, err)
	groupID := group.VerifiedAccessGroup.VerifiedAccessGroupID
	assert.Contains(t, group.VerifiedAccessGroup.VerifiedAccessGroupArn, groupID)

	endpoint, err := va.CreateVerifiedAccessEndpoint(params.Params{
		"VerifiedAccessGroupId": groupID,
		"EndpointType":          "load-balancer",
		"AttachmentType":        "vpc",
		"EndpointDomainPrefix":  "app",
		"SecurityGroupId.1":     f.groupID,
	})
	require.NoError(t, err)
	endpointID := endpoint.VerifiedAccessEndpoint.VerifiedAccessEndpointID
	assert.Equal(t, instanceID, endpoint.VerifiedAccessEndpoint.VerifiedAccessInstanceID)

	_, err = va.DeleteVerifiedAccessGroup(params.Params{"VerifiedAccessGroupId": groupID})
	assertErrorType(t, err, errors.ErrDependencyViolation)
	_, err = va.DeleteVerifiedAccessInstance(params.Params{"VerifiedAccessInstanceId": instanceID})
	assertErrorType(t, err, errors.ErrDependencyViolation)
	_, err = f.be.SecurityGroups.DeleteSecurityGroup(params.Params{"GroupId": f.groupID})
	assertErrorType(t, err, errors.ErrDependencyViolation)

	described, err := va.DescribeVerifiedAccessGroups(params.Params{"VerifiedAccessInstanceId": instanceID})
	require.NoError(t, err)
	require.Len(t, described.VerifiedAccessGroups, 1)
	assert.Equal(t, groupID, described.VerifiedAccessGroups[0].VerifiedAccessGroupID)

	_, err = va.DeleteVerifiedAccessEndpoint(params.Params{"VerifiedAccessEndpointId": endpointID})
	require.NoError(t, err)
	_, err = va.DeleteVerifiedAccessGroup(params.Params{"VerifiedAccessGroupId": groupID})
	require.NoError(t, err)
	_, err = va.DeleteVerifiedAccessInstance(params.Params{"VerifiedAccessInstanceId": instanceID})
	require.NoError(t, err)
	_, err = f.be.SecurityGroups.DeleteSecurityGroup(params.Params{"GroupId": f.groupID})
	require.NoError(t, err)
}

func TestVerifiedAccessGroupPolicy(t *testing.T) {
	be := newBackends(t)
	vai, err := be.VerifiedAccess.CreateVerifiedAccessInstance(params.Params{})
	require.NoError(t, err)
	group, err := be.VerifiedAccess.CreateVerifiedAccessGroup(params.Params{
		"VerifiedAccessInstanceId": vai.VerifiedAccessInstance.VerifiedAccessInstanceID,
	})
	require.NoError(t, err)
	groupID := group.VerifiedAccessGroup.VerifiedAccessGroupID

	policy, err := be.VerifiedAccess.GetVerifiedAccessGroupPolicy(params.Params{"VerifiedAccessGroupId": groupID})
	require.NoError(t, err)
	assert.False(t, policy.PolicyEnabled)

	_, err = be.VerifiedAccess.ModifyVerifiedAccessGroupPolicy(params.Params{
		"VerifiedAccessGroupId": groupID, "PolicyEnabled": "true",
	})
	assertErrorType(t, err, errors.ErrMissingParameter)

	_, err = be.VerifiedAccess.ModifyVerifiedAccessGroupPolicy(params.Params{
		"VerifiedAccessGroupId": groupID, "PolicyEnabled": "true", "PolicyDocument": "permit(principal,action,resource);",
	})
	require.NoError(t, err)
	policy, err = be.VerifiedAccess.GetVerifiedAccessGroupPolicy(params.Params{"VerifiedAccessGroupId": groupID})
	require.NoError(t, err)
	assert.True(t, policy.PolicyEnabled)
	assert.Equal(t, "permit(principal,action,resource);", policy.PolicyDocument)
}

func TestCreateFlowLogs(t *testing.T) {
	f := newFixture(t)
	base := params.Params{
		"ResourceType":             "Subnet",
		"ResourceId.1":             f.subnetID,
		"LogGroupName":             "subnet-logs",
		"DeliverLogsPermissionArn": "arn:aws:iam::123456789012:role/flow-logs",
	}

	resp, err := f.be.FlowLogs.CreateFlowLogs(base)
	require.NoError(t, err)
	require.Len(t, resp.FlowLogIDs, 1)
	assert.Empty(t, resp.Unsuccessful)
	subnet, _ := state.Get[*resources.Subnet](f.be.Store(), state.KindSubnet, f.subnetID)
	assert.True(t, subnet.HasChild(state.KindFlowLog, resp.FlowLogIDs[0]))

	dup, err := f.be.FlowLogs.CreateFlowLogs(base)
	require.NoError(t, err)
	assert.Empty(t, dup.FlowLogIDs)
	require.Len(t, dup.Unsuccessful, 1)
	assert.Equal(t, "FlowLogAlreadyExists", dup.Unsuccessful[0].Error.Code)

	_, err = f.be.Subnets.DeleteSubnet(params.Params{"SubnetId": f.subnetID})
	assertErrorType(t, err, errors.ErrDependencyViolation)

	invalid := []struct {
		name    string
		p       params.Params
		errType errors.ErrorType
	}{
		{name: "unknown resource type", p: params.Params{"ResourceType": "Instance"}, errType: errors.ErrInvalidParameterValue},
		{name: "group and destination", p: params.Params{"LogDestination": "arn:aws:logs:::x"}, errType: errors.ErrInvalidParameterCombo},
		{name: "bad interval", p: params.Params{"MaxAggregationInterval": "30"}, errType: errors.ErrInvalidParameterValue},
		{name: "missing resource", p: params.Params{"ResourceId.2": "subnet-00000000000000000"}, errType: "InvalidSubnetID.NotFound"},
		{name: "s3 without destination", p: params.Params{"LogDestinationType": "s3", "LogGroupName": ""}, errType: errors.ErrMissingParameter},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			p := params.Params{}
			for k, v := range base {
				p[k] = v
			}
			for k, v := range tt.p {
				p[k] = v
			}
			before := f.be.Store().Counts()
			_, err := f.be.FlowLogs.CreateFlowLogs(p)
			assertErrorType(t, err, tt.errType)
			assert.Equal(t, before, f.be.Store().Counts())
		})
	}

	_, err = f.be.FlowLogs.DeleteFlowLogs(params.Params{"FlowLogId.1": resp.FlowLogIDs[0]})
	require.NoError(t, err)
	assert.False(t, subnet.HasChild(state.KindFlowLog, resp.FlowLogIDs[0]))
}

func TestTransitGateway_BlockedByVpnConcentrator(t *testing.T) {
	be := newBackends(t)
	tgw, err := be.TransitGateways.CreateTransitGateway(params.Params{"Description": "core"})
	require.NoError(t, err)
	tgwID := tgw.TransitGateway.TransitGatewayID
	assert.EqualValues(t, 64512, tgw.TransitGateway.Options.AmazonSideAsn)

	_, err = be.TransitGateways.CreateTransitGateway(params.Params{"Options.AmazonSideAsn": "100"})
	assertErrorType(t, err, errors.ErrInvalidParameterValue)

	vcn, err := be.VpnConcentrators.CreateVpnConcentrator(params.Params{"Type": "ipsec.1", "TransitGatewayId": tgwID})
	require.NoError(t, err)
	assert.Regexp(t, `^tgw-attach-[0-9a-f]{17}$`, vcn.VpnConcentrator.TransitGatewayAttachmentID)

	_, err = be.TransitGateways.DeleteTransitGateway(params.Params{"TransitGatewayId": tgwID})
	assertErrorType(t, err, errors.ErrDependencyViolation)

	_, err = be.VpnConcentrators.DeleteVpnConcentrator(params.Params{"VpnConcentratorId": vcn.VpnConcentrator.VpnConcentratorID})
	require.NoError(t, err)
	deleted, err := be.TransitGateways.DeleteTransitGateway(params.Params{"TransitGatewayId": tgwID})
	require.NoError(t, err)
	assert.Equal(t, "deleting", deleted.TransitGateway.State)

	_, err = be.VpnConcentrators.CreateVpnConcentrator(params.Params{"Type": "ipsec.1", "TransitGatewayId": tgwID})
	assertErrorType(t, err, "InvalidTransitGatewayID.NotFound")
}

func TestTransitGateway_BlockedByRoute(t *testing.T) {
	f := newFixture(t)
	tgw, err := f.be.TransitGateways.CreateTransitGateway(params.Params{})
	require.NoError(t, err)
	tgwID := tgw.TransitGateway.TransitGatewayID
	rt, err := f.be.RouteTables.CreateRouteTable(params.Params{"VpcId": f.vpcID})
	require.NoError(t, err)

	_, err = f.be.RouteTables.CreateRoute(params.Params{
		"RouteTableId":         rt.RouteTable.RouteTableID,
		"DestinationCidrBlock": "172.16.0.0/12",
		"TransitGatewayId":     tgwID,
	})
	require.NoError(t, err)

	routeKey := resources.RouteKey(rt.RouteTable.RouteTableID, "172.16.0.0/12")
	gateway, _ := state.Get[*resources.TransitGateway](f.be.Store(), state.KindTransitGateway, tgwID)
	assert.Equal(t, []string{routeKey}, gateway.Children(state.KindRoute))

	_, err = f.be.TransitGateways.DeleteTransitGateway(params.Params{"TransitGatewayId": tgwID})
	assertErrorType(t, err, errors.ErrDependencyViolation)
	assert.Contains(t, err.Error(), routeKey)

	_, err = f.be.RouteTables.ReplaceRoute(params.Params{
		"RouteTableId":         rt.RouteTable.RouteTableID,
		"DestinationCidrBlock": "172.16.0.0/12",
		"GatewayId":            "igw-1",
	})
	require.NoError(t, err)
	assert.Empty(t, gateway.Children(state.KindRoute))

	_, err = f.be.RouteTables.ReplaceRoute(params.Params{
		"RouteTableId":         rt.RouteTable.RouteTableID,
		"DestinationCidrBlock": "172.16.0.0/12",
		"TransitGatewayId":     tgwID,
	})
	require.NoError(t, err)
	assert.True(t, gateway.HasChild(state.KindRoute, routeKey))

	_, err = f.be.RouteTables.DeleteRoute(params.Params{
		"RouteTableId":         rt.RouteTable.RouteTableID,
		"DestinationCidrBlock": "172.16.0.0/12",
	})
	require.NoError(t, err)
	assert.False(t, gateway.HasChild(state.KindRoute, routeKey))
	_, err = f.be.TransitGateways.DeleteTransitGateway(params.Params{"TransitGatewayId": tgwID})
	require.NoError(t, err)
}

func TestCreateRoute_Targets(t *testing.T) {
	f := newFixture(t)
	rt, err := f.be.RouteTables.CreateRouteTable(params.Params{"VpcId": f.vpcID})
	require.NoError(t, err)
	rtID := rt.RouteTable.RouteTableID

	tests := []struct {
		name    string
		p       params.Params
		errType errors.ErrorType
	}{
		{name: "no target", p: params.Params{}, errType: errors.ErrMissingParameter},
		{name: "two targets", p: params.Params{"GatewayId": "igw-1", "NatGatewayId": "nat-1"}, errType: errors.ErrInvalidParameterCombo},
		{name: "unknown instance", p: params.Params{"InstanceId": "i-00000000000000000"}, errType: "InvalidInstanceID.NotFound"},
		{name: "local route", p: params.Params{"DestinationCidrBlock": "10.0.0.0/16", "GatewayId": "igw-1"}, errType: "RouteAlreadyExists"},
		{name: "bad cidr", p: params.Params{"DestinationCidrBlock": "10.0.0.1/8", "GatewayId": "igw-1"}, errType: errors.ErrInvalidParameterValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params.Params{"RouteTableId": rtID, "DestinationCidrBlock": "0.0.0.0/0"}
			for k, v := range tt.p {
				p[k] = v
			}
			_, err := f.be.RouteTables.CreateRoute(p)
			assertErrorType(t, err, tt.errType)
		})
	}

	_, err = f.be.RouteTables.DeleteRoute(params.Params{"RouteTableId": rtID, "DestinationCidrBlock": "10.0.0.0/16"})
	assertErrorType(t, err, errors.ErrInvalidParameterValue)
	_, err = f.be.RouteTables.DeleteRoute(params.Params{"RouteTableId": rtID, "DestinationCidrBlock": "192.168.0.0/16"})
	assertErrorType(t, err, "InvalidRoute.NotFound")
}

func TestRouteTableAssociations(t *testing.T) {
	f := newFixture(t)
	rt, err := f.be.RouteTables.CreateRouteTable(params.Params{"VpcId": f.vpcID})
	require.NoError(t, err)
	rtID := rt.RouteTable.RouteTableID

	assoc, err := f.be.RouteTables.AssociateRouteTable(params.Params{"RouteTableId": rtID, "SubnetId": f.subnetID})
	require.NoError(t, err)

	_, err = f.be.RouteTables.AssociateRouteTable(params.Params{"RouteTableId": rtID, "SubnetId": f.subnetID})
	assertErrorType(t, err, "Resource.AlreadyAssociated")

	_, err = f.be.RouteTables.DeleteRouteTable(params.Params{"RouteTableId": rtID})
	assertErrorType(t, err, errors.ErrDependencyViolation)
	_, err = f.be.Subnets.DeleteSubnet(params.Params{"SubnetId": f.subnetID})
	assertErrorType(t, err, errors.ErrDependencyViolation)

	other, err := f.be.Vpcs.CreateVpc(params.Params{"CidrBlock": "10.1.0.0/16"})
	require.NoError(t, err)
	foreign, err := f.be.RouteTables.CreateRouteTable(params.Params{"VpcId": other.Vpc.VpcID})
	require.NoError(t, err)
	_, err = f.be.RouteTables.ReplaceRouteTableAssociation(params.Params{
		"AssociationId": assoc.AssociationID, "RouteTableId": foreign.RouteTable.RouteTableID,
	})
	assertErrorType(t, err, errors.ErrInvalidParameterValue)

	_, err = f.be.RouteTables.DisassociateRouteTable(params.Params{"AssociationId": assoc.AssociationID})
	require.NoError(t, err)
	_, err = f.be.RouteTables.DeleteRouteTable(params.Params{"RouteTableId": rtID})
	require.NoError(t, err)

	vpc, _ := state.Get[*resources.Vpc](f.be.Store(), state.KindVpc, f.vpcID)
	assert.False(t, vpc.HasChild(state.KindRouteTable, rtID))
}

func TestAddresses_ByPublicIP(t *testing.T) {
	f := newFixture(t)
	id := f.launch(1, nil)[0]
	addr, err := f.be.Addresses.AllocateAddress(params.Params{})
	require.NoError(t, err)
	assert.Equal(t, "vpc", addr.Domain)
	assert.Equal(t, "us-east-1", addr.NetworkBorderGroup)

	_, err = f.be.Addresses.AssociateAddress(params.Params{"PublicIp": addr.PublicIP, "InstanceId": id})
	require.NoError(t, err)

	second := f.launch(1, nil)[0]
	_, err = f.be.Addresses.AssociateAddress(params.Params{"AllocationId": addr.AllocationID, "InstanceId": second})
	assertErrorType(t, err, "Resource.AlreadyAssociated")
	_, err = f.be.Addresses.AssociateAddress(params.Params{
		"AllocationId": addr.AllocationID, "InstanceId": second, "AllowReassociation": "true",
	})
	require.NoError(t, err)
	assert.False(t, f.instance(id).HasChild(state.KindAddress, addr.AllocationID))
	assert.True(t, f.instance(second).HasChild(state.KindAddress, addr.AllocationID))
	require.NoError(t, f.terminate(id))

	described, err := f.be.Addresses.DescribeAddresses(params.Params{"Filter.1.Name": "instance-id", "Filter.1.Value.1": second})
	require.NoError(t, err)
	require.Len(t, described.Addresses, 1)

	_, err = f.be.Addresses.DescribeAddresses(params.Params{"PublicIp.1": "203.0.113.9"})
	assertErrorType(t, err, "InvalidAddress.NotFound")

	_, err = f.be.Addresses.DisassociateAddress(params.Params{"PublicIp": addr.PublicIP})
	require.NoError(t, err)
	_, err = f.be.Addresses.ReleaseAddress(params.Params{"PublicIp": addr.PublicIP})
	require.NoError(t, err)
	assert.Zero(t, f.be.Store().Table(state.KindAddress).Len())
}
