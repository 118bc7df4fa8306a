package integrityChecker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ec2emulator/backends"
	"ec2emulator/errors"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

type world struct {
	be        *backends.Backends
	vpcID     string
	subnetID  string
	groupID   string
	instance  string
	gatewayID string
	routeKey  string
}

// newWorld builds a VPC with a subnet, a group, one running instance holding an
// elastic IP and a route table sending 172.16.0.0/12 to a transit gateway.
func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{be: backends.New(state.New(), backends.Settings{Region: "us-east-1", AccountID: "123456789012"}, zap.NewNop())}

	vpc, err := w.be.Vpcs.CreateVpc(params.Params{"CidrBlock": "10.0.0.0/16"})
	require.NoError(t, err)
	w.vpcID = vpc.Vpc.VpcID

	subnet, err := w.be.Subnets.CreateSubnet(params.Params{"VpcId": w.vpcID, "CidrBlock": "10.0.1.0/24"})
	require.NoError(t, err)
	w.subnetID = subnet.Subnet.SubnetID

	sg, err := w.be.SecurityGroups.CreateSecurityGroup(params.Params{"GroupName": "web", "GroupDescription": "web", "VpcId": w.vpcID})
	require.NoError(t, err)
	w.groupID = sg.GroupID

	img, err := w.be.Images.RegisterImage(params.Params{"Name": "base"})
	require.NoError(t, err)

	run, err := w.be.Instances.RunInstances(params.Params{
		"ImageId": img.ImageID, "MinCount": "2", "MaxCount": "2",
		"SubnetId": w.subnetID, "SecurityGroupId.1": w.groupID,
	})
	require.NoError(t, err)
	w.instance = run.Instances[0].InstanceID

	eip, err := w.be.Addresses.AllocateAddress(params.Params{"Domain": "vpc"})
	require.NoError(t, err)
	_, err = w.be.Addresses.AssociateAddress(params.Params{"AllocationId": eip.AllocationID, "InstanceId": w.instance})
	require.NoError(t, err)

	_, err = w.be.Instances.TerminateInstances(params.Params{"InstanceId.1": run.Instances[1].InstanceID})
	require.NoError(t, err)

	tgw, err := w.be.TransitGateways.CreateTransitGateway(params.Params{})
	require.NoError(t, err)
	w.gatewayID = tgw.TransitGateway.TransitGatewayID
	rt, err := w.be.RouteTables.CreateRouteTable(params.Params{"VpcId": w.vpcID})
	require.NoError(t, err)
	_, err = w.be.RouteTables.CreateRoute(params.Params{
		"RouteTableId":         rt.RouteTable.RouteTableID,
		"DestinationCidrBlock": "172.16.0.0/12",
		"TransitGatewayId":     w.gatewayID,
	})
	require.NoError(t, err)
	w.routeKey = resources.RouteKey(rt.RouteTable.RouteTableID, "172.16.0.0/12")
	return w
}

func TestAudit_ConsistentAfterOperations(t *testing.T) {
	w := newWorld(t)
	checker := NewChecker(w.be.Store(), zap.NewNop())

	require.NoError(t, checker.Audit(context.Background()))
	violations, err := checker.Violations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestAudit_DetectsDrift(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(w *world)
		want    Violation
	}{
		{
			name: "child missing from parent list",
			corrupt: func(w *world) {
				vpc, _ := state.Get[*resources.Vpc](w.be.Store(), state.KindVpc, w.vpcID)
				vpc.RemoveChild(state.KindSubnet, w.subnetID)
			},
			want: Violation{Relationship: "subnet->vpc", Reason: "child missing from parent list"},
		},
		{
			name: "listed child does not exist",
			corrupt: func(w *world) {
				group, _ := state.Get[*resources.SecurityGroup](w.be.Store(), state.KindSecurityGroup, w.groupID)
				group.AddChild(state.KindInstance, "i-00000000000000000")
			},
			want: Violation{Relationship: "instance->security-group", ChildID: "i-00000000000000000", Reason: "listed child does not exist"},
		},
		{
			name: "route missing from transit gateway list",
			corrupt: func(w *world) {
				tgw, _ := state.Get[*resources.TransitGateway](w.be.Store(), state.KindTransitGateway, w.gatewayID)
				tgw.RemoveChild(state.KindRoute, w.routeKey)
			},
			want: Violation{Relationship: "route->transit-gateway", Reason: "child missing from parent list"},
		},
		{
			name: "parent removed behind the backends",
			corrupt: func(w *world) {
				w.be.Store().Table(state.KindSecurityGroup).Delete(w.groupID)
			},
			want: Violation{Relationship: "instance->security-group", ParentID: "", Reason: "parent does not exist"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t)
			tt.corrupt(w)
			checker := NewChecker(w.be.Store(), zap.NewNop())

			err := checker.Audit(context.Background())
			require.Error(t, err)
			errs := multierr.Errors(err)
			require.NotEmpty(t, errs)
			for _, e := range errs {
				assert.True(t, errors.Is(e, errors.ErrIntegrity))
			}

			violations, err := checker.Violations(context.Background())
			require.NoError(t, err)
			require.Len(t, violations, len(errs))

			var matched bool
			for _, v := range violations {
				if v.Relationship != tt.want.Relationship || v.Reason != tt.want.Reason {
					continue
				}
				if tt.want.ChildID != "" && v.ChildID != tt.want.ChildID {
					continue
				}
				matched = true
			}
			assert.True(t, matched, "violations: %v", violations)
		})
	}
}

func TestRunLoop(t *testing.T) {
	w := newWorld(t)
	checker := NewChecker(w.be.Store(), zap.NewNop())

	assert.NoError(t, checker.RunLoop(context.Background(), 0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := checker.RunLoop(ctx, 5*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIntegrity))
	assert.Contains(t, err.Error(), "integrity check cancelled")
}
