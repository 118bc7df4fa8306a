package backends

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

const testAccount = "123456789012"

// fixture is a store holding one VPC with a subnet, a security group, a key pair and an
// image, the usual parents of a launch.
type fixture struct {
	t  *testing.T
	be *Backends

	vpcID    string
	subnetID string
	groupID  string
	keyName  string
	imageID  string
}

func newBackends(t *testing.T) *Backends {
	t.Helper()
	return New(state.New(), Settings{Region: "us-east-1", AccountID: testAccount}, zap.NewNop())
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, be: newBackends(t), keyName: "deploy"}

	vpc, err := f.be.Vpcs.CreateVpc(params.Params{"CidrBlock": "10.0.0.0/16"})
	require.NoError(t, err)
	f.vpcID = vpc.Vpc.VpcID

	subnet, err := f.be.Subnets.CreateSubnet(params.Params{"VpcId": f.vpcID, "CidrBlock": "10.0.1.0/24"})
	require.NoError(t, err)
	f.subnetID = subnet.Subnet.SubnetID

	sg, err := f.be.SecurityGroups.CreateSecurityGroup(params.Params{
		"GroupName":        "web",
		"GroupDescription": "web servers",
		"VpcId":            f.vpcID,
	})
	require.NoError(t, err)
	f.groupID = sg.GroupID

	_, err = f.be.KeyPairs.CreateKeyPair(params.Params{"KeyName": f.keyName})
	require.NoError(t, err)

	img, err := f.be.Images.RegisterImage(params.Params{"Name": "base", "TpmSupport": "v2.0"})
	require.NoError(t, err)
	f.imageID = img.ImageID
	return f
}

// launch runs count instances into the fixture subnet with extra merged into the request.
func (f *fixture) launch(count int, extra params.Params) []string {
	f.t.Helper()
	p := params.Params{
		"ImageId":           f.imageID,
		"MinCount":          fmt.Sprint(count),
		"MaxCount":          fmt.Sprint(count),
		"SubnetId":          f.subnetID,
		"SecurityGroupId.1": f.groupID,
		"KeyName":           f.keyName,
	}
	for k, v := range extra {
		p[k] = v
	}
	resp, err := f.be.Instances.RunInstances(p)
	require.NoError(f.t, err)
	ids := make([]string, 0, len(resp.Instances))
	for _, inst := range resp.Instances {
		ids = append(ids, inst.InstanceID)
	}
	return ids
}

func (f *fixture) terminate(ids ...string) error {
	p := params.Params{}
	for i, id := range ids {
		p[fmt.Sprintf("InstanceId.%d", i+1)] = id
	}
	_, err := f.be.Instances.TerminateInstances(p)
	return err
}

func (f *fixture) instance(id string) *resources.Instance {
	f.t.Helper()
	inst, found := state.Get[*resources.Instance](f.be.Store(), state.KindInstance, id)
	require.True(f.t, found, "instance %s", id)
	return inst
}

func assertErrorType(t *testing.T, err error, want errors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	custom, ok := errors.As(err)
	require.True(t, ok, "expected a CustomError, got %T", err)
	assert.Equal(t, want, custom.Type, custom.Message)
}

func TestNew_LoadsInstanceTypeCatalogOnce(t *testing.T) {
	store := state.New()
	New(store, Settings{Region: "eu-west-1", AccountID: testAccount}, nil)
	first := store.Table(state.KindInstanceType).Len()
	require.Greater(t, first, 100)

	New(store, Settings{Region: "eu-west-1", AccountID: testAccount}, nil)
	assert.Equal(t, first, store.Table(state.KindInstanceType).Len())
	assert.True(t, store.Table(state.KindInstanceType).Has("m1.small"))
}

func TestDeleteVpc_DependencyViolationLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	before := f.be.Store().Counts()

	_, err := f.be.Vpcs.DeleteVpc(params.Params{"VpcId": f.vpcID})
	assertErrorType(t, err, errors.ErrDependencyViolation)
	assert.Contains(t, err.Error(), f.subnetID)
	assert.Equal(t, before, f.be.Store().Counts())

	_, err = f.be.SecurityGroups.DeleteSecurityGroup(params.Params{"GroupId": f.groupID})
	require.NoError(t, err)
	_, err = f.be.Subnets.DeleteSubnet(params.Params{"SubnetId": f.subnetID})
	require.NoError(t, err)
	_, err = f.be.Vpcs.DeleteVpc(params.Params{"VpcId": f.vpcID})
	require.NoError(t, err)

	_, err = f.be.Vpcs.DescribeVpcs(params.Params{"VpcId.1": f.vpcID})
	assertErrorType(t, err, "InvalidVpcID.NotFound")
}

func TestDescribeVpcs_PaginationRoundTrip(t *testing.T) {
	be := newBackends(t)
	var want []string
	for i := 0; i < 7; i++ {
		resp, err := be.Vpcs.CreateVpc(params.Params{"CidrBlock": fmt.Sprintf("10.%d.0.0/16", i)})
		require.NoError(t, err)
		want = append(want, resp.Vpc.VpcID)
	}

	var got []string
	token := ""
	pages := 0
	for {
		p := params.Params{"MaxResults": "3"}
		if token != "" {
			p["NextToken"] = token
		}
		resp, err := be.Vpcs.DescribeVpcs(p)
		require.NoError(t, err)
		pages++
		for _, v := range resp.Vpcs {
			got = append(got, v.VpcID)
		}
		if resp.NextToken == "" {
			break
		}
		token = resp.NextToken
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 3, pages)

	_, err := be.Vpcs.DescribeVpcs(params.Params{"NextToken": "not-a-token"})
	assertErrorType(t, err, errors.ErrInvalidParameterValue)
	_, err = be.Vpcs.DescribeVpcs(params.Params{"MaxResults": "0"})
	assertErrorType(t, err, errors.ErrInvalidParameterValue)
}

func TestDescribeVpcs_Filters(t *testing.T) {
	be := newBackends(t)
	for i, env := range []string{"prod", "prod", "dev"} {
		_, err := be.Vpcs.CreateVpc(params.Params{
			"CidrBlock":                       fmt.Sprintf("10.%d.0.0/16", i),
			"TagSpecification.1.ResourceType": "vpc",
			"TagSpecification.1.Tag.1.Key":    "env",
			"TagSpecification.1.Tag.1.Value":  env,
			"TagSpecification.1.Tag.2.Key":    "team",
			"TagSpecification.1.Tag.2.Value":  "core",
			"TagSpecification.2.ResourceType": "subnet",
			"TagSpecification.2.Tag.1.Key":    "ignored",
			"TagSpecification.2.Tag.1.Value":  "yes",
		})
		require.NoError(t, err)
	}

	tests := []struct {
		name    string
		filters params.Params
		want    int
		errType errors.ErrorType
	}{
		{name: "no filters", filters: params.Params{}, want: 3},
		{name: "tag value", filters: params.Params{"Filter.1.Name": "tag:env", "Filter.1.Value.1": "prod"}, want: 2},
		{name: "values are a disjunction", filters: params.Params{
			"Filter.1.Name": "tag:env", "Filter.1.Value.1": "prod", "Filter.1.Value.2": "dev",
		}, want: 3},
		{name: "filters are a conjunction", filters: params.Params{
			"Filter.1.Name": "tag:env", "Filter.1.Value.1": "prod",
			"Filter.2.Name": "cidr-block", "Filter.2.Value.1": "10.1.0.0/16",
		}, want: 1},
		{name: "tag key", filters: params.Params{"Filter.1.Name": "tag-key", "Filter.1.Value.1": "team"}, want: 3},
		{name: "no match", filters: params.Params{"Filter.1.Name": "tag:env", "Filter.1.Value.1": "qa"}, want: 0},
		{name: "unknown filter", filters: params.Params{"Filter.1.Name": "colour", "Filter.1.Value.1": "red"},
			errType: errors.ErrInvalidParameterValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := be.Vpcs.DescribeVpcs(tt.filters)
			if tt.errType != "" {
				assertErrorType(t, err, tt.errType)
				return
			}
			require.NoError(t, err)
			assert.Len(t, resp.Vpcs, tt.want)
			for _, v := range resp.Vpcs {
				assert.NotContains(t, v.Tags.Map(), "ignored")
			}
		})
	}
}

func TestCreateSubnet_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		p       params.Params
		errType errors.ErrorType
	}{
		{name: "missing vpc", p: params.Params{"CidrBlock": "10.0.2.0/24"}, errType: errors.ErrMissingParameter},
		{name: "unknown vpc", p: params.Params{"VpcId": "vpc-00000000000000000", "CidrBlock": "10.0.2.0/24"}, errType: "InvalidVpcID.NotFound"},
		{name: "outside the vpc", p: params.Params{"VpcId": f.vpcID, "CidrBlock": "192.168.0.0/24"}, errType: "InvalidSubnet.Range"},
		{name: "overlaps a sibling", p: params.Params{"VpcId": f.vpcID, "CidrBlock": "10.0.1.128/25"}, errType: "InvalidSubnet.Conflict"},
		{name: "too small", p: params.Params{"VpcId": f.vpcID, "CidrBlock": "10.0.2.0/29"}, errType: "InvalidSubnet.Range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.be.Store().Counts()
			_, err := f.be.Subnets.CreateSubnet(tt.p)
			assertErrorType(t, err, tt.errType)
			assert.Equal(t, before, f.be.Store().Counts())
		})
	}

	resp, err := f.be.Subnets.CreateSubnet(params.Params{"VpcId": f.vpcID, "CidrBlock": "10.0.2.0/24"})
	require.NoError(t, err)
	assert.Equal(t, 251, resp.Subnet.AvailableIPAddressCount)
	vpc, _ := state.Get[*resources.Vpc](f.be.Store(), state.KindVpc, f.vpcID)
	assert.True(t, vpc.HasChild(state.KindSubnet, resp.Subnet.SubnetID))
}

func TestTags(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		p       params.Params
		errType errors.ErrorType
	}{
		{name: "reserved prefix", p: params.Params{"ResourceId.1": f.vpcID, "Tag.1.Key": "aws:owner", "Tag.1.Value": "x"},
			errType: errors.ErrInvalidParameterValue},
		{name: "unknown id prefix", p: params.Params{"ResourceId.1": "nope-123", "Tag.1.Key": "a"},
			errType: errors.ErrInvalidID},
		{name: "missing resource", p: params.Params{"ResourceId.1": "subnet-00000000000000000", "Tag.1.Key": "a"},
			errType: "InvalidSubnetID.NotFound"},
		{name: "no resource", p: params.Params{"Tag.1.Key": "a"}, errType: errors.ErrMissingParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.be.Tags.CreateTags(tt.p)
			assertErrorType(t, err, tt.errType)
		})
	}

	_, err := f.be.Tags.CreateTags(params.Params{
		"ResourceId.1": f.vpcID, "ResourceId.2": f.subnetID,
		"Tag.1.Key": "env", "Tag.1.Value": "prod",
		"Tag.2.Key": "Name", "Tag.2.Value": "main",
	})
	require.NoError(t, err)

	resp, err := f.be.Tags.DescribeTags(params.Params{"Filter.1.Name": "key", "Filter.1.Value.1": "env"})
	require.NoError(t, err)
	require.Len(t, resp.Tags, 2)
	assert.ElementsMatch(t, []string{f.vpcID, f.subnetID}, []string{resp.Tags[0].ResourceID, resp.Tags[1].ResourceID})

	_, err = f.be.Tags.DeleteTags(params.Params{"ResourceId.1": f.vpcID, "Tag.1.Key": "env", "Tag.1.Value": "dev"})
	require.NoError(t, err)
	vpc, _ := state.Get[*resources.Vpc](f.be.Store(), state.KindVpc, f.vpcID)
	assert.Equal(t, "prod", vpc.Tags.Map()["env"])

	_, err = f.be.Tags.DeleteTags(params.Params{"ResourceId.1": f.vpcID})
	require.NoError(t, err)
	assert.Empty(t, vpc.Tags)
}
