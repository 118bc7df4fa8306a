package seed

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ec2emulator/backends"
	"ec2emulator/errors"
	"ec2emulator/resources"
	"ec2emulator/state"
)

func newLoader(t *testing.T) (*Loader, *backends.Backends) {
	t.Helper()
	be := backends.New(state.New(), backends.Settings{Region: "us-east-1", AccountID: "123456789012"}, zap.NewNop())
	return NewLoader(be, zap.NewNop()), be
}

func TestLoadFile(t *testing.T) {
	loader, be := newLoader(t)

	result, err := loader.LoadFile(filepath.Join("testdata", "network.hcl"))
	require.NoError(t, err)

	for _, key := range []string{
		"vpc.main", "subnet.public", "subnet.private", "security_group.web",
		"key_pair.deploy", "image.base", "capacity_reservation.batch", "transit_gateway.core",
	} {
		assert.NotEmpty(t, result[key], key)
	}

	store := be.Store()
	vpc, found := state.Get[*resources.Vpc](store, state.KindVpc, result["vpc.main"])
	require.True(t, found)
	assert.Equal(t, "10.0.0.0/16", vpc.CidrBlock)
	assert.Equal(t, map[string]string{"Name": "main", "env": "dev"}, vpc.TagSet().Map())
	assert.ElementsMatch(t, []string{result["subnet.public"], result["subnet.private"]}, vpc.Children(state.KindSubnet))
	assert.Equal(t, []string{result["security_group.web"]}, vpc.Children(state.KindSecurityGroup))

	private, found := state.Get[*resources.Subnet](store, state.KindSubnet, result["subnet.private"])
	require.True(t, found)
	assert.Equal(t, "us-east-1b", private.AvailabilityZone)

	group, found := state.Get[*resources.SecurityGroup](store, state.KindSecurityGroup, result["security_group.web"])
	require.True(t, found)
	assert.Equal(t, "web", group.GroupName)

	cr, found := state.Get[*resources.CapacityReservation](store, state.KindCapacityReservation, result["capacity_reservation.batch"])
	require.True(t, found)
	assert.Equal(t, "Linux/UNIX", cr.InstancePlatform)
	assert.Equal(t, 2, cr.AvailableInstanceCount)
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantStore int
	}{
		{
			name: "unknown vpc reference",
			src: `
subnet "a" {
  vpc        = "missing"
  cidr_block = "10.0.1.0/24"
}
`,
			wantStore: 0,
		},
		{
			name: "duplicate label",
			src: `
vpc "a" { cidr_block = "10.0.0.0/16" }
vpc "a" { cidr_block = "10.1.0.0/16" }
`,
			wantStore: 0,
		},
		{
			name: "backend rejects block",
			src: `
vpc "a" { cidr_block = "10.0.0.0/16" }
subnet "b" {
  vpc        = "a"
  cidr_block = "192.168.0.0/24"
}
`,
			wantStore: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, be := newLoader(t)
			f, err := ParseSource("seed.hcl", []byte(tt.src))
			require.NoError(t, err)

			_, err = loader.Apply(f)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrSeed))
			assert.Equal(t, tt.wantStore, be.Store().Table(state.KindVpc).Len())
		})
	}
}

func TestParseSource_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "missing required attribute", src: `vpc "a" {}`},
		{name: "unknown block type", src: `nat_gateway "a" {}`},
		{name: "missing label", src: `vpc { cidr_block = "10.0.0.0/16" }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSource("seed.hcl", []byte(tt.src))
			assert.True(t, errors.Is(err, errors.ErrSeed))
		})
	}

	_, err := Parse(filepath.Join("testdata", "missing.hcl"))
	assert.True(t, errors.Is(err, errors.ErrSeed))
}
