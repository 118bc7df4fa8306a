package resources

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec2emulator/state"
)

func TestDependents_AddChildKeepsOneEntry(t *testing.T) {
	d := NewDependents(state.KindInstance, state.KindFlowLog)

	d.AddChild(state.KindInstance, "i-1")
	d.AddChild(state.KindInstance, "i-1")
	d.AddChild(state.KindInstance, "i-2")

	assert.Equal(t, []string{"i-1", "i-2"}, d.Children(state.KindInstance))
	assert.True(t, d.HasChild(state.KindInstance, "i-2"))
	assert.Empty(t, d.Children(state.KindFlowLog))
}

func TestDependents_UndeclaredKindPanics(t *testing.T) {
	d := NewDependents(state.KindInstance)
	assert.Panics(t, func() { d.AddChild(state.KindRoute, "rtb-1|0.0.0.0/0") })
	assert.False(t, d.Declares(state.KindRoute))
}

func TestDependents_Blocking(t *testing.T) {
	tests := []struct {
		name      string
		add       map[state.Kind][]string
		remove    map[state.Kind][]string
		wantKind  state.Kind
		wantIDs   []string
		wantBlock bool
	}{
		{
			name: "empty lists do not block",
		},
		{
			name:      "first declared non-empty list wins",
			add:       map[state.Kind][]string{state.KindRoute: {"r"}, state.KindElasticGpu: {"egpu-1"}},
			wantKind:  state.KindElasticGpu,
			wantIDs:   []string{"egpu-1"},
			wantBlock: true,
		},
		{
			name:   "removed children stop blocking",
			add:    map[state.Kind][]string{state.KindAddress: {"eipalloc-1"}},
			remove: map[state.Kind][]string{state.KindAddress: {"eipalloc-1", "eipalloc-unknown"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDependents(state.KindBundleTask, state.KindElasticGpu, state.KindAddress, state.KindRoute)
			for kind, ids := range tt.add {
				for _, id := range ids {
					d.AddChild(kind, id)
				}
			}
			for kind, ids := range tt.remove {
				for _, id := range ids {
					d.RemoveChild(kind, id)
				}
			}

			kind, ids, blocked := d.Blocking()
			assert.Equal(t, tt.wantBlock, blocked)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestDependents_ChildrenIsACopy(t *testing.T) {
	d := NewDependents(state.KindSubnet)
	d.AddChild(state.KindSubnet, "subnet-1")

	children := d.Children(state.KindSubnet)
	children[0] = "changed"

	assert.Equal(t, []string{"subnet-1"}, d.Children(state.KindSubnet))
}

func TestTags_SetMergeDelete(t *testing.T) {
	var tags Tags
	tags.Set("Name", "web")
	tags.Merge(Tags{{Key: "env", Value: "dev"}, {Key: "Name", Value: "api"}})
	assert.Equal(t, map[string]string{"Name": "api", "env": "dev"}, tags.Map())

	wrong := "prod"
	tags.Delete("env", &wrong)
	assert.Len(t, tags, 2)

	tags.Delete("env", nil)
	assert.Equal(t, Tags{{Key: "Name", Value: "api"}}, tags)
}

func TestViews_HideDependencyLists(t *testing.T) {
	vpc := NewVpc(VpcView{VpcID: "vpc-1", CidrBlock: "10.0.0.0/16", State: "available"})
	vpc.AddChild(state.KindSubnet, "subnet-1")
	vpc.TagSet().Set("Name", "main")

	out, err := xml.Marshal(vpc.View())
	require.NoError(t, err)

	assert.Contains(t, string(out), "<vpcId>vpc-1</vpcId>")
	assert.Contains(t, string(out), "<tagSet><item><key>Name</key><value>main</value></item></tagSet>")
	assert.NotContains(t, string(out), "subnet-1")
}

func TestInstanceView_IsDetached(t *testing.T) {
	inst := NewInstance(InstanceView{InstanceID: "i-1", InstanceState: StateRunning})
	inst.Groups = []GroupIdentifier{{GroupID: "sg-1", GroupName: "default"}}
	inst.TagSet().Set("Name", "a")

	view := inst.View()
	inst.SetState(StateStopped)
	inst.Groups[0].GroupName = "other"
	inst.TagSet().Set("Name", "b")

	assert.Equal(t, StateRunning, view.InstanceState)
	assert.Equal(t, "default", view.Groups[0].GroupName)
	assert.Equal(t, "a", view.Tags.Map()["Name"])
}

func TestRelationships_CoverDeclaredLists(t *testing.T) {
	declared := map[state.Kind][]state.Kind{}
	parents := []HasDependents{
		NewVpc(VpcView{}), NewSubnet(SubnetView{}), NewSecurityGroup(SecurityGroupView{}),
		NewKeyPair(KeyPairView{}), NewImage(ImageView{}), NewCapacityReservation(CapacityReservationView{}),
		NewInstance(InstanceView{}), NewReservation("r-1", "", nil), NewRouteTable(RouteTableView{}, ""),
		NewVerifiedAccessInstance(VerifiedAccessInstanceView{}), NewVerifiedAccessGroup(VerifiedAccessGroupView{}),
		NewTransitGateway(TransitGatewayView{}),
	}
	kindOf := []state.Kind{
		state.KindVpc, state.KindSubnet, state.KindSecurityGroup, state.KindKeyPair, state.KindImage,
		state.KindCapacityReservation, state.KindInstance, state.KindReservation, state.KindRouteTable,
		state.KindVerifiedAccessInstance, state.KindVerifiedAccessGroup, state.KindTransitGateway,
	}
	for i, p := range parents {
		for _, child := range state.Kinds() {
			if p.Declares(child) {
				declared[kindOf[i]] = append(declared[kindOf[i]], child)
			}
		}
	}

	covered := map[[2]state.Kind]bool{}
	for _, rel := range Relationships() {
		covered[[2]state.Kind{rel.Parent, rel.Child}] = true
	}
	for parent, children := range declared {
		for _, child := range children {
			assert.True(t, covered[[2]state.Kind{parent, child}], "no relationship for %s -> %s", child, parent)
		}
	}
}
