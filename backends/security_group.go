package backends

import (
	"strings"

	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// SecurityGroupBackend implements the security group actions.
type SecurityGroupBackend struct {
	*base
}

var securityGroupMatcher = filters.Matcher[*resources.SecurityGroup]{
	Fields: map[string]filters.Field[*resources.SecurityGroup]{
		"group-id":    filters.Value(func(g *resources.SecurityGroup) string { return g.GroupID }),
		"group-name":  filters.Value(func(g *resources.SecurityGroup) string { return g.GroupName }),
		"description": filters.Value(func(g *resources.SecurityGroup) string { return g.GroupDescription }),
		"vpc-id":      filters.Value(func(g *resources.SecurityGroup) string { return g.VpcID }),
		"owner-id":    filters.Value(func(g *resources.SecurityGroup) string { return g.OwnerID }),
	},
	Tags: tagsOf[*resources.SecurityGroup],
}

// CreateSecurityGroupResponse carries the new group id.
type CreateSecurityGroupResponse struct {
	Meta
	Return  bool           `xml:"return"`
	GroupID string         `xml:"groupId"`
	Tags    resources.Tags `xml:"tagSet>item,omitempty"`
}

// groupByName finds the group called name in vpcID ("" for groups outside any VPC).
func groupByName(s *state.Store, vpcID, name string) (*resources.SecurityGroup, bool) {
	for _, g := range state.All[*resources.SecurityGroup](s, state.KindSecurityGroup) {
		if g.GroupName == name && g.VpcID == vpcID {
			return g, true
		}
	}
	return nil, false
}

// CreateSecurityGroup creates a group, optionally inside a VPC. Names are unique per VPC.
func (b *SecurityGroupBackend) CreateSecurityGroup(p params.Params) (*CreateSecurityGroupResponse, error) {
	if err := p.Require("GroupName", "GroupDescription"); err != nil {
		return nil, err
	}
	name := p.String("GroupName")
	if strings.HasPrefix(name, "sg-") {
		return nil, errors.InvalidValue("GroupName", name, "Group names may not be in the format sg-*.")
	}
	vpc, err := lookupOptional[*resources.Vpc](b.store, state.KindVpc, p.String("VpcId"))
	if err != nil {
		return nil, err
	}
	vpcID := ""
	if vpc != nil {
		vpcID = vpc.VpcID
	}
	if _, exists := groupByName(b.store, vpcID, name); exists {
		return nil, errors.API("InvalidGroup.Duplicate", "The security group '%s' already exists for VPC '%s'", name, vpcID)
	}

	group := resources.NewSecurityGroup(resources.SecurityGroupView{
		GroupID:          b.store.NewID(state.KindSecurityGroup),
		GroupName:        name,
		GroupDescription: p.String("GroupDescription"),
		VpcID:            vpcID,
		OwnerID:          b.settings.AccountID,
	})
	group.Tags = p.TagSpecifications(group.ResourceType())
	b.store.Table(state.KindSecurityGroup).Put(group)
	if vpc != nil {
		registerChild(state.KindSecurityGroup, group.GroupID, vpc)
	}

	b.log.Debug("Security group created",
		zap.String("operation", "CreateSecurityGroup"),
		zap.String("group_id", group.GroupID),
		zap.String("vpc_id", vpcID),
	)
	return &CreateSecurityGroupResponse{Return: true, GroupID: group.GroupID, Tags: group.Tags.Clone()}, nil
}

// DeleteSecurityGroupResponse echoes the deleted group.
type DeleteSecurityGroupResponse struct {
	Meta
	Return  bool   `xml:"return"`
	GroupID string `xml:"groupId"`
}

// DeleteSecurityGroup removes a group by id or name when nothing uses it.
func (b *SecurityGroupBackend) DeleteSecurityGroup(p params.Params) (*DeleteSecurityGroupResponse, error) {
	var group *resources.SecurityGroup
	switch {
	case p.Has("GroupId"):
		g, err := lookup[*resources.SecurityGroup](b.store, state.KindSecurityGroup, p.String("GroupId"))
		if err != nil {
			return nil, err
		}
		group = g
	case p.Has("GroupName"):
		g, found := groupByName(b.store, "", p.String("GroupName"))
		if !found {
			return nil, state.KindSecurityGroup.NotFound(p.String("GroupName"))
		}
		group = g
	default:
		return nil, errors.MissingParameter("GroupId")
	}
	if err := ensureNoDependents(group); err != nil {
		return nil, err
	}
	unregisterChild(b.store, state.KindSecurityGroup, group.GroupID, state.KindVpc, group.VpcID)
	b.store.Table(state.KindSecurityGroup).Delete(group.GroupID)

	b.log.Debug("Security group deleted",
		zap.String("operation", "DeleteSecurityGroup"),
		zap.String("group_id", group.GroupID),
	)
	return &DeleteSecurityGroupResponse{Return: true, GroupID: group.GroupID}, nil
}

// DescribeSecurityGroupsResponse lists groups.
type DescribeSecurityGroupsResponse struct {
	Meta
	SecurityGroups []resources.SecurityGroupView `xml:"securityGroupInfo>item"`
	NextToken      string                        `xml:"nextToken,omitempty"`
}

// DescribeSecurityGroups lists groups by id, name and filters.
func (b *SecurityGroupBackend) DescribeSecurityGroups(p params.Params) (*DescribeSecurityGroupsResponse, error) {
	ids := idList(p, "GroupId")
	for _, name := range p.List("GroupName") {
		g, found := groupByName(b.store, "", name)
		if !found {
			return nil, state.KindSecurityGroup.NotFound(name)
		}
		ids = append(ids, g.GroupID)
	}
	views, next, err := describe(b.base, state.KindSecurityGroup, p, ids, securityGroupMatcher,
		(*resources.SecurityGroup).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeSecurityGroupsResponse{SecurityGroups: views, NextToken: next}, nil
}
