package backends

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// VerifiedAccessBackend implements the Verified Access instance, group and endpoint
// actions. Groups hang under instances and endpoints under groups.
type VerifiedAccessBackend struct {
	*base
}

var (
	vaInstanceMatcher = filters.Matcher[*resources.VerifiedAccessInstance]{
		Fields: map[string]filters.Field[*resources.VerifiedAccessInstance]{
			"verified-access-instance-id": filters.Value(func(v *resources.VerifiedAccessInstance) string { return v.VerifiedAccessInstanceID }),
			"description":                 filters.Value(func(v *resources.VerifiedAccessInstance) string { return v.Description }),
		},
		Tags: tagsOf[*resources.VerifiedAccessInstance],
	}
	vaGroupMatcher = filters.Matcher[*resources.VerifiedAccessGroup]{
		Fields: map[string]filters.Field[*resources.VerifiedAccessGroup]{
			"verified-access-group-id":    filters.Value(func(g *resources.VerifiedAccessGroup) string { return g.VerifiedAccessGroupID }),
			"verified-access-instance-id": filters.Value(func(g *resources.VerifiedAccessGroup) string { return g.VerifiedAccessInstanceID }),
			"description":                 filters.Value(func(g *resources.VerifiedAccessGroup) string { return g.Description }),
		},
		Tags: tagsOf[*resources.VerifiedAccessGroup],
	}
	vaEndpointMatcher = filters.Matcher[*resources.VerifiedAccessEndpoint]{
		Fields: map[string]filters.Field[*resources.VerifiedAccessEndpoint]{
			"verified-access-endpoint-id": filters.Value(func(e *resources.VerifiedAccessEndpoint) string { return e.VerifiedAccessEndpointID }),
			"verified-access-group-id":    filters.Value(func(e *resources.VerifiedAccessEndpoint) string { return e.VerifiedAccessGroupID }),
			"verified-access-instance-id": filters.Value(func(e *resources.VerifiedAccessEndpoint) string { return e.VerifiedAccessInstanceID }),
			"endpoint-type":               filters.Value(func(e *resources.VerifiedAccessEndpoint) string { return e.EndpointType }),
			"status-code":                 filters.Value(func(e *resources.VerifiedAccessEndpoint) string { return e.Status.Code }),
		},
		Tags: tagsOf[*resources.VerifiedAccessEndpoint],
	}
)

// VerifiedAccessInstanceResponse carries one Verified Access instance.
type VerifiedAccessInstanceResponse struct {
	Meta
	VerifiedAccessInstance resources.VerifiedAccessInstanceView `xml:"verifiedAccessInstance"`
}

// CreateVerifiedAccessInstance creates a Verified Access instance.
func (b *VerifiedAccessBackend) CreateVerifiedAccessInstance(p params.Params) (*VerifiedAccessInstanceResponse, error) {
	fips, err := p.Bool("FIPSEnabled", false)
	if err != nil {
		return nil, err
	}
	now := b.timestamp()
	vai := resources.NewVerifiedAccessInstance(resources.VerifiedAccessInstanceView{
		VerifiedAccessInstanceID: b.store.NewID(state.KindVerifiedAccessInstance),
		Description:              p.String("Description"),
		CreationTime:             now,
		LastUpdatedTime:          now,
		FipsEnabled:              fips,
	})
	vai.Tags = p.TagSpecifications(vai.ResourceType())
	b.store.Table(state.KindVerifiedAccessInstance).Put(vai)

	b.log.Debug("Verified Access instance created",
		zap.String("operation", "CreateVerifiedAccessInstance"),
		zap.String("verified_access_instance_id", vai.VerifiedAccessInstanceID),
	)
	return &VerifiedAccessInstanceResponse{VerifiedAccessInstance: vai.View()}, nil
}

// ModifyVerifiedAccessInstance updates the description.
func (b *VerifiedAccessBackend) ModifyVerifiedAccessInstance(p params.Params) (*VerifiedAccessInstanceResponse, error) {
	if err := p.Require("VerifiedAccessInstanceId"); err != nil {
		return nil, err
	}
	vai, err := lookup[*resources.VerifiedAccessInstance](b.store, state.KindVerifiedAccessInstance, p.String("VerifiedAccessInstanceId"))
	if err != nil {
		return nil, err
	}
	if d := p.Optional("Description"); d != nil {
		vai.Description = *d
	}
	vai.LastUpdatedTime = b.timestamp()
	return &VerifiedAccessInstanceResponse{VerifiedAccessInstance: vai.View()}, nil
}

// DeleteVerifiedAccessInstance removes an instance without groups.
func (b *VerifiedAccessBackend) DeleteVerifiedAccessInstance(p params.Params) (*VerifiedAccessInstanceResponse, error) {
	if err := p.Require("VerifiedAccessInstanceId"); err != nil {
		return nil, err
	}
	vai, err := lookup[*resources.VerifiedAccessInstance](b.store, state.KindVerifiedAccessInstance, p.String("VerifiedAccessInstanceId"))
	if err != nil {
		return nil, err
	}
	if err := ensureNoDependents(vai); err != nil {
		return nil, err
	}
	b.store.Table(state.KindVerifiedAccessInstance).Delete(vai.VerifiedAccessInstanceID)
	b.log.Debug("Verified Access instance deleted",
		zap.String("operation", "DeleteVerifiedAccessInstance"),
		zap.String("verified_access_instance_id", vai.VerifiedAccessInstanceID),
	)
	return &VerifiedAccessInstanceResponse{VerifiedAccessInstance: vai.View()}, nil
}

// DescribeVerifiedAccessInstancesResponse lists Verified Access instances.
type DescribeVerifiedAccessInstancesResponse struct {
	Meta
	VerifiedAccessInstances []resources.VerifiedAccessInstanceView `xml:"verifiedAccessInstanceSet>item"`
	NextToken               string                                 `xml:"nextToken,omitempty"`
}

// DescribeVerifiedAccessInstances lists Verified Access instances.
func (b *VerifiedAccessBackend) DescribeVerifiedAccessInstances(p params.Params) (*DescribeVerifiedAccessInstancesResponse, error) {
	views, next, err := describe(b.base, state.KindVerifiedAccessInstance, p, idList(p, "VerifiedAccessInstanceId"),
		vaInstanceMatcher, (*resources.VerifiedAccessInstance).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeVerifiedAccessInstancesResponse{VerifiedAccessInstances: views, NextToken: next}, nil
}

// VerifiedAccessGroupResponse carries one Verified Access group.
type VerifiedAccessGroupResponse struct {
	Meta
	VerifiedAccessGroup resources.VerifiedAccessGroupView `xml:"verifiedAccessGroup"`
}

// CreateVerifiedAccessGroup creates a group under a Verified Access instance.
func (b *VerifiedAccessBackend) CreateVerifiedAccessGroup(p params.Params) (*VerifiedAccessGroupResponse, error) {
	if err := p.Require("VerifiedAccessInstanceId"); err != nil {
		return nil, err
	}
	vai, err := lookup[*resources.VerifiedAccessInstance](b.store, state.KindVerifiedAccessInstance, p.String("VerifiedAccessInstanceId"))
	if err != nil {
		return nil, err
	}
	id := b.store.NewID(state.KindVerifiedAccessGroup)
	now := b.timestamp()
	group := resources.NewVerifiedAccessGroup(resources.VerifiedAccessGroupView{
		VerifiedAccessGroupID:    id,
		VerifiedAccessInstanceID: vai.VerifiedAccessInstanceID,
		VerifiedAccessGroupArn:   b.arn("verified-access-group", id),
		Description:              p.String("Description"),
		Owner:                    b.settings.AccountID,
		CreationTime:             now,
		LastUpdatedTime:          now,
	})
	group.PolicyDocument = p.String("PolicyDocument")
	group.PolicyEnabled = group.PolicyDocument != ""
	group.Tags = p.TagSpecifications(group.ResourceType())
	b.store.Table(state.KindVerifiedAccessGroup).Put(group)
	registerChild(state.KindVerifiedAccessGroup, id, vai)

	b.log.Debug("Verified Access group created",
		zap.String("operation", "CreateVerifiedAccessGroup"),
		zap.String("verified_access_group_id", id),
		zap.String("verified_access_instance_id", vai.VerifiedAccessInstanceID),
	)
	return &VerifiedAccessGroupResponse{VerifiedAccessGroup: group.View()}, nil
}

// ModifyVerifiedAccessGroup updates the description and may move the group, with its
// endpoints, to another Verified Access instance.
func (b *VerifiedAccessBackend) ModifyVerifiedAccessGroup(p params.Params) (*VerifiedAccessGroupResponse, error) {
	if err := p.Require("VerifiedAccessGroupId"); err != nil {
		return nil, err
	}
	group, err := lookup[*resources.VerifiedAccessGroup](b.store, state.KindVerifiedAccessGroup, p.String("VerifiedAccessGroupId"))
	if err != nil {
		return nil, err
	}
	target, err := lookupOptional[*resources.VerifiedAccessInstance](b.store, state.KindVerifiedAccessInstance, p.String("VerifiedAccessInstanceId"))
	if err != nil {
		return nil, err
	}
	if target != nil && target.VerifiedAccessInstanceID != group.VerifiedAccessInstanceID {
		unregisterChild(b.store, state.KindVerifiedAccessGroup, group.VerifiedAccessGroupID,
			state.KindVerifiedAccessInstance, group.VerifiedAccessInstanceID)
		group.VerifiedAccessInstanceID = target.VerifiedAccessInstanceID
		registerChild(state.KindVerifiedAccessGroup, group.VerifiedAccessGroupID, target)
		for _, id := range group.Children(state.KindVerifiedAccessEndpoint) {
			if e, found := state.Get[*resources.VerifiedAccessEndpoint](b.store, state.KindVerifiedAccessEndpoint, id); found {
				e.VerifiedAccessInstanceID = target.VerifiedAccessInstanceID
			}
		}
	}
	if d := p.Optional("Description"); d != nil {
		group.Description = *d
	}
	group.LastUpdatedTime = b.timestamp()
	return &VerifiedAccessGroupResponse{VerifiedAccessGroup: group.View()}, nil
}

// DeleteVerifiedAccessGroup removes a group without endpoints.
func (b *VerifiedAccessBackend) DeleteVerifiedAccessGroup(p params.Params) (*VerifiedAccessGroupResponse, error) {
	if err := p.Require("VerifiedAccessGroupId"); err != nil {
		return nil, err
	}
	group, err := lookup[*resources.VerifiedAccessGroup](b.store, state.KindVerifiedAccessGroup, p.String("VerifiedAccessGroupId"))
	if err != nil {
		return nil, err
	}
	if err := ensureNoDependents(group); err != nil {
		return nil, err
	}
	unregisterChild(b.store, state.KindVerifiedAccessGroup, group.VerifiedAccessGroupID,
		state.KindVerifiedAccessInstance, group.VerifiedAccessInstanceID)
	b.store.Table(state.KindVerifiedAccessGroup).Delete(group.VerifiedAccessGroupID)
	b.log.Debug("Verified Access group deleted",
		zap.String("operation", "DeleteVerifiedAccessGroup"),
		zap.String("verified_access_group_id", group.VerifiedAccessGroupID),
	)
	return &VerifiedAccessGroupResponse{VerifiedAccessGroup: group.View()}, nil
}

// DescribeVerifiedAccessGroupsResponse lists Verified Access groups.
type DescribeVerifiedAccessGroupsResponse struct {
	Meta
	VerifiedAccessGroups []resources.VerifiedAccessGroupView `xml:"verifiedAccessGroupSet>item"`
	NextToken            string                              `xml:"nextToken,omitempty"`
}

// DescribeVerifiedAccessGroups lists groups, optionally of one Verified Access instance.
func (b *VerifiedAccessBackend) DescribeVerifiedAccessGroups(p params.Params) (*DescribeVerifiedAccessGroupsResponse, error) {
	if p.Has("VerifiedAccessInstanceId") {
		p = withFilter(p, "verified-access-instance-id", []string{p.String("VerifiedAccessInstanceId")})
	}
	views, next, err := describe(b.base, state.KindVerifiedAccessGroup, p, idList(p, "VerifiedAccessGroupId"),
		vaGroupMatcher, (*resources.VerifiedAccessGroup).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeVerifiedAccessGroupsResponse{VerifiedAccessGroups: views, NextToken: next}, nil
}

// VerifiedAccessGroupPolicyResponse carries the policy of a group.
type VerifiedAccessGroupPolicyResponse struct {
	Meta
	PolicyEnabled  bool   `xml:"policyEnabled"`
	PolicyDocument string `xml:"policyDocument,omitempty"`
}

// ModifyVerifiedAccessGroupPolicy sets the policy document and its enabled flag. Enabling
// requires a document.
func (b *VerifiedAccessBackend) ModifyVerifiedAccessGroupPolicy(p params.Params) (*VerifiedAccessGroupPolicyResponse, error) {
	if err := p.Require("VerifiedAccessGroupId"); err != nil {
		return nil, err
	}
	group, err := lookup[*resources.VerifiedAccessGroup](b.store, state.KindVerifiedAccessGroup, p.String("VerifiedAccessGroupId"))
	if err != nil {
		return nil, err
	}
	enabled, err := p.OptionalBool("PolicyEnabled")
	if err != nil {
		return nil, err
	}
	document := group.PolicyDocument
	if d := p.Optional("PolicyDocument"); d != nil {
		document = *d
	}
	policyEnabled := group.PolicyEnabled
	if enabled != nil {
		policyEnabled = *enabled
	}
	if policyEnabled && strings.TrimSpace(document) == "" {
		return nil, errors.MissingParameter("PolicyDocument")
	}
	group.PolicyDocument, group.PolicyEnabled = document, policyEnabled
	group.LastUpdatedTime = b.timestamp()

	b.log.Debug("Verified Access group policy modified",
		zap.String("operation", "ModifyVerifiedAccessGroupPolicy"),
		zap.String("verified_access_group_id", group.VerifiedAccessGroupID),
		zap.Bool("policy_enabled", policyEnabled),
	)
	return &VerifiedAccessGroupPolicyResponse{PolicyEnabled: policyEnabled, PolicyDocument: document}, nil
}

// GetVerifiedAccessGroupPolicy returns the policy of a group.
func (b *VerifiedAccessBackend) GetVerifiedAccessGroupPolicy(p params.Params) (*VerifiedAccessGroupPolicyResponse, error) {
	if err := p.Require("VerifiedAccessGroupId"); err != nil {
		return nil, err
	}
	group, err := lookup[*resources.VerifiedAccessGroup](b.store, state.KindVerifiedAccessGroup, p.String("VerifiedAccessGroupId"))
	if err != nil {
		return nil, err
	}
	return &VerifiedAccessGroupPolicyResponse{PolicyEnabled: group.PolicyEnabled, PolicyDocument: group.PolicyDocument}, nil
}

// VerifiedAccessEndpointResponse carries one Verified Access endpoint.
type VerifiedAccessEndpointResponse struct {
	Meta
	VerifiedAccessEndpoint resources.VerifiedAccessEndpointView `xml:"verifiedAccessEndpoint"`
}

// CreateVerifiedAccessEndpoint creates an endpoint in a group. Its security groups must
// exist and keep it in their dependency lists.
func (b *VerifiedAccessBackend) CreateVerifiedAccessEndpoint(p params.Params) (*VerifiedAccessEndpointResponse, error) {
	if err := p.Require("VerifiedAccessGroupId", "EndpointType", "AttachmentType"); err != nil {
		return nil, err
	}
	if err := oneOf("EndpointType", p.String("EndpointType"), valuesOf(types.VerifiedAccessEndpointType("").Values())...); err != nil {
		return nil, err
	}
	if err := oneOf("AttachmentType", p.String("AttachmentType"),
		valuesOf(types.VerifiedAccessEndpointAttachmentType("").Values())...); err != nil {
		return nil, err
	}
	group, err := lookup[*resources.VerifiedAccessGroup](b.store, state.KindVerifiedAccessGroup, p.String("VerifiedAccessGroupId"))
	if err != nil {
		return nil, err
	}
	groups, err := state.Resolve[*resources.SecurityGroup](b.store, state.KindSecurityGroup, idList(p, "SecurityGroupId"))
	if err != nil {
		return nil, err
	}

	id := b.store.NewID(state.KindVerifiedAccessEndpoint)
	now := b.timestamp()
	endpoint := &resources.VerifiedAccessEndpoint{VerifiedAccessEndpointView: resources.VerifiedAccessEndpointView{
		VerifiedAccessEndpointID: id,
		VerifiedAccessInstanceID: group.VerifiedAccessInstanceID,
		VerifiedAccessGroupID:    group.VerifiedAccessGroupID,
		ApplicationDomain:        p.String("ApplicationDomain"),
		EndpointType:             p.String("EndpointType"),
		AttachmentType:           p.String("AttachmentType"),
		DomainCertificateArn:     p.String("DomainCertificateArn"),
		EndpointDomain:           endpointDomain(p.String("EndpointDomainPrefix"), id, b.settings.Region),
		Description:              p.String("Description"),
		CreationTime:             now,
		LastUpdatedTime:          now,
	}}
	endpoint.Status.Code = string(types.VerifiedAccessEndpointStatusCodeActive)
	parents := []resources.HasDependents{group}
	for _, sg := range groups {
		endpoint.SecurityGroupIDs = append(endpoint.SecurityGroupIDs, sg.GroupID)
		parents = append(parents, sg)
	}
	endpoint.Tags = p.TagSpecifications(endpoint.ResourceType())
	b.store.Table(state.KindVerifiedAccessEndpoint).Put(endpoint)
	registerChild(state.KindVerifiedAccessEndpoint, id, parents...)

	b.log.Debug("Verified Access endpoint created",
		zap.String("operation", "CreateVerifiedAccessEndpoint"),
		zap.String("verified_access_endpoint_id", id),
		zap.String("verified_access_group_id", group.VerifiedAccessGroupID),
	)
	return &VerifiedAccessEndpointResponse{VerifiedAccessEndpoint: endpoint.View()}, nil
}

func endpointDomain(prefix, id, region string) string {
	if prefix == "" {
		prefix = "app"
	}
	return prefix + "." + strings.TrimPrefix(id, "vae-") + ".prod.verified-access." + region + ".amazonaws.com"
}

// ModifyVerifiedAccessEndpoint updates the description and may move the endpoint to
// another group of the same Verified Access instance.
func (b *VerifiedAccessBackend) ModifyVerifiedAccessEndpoint(p params.Params) (*VerifiedAccessEndpointResponse, error) {
	if err := p.Require("VerifiedAccessEndpointId"); err != nil {
		return nil, err
	}
	endpoint, err := lookup[*resources.VerifiedAccessEndpoint](b.store, state.KindVerifiedAccessEndpoint, p.String("VerifiedAccessEndpointId"))
	if err != nil {
		return nil, err
	}
	target, err := lookupOptional[*resources.VerifiedAccessGroup](b.store, state.KindVerifiedAccessGroup, p.String("VerifiedAccessGroupId"))
	if err != nil {
		return nil, err
	}
	if target != nil && target.VerifiedAccessGroupID != endpoint.VerifiedAccessGroupID {
		if target.VerifiedAccessInstanceID != endpoint.VerifiedAccessInstanceID {
			return nil, errors.API(errors.ErrInvalidParameterValue,
				"Verified Access group %s does not belong to Verified Access instance %s",
				target.VerifiedAccessGroupID, endpoint.VerifiedAccessInstanceID)
		}
		unregisterChild(b.store, state.KindVerifiedAccessEndpoint, endpoint.VerifiedAccessEndpointID,
			state.KindVerifiedAccessGroup, endpoint.VerifiedAccessGroupID)
		endpoint.VerifiedAccessGroupID = target.VerifiedAccessGroupID
		registerChild(state.KindVerifiedAccessEndpoint, endpoint.VerifiedAccessEndpointID, target)
	}
	if d := p.Optional("Description"); d != nil {
		endpoint.Description = *d
	}
	endpoint.LastUpdatedTime = b.timestamp()
	return &VerifiedAccessEndpointResponse{VerifiedAccessEndpoint: endpoint.View()}, nil
}

// DeleteVerifiedAccessEndpoint removes an endpoint from its group and security groups.
func (b *VerifiedAccessBackend) DeleteVerifiedAccessEndpoint(p params.Params) (*VerifiedAccessEndpointResponse, error) {
	if err := p.Require("VerifiedAccessEndpointId"); err != nil {
		return nil, err
	}
	endpoint, err := lookup[*resources.VerifiedAccessEndpoint](b.store, state.KindVerifiedAccessEndpoint, p.String("VerifiedAccessEndpointId"))
	if err != nil {
		return nil, err
	}
	id := endpoint.VerifiedAccessEndpointID
	unregisterChild(b.store, state.KindVerifiedAccessEndpoint, id, state.KindVerifiedAccessGroup, endpoint.VerifiedAccessGroupID)
	unregisterChild(b.store, state.KindVerifiedAccessEndpoint, id, state.KindSecurityGroup, endpoint.SecurityGroupIDs...)
	b.store.Table(state.KindVerifiedAccessEndpoint).Delete(id)

	view := endpoint.View()
	view.Status.Code = string(types.VerifiedAccessEndpointStatusCodeDeleted)
	b.log.Debug("Verified Access endpoint deleted",
		zap.String("operation", "DeleteVerifiedAccessEndpoint"),
		zap.String("verified_access_endpoint_id", id),
	)
	return &VerifiedAccessEndpointResponse{VerifiedAccessEndpoint: view}, nil
}

// DescribeVerifiedAccessEndpointsResponse lists Verified Access endpoints.
type DescribeVerifiedAccessEndpointsResponse struct {
	Meta
	VerifiedAccessEndpoints []resources.VerifiedAccessEndpointView `xml:"verifiedAccessEndpointSet>item"`
	NextToken               string                                 `xml:"nextToken,omitempty"`
}

// DescribeVerifiedAccessEndpoints lists endpoints, optionally of one group or instance.
func (b *VerifiedAccessBackend) DescribeVerifiedAccessEndpoints(p params.Params) (*DescribeVerifiedAccessEndpointsResponse, error) {
	if p.Has("VerifiedAccessGroupId") {
		p = withFilter(p, "verified-access-group-id", []string{p.String("VerifiedAccessGroupId")})
	}
	if p.Has("VerifiedAccessInstanceId") {
		p = withFilter(p, "verified-access-instance-id", []string{p.String("VerifiedAccessInstanceId")})
	}
	views, next, err := describe(b.base, state.KindVerifiedAccessEndpoint, p, idList(p, "VerifiedAccessEndpointId"),
		vaEndpointMatcher, (*resources.VerifiedAccessEndpoint).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeVerifiedAccessEndpointsResponse{VerifiedAccessEndpoints: views, NextToken: next}, nil
}
