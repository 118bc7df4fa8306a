package backends

import (
	"encoding/xml"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// VpcBackend implements the VPC actions.
type VpcBackend struct {
	*base
}

var vpcMatcher = filters.Matcher[*resources.Vpc]{
	Fields: map[string]filters.Field[*resources.Vpc]{
		"vpc-id":           filters.Value(func(v *resources.Vpc) string { return v.VpcID }),
		"cidr":             filters.Value(func(v *resources.Vpc) string { return v.CidrBlock }),
		"cidr-block":       filters.Value(func(v *resources.Vpc) string { return v.CidrBlock }),
		"state":            filters.Value(func(v *resources.Vpc) string { return v.State }),
		"is-default":       filters.Bool(func(v *resources.Vpc) bool { return v.IsDefault }),
		"owner-id":         filters.Value(func(v *resources.Vpc) string { return v.OwnerID }),
		"dhcp-options-id":  filters.Value(func(v *resources.Vpc) string { return v.DhcpOptionsID }),
		"instance-tenancy": filters.Value(func(v *resources.Vpc) string { return v.InstanceTenancy }),
	},
	Tags: tagsOf[*resources.Vpc],
}

// VpcResponse carries one VPC.
type VpcResponse struct {
	Meta
	Vpc resources.VpcView `xml:"vpc"`
}

// CreateVpc creates a VPC.
func (b *VpcBackend) CreateVpc(p params.Params) (*VpcResponse, error) {
	if err := p.Require("CidrBlock"); err != nil {
		return nil, err
	}
	prefix, err := parseCidr("CidrBlock", p.String("CidrBlock"), 16, 28, "InvalidVpc.Range")
	if err != nil {
		return nil, err
	}
	tenancy := p.String("InstanceTenancy")
	if tenancy == "" {
		tenancy = string(types.TenancyDefault)
	}
	if err := oneOf("InstanceTenancy", tenancy, string(types.TenancyDefault), string(types.TenancyDedicated)); err != nil {
		return nil, err
	}

	vpc := resources.NewVpc(resources.VpcView{
		VpcID:           b.store.NewID(state.KindVpc),
		State:           string(types.VpcStateAvailable),
		CidrBlock:       prefix.String(),
		DhcpOptionsID:   "default",
		InstanceTenancy: tenancy,
		OwnerID:         b.settings.AccountID,
	})
	vpc.Tags = p.TagSpecifications(vpc.ResourceType())
	b.store.Table(state.KindVpc).Put(vpc)

	b.log.Debug("VPC created",
		zap.String("operation", "CreateVpc"),
		zap.String("vpc_id", vpc.VpcID),
		zap.String("cidr", vpc.CidrBlock),
	)
	return &VpcResponse{Vpc: vpc.View()}, nil
}

// DeleteVpc removes a VPC with no subnets, instances, groups, route tables or flow logs.
func (b *VpcBackend) DeleteVpc(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("VpcId"); err != nil {
		return nil, err
	}
	vpc, err := lookup[*resources.Vpc](b.store, state.KindVpc, p.String("VpcId"))
	if err != nil {
		return nil, err
	}
	if err := ensureNoDependents(vpc); err != nil {
		return nil, err
	}
	b.store.Table(state.KindVpc).Delete(vpc.VpcID)
	b.log.Debug("VPC deleted", zap.String("operation", "DeleteVpc"), zap.String("vpc_id", vpc.VpcID))
	return ok(), nil
}

// DescribeVpcsResponse lists VPCs.
type DescribeVpcsResponse struct {
	Meta
	Vpcs      []resources.VpcView `xml:"vpcSet>item"`
	NextToken string              `xml:"nextToken,omitempty"`
}

// DescribeVpcs lists VPCs.
func (b *VpcBackend) DescribeVpcs(p params.Params) (*DescribeVpcsResponse, error) {
	views, next, err := describe(b.base, state.KindVpc, p, idList(p, "VpcId"), vpcMatcher, (*resources.Vpc).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeVpcsResponse{Vpcs: views, NextToken: next}, nil
}

// ModifyVpcAttribute toggles DNS support or DNS host names; exactly one per call.
func (b *VpcBackend) ModifyVpcAttribute(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("VpcId"); err != nil {
		return nil, err
	}
	vpc, err := lookup[*resources.Vpc](b.store, state.KindVpc, p.String("VpcId"))
	if err != nil {
		return nil, err
	}
	support, err := p.OptionalBool("EnableDnsSupport.Value")
	if err != nil {
		return nil, err
	}
	hostnames, err := p.OptionalBool("EnableDnsHostnames.Value")
	if err != nil {
		return nil, err
	}
	switch {
	case support != nil && hostnames != nil:
		return nil, errors.API(errors.ErrInvalidParameterCombo, "Only one attribute can be modified at a time")
	case support != nil:
		vpc.EnableDNSSupport = *support
	case hostnames != nil:
		vpc.EnableDNSHostnames = *hostnames
	default:
		return nil, errors.MissingParameter("EnableDnsSupport")
	}
	return ok(), nil
}

// AttributeValue is the <value> wrapper used by attribute responses.
type AttributeValue struct {
	Name   string
	Value  string
	Groups []resources.GroupIdentifier
}

// MarshalXML renders <name><value>v</value></name>, or a groupSet list for group attributes.
func (a AttributeValue) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	if a.Name == "" {
		return nil
	}
	start := xml.StartElement{Name: xml.Name{Local: a.Name}}
	if a.Name == "groupSet" {
		return e.EncodeElement(struct {
			Items []resources.GroupIdentifier `xml:"item"`
		}{a.Groups}, start)
	}
	return e.EncodeElement(struct {
		Value string `xml:"value"`
	}{a.Value}, start)
}

// DescribeVpcAttributeResponse carries one VPC attribute.
type DescribeVpcAttributeResponse struct {
	Meta
	VpcID     string         `xml:"vpcId"`
	Attribute AttributeValue `xml:"attribute"`
}

// DescribeVpcAttribute reads enableDnsSupport or enableDnsHostnames.
func (b *VpcBackend) DescribeVpcAttribute(p params.Params) (*DescribeVpcAttributeResponse, error) {
	if err := p.Require("VpcId", "Attribute"); err != nil {
		return nil, err
	}
	vpc, err := lookup[*resources.Vpc](b.store, state.KindVpc, p.String("VpcId"))
	if err != nil {
		return nil, err
	}
	resp := &DescribeVpcAttributeResponse{VpcID: vpc.VpcID}
	switch strings.ToLower(p.String("Attribute")) {
	case "enablednssupport":
		resp.Attribute = AttributeValue{Name: "enableDnsSupport", Value: boolString(vpc.EnableDNSSupport)}
	case "enablednshostnames":
		resp.Attribute = AttributeValue{Name: "enableDnsHostnames", Value: boolString(vpc.EnableDNSHostnames)}
	default:
		return nil, errors.InvalidValue("Attribute", p.String("Attribute"), "Unknown VPC attribute.")
	}
	return resp, nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
