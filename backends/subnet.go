package backends

import (
	"net/netip"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// SubnetBackend implements the subnet actions.
type SubnetBackend struct {
	*base
}

var subnetMatcher = filters.Matcher[*resources.Subnet]{
	Fields: map[string]filters.Field[*resources.Subnet]{
		"subnet-id":                  filters.Value(func(s *resources.Subnet) string { return s.SubnetID }),
		"subnet-arn":                 filters.Value(func(s *resources.Subnet) string { return s.SubnetArn }),
		"vpc-id":                     filters.Value(func(s *resources.Subnet) string { return s.VpcID }),
		"cidr-block":                 filters.Value(func(s *resources.Subnet) string { return s.CidrBlock }),
		"availability-zone":          filters.Value(func(s *resources.Subnet) string { return s.AvailabilityZone }),
		"state":                      filters.Value(func(s *resources.Subnet) string { return s.State }),
		"default-for-az":             filters.Bool(func(s *resources.Subnet) bool { return s.DefaultForAz }),
		"map-public-ip-on-launch":    filters.Bool(func(s *resources.Subnet) bool { return s.MapPublicIPOnLaunch }),
		"available-ip-address-count": filters.Int(func(s *resources.Subnet) int { return s.AvailableIPAddressCount }),
		"owner-id":                   filters.Value(func(s *resources.Subnet) string { return s.OwnerID }),
	},
	Tags: tagsOf[*resources.Subnet],
}

// SubnetResponse carries one subnet.
type SubnetResponse struct {
	Meta
	Subnet resources.SubnetView `xml:"subnet"`
}

// CreateSubnet creates a subnet inside a VPC. The range must sit inside the VPC range and
// must not overlap a sibling subnet.
func (b *SubnetBackend) CreateSubnet(p params.Params) (*SubnetResponse, error) {
	if err := p.Require("VpcId", "CidrBlock"); err != nil {
		return nil, err
	}
	vpc, err := lookup[*resources.Vpc](b.store, state.KindVpc, p.String("VpcId"))
	if err != nil {
		return nil, err
	}
	prefix, err := parseCidr("CidrBlock", p.String("CidrBlock"), 16, 28, "InvalidSubnet.Range")
	if err != nil {
		return nil, err
	}
	vpcPrefix, err := netip.ParsePrefix(vpc.CidrBlock)
	if err != nil || !contains(vpcPrefix, prefix) {
		return nil, errors.API("InvalidSubnet.Range", "The CIDR '%s' is invalid.", prefix.String())
	}
	for _, siblingID := range vpc.Children(state.KindSubnet) {
		sibling, found := state.Get[*resources.Subnet](b.store, state.KindSubnet, siblingID)
		if !found {
			continue
		}
		if other, perr := netip.ParsePrefix(sibling.CidrBlock); perr == nil && other.Overlaps(prefix) {
			return nil, errors.API("InvalidSubnet.Conflict", "The CIDR '%s' conflicts with another subnet", prefix.String())
		}
	}

	zone := p.String("AvailabilityZone")
	if zone == "" {
		zone = b.defaultZone()
	}
	id := b.store.NewID(state.KindSubnet)
	subnet := resources.NewSubnet(resources.SubnetView{
		SubnetID:                id,
		SubnetArn:               b.arn("subnet", id),
		State:                   string(types.SubnetStateAvailable),
		VpcID:                   vpc.VpcID,
		CidrBlock:               prefix.String(),
		AvailableIPAddressCount: usableAddresses(prefix),
		AvailabilityZone:        zone,
		OwnerID:                 b.settings.AccountID,
	})
	subnet.Tags = p.TagSpecifications(subnet.ResourceType())

	b.store.Table(state.KindSubnet).Put(subnet)
	registerChild(state.KindSubnet, id, vpc)

	b.log.Debug("Subnet created",
		zap.String("operation", "CreateSubnet"),
		zap.String("subnet_id", id),
		zap.String("vpc_id", vpc.VpcID),
	)
	return &SubnetResponse{Subnet: subnet.View()}, nil
}

// DeleteSubnet removes a subnet with no instances, flow logs or route table associations.
func (b *SubnetBackend) DeleteSubnet(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("SubnetId"); err != nil {
		return nil, err
	}
	subnet, err := lookup[*resources.Subnet](b.store, state.KindSubnet, p.String("SubnetId"))
	if err != nil {
		return nil, err
	}
	if err := ensureNoDependents(subnet); err != nil {
		return nil, err
	}
	unregisterChild(b.store, state.KindSubnet, subnet.SubnetID, state.KindVpc, subnet.VpcID)
	b.store.Table(state.KindSubnet).Delete(subnet.SubnetID)

	b.log.Debug("Subnet deleted", zap.String("operation", "DeleteSubnet"), zap.String("subnet_id", subnet.SubnetID))
	return ok(), nil
}

// DescribeSubnetsResponse lists subnets.
type DescribeSubnetsResponse struct {
	Meta
	Subnets   []resources.SubnetView `xml:"subnetSet>item"`
	NextToken string                 `xml:"nextToken,omitempty"`
}

// DescribeSubnets lists subnets.
func (b *SubnetBackend) DescribeSubnets(p params.Params) (*DescribeSubnetsResponse, error) {
	views, next, err := describe(b.base, state.KindSubnet, p, idList(p, "SubnetId"), subnetMatcher,
		(*resources.Subnet).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeSubnetsResponse{Subnets: views, NextToken: next}, nil
}

// ModifySubnetAttribute updates MapPublicIpOnLaunch.
func (b *SubnetBackend) ModifySubnetAttribute(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("SubnetId"); err != nil {
		return nil, err
	}
	subnet, err := lookup[*resources.Subnet](b.store, state.KindSubnet, p.String("SubnetId"))
	if err != nil {
		return nil, err
	}
	mapPublic, err := p.OptionalBool("MapPublicIpOnLaunch.Value")
	if err != nil {
		return nil, err
	}
	if mapPublic == nil {
		return nil, errors.MissingParameter("MapPublicIpOnLaunch")
	}
	subnet.MapPublicIPOnLaunch = *mapPublic
	return ok(), nil
}
