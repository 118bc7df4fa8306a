package backends

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// AddressBackend implements the Elastic IP actions.
type AddressBackend struct {
	*base
}

var addressMatcher = filters.Matcher[*resources.Address]{
	Fields: map[string]filters.Field[*resources.Address]{
		"allocation-id":        filters.Value(func(a *resources.Address) string { return a.AllocationID }),
		"association-id":       filters.Value(func(a *resources.Address) string { return a.AssociationID }),
		"public-ip":            filters.Value(func(a *resources.Address) string { return a.PublicIP }),
		"domain":               filters.Value(func(a *resources.Address) string { return a.Domain }),
		"instance-id":          filters.Value(func(a *resources.Address) string { return a.InstanceID }),
		"private-ip-address":   filters.Value(func(a *resources.Address) string { return a.PrivateIPAddress }),
		"network-border-group": filters.Value(func(a *resources.Address) string { return a.NetworkBorderGroup }),
		"public-ipv4-pool":     filters.Value(func(a *resources.Address) string { return a.PublicIPv4Pool }),
	},
	Tags: tagsOf[*resources.Address],
}

func addressNotFound(ip string) error {
	return errors.API("InvalidAddress.NotFound", "Address '%s' not found.", ip)
}

// addressBy finds an allocation by AllocationId, falling back to PublicIp.
func (b *AddressBackend) addressBy(p params.Params) (*resources.Address, error) {
	if p.Has("AllocationId") {
		return lookup[*resources.Address](b.store, state.KindAddress, p.String("AllocationId"))
	}
	if !p.Has("PublicIp") {
		return nil, errors.MissingParameter("AllocationId")
	}
	for _, a := range state.All[*resources.Address](b.store, state.KindAddress) {
		if a.PublicIP == p.String("PublicIp") {
			return a, nil
		}
	}
	return nil, addressNotFound(p.String("PublicIp"))
}

// AllocateAddressResponse carries a new allocation.
type AllocateAddressResponse struct {
	Meta
	PublicIP           string `xml:"publicIp"`
	AllocationID       string `xml:"allocationId"`
	Domain             string `xml:"domain"`
	PublicIPv4Pool     string `xml:"publicIpv4Pool"`
	NetworkBorderGroup string `xml:"networkBorderGroup"`
}

// AllocateAddress allocates an Elastic IP.
func (b *AddressBackend) AllocateAddress(p params.Params) (*AllocateAddressResponse, error) {
	domain := orDefault(p.String("Domain"), string(types.DomainTypeVpc))
	if err := oneOf("Domain", domain, valuesOf(types.DomainType("").Values())...); err != nil {
		return nil, err
	}
	id := b.store.NewID(state.KindAddress)
	addr := &resources.Address{AddressView: resources.AddressView{
		AllocationID:       id,
		PublicIP:           derivedIP(18, 204, id),
		Domain:             domain,
		PublicIPv4Pool:     orDefault(p.String("PublicIpv4Pool"), "amazon"),
		NetworkBorderGroup: orDefault(p.String("NetworkBorderGroup"), b.settings.Region),
	}}
	addr.Tags = p.TagSpecifications(addr.ResourceType())
	b.store.Table(state.KindAddress).Put(addr)

	b.log.Debug("Address allocated", zap.String("operation", "AllocateAddress"), zap.String("allocation_id", id))
	return &AllocateAddressResponse{
		PublicIP:           addr.PublicIP,
		AllocationID:       id,
		Domain:             addr.Domain,
		PublicIPv4Pool:     addr.PublicIPv4Pool,
		NetworkBorderGroup: addr.NetworkBorderGroup,
	}, nil
}

// AssociateAddressResponse carries the association id.
type AssociateAddressResponse struct {
	Meta
	Return        bool   `xml:"return"`
	AssociationID string `xml:"associationId"`
}

// AssociateAddress binds an allocation to an instance. Moving an associated address needs
// AllowReassociation.
func (b *AddressBackend) AssociateAddress(p params.Params) (*AssociateAddressResponse, error) {
	if err := p.Require("InstanceId"); err != nil {
		return nil, err
	}
	addr, err := b.addressBy(p)
	if err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}
	allow, err := p.Bool("AllowReassociation", false)
	if err != nil {
		return nil, err
	}
	if addr.InstanceID != "" {
		if !allow {
			return nil, errors.API("Resource.AlreadyAssociated",
				"resource %s is already associated with associate-id %s", addr.AllocationID, addr.AssociationID)
		}
		unregisterChild(b.store, state.KindAddress, addr.AllocationID, state.KindInstance, addr.InstanceID)
	}

	addr.InstanceID = inst.InstanceID
	addr.AssociationID = b.store.NewID(state.KindAddressAssociation)
	addr.PrivateIPAddress = orDefault(p.String("PrivateIpAddress"), inst.PrivateIPAddress)
	registerChild(state.KindAddress, addr.AllocationID, inst)

	b.log.Debug("Address associated",
		zap.String("operation", "AssociateAddress"),
		zap.String("allocation_id", addr.AllocationID),
		zap.String("instance_id", inst.InstanceID),
	)
	return &AssociateAddressResponse{Return: true, AssociationID: addr.AssociationID}, nil
}

// DisassociateAddress unbinds an allocation from its instance.
func (b *AddressBackend) DisassociateAddress(p params.Params) (*ReturnResponse, error) {
	var addr *resources.Address
	switch {
	case p.Has("AssociationId"):
		for _, a := range state.All[*resources.Address](b.store, state.KindAddress) {
			if a.AssociationID == p.String("AssociationId") {
				addr = a
				break
			}
		}
		if addr == nil {
			return nil, state.KindAddressAssociation.NotFound(p.String("AssociationId"))
		}
	case p.Has("PublicIp"):
		found, err := b.addressBy(p)
		if err != nil {
			return nil, err
		}
		if found.InstanceID == "" {
			return nil, state.KindAddressAssociation.NotFound(p.String("PublicIp"))
		}
		addr = found
	default:
		return nil, errors.MissingParameter("AssociationId")
	}

	unregisterChild(b.store, state.KindAddress, addr.AllocationID, state.KindInstance, addr.InstanceID)
	addr.InstanceID, addr.AssociationID, addr.PrivateIPAddress = "", "", ""
	b.log.Debug("Address disassociated", zap.String("operation", "DisassociateAddress"), zap.String("allocation_id", addr.AllocationID))
	return ok(), nil
}

// ReleaseAddress frees an allocation that is not associated.
func (b *AddressBackend) ReleaseAddress(p params.Params) (*ReturnResponse, error) {
	addr, err := b.addressBy(p)
	if err != nil {
		return nil, err
	}
	if addr.InstanceID != "" {
		return nil, errors.API("InvalidIPAddress.InUse", "Address %s is in use.", addr.PublicIP)
	}
	b.store.Table(state.KindAddress).Delete(addr.AllocationID)
	b.log.Debug("Address released", zap.String("operation", "ReleaseAddress"), zap.String("allocation_id", addr.AllocationID))
	return ok(), nil
}

// DescribeAddressesResponse lists allocations.
type DescribeAddressesResponse struct {
	Meta
	Addresses []resources.AddressView `xml:"addressesSet>item"`
}

// DescribeAddresses lists allocations by id, public IP and filters.
func (b *AddressBackend) DescribeAddresses(p params.Params) (*DescribeAddressesResponse, error) {
	ids := idList(p, "AllocationId")
	for _, ip := range p.List("PublicIp") {
		addr, err := b.addressBy(params.Params{"PublicIp": ip})
		if err != nil {
			return nil, err
		}
		ids = append(ids, addr.AllocationID)
	}
	views, _, err := describe(b.base, state.KindAddress, p, ids, addressMatcher, (*resources.Address).View, false)
	if err != nil {
		return nil, err
	}
	return &DescribeAddressesResponse{Addresses: views}, nil
}
