package backends

import (
	"go.uber.org/zap"

	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

const (
	vpnConcentratorType      = "ipsec.1"
	vpnConcentratorAvailable = "available"
	vpnConcentratorDeleting  = "deleting"
)

// VpnConcentratorBackend implements the VPN concentrator actions.
type VpnConcentratorBackend struct {
	*base
}

var vpnConcentratorMatcher = filters.Matcher[*resources.VpnConcentrator]{
	Fields: map[string]filters.Field[*resources.VpnConcentrator]{
		"vpn-concentrator-id":           filters.Value(func(v *resources.VpnConcentrator) string { return v.VpnConcentratorID }),
		"state":                         filters.Value(func(v *resources.VpnConcentrator) string { return v.State }),
		"type":                          filters.Value(func(v *resources.VpnConcentrator) string { return v.Type }),
		"transit-gateway-id":            filters.Value(func(v *resources.VpnConcentrator) string { return v.TransitGatewayID }),
		"transit-gateway-attachment-id": filters.Value(func(v *resources.VpnConcentrator) string { return v.TransitGatewayAttachmentID }),
	},
	Tags: tagsOf[*resources.VpnConcentrator],
}

// VpnConcentratorResponse carries one VPN concentrator.
type VpnConcentratorResponse struct {
	Meta
	VpnConcentrator resources.VpnConcentratorView `xml:"vpnConcentrator"`
}

// CreateVpnConcentrator creates a concentrator, attached to a transit gateway when one is
// given.
func (b *VpnConcentratorBackend) CreateVpnConcentrator(p params.Params) (*VpnConcentratorResponse, error) {
	if err := p.Require("Type"); err != nil {
		return nil, err
	}
	if err := oneOf("Type", p.String("Type"), vpnConcentratorType); err != nil {
		return nil, err
	}
	tgw, err := lookupOptional[*resources.TransitGateway](b.store, state.KindTransitGateway, p.String("TransitGatewayId"))
	if err != nil {
		return nil, err
	}

	vcn := &resources.VpnConcentrator{VpnConcentratorView: resources.VpnConcentratorView{
		VpnConcentratorID: b.store.NewID(state.KindVpnConcentrator),
		State:             vpnConcentratorAvailable,
		Type:              p.String("Type"),
	}}
	if tgw != nil {
		vcn.TransitGatewayID = tgw.TransitGatewayID
		vcn.TransitGatewayAttachmentID = b.store.NewID(state.KindTransitGatewayAttachment)
	}
	vcn.Tags = p.TagSpecifications(vcn.ResourceType())
	b.store.Table(state.KindVpnConcentrator).Put(vcn)
	if tgw != nil {
		registerChild(state.KindVpnConcentrator, vcn.VpnConcentratorID, tgw)
	}

	b.log.Debug("VPN concentrator created",
		zap.String("operation", "CreateVpnConcentrator"),
		zap.String("vpn_concentrator_id", vcn.VpnConcentratorID),
		zap.String("transit_gateway_id", vcn.TransitGatewayID),
	)
	return &VpnConcentratorResponse{VpnConcentrator: vcn.View()}, nil
}

// DeleteVpnConcentrator removes a concentrator and detaches it from its gateway.
func (b *VpnConcentratorBackend) DeleteVpnConcentrator(p params.Params) (*VpnConcentratorResponse, error) {
	if err := p.Require("VpnConcentratorId"); err != nil {
		return nil, err
	}
	vcn, err := lookup[*resources.VpnConcentrator](b.store, state.KindVpnConcentrator, p.String("VpnConcentratorId"))
	if err != nil {
		return nil, err
	}
	unregisterChild(b.store, state.KindVpnConcentrator, vcn.VpnConcentratorID, state.KindTransitGateway, vcn.TransitGatewayID)
	b.store.Table(state.KindVpnConcentrator).Delete(vcn.VpnConcentratorID)

	view := vcn.View()
	view.State = vpnConcentratorDeleting
	b.log.Debug("VPN concentrator deleted",
		zap.String("operation", "DeleteVpnConcentrator"),
		zap.String("vpn_concentrator_id", vcn.VpnConcentratorID),
	)
	return &VpnConcentratorResponse{VpnConcentrator: view}, nil
}

// DescribeVpnConcentratorsResponse lists VPN concentrators.
type DescribeVpnConcentratorsResponse struct {
	Meta
	VpnConcentrators []resources.VpnConcentratorView `xml:"vpnConcentratorSet>item"`
	NextToken        string                          `xml:"nextToken,omitempty"`
}

// DescribeVpnConcentrators lists VPN concentrators.
func (b *VpnConcentratorBackend) DescribeVpnConcentrators(p params.Params) (*DescribeVpnConcentratorsResponse, error) {
	views, next, err := describe(b.base, state.KindVpnConcentrator, p, idList(p, "VpnConcentratorId"),
		vpnConcentratorMatcher, (*resources.VpnConcentrator).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeVpnConcentratorsResponse{VpnConcentrators: views, NextToken: next}, nil
}
