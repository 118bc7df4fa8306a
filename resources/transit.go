package resources

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"ec2emulator/state"
)

// TransitGatewayOptions is the subset of gateway options the emulator keeps.
type TransitGatewayOptions struct {
	AmazonSideAsn                int64  `xml:"amazonSideAsn"`
	AutoAcceptSharedAttachments  string `xml:"autoAcceptSharedAttachments"`
	DefaultRouteTableAssociation string `xml:"defaultRouteTableAssociation"`
	DefaultRouteTablePropagation string `xml:"defaultRouteTablePropagation"`
	DNSSupport                   string `xml:"dnsSupport"`
	VpnEcmpSupport               string `xml:"vpnEcmpSupport"`
}

// TransitGatewayView is the public shape of a transit gateway.
type TransitGatewayView struct {
	TransitGatewayID  string                `xml:"transitGatewayId"`
	TransitGatewayArn string                `xml:"transitGatewayArn"`
	State             string                `xml:"state"`
	OwnerID           string                `xml:"ownerId"`
	Description       string                `xml:"description,omitempty"`
	CreationTime      string                `xml:"creationTime"`
	Options           TransitGatewayOptions `xml:"options"`
	Tagged
}

// TransitGateway is a stored transit gateway.
type TransitGateway struct {
	TransitGatewayView
	Dependents
}

// NewTransitGateway returns a gateway tracking the VPN concentrators attached to it and
// the routes that target it.
func NewTransitGateway(view TransitGatewayView) *TransitGateway {
	return &TransitGateway{
		TransitGatewayView: view,
		Dependents:         NewDependents(state.KindVpnConcentrator, state.KindRoute),
	}
}

func (t *TransitGateway) ID() string { return t.TransitGatewayID }
func (t *TransitGateway) ResourceType() string {
	return string(types.ResourceTypeTransitGateway)
}

// View returns a detached copy of the public fields.
func (t *TransitGateway) View() TransitGatewayView {
	out := t.TransitGatewayView
	out.Tags = out.Tags.Clone()
	return out
}

// VpnConcentratorView is the public shape of a VPN concentrator.
type VpnConcentratorView struct {
	VpnConcentratorID          string `xml:"vpnConcentratorId"`
	State                      string `xml:"state"`
	TransitGatewayID           string `xml:"transitGatewayId"`
	TransitGatewayAttachmentID string `xml:"transitGatewayAttachmentId"`
	Type                       string `xml:"type"`
	Tagged
}

// VpnConcentrator is a stored VPN concentrator.
type VpnConcentrator struct {
	VpnConcentratorView
}

func (v *VpnConcentrator) ID() string           { return v.VpnConcentratorID }
func (v *VpnConcentrator) ResourceType() string { return "vpn-concentrator" }

// View returns a detached copy of the public fields.
func (v *VpnConcentrator) View() VpnConcentratorView {
	out := v.VpnConcentratorView
	out.Tags = out.Tags.Clone()
	return out
}
