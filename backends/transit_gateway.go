package backends

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

const (
	defaultAmazonSideAsn = 64512
	optionEnable         = "enable"
	optionDisable        = "disable"
)

// TransitGatewayBackend implements the transit gateway actions.
type TransitGatewayBackend struct {
	*base
}

var transitGatewayMatcher = filters.Matcher[*resources.TransitGateway]{
	Fields: map[string]filters.Field[*resources.TransitGateway]{
		"transit-gateway-id": filters.Value(func(t *resources.TransitGateway) string { return t.TransitGatewayID }),
		"state":              filters.Value(func(t *resources.TransitGateway) string { return t.State }),
		"owner-id":           filters.Value(func(t *resources.TransitGateway) string { return t.OwnerID }),
		"options.amazon-side-asn": filters.Value(func(t *resources.TransitGateway) string {
			return strconv.FormatInt(t.Options.AmazonSideAsn, 10)
		}),
		"options.dns-support":      filters.Value(func(t *resources.TransitGateway) string { return t.Options.DNSSupport }),
		"options.vpn-ecmp-support": filters.Value(func(t *resources.TransitGateway) string { return t.Options.VpnEcmpSupport }),
	},
	Tags: tagsOf[*resources.TransitGateway],
}

// TransitGatewayResponse carries one transit gateway.
type TransitGatewayResponse struct {
	Meta
	TransitGateway resources.TransitGatewayView `xml:"transitGateway"`
}

// enableOption validates an enable/disable option with a default.
func enableOption(p params.Params, name, def string) (string, error) {
	v := orDefault(p.String(name), def)
	return v, oneOf("Options."+name, v, optionEnable, optionDisable)
}

// CreateTransitGateway creates an available transit gateway.
func (b *TransitGatewayBackend) CreateTransitGateway(p params.Params) (*TransitGatewayResponse, error) {
	opts := p.Sub("Options")
	asn, err := opts.Int("AmazonSideAsn", defaultAmazonSideAsn)
	if err != nil {
		return nil, err
	}
	if !(asn >= 64512 && asn <= 65534) && !(asn >= 4200000000 && asn <= 4294967294) {
		return nil, errors.InvalidValue("Options.AmazonSideAsn", opts.String("AmazonSideAsn"),
			"The ASN must be in the range 64512-65534 or 4200000000-4294967294.")
	}
	options := resources.TransitGatewayOptions{AmazonSideAsn: int64(asn)}
	for _, o := range []struct {
		name   string
		target *string
		def    string
	}{
		{"AutoAcceptSharedAttachments", &options.AutoAcceptSharedAttachments, optionDisable},
		{"DefaultRouteTableAssociation", &options.DefaultRouteTableAssociation, optionEnable},
		{"DefaultRouteTablePropagation", &options.DefaultRouteTablePropagation, optionEnable},
		{"DnsSupport", &options.DNSSupport, optionEnable},
		{"VpnEcmpSupport", &options.VpnEcmpSupport, optionEnable},
	} {
		v, err := enableOption(opts, o.name, o.def)
		if err != nil {
			return nil, err
		}
		*o.target = v
	}

	id := b.store.NewID(state.KindTransitGateway)
	tgw := resources.NewTransitGateway(resources.TransitGatewayView{
		TransitGatewayID:  id,
		TransitGatewayArn: b.arn("transit-gateway", id),
		State:             string(types.TransitGatewayStateAvailable),
		OwnerID:           b.settings.AccountID,
		Description:       p.String("Description"),
		CreationTime:      b.timestamp(),
		Options:           options,
	})
	tgw.Tags = p.TagSpecifications(tgw.ResourceType())
	b.store.Table(state.KindTransitGateway).Put(tgw)

	b.log.Debug("Transit gateway created", zap.String("operation", "CreateTransitGateway"), zap.String("transit_gateway_id", id))
	return &TransitGatewayResponse{TransitGateway: tgw.View()}, nil
}

// DeleteTransitGateway removes a gateway without VPN concentrators or routes to it.
func (b *TransitGatewayBackend) DeleteTransitGateway(p params.Params) (*TransitGatewayResponse, error) {
	if err := p.Require("TransitGatewayId"); err != nil {
		return nil, err
	}
	tgw, err := lookup[*resources.TransitGateway](b.store, state.KindTransitGateway, p.String("TransitGatewayId"))
	if err != nil {
		return nil, err
	}
	if err := ensureNoDependents(tgw); err != nil {
		return nil, err
	}
	b.store.Table(state.KindTransitGateway).Delete(tgw.TransitGatewayID)

	view := tgw.View()
	view.State = string(types.TransitGatewayStateDeleting)
	b.log.Debug("Transit gateway deleted",
		zap.String("operation", "DeleteTransitGateway"),
		zap.String("transit_gateway_id", tgw.TransitGatewayID),
	)
	return &TransitGatewayResponse{TransitGateway: view}, nil
}

// DescribeTransitGatewaysResponse lists transit gateways.
type DescribeTransitGatewaysResponse struct {
	Meta
	TransitGateways []resources.TransitGatewayView `xml:"transitGatewaySet>item"`
	NextToken       string                         `xml:"nextToken,omitempty"`
}

// DescribeTransitGateways lists transit gateways.
func (b *TransitGatewayBackend) DescribeTransitGateways(p params.Params) (*DescribeTransitGatewaysResponse, error) {
	views, next, err := describe(b.base, state.KindTransitGateway, p, idList(p, "TransitGatewayIds", "TransitGatewayId"),
		transitGatewayMatcher, (*resources.TransitGateway).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeTransitGatewaysResponse{TransitGateways: views, NextToken: next}, nil
}
