package backends

import (
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// RouteTableBackend implements the route table, route and association actions.
type RouteTableBackend struct {
	*base
}

const (
	routeStateActive      = "active"
	routeOriginCreate     = "CreateRoute"
	associationAssociated = "associated"
)

func (b *RouteTableBackend) routesOf(rt *resources.RouteTable) []resources.RouteView {
	var out []resources.RouteView
	for _, key := range rt.Children(state.KindRoute) {
		if r, found := state.Get[*resources.Route](b.store, state.KindRoute, key); found {
			out = append(out, r.View())
		}
	}
	return out
}

func (b *RouteTableBackend) associationsOf(rt *resources.RouteTable) []resources.RouteTableAssociationView {
	var out []resources.RouteTableAssociationView
	for _, id := range rt.Children(state.KindRouteTableAssociation) {
		if a, found := state.Get[*resources.RouteTableAssociation](b.store, state.KindRouteTableAssociation, id); found {
			out = append(out, a.View())
		}
	}
	return out
}

func (b *RouteTableBackend) view(rt *resources.RouteTable) resources.RouteTableView {
	return rt.View(b.routesOf(rt), b.associationsOf(rt))
}

// matcher resolves route and association filters through the store, so it is built per call.
func (b *RouteTableBackend) matcher() filters.Matcher[*resources.RouteTable] {
	routeField := func(get func(resources.RouteView) string) filters.Field[*resources.RouteTable] {
		return filters.Values(func(rt *resources.RouteTable) []string {
			out := []string{get(rt.LocalRoute)}
			for _, r := range b.routesOf(rt) {
				out = append(out, get(r))
			}
			return out
		})
	}
	assocField := func(get func(resources.RouteTableAssociationView) string) filters.Field[*resources.RouteTable] {
		return filters.Values(func(rt *resources.RouteTable) []string {
			var out []string
			for _, a := range b.associationsOf(rt) {
				out = append(out, get(a))
			}
			return out
		})
	}
	return filters.Matcher[*resources.RouteTable]{
		Fields: map[string]filters.Field[*resources.RouteTable]{
			"route-table-id": filters.Value(func(rt *resources.RouteTable) string { return rt.RouteTableID }),
			"vpc-id":         filters.Value(func(rt *resources.RouteTable) string { return rt.VpcID }),
			"owner-id":       filters.Value(func(rt *resources.RouteTable) string { return rt.OwnerID }),
			"association.route-table-association-id": assocField(func(a resources.RouteTableAssociationView) string {
				return a.RouteTableAssociationID
			}),
			"association.subnet-id": assocField(func(a resources.RouteTableAssociationView) string { return a.SubnetID }),
			"association.main": assocField(func(a resources.RouteTableAssociationView) string {
				return boolString(a.Main)
			}),
			"route.destination-cidr-block": routeField(func(r resources.RouteView) string { return r.DestinationCidrBlock }),
			"route.gateway-id":             routeField(func(r resources.RouteView) string { return r.GatewayID }),
			"route.instance-id":            routeField(func(r resources.RouteView) string { return r.InstanceID }),
			"route.nat-gateway-id":         routeField(func(r resources.RouteView) string { return r.NatGatewayID }),
			"route.transit-gateway-id":     routeField(func(r resources.RouteView) string { return r.TransitGatewayID }),
			"route.state":                  routeField(func(r resources.RouteView) string { return r.State }),
		},
		Tags: tagsOf[*resources.RouteTable],
	}
}

// RouteTableResponse carries one route table.
type RouteTableResponse struct {
	Meta
	RouteTable resources.RouteTableView `xml:"routeTable"`
}

// CreateRouteTable creates a table with a local route for the VPC CIDR.
func (b *RouteTableBackend) CreateRouteTable(p params.Params) (*RouteTableResponse, error) {
	if err := p.Require("VpcId"); err != nil {
		return nil, err
	}
	vpc, err := lookup[*resources.Vpc](b.store, state.KindVpc, p.String("VpcId"))
	if err != nil {
		return nil, err
	}
	rt := resources.NewRouteTable(resources.RouteTableView{
		RouteTableID: b.store.NewID(state.KindRouteTable),
		VpcID:        vpc.VpcID,
		OwnerID:      b.settings.AccountID,
	}, vpc.CidrBlock)
	rt.Tags = p.TagSpecifications(rt.ResourceType())
	b.store.Table(state.KindRouteTable).Put(rt)
	registerChild(state.KindRouteTable, rt.RouteTableID, vpc)

	b.log.Debug("Route table created",
		zap.String("operation", "CreateRouteTable"),
		zap.String("route_table_id", rt.RouteTableID),
		zap.String("vpc_id", vpc.VpcID),
	)
	return &RouteTableResponse{RouteTable: b.view(rt)}, nil
}

// DeleteRouteTable removes a table without routes or associations.
func (b *RouteTableBackend) DeleteRouteTable(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("RouteTableId"); err != nil {
		return nil, err
	}
	rt, err := lookup[*resources.RouteTable](b.store, state.KindRouteTable, p.String("RouteTableId"))
	if err != nil {
		return nil, err
	}
	if err := ensureNoDependents(rt); err != nil {
		return nil, err
	}
	unregisterChild(b.store, state.KindRouteTable, rt.RouteTableID, state.KindVpc, rt.VpcID)
	b.store.Table(state.KindRouteTable).Delete(rt.RouteTableID)
	b.log.Debug("Route table deleted", zap.String("operation", "DeleteRouteTable"), zap.String("route_table_id", rt.RouteTableID))
	return ok(), nil
}

// DescribeRouteTablesResponse lists route tables.
type DescribeRouteTablesResponse struct {
	Meta
	RouteTables []resources.RouteTableView `xml:"routeTableSet>item"`
	NextToken   string                     `xml:"nextToken,omitempty"`
}

// DescribeRouteTables lists tables with their routes and associations.
func (b *RouteTableBackend) DescribeRouteTables(p params.Params) (*DescribeRouteTablesResponse, error) {
	views, next, err := describe(b.base, state.KindRouteTable, p, idList(p, "RouteTableId"), b.matcher(), b.view, true)
	if err != nil {
		return nil, err
	}
	return &DescribeRouteTablesResponse{RouteTables: views, NextToken: next}, nil
}

// AssociateRouteTableResponse carries the association id.
type AssociateRouteTableResponse struct {
	Meta
	AssociationID    string                     `xml:"associationId"`
	AssociationState resources.AssociationState `xml:"associationState"`
}

func (b *RouteTableBackend) subnetAssociation(subnetID string) (*resources.RouteTableAssociation, bool) {
	for _, a := range state.All[*resources.RouteTableAssociation](b.store, state.KindRouteTableAssociation) {
		if a.SubnetID == subnetID {
			return a, true
		}
	}
	return nil, false
}

// AssociateRouteTable binds a subnet to a table of the same VPC. A subnet has at most one
// explicit association.
func (b *RouteTableBackend) AssociateRouteTable(p params.Params) (*AssociateRouteTableResponse, error) {
	if err := p.Require("RouteTableId", "SubnetId"); err != nil {
		return nil, err
	}
	rt, err := lookup[*resources.RouteTable](b.store, state.KindRouteTable, p.String("RouteTableId"))
	if err != nil {
		return nil, err
	}
	subnet, err := lookup[*resources.Subnet](b.store, state.KindSubnet, p.String("SubnetId"))
	if err != nil {
		return nil, err
	}
	if subnet.VpcID != rt.VpcID {
		return nil, errors.API(errors.ErrInvalidParameterValue,
			"Route table %s and subnet %s belong to different networks", rt.RouteTableID, subnet.SubnetID)
	}
	if existing, found := b.subnetAssociation(subnet.SubnetID); found {
		return nil, errors.API("Resource.AlreadyAssociated",
			"the specified association for route table %s conflicts with an existing association", existing.RouteTableID)
	}

	assoc := &resources.RouteTableAssociation{RouteTableAssociationView: resources.RouteTableAssociationView{
		RouteTableAssociationID: b.store.NewID(state.KindRouteTableAssociation),
		RouteTableID:            rt.RouteTableID,
		SubnetID:                subnet.SubnetID,
		AssociationState:        resources.AssociationState{State: associationAssociated},
	}}
	b.store.Table(state.KindRouteTableAssociation).Put(assoc)
	registerChild(state.KindRouteTableAssociation, assoc.RouteTableAssociationID, rt, subnet)

	b.log.Debug("Route table associated",
		zap.String("operation", "AssociateRouteTable"),
		zap.String("association_id", assoc.RouteTableAssociationID),
		zap.String("subnet_id", subnet.SubnetID),
	)
	return &AssociateRouteTableResponse{
		AssociationID:    assoc.RouteTableAssociationID,
		AssociationState: assoc.AssociationState,
	}, nil
}

// DisassociateRouteTable removes a subnet association.
func (b *RouteTableBackend) DisassociateRouteTable(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("AssociationId"); err != nil {
		return nil, err
	}
	assoc, err := lookup[*resources.RouteTableAssociation](b.store, state.KindRouteTableAssociation, p.String("AssociationId"))
	if err != nil {
		return nil, err
	}
	b.dropAssociation(assoc)
	b.log.Debug("Route table disassociated",
		zap.String("operation", "DisassociateRouteTable"),
		zap.String("association_id", assoc.RouteTableAssociationID),
	)
	return ok(), nil
}

func (b *RouteTableBackend) dropAssociation(assoc *resources.RouteTableAssociation) {
	id := assoc.RouteTableAssociationID
	unregisterChild(b.store, state.KindRouteTableAssociation, id, state.KindRouteTable, assoc.RouteTableID)
	unregisterChild(b.store, state.KindRouteTableAssociation, id, state.KindSubnet, assoc.SubnetID)
	b.store.Table(state.KindRouteTableAssociation).Delete(id)
}

// ReplaceRouteTableAssociationResponse carries the new association id.
type ReplaceRouteTableAssociationResponse struct {
	Meta
	NewAssociationID string                     `xml:"newAssociationId"`
	AssociationState resources.AssociationState `xml:"associationState"`
}

// ReplaceRouteTableAssociation moves a subnet association to another table of the same VPC.
func (b *RouteTableBackend) ReplaceRouteTableAssociation(p params.Params) (*ReplaceRouteTableAssociationResponse, error) {
	if err := p.Require("AssociationId", "RouteTableId"); err != nil {
		return nil, err
	}
	old, err := lookup[*resources.RouteTableAssociation](b.store, state.KindRouteTableAssociation, p.String("AssociationId"))
	if err != nil {
		return nil, err
	}
	rt, err := lookup[*resources.RouteTable](b.store, state.KindRouteTable, p.String("RouteTableId"))
	if err != nil {
		return nil, err
	}
	subnet, err := lookup[*resources.Subnet](b.store, state.KindSubnet, old.SubnetID)
	if err != nil {
		return nil, err
	}
	if subnet.VpcID != rt.VpcID {
		return nil, errors.API(errors.ErrInvalidParameterValue,
			"Route table %s and subnet %s belong to different networks", rt.RouteTableID, subnet.SubnetID)
	}

	b.dropAssociation(old)
	assoc := &resources.RouteTableAssociation{RouteTableAssociationView: resources.RouteTableAssociationView{
		RouteTableAssociationID: b.store.NewID(state.KindRouteTableAssociation),
		RouteTableID:            rt.RouteTableID,
		SubnetID:                subnet.SubnetID,
		AssociationState:        resources.AssociationState{State: associationAssociated},
	}}
	b.store.Table(state.KindRouteTableAssociation).Put(assoc)
	registerChild(state.KindRouteTableAssociation, assoc.RouteTableAssociationID, rt, subnet)
	return &ReplaceRouteTableAssociationResponse{
		NewAssociationID: assoc.RouteTableAssociationID,
		AssociationState: assoc.AssociationState,
	}, nil
}

// routeTarget is the decoded target of CreateRoute and ReplaceRoute.
type routeTarget struct {
	view           resources.RouteView
	instance       *resources.Instance
	transitGateway *resources.TransitGateway
}

// target decodes exactly one of GatewayId, InstanceId, NatGatewayId or TransitGatewayId.
func (b *RouteTableBackend) target(p params.Params) (*routeTarget, error) {
	set := 0
	for _, name := range []string{"GatewayId", "InstanceId", "NatGatewayId", "TransitGatewayId"} {
		if p.Has(name) {
			set++
		}
	}
	switch {
	case set == 0:
		return nil, errors.MissingParameter("GatewayId")
	case set > 1:
		return nil, errors.API(errors.ErrInvalidParameterCombo, "More than one target specified for the route.")
	}

	t := &routeTarget{view: resources.RouteView{
		GatewayID:    p.String("GatewayId"),
		NatGatewayID: p.String("NatGatewayId"),
		State:        routeStateActive,
		Origin:       routeOriginCreate,
	}}
	if p.Has("InstanceId") {
		inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
		if err != nil {
			return nil, err
		}
		t.instance = inst
		t.view.InstanceID = inst.InstanceID
	}
	if p.Has("TransitGatewayId") {
		tgw, err := lookup[*resources.TransitGateway](b.store, state.KindTransitGateway, p.String("TransitGatewayId"))
		if err != nil {
			return nil, err
		}
		t.view.TransitGatewayID = tgw.TransitGatewayID
		t.transitGateway = tgw
	}
	return t, nil
}

// routeRequest resolves the table, the destination and the target of a route action.
func (b *RouteTableBackend) routeRequest(p params.Params) (*resources.RouteTable, string, error) {
	if err := p.Require("RouteTableId", "DestinationCidrBlock"); err != nil {
		return nil, "", err
	}
	rt, err := lookup[*resources.RouteTable](b.store, state.KindRouteTable, p.String("RouteTableId"))
	if err != nil {
		return nil, "", err
	}
	prefix, err := parseCidr("DestinationCidrBlock", p.String("DestinationCidrBlock"), 0, 32, errors.ErrInvalidParameterValue)
	if err != nil {
		return nil, "", err
	}
	return rt, prefix.String(), nil
}

func (b *RouteTableBackend) putRoute(rt *resources.RouteTable, destination string, t *routeTarget) *resources.Route {
	route := &resources.Route{RouteView: t.view, RouteTableID: rt.RouteTableID}
	route.DestinationCidrBlock = destination
	b.store.Table(state.KindRoute).Put(route)
	registerChild(state.KindRoute, route.ID(), rt)
	if t.instance != nil {
		registerChild(state.KindRoute, route.ID(), t.instance)
	}
	if t.transitGateway != nil {
		registerChild(state.KindRoute, route.ID(), t.transitGateway)
	}
	return route
}

func (b *RouteTableBackend) dropRoute(route *resources.Route) {
	key := route.ID()
	unregisterChild(b.store, state.KindRoute, key, state.KindRouteTable, route.RouteTableID)
	unregisterChild(b.store, state.KindRoute, key, state.KindInstance, route.InstanceID)
	unregisterChild(b.store, state.KindRoute, key, state.KindTransitGateway, route.TransitGatewayID)
	b.store.Table(state.KindRoute).Delete(key)
}

// CreateRoute adds a route to a table. The destination must not be taken.
func (b *RouteTableBackend) CreateRoute(p params.Params) (*ReturnResponse, error) {
	rt, destination, err := b.routeRequest(p)
	if err != nil {
		return nil, err
	}
	t, err := b.target(p)
	if err != nil {
		return nil, err
	}
	taken := b.store.Table(state.KindRoute).Has(resources.RouteKey(rt.RouteTableID, destination))
	if taken || destination == rt.LocalRoute.DestinationCidrBlock {
		return nil, errors.API("RouteAlreadyExists",
			"The route identified by %s already exists.", destination)
	}
	route := b.putRoute(rt, destination, t)
	b.log.Debug("Route created",
		zap.String("operation", "CreateRoute"),
		zap.String("route_table_id", rt.RouteTableID),
		zap.String("destination", route.DestinationCidrBlock),
	)
	return ok(), nil
}

// ReplaceRoute swaps the target of an existing route.
func (b *RouteTableBackend) ReplaceRoute(p params.Params) (*ReturnResponse, error) {
	rt, destination, err := b.routeRequest(p)
	if err != nil {
		return nil, err
	}
	t, err := b.target(p)
	if err != nil {
		return nil, err
	}
	old, found := state.Get[*resources.Route](b.store, state.KindRoute, resources.RouteKey(rt.RouteTableID, destination))
	if !found {
		return nil, errors.API("InvalidRoute.NotFound",
			"no route with destination-cidr-block %s in route table %s", destination, rt.RouteTableID)
	}
	b.dropRoute(old)
	b.putRoute(rt, destination, t)
	b.log.Debug("Route replaced",
		zap.String("operation", "ReplaceRoute"),
		zap.String("route_table_id", rt.RouteTableID),
		zap.String("destination", destination),
	)
	return ok(), nil
}

// DeleteRoute removes a route. The local route cannot be removed.
func (b *RouteTableBackend) DeleteRoute(p params.Params) (*ReturnResponse, error) {
	rt, destination, err := b.routeRequest(p)
	if err != nil {
		return nil, err
	}
	if destination == rt.LocalRoute.DestinationCidrBlock {
		return nil, errors.API(errors.ErrInvalidParameterValue,
			"cannot remove local route %s in route table %s", destination, rt.RouteTableID)
	}
	route, found := state.Get[*resources.Route](b.store, state.KindRoute, resources.RouteKey(rt.RouteTableID, destination))
	if !found {
		return nil, errors.API("InvalidRoute.NotFound",
			"no route with destination-cidr-block %s in route table %s", destination, rt.RouteTableID)
	}
	b.dropRoute(route)
	b.log.Debug("Route deleted",
		zap.String("operation", "DeleteRoute"),
		zap.String("route_table_id", rt.RouteTableID),
		zap.String("destination", destination),
	)
	return ok(), nil
}
