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

// CapacityReservationBackend implements the capacity reservation actions.
type CapacityReservationBackend struct {
	*base
}

var capacityReservationMatcher = filters.Matcher[*resources.CapacityReservation]{
	Fields: map[string]filters.Field[*resources.CapacityReservation]{
		"capacity-reservation-id": filters.Value(func(c *resources.CapacityReservation) string { return c.CapacityReservationID }),
		"instance-type":           filters.Value(func(c *resources.CapacityReservation) string { return c.InstanceType }),
		"instance-platform":       filters.Value(func(c *resources.CapacityReservation) string { return c.InstancePlatform }),
		"availability-zone":       filters.Value(func(c *resources.CapacityReservation) string { return c.AvailabilityZone }),
		"tenancy":                 filters.Value(func(c *resources.CapacityReservation) string { return c.Tenancy }),
		"state":                   filters.Value(func(c *resources.CapacityReservation) string { return c.State }),
		"owner-id":                filters.Value(func(c *resources.CapacityReservation) string { return c.OwnerID }),
		"end-date-type":           filters.Value(func(c *resources.CapacityReservation) string { return c.EndDateType }),
		"instance-match-criteria": filters.Value(func(c *resources.CapacityReservation) string { return c.InstanceMatchCriteria }),
	},
	Tags: tagsOf[*resources.CapacityReservation],
}

// CapacityReservationResponse carries one reservation.
type CapacityReservationResponse struct {
	Meta
	CapacityReservation resources.CapacityReservationView `xml:"capacityReservation"`
}

// CreateCapacityReservation reserves capacity for one instance type in one zone.
func (b *CapacityReservationBackend) CreateCapacityReservation(p params.Params) (*CapacityReservationResponse, error) {
	if err := p.Require("InstanceType", "InstancePlatform", "AvailabilityZone", "InstanceCount"); err != nil {
		return nil, err
	}
	instanceType := p.String("InstanceType")
	if !b.store.Table(state.KindInstanceType).Has(instanceType) {
		return nil, errors.InvalidValue("InstanceType", instanceType, "The instance type is not supported.")
	}
	count, err := p.Int("InstanceCount", 0)
	if err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, errors.InvalidValue("InstanceCount", p.String("InstanceCount"), "InstanceCount must be at least 1.")
	}
	tenancy := orDefault(p.String("Tenancy"), string(types.CapacityReservationTenancyDefault))
	if err := oneOf("Tenancy", tenancy, valuesOf(types.CapacityReservationTenancy("").Values())...); err != nil {
		return nil, err
	}
	endDateType := orDefault(p.String("EndDateType"), string(types.EndDateTypeUnlimited))
	if err := oneOf("EndDateType", endDateType, valuesOf(types.EndDateType("").Values())...); err != nil {
		return nil, err
	}
	if endDateType == string(types.EndDateTypeLimited) && !p.Has("EndDate") {
		return nil, errors.MissingParameter("EndDate")
	}
	if endDateType == string(types.EndDateTypeUnlimited) && p.Has("EndDate") {
		return nil, errors.API(errors.ErrInvalidParameterCombo, "EndDate cannot be set when EndDateType is unlimited")
	}
	criteria := orDefault(p.String("InstanceMatchCriteria"), string(types.InstanceMatchCriteriaOpen))
	if err := oneOf("InstanceMatchCriteria", criteria, valuesOf(types.InstanceMatchCriteria("").Values())...); err != nil {
		return nil, err
	}
	ebs, err := p.Bool("EbsOptimized", false)
	if err != nil {
		return nil, err
	}

	id := b.store.NewID(state.KindCapacityReservation)
	cr := resources.NewCapacityReservation(resources.CapacityReservationView{
		CapacityReservationID:  id,
		CapacityReservationArn: b.arn("capacity-reservation", id),
		OwnerID:                b.settings.AccountID,
		InstanceType:           instanceType,
		InstancePlatform:       p.String("InstancePlatform"),
		AvailabilityZone:       p.String("AvailabilityZone"),
		Tenancy:                tenancy,
		TotalInstanceCount:     count,
		AvailableInstanceCount: count,
		EbsOptimized:           ebs,
		State:                  string(types.CapacityReservationStateActive),
		EndDateType:            endDateType,
		EndDate:                p.String("EndDate"),
		InstanceMatchCriteria:  criteria,
		CreateDate:             b.timestamp(),
	})
	cr.Tags = p.TagSpecifications(cr.ResourceType())
	b.store.Table(state.KindCapacityReservation).Put(cr)

	b.log.Debug("Capacity reservation created",
		zap.String("operation", "CreateCapacityReservation"),
		zap.String("capacity_reservation_id", id),
		zap.Int("instance_count", count),
	)
	return &CapacityReservationResponse{CapacityReservation: cr.View()}, nil
}

func (b *CapacityReservationBackend) activeReservation(id string) (*resources.CapacityReservation, error) {
	cr, err := lookup[*resources.CapacityReservation](b.store, state.KindCapacityReservation, id)
	if err != nil {
		return nil, err
	}
	if cr.State != string(types.CapacityReservationStateActive) {
		return nil, errors.API(errors.ErrIncorrectState, "The capacity reservation '%s' is in state '%s'.", cr.CapacityReservationID, cr.State)
	}
	return cr, nil
}

// ModifyCapacityReservation changes the reserved count or the end date of an active reservation.
func (b *CapacityReservationBackend) ModifyCapacityReservation(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("CapacityReservationId"); err != nil {
		return nil, err
	}
	cr, err := b.activeReservation(p.String("CapacityReservationId"))
	if err != nil {
		return nil, err
	}
	if p.Has("InstanceCount") {
		count, err := p.Int("InstanceCount", 0)
		if err != nil {
			return nil, err
		}
		used := cr.TotalInstanceCount - cr.AvailableInstanceCount
		if count < 1 || count < used {
			return nil, errors.InvalidValue("InstanceCount", p.String("InstanceCount"),
				"InstanceCount cannot be lower than the number of instances running in the reservation.")
		}
		cr.TotalInstanceCount = count
		cr.AvailableInstanceCount = count - used
	}
	if p.Has("EndDateType") {
		if err := oneOf("EndDateType", p.String("EndDateType"), valuesOf(types.EndDateType("").Values())...); err != nil {
			return nil, err
		}
		cr.EndDateType = p.String("EndDateType")
		if cr.EndDateType == string(types.EndDateTypeUnlimited) {
			cr.EndDate = ""
		}
	}
	if p.Has("EndDate") {
		if cr.EndDateType != string(types.EndDateTypeLimited) {
			return nil, errors.API(errors.ErrInvalidParameterCombo, "EndDate requires EndDateType limited")
		}
		cr.EndDate = p.String("EndDate")
	}
	b.log.Debug("Capacity reservation modified",
		zap.String("operation", "ModifyCapacityReservation"),
		zap.String("capacity_reservation_id", cr.CapacityReservationID),
	)
	return ok(), nil
}

// CancelCapacityReservation moves an unused reservation to cancelled. The record stays.
func (b *CapacityReservationBackend) CancelCapacityReservation(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("CapacityReservationId"); err != nil {
		return nil, err
	}
	cr, err := b.activeReservation(p.String("CapacityReservationId"))
	if err != nil {
		return nil, err
	}
	if err := ensureNoDependents(cr); err != nil {
		return nil, err
	}
	cr.State = string(types.CapacityReservationStateCancelled)
	cr.AvailableInstanceCount = 0
	b.log.Debug("Capacity reservation cancelled",
		zap.String("operation", "CancelCapacityReservation"),
		zap.String("capacity_reservation_id", cr.CapacityReservationID),
	)
	return ok(), nil
}

// DescribeCapacityReservationsResponse lists reservations.
type DescribeCapacityReservationsResponse struct {
	Meta
	CapacityReservations []resources.CapacityReservationView `xml:"capacityReservationSet>item"`
	NextToken            string                              `xml:"nextToken,omitempty"`
}

// DescribeCapacityReservations lists reservations.
func (b *CapacityReservationBackend) DescribeCapacityReservations(p params.Params) (*DescribeCapacityReservationsResponse, error) {
	views, next, err := describe(b.base, state.KindCapacityReservation, p, idList(p, "CapacityReservationId"),
		capacityReservationMatcher, (*resources.CapacityReservation).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeCapacityReservationsResponse{CapacityReservations: views, NextToken: next}, nil
}
