package backends

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// IamInstanceProfileBackend implements the instance profile association actions.
type IamInstanceProfileBackend struct {
	*base
}

var iamAssociationMatcher = filters.Matcher[*resources.IamInstanceProfileAssociation]{
	Fields: map[string]filters.Field[*resources.IamInstanceProfileAssociation]{
		"instance-id": filters.Value(func(a *resources.IamInstanceProfileAssociation) string { return a.InstanceID }),
		"state":       filters.Value(func(a *resources.IamInstanceProfileAssociation) string { return a.State }),
	},
}

// profileFromParams decodes an Arn/Name profile specification. It returns nil when neither is set.
func (b *base) profileFromParams(p params.Params) (*resources.IamInstanceProfile, error) {
	arn, name := p.String("Arn"), p.String("Name")
	switch {
	case arn == "" && name == "":
		return nil, nil
	case arn == "":
		arn = "arn:aws:iam::" + b.settings.AccountID + ":instance-profile/" + name
	case !strings.HasPrefix(arn, "arn:aws:iam::"):
		return nil, errors.InvalidValue("IamInstanceProfile.Arn", arn, "The ARN is not a valid instance profile ARN.")
	}
	id := "AIPA" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:17]
	return &resources.IamInstanceProfile{Arn: arn, ID: id}, nil
}

// associateProfile stores an association of profile with inst.
func (b *base) associateProfile(inst *resources.Instance, profile resources.IamInstanceProfile) *resources.IamInstanceProfileAssociation {
	assoc := &resources.IamInstanceProfileAssociation{IamInstanceProfileAssociationView: resources.IamInstanceProfileAssociationView{
		AssociationID:      b.store.NewID(state.KindIamInstanceProfileAssociation),
		InstanceID:         inst.InstanceID,
		IamInstanceProfile: profile,
		State:              string(types.IamInstanceProfileAssociationStateAssociated),
		Timestamp:          b.timestamp(),
	}}
	b.store.Table(state.KindIamInstanceProfileAssociation).Put(assoc)
	inst.IamInstanceProfile = &profile
	return assoc
}

func (b *IamInstanceProfileBackend) associationOf(instanceID string) (*resources.IamInstanceProfileAssociation, bool) {
	for _, a := range state.All[*resources.IamInstanceProfileAssociation](b.store, state.KindIamInstanceProfileAssociation) {
		if a.InstanceID == instanceID {
			return a, true
		}
	}
	return nil, false
}

// IamInstanceProfileAssociationResponse carries one association.
type IamInstanceProfileAssociationResponse struct {
	Meta
	Association resources.IamInstanceProfileAssociationView `xml:"iamInstanceProfileAssociation"`
}

func (b *IamInstanceProfileBackend) requiredProfile(p params.Params) (resources.IamInstanceProfile, error) {
	profile, err := b.profileFromParams(p.Sub("IamInstanceProfile"))
	if err != nil {
		return resources.IamInstanceProfile{}, err
	}
	if profile == nil {
		return resources.IamInstanceProfile{}, errors.MissingParameter("IamInstanceProfile")
	}
	return *profile, nil
}

// AssociateIamInstanceProfile attaches a profile to an instance without one.
func (b *IamInstanceProfileBackend) AssociateIamInstanceProfile(p params.Params) (*IamInstanceProfileAssociationResponse, error) {
	if err := p.Require("InstanceId"); err != nil {
		return nil, err
	}
	profile, err := b.requiredProfile(p)
	if err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}
	if existing, found := b.associationOf(inst.InstanceID); found {
		return nil, errors.API(errors.ErrIncorrectState,
			"There is an existing association for instance %s (%s)", inst.InstanceID, existing.AssociationID)
	}
	assoc := b.associateProfile(inst, profile)
	b.log.Debug("Instance profile associated",
		zap.String("operation", "AssociateIamInstanceProfile"),
		zap.String("association_id", assoc.AssociationID),
		zap.String("instance_id", inst.InstanceID),
	)
	return &IamInstanceProfileAssociationResponse{Association: assoc.View()}, nil
}

// DisassociateIamInstanceProfile removes an association.
func (b *IamInstanceProfileBackend) DisassociateIamInstanceProfile(p params.Params) (*IamInstanceProfileAssociationResponse, error) {
	if err := p.Require("AssociationId"); err != nil {
		return nil, err
	}
	assoc, err := lookup[*resources.IamInstanceProfileAssociation](b.store, state.KindIamInstanceProfileAssociation, p.String("AssociationId"))
	if err != nil {
		return nil, err
	}
	if inst, found := state.Get[*resources.Instance](b.store, state.KindInstance, assoc.InstanceID); found {
		inst.IamInstanceProfile = nil
	}
	b.store.Table(state.KindIamInstanceProfileAssociation).Delete(assoc.AssociationID)
	view := assoc.View()
	view.State = string(types.IamInstanceProfileAssociationStateDisassociated)
	b.log.Debug("Instance profile disassociated",
		zap.String("operation", "DisassociateIamInstanceProfile"),
		zap.String("association_id", assoc.AssociationID),
	)
	return &IamInstanceProfileAssociationResponse{Association: view}, nil
}

// ReplaceIamInstanceProfileAssociation swaps the profile of an association for a new one.
func (b *IamInstanceProfileBackend) ReplaceIamInstanceProfileAssociation(p params.Params) (*IamInstanceProfileAssociationResponse, error) {
	if err := p.Require("AssociationId"); err != nil {
		return nil, err
	}
	profile, err := b.requiredProfile(p)
	if err != nil {
		return nil, err
	}
	old, err := lookup[*resources.IamInstanceProfileAssociation](b.store, state.KindIamInstanceProfileAssociation, p.String("AssociationId"))
	if err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, old.InstanceID)
	if err != nil {
		return nil, err
	}
	b.store.Table(state.KindIamInstanceProfileAssociation).Delete(old.AssociationID)
	assoc := b.associateProfile(inst, profile)
	b.log.Debug("Instance profile association replaced",
		zap.String("operation", "ReplaceIamInstanceProfileAssociation"),
		zap.String("old_association_id", old.AssociationID),
		zap.String("association_id", assoc.AssociationID),
	)
	return &IamInstanceProfileAssociationResponse{Association: assoc.View()}, nil
}

// DescribeIamInstanceProfileAssociationsResponse lists associations.
type DescribeIamInstanceProfileAssociationsResponse struct {
	Meta
	Associations []resources.IamInstanceProfileAssociationView `xml:"iamInstanceProfileAssociationSet>item"`
	NextToken    string                                        `xml:"nextToken,omitempty"`
}

// DescribeIamInstanceProfileAssociations lists associations.
func (b *IamInstanceProfileBackend) DescribeIamInstanceProfileAssociations(p params.Params) (*DescribeIamInstanceProfileAssociationsResponse, error) {
	views, next, err := describe(b.base, state.KindIamInstanceProfileAssociation, p, idList(p, "AssociationId"),
		iamAssociationMatcher, (*resources.IamInstanceProfileAssociation).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeIamInstanceProfileAssociationsResponse{Associations: views, NextToken: next}, nil
}
