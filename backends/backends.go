// Package backends implements the EC2 actions, one backend per resource kind.
//
// Backend methods assume the caller holds the store lock (Store.Update). They validate
// every input and every referenced id before mutating anything, and they keep parent
// dependency lists in step with the child records they create and remove.
package backends

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

const (
	packageName = "backends"
	timeLayout  = "2006-01-02T15:04:05.000Z"
)

// Settings are the account level values stamped on created resources.
type Settings struct {
	Region            string
	AccountID         string
	DefaultMaxResults int
}

// Meta is embedded by every response.
type Meta struct {
	RequestID string `xml:"requestId"`
}

// SetRequestID stamps the request id on the response.
func (m *Meta) SetRequestID(id string) { m.RequestID = id }

// ReturnResponse is the response of actions answering with a bare boolean.
type ReturnResponse struct {
	Meta
	Return bool `xml:"return"`
}

func ok() *ReturnResponse { return &ReturnResponse{Return: true} }

type base struct {
	store    *state.Store
	settings Settings
	log      *zap.Logger
	now      func() time.Time
}

func (b *base) timestamp() string {
	return b.now().UTC().Format(timeLayout)
}

func (b *base) arn(resource, id string) string {
	return fmt.Sprintf("arn:aws:ec2:%s:%s:%s/%s", b.settings.Region, b.settings.AccountID, resource, id)
}

func (b *base) defaultZone() string {
	return b.settings.Region + "a"
}

// Backends bundles every resource backend over one store.
type Backends struct {
	Vpcs                 *VpcBackend
	Subnets              *SubnetBackend
	SecurityGroups       *SecurityGroupBackend
	KeyPairs             *KeyPairBackend
	Images               *ImageBackend
	CapacityReservations *CapacityReservationBackend
	InstanceTypes        *InstanceTypeBackend
	Instances            *InstanceBackend
	IamProfiles          *IamInstanceProfileBackend
	Addresses            *AddressBackend
	RouteTables          *RouteTableBackend
	BundleTasks          *BundleTaskBackend
	ElasticGpus          *ElasticGpuBackend
	SpotInstances        *SpotInstanceBackend
	SpotFleets           *SpotFleetBackend
	FlowLogs             *FlowLogBackend
	VerifiedAccess       *VerifiedAccessBackend
	ExportTasks          *ExportTaskBackend
	TransitGateways      *TransitGatewayBackend
	VpnConcentrators     *VpnConcentratorBackend
	NitroTpm             *NitroTpmBackend
	MacModifications     *MacModificationBackend
	AccountDefaults      *AccountDefaultsBackend
	Tags                 *TagBackend

	store *state.Store
}

// New wires every backend to store and loads the instance type catalog.
func New(store *state.Store, settings Settings, logger *zap.Logger) *Backends {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.DefaultMaxResults <= 0 {
		settings.DefaultMaxResults = filters.DefaultPageSize
	}
	b := &base{
		store:    store,
		settings: settings,
		log:      logger.With(zap.String("package", packageName)),
		now:      time.Now,
	}

	loadInstanceTypeCatalog(store)

	instances := &InstanceBackend{base: b}
	return &Backends{
		Vpcs:                 &VpcBackend{base: b},
		Subnets:              &SubnetBackend{base: b},
		SecurityGroups:       &SecurityGroupBackend{base: b},
		KeyPairs:             &KeyPairBackend{base: b},
		Images:               &ImageBackend{base: b},
		CapacityReservations: &CapacityReservationBackend{base: b},
		InstanceTypes:        &InstanceTypeBackend{base: b},
		Instances:            instances,
		IamProfiles:          &IamInstanceProfileBackend{base: b},
		Addresses:            &AddressBackend{base: b},
		RouteTables:          &RouteTableBackend{base: b},
		BundleTasks:          &BundleTaskBackend{base: b},
		ElasticGpus:          &ElasticGpuBackend{base: b},
		SpotInstances:        &SpotInstanceBackend{base: b, instances: instances},
		SpotFleets:           &SpotFleetBackend{base: b},
		FlowLogs:             &FlowLogBackend{base: b},
		VerifiedAccess:       &VerifiedAccessBackend{base: b},
		ExportTasks:          &ExportTaskBackend{base: b},
		TransitGateways:      &TransitGatewayBackend{base: b},
		VpnConcentrators:     &VpnConcentratorBackend{base: b},
		NitroTpm:             &NitroTpmBackend{base: b},
		MacModifications:     &MacModificationBackend{base: b},
		AccountDefaults:      &AccountDefaultsBackend{base: b},
		Tags:                 &TagBackend{base: b},
		store:                store,
	}
}

// Store returns the store the backends operate on.
func (b *Backends) Store() *state.Store { return b.store }

// lookup resolves id in kind's table or returns the kind's NotFound error.
func lookup[T state.Record](s *state.Store, kind state.Kind, id string) (T, error) {
	rec, found := state.Get[T](s, kind, id)
	if !found {
		var zero T
		return zero, kind.NotFound(id)
	}
	return rec, nil
}

// lookupOptional resolves id when it is set.
func lookupOptional[T state.Record](s *state.Store, kind state.Kind, id string) (T, error) {
	if id == "" {
		var zero T
		return zero, nil
	}
	return lookup[T](s, kind, id)
}

// registerChild adds id to every parent's list of childKind.
func registerChild(childKind state.Kind, id string, parents ...resources.HasDependents) {
	for _, p := range parents {
		p.AddChild(childKind, id)
	}
}

// unregisterChild removes id from the lists of every parent still stored.
func unregisterChild(s *state.Store, childKind state.Kind, id string, parentKind state.Kind, parentIDs ...string) {
	for _, pid := range parentIDs {
		if pid == "" {
			continue
		}
		rec, found := s.Table(parentKind).Get(pid)
		if !found {
			continue
		}
		if p, isParent := rec.(resources.HasDependents); isParent {
			p.RemoveChild(childKind, id)
		}
	}
}

// ensureNoDependents refuses to remove a record whose dependency lists are not empty.
func ensureNoDependents(rec resources.HasDependents) error {
	if kind, ids, blocked := rec.Blocking(); blocked {
		return errors.DependencyViolation(rec.ID(), string(kind), ids)
	}
	return nil
}

// describe implements the shared Describe flow: explicit ids (all must resolve) or every
// record, then filters, then optional pagination, then projection.
func describe[T state.Record, V any](b *base, kind state.Kind, p params.Params, ids []string,
	matcher filters.Matcher[T], view func(T) V, paginate bool) ([]V, string, error) {
	var records []T
	if len(ids) > 0 {
		resolved, err := state.Resolve[T](b.store, kind, ids)
		if err != nil {
			return nil, "", err
		}
		records = resolved
	} else {
		records = state.All[T](b.store, kind)
	}

	records, err := matcher.Apply(records, p.Filters())
	if err != nil {
		return nil, "", err
	}

	next := ""
	if paginate {
		page, err := p.Page()
		if err != nil {
			return nil, "", err
		}
		records, next, err = filters.Paginate(records, page, b.settings.DefaultMaxResults)
		if err != nil {
			return nil, "", err
		}
	}

	views := make([]V, 0, len(records))
	for _, r := range records {
		views = append(views, view(r))
	}
	return views, next, nil
}

// idList merges the values of several list parameter spellings (InstanceId.N and
// InstanceIds.N are both seen in the wild).
func idList(p params.Params, names ...string) []string {
	var out []string
	for _, name := range names {
		out = append(out, p.List(name)...)
	}
	return out
}

// tagsOf is the Matcher tag accessor for taggable records.
func tagsOf[T resources.Taggable](r T) map[string]string {
	return r.TagSet().Map()
}

// oneOf validates that value is one of allowed.
func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.InvalidValue(name, value, fmt.Sprintf("Valid values are %v.", allowed))
}
