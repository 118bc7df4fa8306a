// Package seed creates an initial set of resources from an HCL file, going through the
// backends so every record and dependency list is built the same way a request would.
package seed

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"go.uber.org/zap"

	"ec2emulator/backends"
	"ec2emulator/errors"
	"ec2emulator/params"
	"ec2emulator/seed/models"
)

const packageName = "seed"

// Result maps "kind.label" to the id created for that block.
type Result map[string]string

// Parse decodes the seed file at path. The file name must end in .hcl.
func Parse(path string) (*models.File, error) {
	var f models.File
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return nil, errors.New(errors.ErrSeed, "failed to decode seed file",
			map[string]interface{}{"path": path}, err)
	}
	return &f, nil
}

// ParseSource decodes seed source held in memory. filename only names the source in
// diagnostics and selects the syntax by its extension.
func ParseSource(filename string, src []byte) (*models.File, error) {
	var f models.File
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return nil, errors.New(errors.ErrSeed, "failed to decode seed source",
			map[string]interface{}{"filename": filename}, err)
	}
	return &f, nil
}

// Loader applies seed files through a set of backends.
type Loader struct {
	be  *backends.Backends
	log *zap.Logger
}

// NewLoader returns a loader creating resources through be.
func NewLoader(be *backends.Backends, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{be: be, log: logger.With(zap.String("package", packageName))}
}

// LoadFile parses and applies the seed file at path.
func (l *Loader) LoadFile(path string) (Result, error) {
	f, err := Parse(path)
	if err != nil {
		return nil, err
	}
	return l.Apply(f)
}

// Apply creates the blocks of f in dependency order under one store update. A failing
// block stops the load; blocks applied before it stay.
func (l *Loader) Apply(f *models.File) (Result, error) {
	if err := checkLabels(f); err != nil {
		return nil, err
	}
	result := Result{}
	err := l.be.Store().Update(func() error {
		steps := []func(*models.File, Result) error{
			l.applyVpcs,
			l.applySubnets,
			l.applySecurityGroups,
			l.applyKeyPairs,
			l.applyImages,
			l.applyCapacityReservations,
			l.applyTransitGateways,
		}
		for _, step := range steps {
			if err := step(f, result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		l.log.Info("Seeded resource",
			zap.String("operation", "Apply"),
			zap.String("block", k),
			zap.String("id", result[k]),
		)
	}
	return result, nil
}

// checkLabels rejects a file with two blocks of one kind sharing a label.
func checkLabels(f *models.File) error {
	seen := map[string]bool{}
	for _, key := range blockKeys(f) {
		if seen[key] {
			return errors.New(errors.ErrSeed, fmt.Sprintf("duplicate block %s", key),
				map[string]interface{}{"block": key}, nil)
		}
		seen[key] = true
	}
	return nil
}

func blockKeys(f *models.File) []string {
	var keys []string
	for _, b := range f.Vpcs {
		keys = append(keys, "vpc."+b.Label)
	}
	for _, b := range f.Subnets {
		keys = append(keys, "subnet."+b.Label)
	}
	for _, b := range f.SecurityGroups {
		keys = append(keys, "security_group."+b.Label)
	}
	for _, b := range f.KeyPairs {
		keys = append(keys, "key_pair."+b.Label)
	}
	for _, b := range f.Images {
		keys = append(keys, "image."+b.Label)
	}
	for _, b := range f.CapacityReservations {
		keys = append(keys, "capacity_reservation."+b.Label)
	}
	for _, b := range f.TransitGateways {
		keys = append(keys, "transit_gateway."+b.Label)
	}
	return keys
}

func (r Result) add(kind, label, id string) {
	r[kind+"."+label] = id
}

func (r Result) ref(from, kind, label string) (string, error) {
	id, ok := r[kind+"."+label]
	if !ok {
		return "", errors.New(errors.ErrSeed, fmt.Sprintf("%s refers to unknown %s %q", from, kind, label),
			map[string]interface{}{"block": from, "reference": kind + "." + label}, nil)
	}
	return id, nil
}

// blockError wraps a backend failure with the block that caused it.
func blockError(kind, label string, err error) error {
	return errors.New(errors.ErrSeed, fmt.Sprintf("failed to create %s %q", kind, label),
		map[string]interface{}{"block": kind + "." + label}, err)
}

// withTags adds a TagSpecification for resourceType carrying tags in key order.
func withTags(p params.Params, resourceType string, tags map[string]string) params.Params {
	if len(tags) == 0 {
		return p
	}
	p["TagSpecification.1.ResourceType"] = resourceType
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		n := strconv.Itoa(i + 1)
		p["TagSpecification.1.Tag."+n+".Key"] = k
		p["TagSpecification.1.Tag."+n+".Value"] = tags[k]
	}
	return p
}

func setOptional(p params.Params, name string, value *string) {
	if value != nil {
		p[name] = *value
	}
}

func (l *Loader) applyVpcs(f *models.File, r Result) error {
	for _, b := range f.Vpcs {
		p := withTags(params.Params{"CidrBlock": b.CidrBlock}, "vpc", b.Tags)
		setOptional(p, "InstanceTenancy", b.InstanceTenancy)
		resp, err := l.be.Vpcs.CreateVpc(p)
		if err != nil {
			return blockError("vpc", b.Label, err)
		}
		r.add("vpc", b.Label, resp.Vpc.VpcID)
	}
	return nil
}

func (l *Loader) applySubnets(f *models.File, r Result) error {
	for _, b := range f.Subnets {
		vpcID, err := r.ref("subnet."+b.Label, "vpc", b.Vpc)
		if err != nil {
			return err
		}
		p := withTags(params.Params{"VpcId": vpcID, "CidrBlock": b.CidrBlock}, "subnet", b.Tags)
		setOptional(p, "AvailabilityZone", b.AvailabilityZone)
		resp, err := l.be.Subnets.CreateSubnet(p)
		if err != nil {
			return blockError("subnet", b.Label, err)
		}
		r.add("subnet", b.Label, resp.Subnet.SubnetID)
	}
	return nil
}

func (l *Loader) applySecurityGroups(f *models.File, r Result) error {
	for _, b := range f.SecurityGroups {
		name := b.Label
		if b.GroupName != nil {
			name = *b.GroupName
		}
		p := withTags(params.Params{"GroupName": name, "GroupDescription": b.Description}, "security-group", b.Tags)
		if b.Vpc != nil {
			vpcID, err := r.ref("security_group."+b.Label, "vpc", *b.Vpc)
			if err != nil {
				return err
			}
			p["VpcId"] = vpcID
		}
		resp, err := l.be.SecurityGroups.CreateSecurityGroup(p)
		if err != nil {
			return blockError("security_group", b.Label, err)
		}
		r.add("security_group", b.Label, resp.GroupID)
	}
	return nil
}

func (l *Loader) applyKeyPairs(f *models.File, r Result) error {
	for _, b := range f.KeyPairs {
		p := withTags(params.Params{"KeyName": b.Label}, "key-pair", b.Tags)
		setOptional(p, "KeyType", b.KeyType)
		resp, err := l.be.KeyPairs.CreateKeyPair(p)
		if err != nil {
			return blockError("key_pair", b.Label, err)
		}
		r.add("key_pair", b.Label, resp.KeyPairID)
	}
	return nil
}

func (l *Loader) applyImages(f *models.File, r Result) error {
	for _, b := range f.Images {
		p := withTags(params.Params{"Name": b.Label}, "image", b.Tags)
		setOptional(p, "Description", b.Description)
		setOptional(p, "Architecture", b.Architecture)
		setOptional(p, "TpmSupport", b.TpmSupport)
		resp, err := l.be.Images.RegisterImage(p)
		if err != nil {
			return blockError("image", b.Label, err)
		}
		r.add("image", b.Label, resp.ImageID)
	}
	return nil
}

func (l *Loader) applyCapacityReservations(f *models.File, r Result) error {
	for _, b := range f.CapacityReservations {
		platform := "Linux/UNIX"
		if b.InstancePlatform != nil {
			platform = *b.InstancePlatform
		}
		p := withTags(params.Params{
			"InstanceType":     b.InstanceType,
			"InstancePlatform": platform,
			"AvailabilityZone": b.AvailabilityZone,
			"InstanceCount":    strconv.Itoa(b.InstanceCount),
		}, "capacity-reservation", b.Tags)
		resp, err := l.be.CapacityReservations.CreateCapacityReservation(p)
		if err != nil {
			return blockError("capacity_reservation", b.Label, err)
		}
		r.add("capacity_reservation", b.Label, resp.CapacityReservation.CapacityReservationID)
	}
	return nil
}

func (l *Loader) applyTransitGateways(f *models.File, r Result) error {
	for _, b := range f.TransitGateways {
		p := withTags(params.Params{}, "transit-gateway", b.Tags)
		setOptional(p, "Description", b.Description)
		resp, err := l.be.TransitGateways.CreateTransitGateway(p)
		if err != nil {
			return blockError("transit_gateway", b.Label, err)
		}
		r.add("transit_gateway", b.Label, resp.TransitGateway.TransitGatewayID)
	}
	return nil
}
