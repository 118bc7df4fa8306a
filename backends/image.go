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

// ImageBackend implements the AMI actions.
type ImageBackend struct {
	*base
}

var imageMatcher = filters.Matcher[*resources.Image]{
	Fields: map[string]filters.Field[*resources.Image]{
		"image-id":            filters.Value(func(i *resources.Image) string { return i.ImageID }),
		"name":                filters.Value(func(i *resources.Image) string { return i.Name }),
		"state":               filters.Value(func(i *resources.Image) string { return i.ImageState }),
		"architecture":        filters.Value(func(i *resources.Image) string { return i.Architecture }),
		"owner-id":            filters.Value(func(i *resources.Image) string { return i.ImageOwnerID }),
		"is-public":           filters.Bool(func(i *resources.Image) bool { return i.IsPublic }),
		"root-device-type":    filters.Value(func(i *resources.Image) string { return i.RootDeviceType }),
		"root-device-name":    filters.Value(func(i *resources.Image) string { return i.RootDeviceName }),
		"virtualization-type": filters.Value(func(i *resources.Image) string { return i.VirtualizationType }),
		"image-type":          filters.Value(func(i *resources.Image) string { return i.ImageType }),
		"tpm-support":         filters.Value(func(i *resources.Image) string { return i.TpmSupport }),
		"description":         filters.Value(func(i *resources.Image) string { return i.Description }),
	},
	Tags: tagsOf[*resources.Image],
}

// ImageIDResponse carries a new image id.
type ImageIDResponse struct {
	Meta
	ImageID string `xml:"imageId"`
}

func (b *ImageBackend) checkName(name string) error {
	for _, img := range state.All[*resources.Image](b.store, state.KindImage) {
		if img.Name == name {
			return errors.API("InvalidAMIName.Duplicate", "AMI name %s is already in use by AMI %s", name, img.ImageID)
		}
	}
	return nil
}

func (b *ImageBackend) put(view resources.ImageView, p params.Params) *resources.Image {
	view.ImageID = b.store.NewID(state.KindImage)
	view.ImageState = string(types.ImageStateAvailable)
	view.ImageOwnerID = b.settings.AccountID
	view.ImageType = string(types.ImageTypeValuesMachine)
	view.CreationDate = b.timestamp()
	view.Hypervisor = string(types.HypervisorTypeXen)
	view.PlatformDetails = "Linux/UNIX"
	if view.ImageLocation == "" {
		view.ImageLocation = b.settings.AccountID + "/" + view.Name
	}
	img := resources.NewImage(view)
	img.Tags = p.TagSpecifications(img.ResourceType())
	b.store.Table(state.KindImage).Put(img)
	return img
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// RegisterImage registers an AMI from a manifest or snapshot description.
func (b *ImageBackend) RegisterImage(p params.Params) (*ImageIDResponse, error) {
	if err := p.Require("Name"); err != nil {
		return nil, err
	}
	if err := b.checkName(p.String("Name")); err != nil {
		return nil, err
	}
	arch := orDefault(p.String("Architecture"), string(types.ArchitectureValuesX8664))
	if err := oneOf("Architecture", arch, valuesOf(types.ArchitectureValues("").Values())...); err != nil {
		return nil, err
	}
	tpm := p.String("TpmSupport")
	if tpm != "" {
		if err := oneOf("TpmSupport", tpm, string(types.TpmSupportValuesV20)); err != nil {
			return nil, err
		}
	}
	ena, err := p.Bool("EnaSupport", true)
	if err != nil {
		return nil, err
	}

	img := b.put(resources.ImageView{
		Name:               p.String("Name"),
		Description:        p.String("Description"),
		ImageLocation:      p.String("ImageLocation"),
		Architecture:       arch,
		RootDeviceType:     string(types.DeviceTypeEbs),
		RootDeviceName:     orDefault(p.String("RootDeviceName"), "/dev/xvda"),
		VirtualizationType: orDefault(p.String("VirtualizationType"), string(types.VirtualizationTypeHvm)),
		EnaSupport:         ena,
		TpmSupport:         tpm,
		BootMode:           p.String("BootMode"),
	}, p)

	b.log.Debug("Image registered", zap.String("operation", "RegisterImage"), zap.String("image_id", img.ImageID))
	return &ImageIDResponse{ImageID: img.ImageID}, nil
}

// CreateImage captures an AMI from an instance.
func (b *ImageBackend) CreateImage(p params.Params) (*ImageIDResponse, error) {
	if err := p.Require("InstanceId", "Name"); err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}
	if err := b.checkName(p.String("Name")); err != nil {
		return nil, err
	}
	source, _ := state.Get[*resources.Image](b.store, state.KindImage, inst.ImageID)
	tpm, boot := "", ""
	if source != nil {
		tpm, boot = source.TpmSupport, source.BootMode
	}

	img := b.put(resources.ImageView{
		Name:               p.String("Name"),
		Description:        p.String("Description"),
		Architecture:       inst.Architecture,
		RootDeviceType:     inst.RootDeviceType,
		RootDeviceName:     inst.RootDeviceName,
		VirtualizationType: inst.VirtualizationType,
		EnaSupport:         inst.EnaSupport,
		TpmSupport:         tpm,
		BootMode:           boot,
	}, p)
	img.SourceInstanceID = inst.InstanceID

	b.log.Debug("Image created from instance",
		zap.String("operation", "CreateImage"),
		zap.String("image_id", img.ImageID),
		zap.String("instance_id", inst.InstanceID),
	)
	return &ImageIDResponse{ImageID: img.ImageID}, nil
}

// DeregisterImage removes an AMI no instance was launched from.
func (b *ImageBackend) DeregisterImage(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("ImageId"); err != nil {
		return nil, err
	}
	img, err := lookup[*resources.Image](b.store, state.KindImage, p.String("ImageId"))
	if err != nil {
		return nil, err
	}
	if err := ensureNoDependents(img); err != nil {
		return nil, err
	}
	b.store.Table(state.KindImage).Delete(img.ImageID)
	b.log.Debug("Image deregistered", zap.String("operation", "DeregisterImage"), zap.String("image_id", img.ImageID))
	return ok(), nil
}

// DescribeImagesResponse lists images.
type DescribeImagesResponse struct {
	Meta
	Images    []resources.ImageView `xml:"imagesSet>item"`
	NextToken string                `xml:"nextToken,omitempty"`
}

// DescribeImages lists images by id, owner and filters. Owner.N narrows like an owner-id filter.
func (b *ImageBackend) DescribeImages(p params.Params) (*DescribeImagesResponse, error) {
	if owners := p.List("Owner"); len(owners) > 0 {
		for i, o := range owners {
			if o == "self" {
				owners[i] = b.settings.AccountID
			}
		}
		p = withFilter(p, "owner-id", owners)
	}
	views, next, err := describe(b.base, state.KindImage, p, idList(p, "ImageId"), imageMatcher, (*resources.Image).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeImagesResponse{Images: views, NextToken: next}, nil
}

// withFilter returns a copy of p with one more Filter.N block.
func withFilter(p params.Params, name string, values []string) params.Params {
	out := make(params.Params, len(p)+len(values)+1)
	for k, v := range p {
		out[k] = v
	}
	key := "Filter." + strconv.Itoa(len(p.Indexed("Filter"))+1000)
	out[key+".Name"] = name
	for i, v := range values {
		out[key+".Value."+strconv.Itoa(i+1)] = v
	}
	return out
}

func valuesOf[T ~string](values []T) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}
