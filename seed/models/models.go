package models

// File is the root of a seed file. Blocks are labelled; references to other blocks use
// those labels.
type File struct {
	Vpcs                 []VpcBlock                 `hcl:"vpc,block"`
	Subnets              []SubnetBlock              `hcl:"subnet,block"`
	SecurityGroups       []SecurityGroupBlock       `hcl:"security_group,block"`
	KeyPairs             []KeyPairBlock             `hcl:"key_pair,block"`
	Images               []ImageBlock               `hcl:"image,block"`
	CapacityReservations []CapacityReservationBlock `hcl:"capacity_reservation,block"`
	TransitGateways      []TransitGatewayBlock      `hcl:"transit_gateway,block"`
}

type VpcBlock struct {
	Label           string            `hcl:"label,label"`
	CidrBlock       string            `hcl:"cidr_block"`
	InstanceTenancy *string           `hcl:"instance_tenancy,optional"`
	Tags            map[string]string `hcl:"tags,optional"`
}

type SubnetBlock struct {
	Label            string            `hcl:"label,label"`
	Vpc              string            `hcl:"vpc"`
	CidrBlock        string            `hcl:"cidr_block"`
	AvailabilityZone *string           `hcl:"availability_zone,optional"`
	Tags             map[string]string `hcl:"tags,optional"`
}

// SecurityGroupBlock defaults its group name to the label.
type SecurityGroupBlock struct {
	Label       string            `hcl:"label,label"`
	GroupName   *string           `hcl:"group_name,optional"`
	Description string            `hcl:"description"`
	Vpc         *string           `hcl:"vpc,optional"`
	Tags        map[string]string `hcl:"tags,optional"`
}

// KeyPairBlock uses its label as the key name.
type KeyPairBlock struct {
	Label   string            `hcl:"label,label"`
	KeyType *string           `hcl:"key_type,optional"`
	Tags    map[string]string `hcl:"tags,optional"`
}

// ImageBlock uses its label as the image name.
type ImageBlock struct {
	Label        string            `hcl:"label,label"`
	Description  *string           `hcl:"description,optional"`
	Architecture *string           `hcl:"architecture,optional"`
	TpmSupport   *string           `hcl:"tpm_support,optional"`
	Tags         map[string]string `hcl:"tags,optional"`
}

type CapacityReservationBlock struct {
	Label            string            `hcl:"label,label"`
	InstanceType     string            `hcl:"instance_type"`
	InstancePlatform *string           `hcl:"instance_platform,optional"`
	AvailabilityZone string            `hcl:"availability_zone"`
	InstanceCount    int               `hcl:"instance_count"`
	Tags             map[string]string `hcl:"tags,optional"`
}

type TransitGatewayBlock struct {
	Label       string            `hcl:"label,label"`
	Description *string           `hcl:"description,optional"`
	Tags        map[string]string `hcl:"tags,optional"`
}
