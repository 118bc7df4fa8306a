package models

// Instance is the client side view of an emulated EC2 instance
type Instance struct {
	InstanceID     string
	InstanceType   string
	AMI            string
	State          string
	SubnetID       string
	VpcID          string
	PrivateIP      string
	PublicIP       string
	KeyName        string
	LaunchTime     string
	PrivateDnsName string
	SecurityGroups []SecurityGroup
	Tags           map[string]string
}

// SecurityGroup represents a security group associated with an instance
type SecurityGroup struct {
	GroupId   string
	GroupName string
}

// Vpc is the client side view of an emulated VPC
type Vpc struct {
	VpcID     string
	CidrBlock string
	State     string
	IsDefault bool
	Tags      map[string]string
}

// SmokeStep is one completed step of a smoke run
type SmokeStep struct {
	Name     string
	Resource string
}

// SmokeReport lists what a smoke run created and checked
type SmokeReport struct {
	VpcID       string
	SubnetID    string
	ImageID     string
	InstanceIDs []string
	Steps       []SmokeStep
}
