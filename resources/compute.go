package resources

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"ec2emulator/state"
)

// InstanceState pairs the numeric state code with its name. Use the State* values.
type InstanceState struct {
	Code int    `xml:"code"`
	Name string `xml:"name"`
}

var (
	StatePending      = InstanceState{Code: 0, Name: string(types.InstanceStateNamePending)}
	StateRunning      = InstanceState{Code: 16, Name: string(types.InstanceStateNameRunning)}
	StateShuttingDown = InstanceState{Code: 32, Name: string(types.InstanceStateNameShuttingDown)}
	StateTerminated   = InstanceState{Code: 48, Name: string(types.InstanceStateNameTerminated)}
	StateStopping     = InstanceState{Code: 64, Name: string(types.InstanceStateNameStopping)}
	StateStopped      = InstanceState{Code: 80, Name: string(types.InstanceStateNameStopped)}
)

// StateReason explains the last state change.
type StateReason struct {
	Code    string `xml:"code"`
	Message string `xml:"message"`
}

// GroupIdentifier names a security group attached to an instance.
type GroupIdentifier struct {
	GroupID   string `xml:"groupId"`
	GroupName string `xml:"groupName"`
}

// Placement locates an instance.
type Placement struct {
	AvailabilityZone string `xml:"availabilityZone"`
	Tenancy          string `xml:"tenancy"`
	GroupName        string `xml:"groupName,omitempty"`
}

// Monitoring carries the detailed monitoring state.
type Monitoring struct {
	State string `xml:"state"`
}

// IamInstanceProfile identifies an attached instance profile.
type IamInstanceProfile struct {
	Arn string `xml:"arn"`
	ID  string `xml:"id"`
}

// MetadataOptions is the instance metadata service configuration.
type MetadataOptions struct {
	State                   string `xml:"state"`
	HTTPTokens              string `xml:"httpTokens"`
	HTTPPutResponseHopLimit int    `xml:"httpPutResponseHopLimit"`
	HTTPEndpoint            string `xml:"httpEndpoint"`
	HTTPProtocolIpv6        string `xml:"httpProtocolIpv6"`
	InstanceMetadataTags    string `xml:"instanceMetadataTags"`
}

// ElasticGpuAssociation links an elastic GPU to its instance.
type ElasticGpuAssociation struct {
	ElasticGpuID               string `xml:"elasticGpuId"`
	ElasticGpuAssociationID    string `xml:"elasticGpuAssociationId"`
	ElasticGpuAssociationState string `xml:"elasticGpuAssociationState"`
	ElasticGpuAssociationTime  string `xml:"elasticGpuAssociationTime"`
}

// InstanceView is the public shape of an instance.
type InstanceView struct {
	InstanceID             string                  `xml:"instanceId"`
	ImageID                string                  `xml:"imageId"`
	InstanceState          InstanceState           `xml:"instanceState"`
	PrivateDNSName         string                  `xml:"privateDnsName"`
	DNSName                string                  `xml:"dnsName"`
	Reason                 string                  `xml:"reason"`
	KeyName                string                  `xml:"keyName,omitempty"`
	AmiLaunchIndex         int                     `xml:"amiLaunchIndex"`
	InstanceType           string                  `xml:"instanceType"`
	LaunchTime             string                  `xml:"launchTime"`
	Placement              Placement               `xml:"placement"`
	Monitoring             Monitoring              `xml:"monitoring"`
	SubnetID               string                  `xml:"subnetId,omitempty"`
	VpcID                  string                  `xml:"vpcId,omitempty"`
	PrivateIPAddress       string                  `xml:"privateIpAddress"`
	PublicIPAddress        string                  `xml:"ipAddress,omitempty"`
	SourceDestCheck        bool                    `xml:"sourceDestCheck"`
	Groups                 []GroupIdentifier       `xml:"groupSet>item,omitempty"`
	StateReason            *StateReason            `xml:"stateReason,omitempty"`
	Architecture           string                  `xml:"architecture"`
	RootDeviceType         string                  `xml:"rootDeviceType"`
	RootDeviceName         string                  `xml:"rootDeviceName"`
	VirtualizationType     string                  `xml:"virtualizationType"`
	Hypervisor             string                  `xml:"hypervisor"`
	EbsOptimized           bool                    `xml:"ebsOptimized"`
	EnaSupport             bool                    `xml:"enaSupport"`
	IamInstanceProfile     *IamInstanceProfile     `xml:"iamInstanceProfile,omitempty"`
	CapacityReservationID  string                  `xml:"capacityReservationId,omitempty"`
	MetadataOptions        MetadataOptions         `xml:"metadataOptions"`
	ElasticGpuAssociations []ElasticGpuAssociation `xml:"elasticGpuAssociationSet>item,omitempty"`
	SpotInstanceRequestID  string                  `xml:"spotInstanceRequestId,omitempty"`
	InstanceLifecycle      string                  `xml:"instanceLifecycle,omitempty"`
	Tagged
}

// Instance is a stored instance. The parent references below the view are the ids this
// instance is registered under.
type Instance struct {
	InstanceView
	Dependents

	ReservationID                     string
	KeyPairID                         string
	DisableAPITermination             bool
	DisableAPIStop                    bool
	UserData                          string
	InstanceInitiatedShutdownBehavior string
	KernelID                          string
	RamdiskID                         string
	SriovNetSupport                   string
	CPUCredits                        string
	ReportedStatus                    string
}

// NewInstance returns an instance tracking bundle tasks, elastic GPUs, Elastic IPs, routes
// targeting it and active spot requests.
func NewInstance(view InstanceView) *Instance {
	return &Instance{
		InstanceView: view,
		Dependents: NewDependents(state.KindBundleTask, state.KindElasticGpu, state.KindAddress,
			state.KindRoute, state.KindSpotInstanceRequest),
		InstanceInitiatedShutdownBehavior: "stop",
	}
}

func (i *Instance) ID() string           { return i.InstanceID }
func (i *Instance) ResourceType() string { return string(types.ResourceTypeInstance) }

// SecurityGroupIDs returns the ids of the attached groups.
func (i *Instance) SecurityGroupIDs() []string {
	ids := make([]string, 0, len(i.Groups))
	for _, g := range i.Groups {
		ids = append(ids, g.GroupID)
	}
	return ids
}

// SetState moves the instance to s, keeping code and name together.
func (i *Instance) SetState(s InstanceState) {
	i.InstanceState = s
}

// View returns a detached copy of the public fields.
func (i *Instance) View() InstanceView {
	out := i.InstanceView
	out.Tags = out.Tags.Clone()
	out.Groups = append([]GroupIdentifier(nil), i.Groups...)
	out.ElasticGpuAssociations = append([]ElasticGpuAssociation(nil), i.ElasticGpuAssociations...)
	if i.StateReason != nil {
		reason := *i.StateReason
		out.StateReason = &reason
	}
	if i.IamInstanceProfile != nil {
		profile := *i.IamInstanceProfile
		out.IamInstanceProfile = &profile
	}
	return out
}

// ReservationView is the public shape of a reservation with its instances.
type ReservationView struct {
	ReservationID string            `xml:"reservationId"`
	OwnerID       string            `xml:"ownerId"`
	RequesterID   string            `xml:"requesterId,omitempty"`
	Groups        []GroupIdentifier `xml:"groupSet>item,omitempty"`
	Instances     []InstanceView    `xml:"instancesSet>item"`
}

// Reservation groups the instances of one launch. It is removed with its last instance.
type Reservation struct {
	ReservationID string
	OwnerID       string
	RequesterID   string
	Groups        []GroupIdentifier
	Dependents
}

// NewReservation returns a reservation tracking its instances.
func NewReservation(id, ownerID string, groups []GroupIdentifier) *Reservation {
	return &Reservation{
		ReservationID: id,
		OwnerID:       ownerID,
		Groups:        groups,
		Dependents:    NewDependents(state.KindInstance),
	}
}

func (r *Reservation) ID() string { return r.ReservationID }

// View renders the reservation around the given instances.
func (r *Reservation) View(instances []InstanceView) ReservationView {
	return ReservationView{
		ReservationID: r.ReservationID,
		OwnerID:       r.OwnerID,
		RequesterID:   r.RequesterID,
		Groups:        append([]GroupIdentifier(nil), r.Groups...),
		Instances:     instances,
	}
}

// KeyPairView is the public shape of a key pair.
type KeyPairView struct {
	KeyPairID      string `xml:"keyPairId"`
	KeyName        string `xml:"keyName"`
	KeyFingerprint string `xml:"keyFingerprint"`
	KeyType        string `xml:"keyType"`
	CreateTime     string `xml:"createTime"`
	PublicKey      string `xml:"publicKey,omitempty"`
	Tagged
}

// KeyPair is a stored key pair.
type KeyPair struct {
	KeyPairView
	Dependents
	PublicKeyMaterial string
}

// NewKeyPair returns a key pair tracking the instances launched with it.
func NewKeyPair(view KeyPairView) *KeyPair {
	return &KeyPair{KeyPairView: view, Dependents: NewDependents(state.KindInstance)}
}

func (k *KeyPair) ID() string           { return k.KeyPairID }
func (k *KeyPair) ResourceType() string { return string(types.ResourceTypeKeyPair) }

// View returns a detached copy of the public fields.
func (k *KeyPair) View() KeyPairView {
	out := k.KeyPairView
	out.Tags = out.Tags.Clone()
	return out
}

// ImageView is the public shape of an AMI.
type ImageView struct {
	ImageID            string `xml:"imageId"`
	ImageLocation      string `xml:"imageLocation"`
	ImageState         string `xml:"imageState"`
	ImageOwnerID       string `xml:"imageOwnerId"`
	CreationDate       string `xml:"creationDate"`
	IsPublic           bool   `xml:"isPublic"`
	Architecture       string `xml:"architecture"`
	ImageType          string `xml:"imageType"`
	Name               string `xml:"name"`
	Description        string `xml:"description,omitempty"`
	RootDeviceType     string `xml:"rootDeviceType"`
	RootDeviceName     string `xml:"rootDeviceName"`
	VirtualizationType string `xml:"virtualizationType"`
	Hypervisor         string `xml:"hypervisor"`
	PlatformDetails    string `xml:"platformDetails"`
	EnaSupport         bool   `xml:"enaSupport"`
	TpmSupport         string `xml:"tpmSupport,omitempty"`
	BootMode           string `xml:"bootMode,omitempty"`
	Tagged
}

// Image is a stored AMI.
type Image struct {
	ImageView
	Dependents
	SourceInstanceID string
}

// NewImage returns an image tracking the instances launched from it.
func NewImage(view ImageView) *Image {
	return &Image{ImageView: view, Dependents: NewDependents(state.KindInstance)}
}

func (i *Image) ID() string           { return i.ImageID }
func (i *Image) ResourceType() string { return string(types.ResourceTypeImage) }

// View returns a detached copy of the public fields.
func (i *Image) View() ImageView {
	out := i.ImageView
	out.Tags = out.Tags.Clone()
	return out
}

// CapacityReservationView is the public shape of a capacity reservation.
type CapacityReservationView struct {
	CapacityReservationID  string `xml:"capacityReservationId"`
	CapacityReservationArn string `xml:"capacityReservationArn"`
	OwnerID                string `xml:"ownerId"`
	InstanceType           string `xml:"instanceType"`
	InstancePlatform       string `xml:"instancePlatform"`
	AvailabilityZone       string `xml:"availabilityZone"`
	Tenancy                string `xml:"tenancy"`
	TotalInstanceCount     int    `xml:"totalInstanceCount"`
	AvailableInstanceCount int    `xml:"availableInstanceCount"`
	EbsOptimized           bool   `xml:"ebsOptimized"`
	State                  string `xml:"state"`
	EndDateType            string `xml:"endDateType"`
	EndDate                string `xml:"endDate,omitempty"`
	InstanceMatchCriteria  string `xml:"instanceMatchCriteria"`
	CreateDate             string `xml:"createDate"`
	Tagged
}

// CapacityReservation is a stored capacity reservation.
type CapacityReservation struct {
	CapacityReservationView
	Dependents
}

// NewCapacityReservation returns a reservation tracking the instances launched into it.
func NewCapacityReservation(view CapacityReservationView) *CapacityReservation {
	return &CapacityReservation{CapacityReservationView: view, Dependents: NewDependents(state.KindInstance)}
}

func (c *CapacityReservation) ID() string { return c.CapacityReservationID }
func (c *CapacityReservation) ResourceType() string {
	return string(types.ResourceTypeCapacityReservation)
}

// View returns a detached copy of the public fields.
func (c *CapacityReservation) View() CapacityReservationView {
	out := c.CapacityReservationView
	out.Tags = out.Tags.Clone()
	return out
}

// InstanceTypeView is the public shape of a catalog entry.
type InstanceTypeView struct {
	InstanceType      string `xml:"instanceType"`
	CurrentGeneration bool   `xml:"currentGeneration"`
	BareMetal         bool   `xml:"bareMetal"`
	Hypervisor        string `xml:"hypervisor,omitempty"`
	ProcessorInfo     struct {
		SupportedArchitectures []string `xml:"supportedArchitectures>item"`
	} `xml:"processorInfo"`
	VCPUInfo struct {
		DefaultVCpus int `xml:"defaultVCpus"`
	} `xml:"vCpuInfo"`
	MemoryInfo struct {
		SizeInMiB int `xml:"sizeInMiB"`
	} `xml:"memoryInfo"`
}

// InstanceTypeInfo is a catalog entry keyed by its type name.
type InstanceTypeInfo struct {
	InstanceTypeView
}

func (t *InstanceTypeInfo) ID() string { return t.InstanceType }

// View returns a detached copy of the public fields.
func (t *InstanceTypeInfo) View() InstanceTypeView {
	out := t.InstanceTypeView
	out.ProcessorInfo.SupportedArchitectures = append([]string(nil), t.ProcessorInfo.SupportedArchitectures...)
	return out
}

// ElasticGpuView is the public shape of an elastic GPU.
type ElasticGpuView struct {
	ElasticGpuID     string `xml:"elasticGpuId"`
	ElasticGpuType   string `xml:"elasticGpuType"`
	ElasticGpuState  string `xml:"elasticGpuState"`
	AvailabilityZone string `xml:"availabilityZone"`
	InstanceID       string `xml:"instanceId"`
	ElasticGpuHealth struct {
		Status string `xml:"status"`
	} `xml:"elasticGpuHealth"`
	Tagged
}

// ElasticGpu is a stored elastic GPU attached at launch.
type ElasticGpu struct {
	ElasticGpuView
}

func (g *ElasticGpu) ID() string           { return g.ElasticGpuID }
func (g *ElasticGpu) ResourceType() string { return string(types.ResourceTypeElasticGpu) }

// View returns a detached copy of the public fields.
func (g *ElasticGpu) View() ElasticGpuView {
	out := g.ElasticGpuView
	out.Tags = out.Tags.Clone()
	return out
}

// IamInstanceProfileAssociationView is the public shape of a profile association.
type IamInstanceProfileAssociationView struct {
	AssociationID      string             `xml:"associationId"`
	InstanceID         string             `xml:"instanceId"`
	IamInstanceProfile IamInstanceProfile `xml:"iamInstanceProfile"`
	State              string             `xml:"state"`
	Timestamp          string             `xml:"timestamp"`
}

// IamInstanceProfileAssociation is a stored profile association.
type IamInstanceProfileAssociation struct {
	IamInstanceProfileAssociationView
}

func (a *IamInstanceProfileAssociation) ID() string { return a.AssociationID }

// View returns a copy of the public fields.
func (a *IamInstanceProfileAssociation) View() IamInstanceProfileAssociationView {
	return a.IamInstanceProfileAssociationView
}

// NitroTpmKeyView is the public shape of an endorsement key.
type NitroTpmKeyView struct {
	InstanceID string `xml:"instanceId"`
	KeyType    string `xml:"keyType"`
	KeyFormat  string `xml:"keyFormat"`
	KeyValue   string `xml:"keyValue"`
}

// NitroTpmKey is an endorsement key owned by an instance.
type NitroTpmKey struct {
	NitroTpmKeyView
}

// NitroTpmKeyID builds the store key of a TPM key.
func NitroTpmKeyID(instanceID, keyType, keyFormat string) string {
	return instanceID + "|" + keyType + "|" + keyFormat
}

func (k *NitroTpmKey) ID() string { return NitroTpmKeyID(k.InstanceID, k.KeyType, k.KeyFormat) }

// View returns a copy of the public fields.
func (k *NitroTpmKey) View() NitroTpmKeyView { return k.NitroTpmKeyView }

// MacModificationTaskView is the public shape of a Mac SIP modification task.
type MacModificationTaskView struct {
	MacModificationTaskID string `xml:"macModificationTaskId"`
	InstanceID            string `xml:"instanceId"`
	TaskState             string `xml:"taskState"`
	TaskType              string `xml:"taskType"`
	StartTime             string `xml:"startTime"`
	MacSIPConfig          struct {
		Status string `xml:"status"`
	} `xml:"macSystemIntegrityProtectionConfig"`
	Tagged
}

// MacModificationTask is a stored modification task.
type MacModificationTask struct {
	MacModificationTaskView
}

func (m *MacModificationTask) ID() string           { return m.MacModificationTaskID }
func (m *MacModificationTask) ResourceType() string { return "mac-modification-task" }

// View returns a detached copy of the public fields.
func (m *MacModificationTask) View() MacModificationTaskView {
	out := m.MacModificationTaskView
	out.Tags = out.Tags.Clone()
	return out
}
