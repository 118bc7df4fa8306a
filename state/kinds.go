package state

import (
	"strings"

	"ec2emulator/errors"
)

// Kind names one category of emulated EC2 object. Every kind owns a table in the Store.
type Kind string

const (
	KindVpc                           Kind = "vpc"
	KindSubnet                        Kind = "subnet"
	KindSecurityGroup                 Kind = "security-group"
	KindKeyPair                       Kind = "key-pair"
	KindImage                         Kind = "image"
	KindCapacityReservation           Kind = "capacity-reservation"
	KindInstanceType                  Kind = "instance-type"
	KindInstance                      Kind = "instance"
	KindReservation                   Kind = "reservation"
	KindIamInstanceProfileAssociation Kind = "iam-instance-profile-association"
	KindAddress                       Kind = "elastic-ip"
	KindAddressAssociation            Kind = "elastic-ip-association"
	KindRouteTable                    Kind = "route-table"
	KindRouteTableAssociation         Kind = "route-table-association"
	KindRoute                         Kind = "route"
	KindBundleTask                    Kind = "bundle-task"
	KindElasticGpu                    Kind = "elastic-gpu"
	KindSpotInstanceRequest           Kind = "spot-instances-request"
	KindSpotFleetRequest              Kind = "spot-fleet-request"
	KindFlowLog                       Kind = "vpc-flow-log"
	KindVerifiedAccessInstance        Kind = "verified-access-instance"
	KindVerifiedAccessGroup           Kind = "verified-access-group"
	KindVerifiedAccessEndpoint        Kind = "verified-access-endpoint"
	KindExportTask                    Kind = "export-instance-task"
	KindTransitGateway                Kind = "transit-gateway"
	KindTransitGatewayAttachment      Kind = "transit-gateway-attachment"
	KindVpnConcentrator               Kind = "vpn-concentrator"
	KindNitroTpmKey                   Kind = "nitro-tpm-key"
	KindMacModificationTask           Kind = "mac-modification-task"
)

// KindSpec describes how ids of a kind look and how a missing id is reported.
type KindSpec struct {
	Prefix       string
	NotFoundCode errors.ErrorType
	Noun         string
}

var kindSpecs = map[Kind]KindSpec{
	KindVpc:                           {Prefix: "vpc", NotFoundCode: "InvalidVpcID.NotFound", Noun: "vpc ID"},
	KindSubnet:                        {Prefix: "subnet", NotFoundCode: "InvalidSubnetID.NotFound", Noun: "subnet ID"},
	KindSecurityGroup:                 {Prefix: "sg", NotFoundCode: "InvalidGroup.NotFound", Noun: "security group"},
	KindKeyPair:                       {Prefix: "key", NotFoundCode: "InvalidKeyPair.NotFound", Noun: "key pair"},
	KindImage:                         {Prefix: "ami", NotFoundCode: "InvalidAMIID.NotFound", Noun: "image ID"},
	KindCapacityReservation:           {Prefix: "cr", NotFoundCode: "InvalidCapacityReservationId.NotFound", Noun: "capacity reservation ID"},
	KindInstanceType:                  {NotFoundCode: "InvalidInstanceType.NotFound", Noun: "instance type"},
	KindInstance:                      {Prefix: "i", NotFoundCode: "InvalidInstanceID.NotFound", Noun: "instance ID"},
	KindReservation:                   {Prefix: "r", NotFoundCode: "InvalidReservationID.NotFound", Noun: "reservation ID"},
	KindIamInstanceProfileAssociation: {Prefix: "iip-assoc", NotFoundCode: "InvalidAssociationID.NotFound", Noun: "association ID"},
	KindAddress:                       {Prefix: "eipalloc", NotFoundCode: "InvalidAllocationID.NotFound", Noun: "allocation ID"},
	KindAddressAssociation:            {Prefix: "eipassoc", NotFoundCode: "InvalidAssociationID.NotFound", Noun: "association ID"},
	KindRouteTable:                    {Prefix: "rtb", NotFoundCode: "InvalidRouteTableID.NotFound", Noun: "route table ID"},
	KindRouteTableAssociation:         {Prefix: "rtbassoc", NotFoundCode: "InvalidAssociationID.NotFound", Noun: "association ID"},
	KindRoute:                         {NotFoundCode: "InvalidRoute.NotFound", Noun: "route"},
	KindBundleTask:                    {Prefix: "bun", NotFoundCode: "InvalidBundleID.NotFound", Noun: "bundle ID"},
	KindElasticGpu:                    {Prefix: "egpu", NotFoundCode: "InvalidElasticGpuID.NotFound", Noun: "elastic GPU ID"},
	KindSpotInstanceRequest:           {Prefix: "sir", NotFoundCode: "InvalidSpotInstanceRequestID.NotFound", Noun: "spot instance request ID"},
	KindSpotFleetRequest:              {Prefix: "sfr", NotFoundCode: "InvalidSpotFleetRequestId.NotFound", Noun: "spot fleet request ID"},
	KindFlowLog:                       {Prefix: "fl", NotFoundCode: "InvalidFlowLogId.NotFound", Noun: "flow log ID"},
	KindVerifiedAccessInstance:        {Prefix: "vai", NotFoundCode: "InvalidVerifiedAccessInstanceId.NotFound", Noun: "Verified Access instance ID"},
	KindVerifiedAccessGroup:           {Prefix: "vagr", NotFoundCode: "InvalidVerifiedAccessGroupId.NotFound", Noun: "Verified Access group ID"},
	KindVerifiedAccessEndpoint:        {Prefix: "vae", NotFoundCode: "InvalidVerifiedAccessEndpointId.NotFound", Noun: "Verified Access endpoint ID"},
	KindExportTask:                    {Prefix: "export-i", NotFoundCode: "InvalidExportTaskID.NotFound", Noun: "export task ID"},
	KindTransitGateway:                {Prefix: "tgw", NotFoundCode: "InvalidTransitGatewayID.NotFound", Noun: "transit gateway ID"},
	KindTransitGatewayAttachment:      {Prefix: "tgw-attach", NotFoundCode: "InvalidTransitGatewayAttachmentID.NotFound", Noun: "transit gateway attachment ID"},
	KindVpnConcentrator:               {Prefix: "vcn", NotFoundCode: "InvalidVpnConcentratorId.NotFound", Noun: "VPN concentrator ID"},
	KindNitroTpmKey:                   {NotFoundCode: "InvalidInstanceID.NotFound", Noun: "instance ID"},
	KindMacModificationTask:           {Prefix: "macmodification", NotFoundCode: "InvalidMacModificationTaskId.NotFound", Noun: "Mac modification task ID"},
}

// Kinds lists every known kind in a fixed order. Operations touching several kinds
// visit them in this order.
func Kinds() []Kind {
	return []Kind{
		KindVpc, KindSubnet, KindSecurityGroup, KindKeyPair, KindImage, KindCapacityReservation,
		KindInstanceType, KindInstance, KindReservation, KindIamInstanceProfileAssociation,
		KindAddress, KindAddressAssociation, KindRouteTable, KindRouteTableAssociation, KindRoute,
		KindBundleTask, KindElasticGpu, KindSpotInstanceRequest, KindSpotFleetRequest, KindFlowLog,
		KindVerifiedAccessInstance, KindVerifiedAccessGroup, KindVerifiedAccessEndpoint,
		KindExportTask, KindTransitGateway, KindTransitGatewayAttachment, KindVpnConcentrator,
		KindNitroTpmKey, KindMacModificationTask,
	}
}

// Spec returns the metadata of a kind. Unknown kinds are programming errors.
func (k Kind) Spec() KindSpec {
	spec, ok := kindSpecs[k]
	if !ok {
		panic("state: unknown kind " + string(k))
	}
	return spec
}

// NotFound builds the kind specific NotFound error for the given ids.
func (k Kind) NotFound(ids ...string) *errors.CustomError {
	spec := k.Spec()
	return errors.NotFound(spec.NotFoundCode, spec.Noun, ids...)
}

// KindForID guesses the kind of an id from its prefix. The longest matching prefix wins
// so "tgw-attach-..." is not taken for a transit gateway.
func KindForID(id string) (Kind, bool) {
	var (
		best    Kind
		bestLen int
	)
	for kind, spec := range kindSpecs {
		if spec.Prefix == "" {
			continue
		}
		if strings.HasPrefix(id, spec.Prefix+"-") && len(spec.Prefix) > bestLen {
			best, bestLen = kind, len(spec.Prefix)
		}
	}
	return best, bestLen > 0
}
