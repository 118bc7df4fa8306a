package api

import (
	"ec2emulator/backends"
)

// Routes registers every supported action against be.
func Routes(be *backends.Backends) *Registry {
	r := NewRegistry()

	r.Register("CreateVpc", Bind(be.Vpcs.CreateVpc))
	r.Register("DeleteVpc", Bind(be.Vpcs.DeleteVpc))
	r.Register("DescribeVpcAttribute", Bind(be.Vpcs.DescribeVpcAttribute))
	r.Register("DescribeVpcs", Bind(be.Vpcs.DescribeVpcs))
	r.Register("ModifyVpcAttribute", Bind(be.Vpcs.ModifyVpcAttribute))

	r.Register("CreateSubnet", Bind(be.Subnets.CreateSubnet))
	r.Register("DeleteSubnet", Bind(be.Subnets.DeleteSubnet))
	r.Register("DescribeSubnets", Bind(be.Subnets.DescribeSubnets))
	r.Register("ModifySubnetAttribute", Bind(be.Subnets.ModifySubnetAttribute))

	r.Register("CreateSecurityGroup", Bind(be.SecurityGroups.CreateSecurityGroup))
	r.Register("DeleteSecurityGroup", Bind(be.SecurityGroups.DeleteSecurityGroup))
	r.Register("DescribeSecurityGroups", Bind(be.SecurityGroups.DescribeSecurityGroups))

	r.Register("CreateKeyPair", Bind(be.KeyPairs.CreateKeyPair))
	r.Register("DeleteKeyPair", Bind(be.KeyPairs.DeleteKeyPair))
	r.Register("DescribeKeyPairs", Bind(be.KeyPairs.DescribeKeyPairs))
	r.Register("ImportKeyPair", Bind(be.KeyPairs.ImportKeyPair))

	r.Register("CreateImage", Bind(be.Images.CreateImage))
	r.Register("DeregisterImage", Bind(be.Images.DeregisterImage))
	r.Register("DescribeImages", Bind(be.Images.DescribeImages))
	r.Register("RegisterImage", Bind(be.Images.RegisterImage))

	r.Register("DescribeInstanceTypes", Bind(be.InstanceTypes.DescribeInstanceTypes))

	r.Register("DescribeInstanceAttribute", Bind(be.Instances.DescribeInstanceAttribute))
	r.Register("DescribeInstanceCreditSpecifications", Bind(be.Instances.DescribeInstanceCreditSpecifications))
	r.Register("DescribeInstanceStatus", Bind(be.Instances.DescribeInstanceStatus))
	r.Register("DescribeInstances", Bind(be.Instances.DescribeInstances))
	r.Register("ModifyInstanceAttribute", Bind(be.Instances.ModifyInstanceAttribute))
	r.Register("ModifyInstanceCreditSpecification", Bind(be.Instances.ModifyInstanceCreditSpecification))
	r.Register("ModifyInstanceMetadataOptions", Bind(be.Instances.ModifyInstanceMetadataOptions))
	r.Register("MonitorInstances", Bind(be.Instances.MonitorInstances))
	r.Register("RebootInstances", Bind(be.Instances.RebootInstances))
	r.Register("ReportInstanceStatus", Bind(be.Instances.ReportInstanceStatus))
	r.Register("ResetInstanceAttribute", Bind(be.Instances.ResetInstanceAttribute))
	r.Register("RunInstances", Bind(be.Instances.RunInstances))
	r.Register("SendDiagnosticInterrupt", Bind(be.Instances.SendDiagnosticInterrupt))
	r.Register("StartInstances", Bind(be.Instances.StartInstances))
	r.Register("StopInstances", Bind(be.Instances.StopInstances))
	r.Register("TerminateInstances", Bind(be.Instances.TerminateInstances))
	r.Register("UnmonitorInstances", Bind(be.Instances.UnmonitorInstances))

	r.Register("CancelCapacityReservation", Bind(be.CapacityReservations.CancelCapacityReservation))
	r.Register("CreateCapacityReservation", Bind(be.CapacityReservations.CreateCapacityReservation))
	r.Register("DescribeCapacityReservations", Bind(be.CapacityReservations.DescribeCapacityReservations))
	r.Register("ModifyCapacityReservation", Bind(be.CapacityReservations.ModifyCapacityReservation))

	r.Register("AssociateIamInstanceProfile", Bind(be.IamProfiles.AssociateIamInstanceProfile))
	r.Register("DescribeIamInstanceProfileAssociations", Bind(be.IamProfiles.DescribeIamInstanceProfileAssociations))
	r.Register("DisassociateIamInstanceProfile", Bind(be.IamProfiles.DisassociateIamInstanceProfile))
	r.Register("ReplaceIamInstanceProfileAssociation", Bind(be.IamProfiles.ReplaceIamInstanceProfileAssociation))

	r.Register("AllocateAddress", Bind(be.Addresses.AllocateAddress))
	r.Register("AssociateAddress", Bind(be.Addresses.AssociateAddress))
	r.Register("DescribeAddresses", Bind(be.Addresses.DescribeAddresses))
	r.Register("DisassociateAddress", Bind(be.Addresses.DisassociateAddress))
	r.Register("ReleaseAddress", Bind(be.Addresses.ReleaseAddress))

	r.Register("AssociateRouteTable", Bind(be.RouteTables.AssociateRouteTable))
	r.Register("CreateRoute", Bind(be.RouteTables.CreateRoute))
	r.Register("CreateRouteTable", Bind(be.RouteTables.CreateRouteTable))
	r.Register("DeleteRoute", Bind(be.RouteTables.DeleteRoute))
	r.Register("DeleteRouteTable", Bind(be.RouteTables.DeleteRouteTable))
	r.Register("DescribeRouteTables", Bind(be.RouteTables.DescribeRouteTables))
	r.Register("DisassociateRouteTable", Bind(be.RouteTables.DisassociateRouteTable))
	r.Register("ReplaceRoute", Bind(be.RouteTables.ReplaceRoute))
	r.Register("ReplaceRouteTableAssociation", Bind(be.RouteTables.ReplaceRouteTableAssociation))

	r.Register("BundleInstance", Bind(be.BundleTasks.BundleInstance))
	r.Register("CancelBundleTask", Bind(be.BundleTasks.CancelBundleTask))
	r.Register("DescribeBundleTasks", Bind(be.BundleTasks.DescribeBundleTasks))

	r.Register("DescribeElasticGpus", Bind(be.ElasticGpus.DescribeElasticGpus))

	r.Register("CancelSpotInstanceRequests", Bind(be.SpotInstances.CancelSpotInstanceRequests))
	r.Register("DescribeSpotInstanceRequests", Bind(be.SpotInstances.DescribeSpotInstanceRequests))
	r.Register("RequestSpotInstances", Bind(be.SpotInstances.RequestSpotInstances))

	r.Register("CancelSpotFleetRequests", Bind(be.SpotFleets.CancelSpotFleetRequests))
	r.Register("DescribeSpotFleetRequests", Bind(be.SpotFleets.DescribeSpotFleetRequests))
	r.Register("ModifySpotFleetRequest", Bind(be.SpotFleets.ModifySpotFleetRequest))
	r.Register("RequestSpotFleet", Bind(be.SpotFleets.RequestSpotFleet))

	r.Register("CreateFlowLogs", Bind(be.FlowLogs.CreateFlowLogs))
	r.Register("DeleteFlowLogs", Bind(be.FlowLogs.DeleteFlowLogs))
	r.Register("DescribeFlowLogs", Bind(be.FlowLogs.DescribeFlowLogs))

	r.Register("CreateVerifiedAccessEndpoint", Bind(be.VerifiedAccess.CreateVerifiedAccessEndpoint))
	r.Register("CreateVerifiedAccessGroup", Bind(be.VerifiedAccess.CreateVerifiedAccessGroup))
	r.Register("CreateVerifiedAccessInstance", Bind(be.VerifiedAccess.CreateVerifiedAccessInstance))
	r.Register("DeleteVerifiedAccessEndpoint", Bind(be.VerifiedAccess.DeleteVerifiedAccessEndpoint))
	r.Register("DeleteVerifiedAccessGroup", Bind(be.VerifiedAccess.DeleteVerifiedAccessGroup))
	r.Register("DeleteVerifiedAccessInstance", Bind(be.VerifiedAccess.DeleteVerifiedAccessInstance))
	r.Register("DescribeVerifiedAccessEndpoints", Bind(be.VerifiedAccess.DescribeVerifiedAccessEndpoints))
	r.Register("DescribeVerifiedAccessGroups", Bind(be.VerifiedAccess.DescribeVerifiedAccessGroups))
	r.Register("DescribeVerifiedAccessInstances", Bind(be.VerifiedAccess.DescribeVerifiedAccessInstances))
	r.Register("GetVerifiedAccessGroupPolicy", Bind(be.VerifiedAccess.GetVerifiedAccessGroupPolicy))
	r.Register("ModifyVerifiedAccessEndpoint", Bind(be.VerifiedAccess.ModifyVerifiedAccessEndpoint))
	r.Register("ModifyVerifiedAccessGroup", Bind(be.VerifiedAccess.ModifyVerifiedAccessGroup))
	r.Register("ModifyVerifiedAccessGroupPolicy", Bind(be.VerifiedAccess.ModifyVerifiedAccessGroupPolicy))
	r.Register("ModifyVerifiedAccessInstance", Bind(be.VerifiedAccess.ModifyVerifiedAccessInstance))

	r.Register("CancelExportTask", Bind(be.ExportTasks.CancelExportTask))
	r.Register("CreateInstanceExportTask", Bind(be.ExportTasks.CreateInstanceExportTask))
	r.Register("DescribeExportTasks", Bind(be.ExportTasks.DescribeExportTasks))

	r.Register("CreateTransitGateway", Bind(be.TransitGateways.CreateTransitGateway))
	r.Register("DeleteTransitGateway", Bind(be.TransitGateways.DeleteTransitGateway))
	r.Register("DescribeTransitGateways", Bind(be.TransitGateways.DescribeTransitGateways))

	r.Register("CreateVpnConcentrator", Bind(be.VpnConcentrators.CreateVpnConcentrator))
	r.Register("DeleteVpnConcentrator", Bind(be.VpnConcentrators.DeleteVpnConcentrator))
	r.Register("DescribeVpnConcentrators", Bind(be.VpnConcentrators.DescribeVpnConcentrators))

	r.Register("GetInstanceTpmEkPub", Bind(be.NitroTpm.GetInstanceTpmEkPub))

	r.Register("CreateMacSystemIntegrityProtectionModificationTask", Bind(be.MacModifications.CreateMacSystemIntegrityProtectionModificationTask))
	r.Register("DescribeMacModificationTasks", Bind(be.MacModifications.DescribeMacModificationTasks))

	r.Register("CreateSpotDatafeedSubscription", Bind(be.AccountDefaults.CreateSpotDatafeedSubscription))
	r.Register("DeleteSpotDatafeedSubscription", Bind(be.AccountDefaults.DeleteSpotDatafeedSubscription))
	r.Register("DescribeSpotDatafeedSubscription", Bind(be.AccountDefaults.DescribeSpotDatafeedSubscription))
	r.Register("GetDefaultCreditSpecification", Bind(be.AccountDefaults.GetDefaultCreditSpecification))
	r.Register("GetInstanceMetadataDefaults", Bind(be.AccountDefaults.GetInstanceMetadataDefaults))
	r.Register("ModifyDefaultCreditSpecification", Bind(be.AccountDefaults.ModifyDefaultCreditSpecification))
	r.Register("ModifyInstanceMetadataDefaults", Bind(be.AccountDefaults.ModifyInstanceMetadataDefaults))

	r.Register("CreateTags", Bind(be.Tags.CreateTags))
	r.Register("DeleteTags", Bind(be.Tags.DeleteTags))
	r.Register("DescribeTags", Bind(be.Tags.DescribeTags))
	return r
}
