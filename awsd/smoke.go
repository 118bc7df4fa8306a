package awsd

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/awsd/models"
	"ec2emulator/errors"
)

// SmokeOptions sizes a smoke run.
type SmokeOptions struct {
	VpcCidr      string
	SubnetCidr   string
	InstanceType string
	Count        int32
}

// DefaultSmokeOptions launches one m1.small into a /24.
func DefaultSmokeOptions() SmokeOptions {
	return SmokeOptions{
		VpcCidr:      "10.42.0.0/16",
		SubnetCidr:   "10.42.1.0/24",
		InstanceType: "m1.small",
		Count:        1,
	}
}

// Smoke builds a VPC, subnet, image and instances, checks that the VPC cannot be deleted
// while they exist, then tears everything down again. Resources created before a failure
// are left in place and listed in the returned report.
func (a *AwsClient) Smoke(ctx context.Context, opts SmokeOptions) (*models.SmokeReport, error) {
	log := a.log.With(zap.String("operation", "Smoke"))
	report := &models.SmokeReport{}
	step := func(name, resource string) {
		report.Steps = append(report.Steps, models.SmokeStep{Name: name, Resource: resource})
		log.Info("Smoke step passed", zap.String("step", name), zap.String("resource", resource))
	}

	vpc, err := a.client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock: aws.String(opts.VpcCidr),
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeVpc,
			Tags:         []types.Tag{{Key: aws.String("Name"), Value: aws.String("smoke")}},
		}},
	})
	if err != nil {
		return report, apiError("CreateVpc", err)
	}
	report.VpcID = aws.ToString(vpc.Vpc.VpcId)
	step("CreateVpc", report.VpcID)

	subnet, err := a.client.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:     aws.String(report.VpcID),
		CidrBlock: aws.String(opts.SubnetCidr),
	})
	if err != nil {
		return report, apiError("CreateSubnet", err)
	}
	report.SubnetID = aws.ToString(subnet.Subnet.SubnetId)
	step("CreateSubnet", report.SubnetID)

	image, err := a.client.RegisterImage(ctx, &ec2.RegisterImageInput{
		Name:         aws.String("smoke-" + report.VpcID),
		Architecture: types.ArchitectureValuesX8664,
	})
	if err != nil {
		return report, apiError("RegisterImage", err)
	}
	report.ImageID = aws.ToString(image.ImageId)
	step("RegisterImage", report.ImageID)

	run, err := a.client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:      aws.String(report.ImageID),
		InstanceType: types.InstanceType(opts.InstanceType),
		MinCount:     aws.Int32(opts.Count),
		MaxCount:     aws.Int32(opts.Count),
		SubnetId:     aws.String(report.SubnetID),
	})
	if err != nil {
		return report, apiError("RunInstances", err)
	}
	for _, i := range run.Instances {
		report.InstanceIDs = append(report.InstanceIDs, aws.ToString(i.InstanceId))
	}
	step("RunInstances", aws.ToString(run.ReservationId))

	_, err = a.client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(report.VpcID)})
	if err == nil {
		return report, errors.New(errors.ErrIntegrity, "VPC with live subnet was deleted",
			map[string]interface{}{"vpc_id": report.VpcID}, nil)
	}
	if mapped := apiError("DeleteVpc", err); !errors.Is(mapped, errors.ErrDependencyViolation) {
		return report, mapped
	}
	step("DeleteVpcBlocked", report.VpcID)

	if _, err := a.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: report.InstanceIDs}); err != nil {
		return report, apiError("TerminateInstances", err)
	}
	step("TerminateInstances", report.SubnetID)

	if _, err := a.client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(report.SubnetID)}); err != nil {
		return report, apiError("DeleteSubnet", err)
	}
	step("DeleteSubnet", report.SubnetID)

	if _, err := a.client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(report.VpcID)}); err != nil {
		return report, apiError("DeleteVpc", err)
	}
	step("DeleteVpc", report.VpcID)

	return report, nil
}
