// Package awsd talks to a running emulator through the aws-sdk-go-v2 EC2 client.
package awsd

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"ec2emulator/awsd/models"
	"ec2emulator/configuration"
	"ec2emulator/errors"
)

const packageName = "awsd"

// EC2API is the part of the EC2 client used against the emulator.
type EC2API interface {
	ec2.DescribeInstancesAPIClient
	ec2.DescribeVpcsAPIClient
	CreateVpc(ctx context.Context, params *ec2.CreateVpcInput, optFns ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error)
	DeleteVpc(ctx context.Context, params *ec2.DeleteVpcInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error)
	CreateSubnet(ctx context.Context, params *ec2.CreateSubnetInput, optFns ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error)
	DeleteSubnet(ctx context.Context, params *ec2.DeleteSubnetInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error)
	RegisterImage(ctx context.Context, params *ec2.RegisterImageInput, optFns ...func(*ec2.Options)) (*ec2.RegisterImageOutput, error)
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

type AwsClient struct {
	client EC2API
	log    *zap.Logger
}

// NewEC2ClientWithConfig builds a client for the emulator listening at endpoint.
func NewEC2ClientWithConfig(cfg aws.Config, endpoint string) *AwsClient {
	return &AwsClient{
		client: ec2.NewFromConfig(cfg, func(o *ec2.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}),
		log: zap.L().With(zap.String("package", packageName)),
	}
}

// NewEC2Client creates a client for the emulator at cfg.EmulatorURL with static credentials.
func NewEC2Client(ctx context.Context, cfg *configuration.Config) (*AwsClient, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.AWSRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessSecret, "")),
		config.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, errors.New(errors.ErrAWSClient, "failed to load AWS SDK configuration",
			map[string]interface{}{"region": cfg.AWSRegion}, err)
	}
	return NewEC2ClientWithConfig(awsCfg, cfg.EmulatorURL), nil
}

// apiError maps SDK failures to a CustomError carrying the EC2 error code.
func apiError(operation string, err error) error {
	var ae smithy.APIError
	if stderrors.As(err, &ae) {
		return errors.New(errors.ErrorType(ae.ErrorCode()), ae.ErrorMessage(),
			map[string]interface{}{"operation": operation}, err)
	}
	return errors.New(errors.ErrAWSClient, fmt.Sprintf("%s failed", operation),
		map[string]interface{}{"operation": operation}, err)
}

// ListInstances returns every instance, following pagination.
func (a *AwsClient) ListInstances(ctx context.Context) ([]models.Instance, error) {
	paginator := ec2.NewDescribeInstancesPaginator(a.client, &ec2.DescribeInstancesInput{})
	result := make([]models.Instance, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apiError("DescribeInstances", err)
		}
		for _, reservation := range page.Reservations {
			for _, i := range reservation.Instances {
				result = append(result, parseInstance(i))
			}
		}
	}
	a.log.Debug("Instances listed", zap.String("operation", "ListInstances"), zap.Int("count", len(result)))
	return result, nil
}

// ListVpcs returns every VPC, following pagination.
func (a *AwsClient) ListVpcs(ctx context.Context) ([]models.Vpc, error) {
	paginator := ec2.NewDescribeVpcsPaginator(a.client, &ec2.DescribeVpcsInput{})
	result := make([]models.Vpc, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, apiError("DescribeVpcs", err)
		}
		for _, v := range page.Vpcs {
			result = append(result, models.Vpc{
				VpcID:     aws.ToString(v.VpcId),
				CidrBlock: aws.ToString(v.CidrBlock),
				State:     string(v.State),
				IsDefault: aws.ToBool(v.IsDefault),
				Tags:      parseTags(v.Tags),
			})
		}
	}
	return result, nil
}

func parseInstance(i types.Instance) models.Instance {
	state := ""
	if i.State != nil {
		state = string(i.State.Name)
	}
	launch := ""
	if i.LaunchTime != nil {
		launch = i.LaunchTime.UTC().Format("2006-01-02T15:04:05Z")
	}
	return models.Instance{
		InstanceID:     aws.ToString(i.InstanceId),
		InstanceType:   string(i.InstanceType),
		AMI:            aws.ToString(i.ImageId),
		State:          state,
		SubnetID:       aws.ToString(i.SubnetId),
		VpcID:          aws.ToString(i.VpcId),
		PrivateIP:      aws.ToString(i.PrivateIpAddress),
		PublicIP:       aws.ToString(i.PublicIpAddress),
		KeyName:        aws.ToString(i.KeyName),
		LaunchTime:     launch,
		PrivateDnsName: aws.ToString(i.PrivateDnsName),
		SecurityGroups: parseSecurityGroups(i.SecurityGroups),
		Tags:           parseTags(i.Tags),
	}
}

// Helper function to parse security groups
func parseSecurityGroups(groups []types.GroupIdentifier) []models.SecurityGroup {
	result := make([]models.SecurityGroup, 0)
	for _, group := range groups {
		result = append(result, models.SecurityGroup{
			GroupId:   aws.ToString(group.GroupId),
			GroupName: aws.ToString(group.GroupName),
		})
	}
	return result
}

func parseTags(tags []types.Tag) map[string]string {
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		if tag.Key != nil {
			result[*tag.Key] = aws.ToString(tag.Value)
		}
	}
	return result
}
