package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec2emulator/errors"
	"ec2emulator/params"
)

func TestSpotFleetRequests(t *testing.T) {
	be := newBackends(t)

	invalid := []struct {
		name    string
		p       params.Params
		errType errors.ErrorType
	}{
		{name: "missing role", p: params.Params{"SpotFleetRequestConfig.TargetCapacity": "2"}, errType: errors.ErrMissingParameter},
		{name: "zero capacity", p: params.Params{
			"SpotFleetRequestConfig.IamFleetRole": "arn:aws:iam::123456789012:role/fleet", "SpotFleetRequestConfig.TargetCapacity": "0",
		}, errType: errors.ErrInvalidParameterValue},
		{name: "on demand above target", p: params.Params{
			"SpotFleetRequestConfig.IamFleetRole": "arn:aws:iam::123456789012:role/fleet", "SpotFleetRequestConfig.TargetCapacity": "2",
			"SpotFleetRequestConfig.OnDemandTargetCapacity": "3",
		}, errType: errors.ErrInvalidParameterValue},
		{name: "unknown strategy", p: params.Params{
			"SpotFleetRequestConfig.IamFleetRole": "arn:aws:iam::123456789012:role/fleet", "SpotFleetRequestConfig.TargetCapacity": "2",
			"SpotFleetRequestConfig.AllocationStrategy": "cheapest",
		}, errType: errors.ErrInvalidParameterValue},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := be.SpotFleets.RequestSpotFleet(tt.p)
			assertErrorType(t, err, tt.errType)
		})
	}

	fleet, err := be.SpotFleets.RequestSpotFleet(params.Params{
		"SpotFleetRequestConfig.IamFleetRole":   "arn:aws:iam::123456789012:role/fleet",
		"SpotFleetRequestConfig.TargetCapacity": "4",
	})
	require.NoError(t, err)
	id := fleet.SpotFleetRequestID

	_, err = be.SpotFleets.ModifySpotFleetRequest(params.Params{"SpotFleetRequestId": id, "TargetCapacity": "6"})
	require.NoError(t, err)

	described, err := be.SpotFleets.DescribeSpotFleetRequests(params.Params{"SpotFleetRequestId.1": id})
	require.NoError(t, err)
	require.Len(t, described.SpotFleetRequestConfigs, 1)
	assert.Equal(t, 6, described.SpotFleetRequestConfigs[0].SpotFleetRequestConfig.TargetCapacity)
	assert.Equal(t, "active", described.SpotFleetRequestConfigs[0].SpotFleetRequestState)

	_, err = be.SpotFleets.CancelSpotFleetRequests(params.Params{
		"SpotFleetRequestId.1": id, "SpotFleetRequestId.2": "sfr-00000000000000000", "TerminateInstances": "true",
	})
	assertErrorType(t, err, "InvalidSpotFleetRequestId.NotFound")

	cancelled, err := be.SpotFleets.CancelSpotFleetRequests(params.Params{"SpotFleetRequestId.1": id, "TerminateInstances": "true"})
	require.NoError(t, err)
	require.Len(t, cancelled.Successful, 1)
	assert.Equal(t, "cancelled_terminating", cancelled.Successful[0].CurrentSpotFleetRequestState)
	assert.Equal(t, "active", cancelled.Successful[0].PreviousSpotFleetRequestState)

	again, err := be.SpotFleets.CancelSpotFleetRequests(params.Params{"SpotFleetRequestId.1": id, "TerminateInstances": "false"})
	require.NoError(t, err)
	assert.Empty(t, again.Successful)
	require.Len(t, again.Unsuccessful, 1)
	assert.Equal(t, "fleetRequestNotInCancellableState", again.Unsuccessful[0].Error.Code)

	_, err = be.SpotFleets.ModifySpotFleetRequest(params.Params{"SpotFleetRequestId": id, "TargetCapacity": "1"})
	assertErrorType(t, err, errors.ErrIncorrectState)
}

func TestInstanceExportTasks(t *testing.T) {
	f := newFixture(t)
	id := f.launch(1, nil)[0]

	_, err := f.be.ExportTasks.CreateInstanceExportTask(params.Params{
		"InstanceId": id, "TargetEnvironment": "openstack", "ExportToS3.S3Bucket": "exports",
	})
	assertErrorType(t, err, errors.ErrInvalidParameterValue)

	resp, err := f.be.ExportTasks.CreateInstanceExportTask(params.Params{
		"InstanceId":          id,
		"TargetEnvironment":   "vmware",
		"ExportToS3.S3Bucket": "exports",
		"ExportToS3.S3Prefix": "vms/",
	})
	require.NoError(t, err)
	task := resp.ExportTask
	assert.Equal(t, "active", task.State)
	assert.Equal(t, "VMDK", task.ExportToS3.DiskImageFormat)
	assert.Equal(t, "vms/"+task.ExportTaskID+".vmdk", task.ExportToS3.S3Key)
	assert.Regexp(t, `^export-i-[0-9a-f]{17}$`, task.ExportTaskID)

	_, err = f.be.ExportTasks.CancelExportTask(params.Params{"ExportTaskId": task.ExportTaskID})
	require.NoError(t, err)
	_, err = f.be.ExportTasks.CancelExportTask(params.Params{"ExportTaskId": task.ExportTaskID})
	assertErrorType(t, err, errors.ErrIncorrectState)

	described, err := f.be.ExportTasks.DescribeExportTasks(params.Params{"ExportTaskId.1": task.ExportTaskID})
	require.NoError(t, err)
	require.Len(t, described.ExportTasks, 1)
	assert.Equal(t, "cancelled", described.ExportTasks[0].State)
}

func TestDefaultCreditSpecification_AppliesToLaunches(t *testing.T) {
	f := newFixture(t)

	_, err := f.be.AccountDefaults.ModifyDefaultCreditSpecification(params.Params{"InstanceFamily": "m5", "CpuCredits": "standard"})
	assertErrorType(t, err, errors.ErrInvalidParameterValue)

	resp, err := f.be.AccountDefaults.ModifyDefaultCreditSpecification(params.Params{"InstanceFamily": "t3", "CpuCredits": "standard"})
	require.NoError(t, err)
	assert.Equal(t, "standard", resp.Specification.CPUCredits)

	got, err := f.be.AccountDefaults.GetDefaultCreditSpecification(params.Params{"InstanceFamily": "t3"})
	require.NoError(t, err)
	assert.Equal(t, "standard", got.Specification.CPUCredits)

	id := f.launch(1, params.Params{"InstanceType": "t3.micro"})[0]
	assert.Equal(t, "standard", f.instance(id).CPUCredits)

	id = f.launch(1, params.Params{"InstanceType": "t3.micro", "CreditSpecification.CpuCredits": "unlimited"})[0]
	assert.Equal(t, "unlimited", f.instance(id).CPUCredits)
}
