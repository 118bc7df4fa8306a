package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec2emulator/errors"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

func TestRunInstances_RegistersWithEveryParent(t *testing.T) {
	f := newFixture(t)
	ids := f.launch(2, nil)
	require.Len(t, ids, 2)

	s := f.be.Store()
	vpc, _ := state.Get[*resources.Vpc](s, state.KindVpc, f.vpcID)
	subnet, _ := state.Get[*resources.Subnet](s, state.KindSubnet, f.subnetID)
	sg, _ := state.Get[*resources.SecurityGroup](s, state.KindSecurityGroup, f.groupID)
	img, _ := state.Get[*resources.Image](s, state.KindImage, f.imageID)
	key, found := keyPairByName(s, f.keyName)
	require.True(t, found)

	parents := map[string]resources.HasDependents{"vpc": vpc, "subnet": subnet, "group": sg, "image": img, "key": key}
	for _, id := range ids {
		inst := f.instance(id)
		assert.Equal(t, resources.StateRunning, inst.InstanceState)
		assert.Equal(t, f.vpcID, inst.VpcID)
		assert.Equal(t, f.keyName, inst.KeyName)
		for name, parent := range parents {
			assert.True(t, parent.HasChild(state.KindInstance, id), "%s does not list %s", name, id)
		}
	}
	assert.Equal(t, 249, subnet.AvailableIPAddressCount)
	assert.NotEqual(t, f.instance(ids[0]).PrivateIPAddress, f.instance(ids[1]).PrivateIPAddress)

	require.NoError(t, f.terminate(ids[0]))
	for name, parent := range parents {
		assert.False(t, parent.HasChild(state.KindInstance, ids[0]), "%s still lists %s", name, ids[0])
		assert.True(t, parent.HasChild(state.KindInstance, ids[1]), "%s lost %s", name, ids[1])
	}
	assert.Equal(t, 250, subnet.AvailableIPAddressCount)

	_, err := f.be.Instances.DescribeInstances(params.Params{"InstanceId.1": ids[0]})
	assertErrorType(t, err, "InvalidInstanceID.NotFound")

	err = f.terminate(ids[0])
	assertErrorType(t, err, "InvalidInstanceID.NotFound")
}

func TestRunInstances_RejectsBadReferences(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		p       params.Params
		errType errors.ErrorType
	}{
		{name: "unknown image", p: params.Params{"ImageId": "ami-00000000000000000"}, errType: "InvalidAMIID.NotFound"},
		{name: "unknown subnet", p: params.Params{"SubnetId": "subnet-00000000000000000"}, errType: "InvalidSubnetID.NotFound"},
		{name: "unknown group", p: params.Params{"SecurityGroupId.1": "sg-00000000000000000"}, errType: "InvalidGroup.NotFound"},
		{name: "unknown key", p: params.Params{"KeyName": "missing"}, errType: "InvalidKeyPair.NotFound"},
		{name: "unknown type", p: params.Params{"InstanceType": "z9.huge"}, errType: "InvalidInstanceType.NotFound"},
		{name: "min above max", p: params.Params{"MinCount": "3", "MaxCount": "2"}, errType: errors.ErrInvalidParameterValue},
		{name: "max above launch limit", p: params.Params{"MaxCount": "1001"}, errType: errors.ErrInvalidParameterValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params.Params{
				"ImageId":  f.imageID,
				"MinCount": "1",
				"MaxCount": "1",
				"SubnetId": f.subnetID,
				"KeyName":  f.keyName,
			}
			for k, v := range tt.p {
				p[k] = v
			}
			before := f.be.Store().Counts()
			_, err := f.be.Instances.RunInstances(p)
			assertErrorType(t, err, tt.errType)
			assert.Equal(t, before, f.be.Store().Counts())
			assert.Zero(t, f.be.Store().Table(state.KindInstance).Len())
		})
	}
}

func TestTerminateInstances_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ids := f.launch(2, nil)

	err := f.terminate(ids[0], "i-00000000000000000", ids[1])
	assertErrorType(t, err, "InvalidInstanceID.NotFound")
	assert.Contains(t, err.Error(), "i-00000000000000000")
	for _, id := range ids {
		assert.Equal(t, resources.StateRunning, f.instance(id).InstanceState)
	}
	assert.Equal(t, 1, f.be.Store().Table(state.KindReservation).Len())

	require.NoError(t, f.terminate(ids...))
	assert.Zero(t, f.be.Store().Table(state.KindInstance).Len())
	assert.Zero(t, f.be.Store().Table(state.KindReservation).Len(), "reservation goes with its last instance")
}

func TestStopStartInstances_Idempotent(t *testing.T) {
	f := newFixture(t)
	id := f.launch(1, nil)[0]
	p := params.Params{"InstanceId.1": id}

	resp, err := f.be.Instances.StopInstances(p)
	require.NoError(t, err)
	require.Len(t, resp.Instances, 1)
	assert.Equal(t, resources.StateRunning, resp.Instances[0].PreviousState)
	assert.Equal(t, resources.StateStopped, resp.Instances[0].CurrentState)

	resp, err = f.be.Instances.StopInstances(p)
	require.NoError(t, err)
	assert.Equal(t, resources.StateStopped, resp.Instances[0].PreviousState)
	assert.Equal(t, resources.StateStopped, resp.Instances[0].CurrentState)

	resp, err = f.be.Instances.StartInstances(p)
	require.NoError(t, err)
	assert.Equal(t, resources.StateRunning, resp.Instances[0].CurrentState)
	assert.Nil(t, f.instance(id).StateReason)

	resp, err = f.be.Instances.StartInstances(p)
	require.NoError(t, err)
	assert.Equal(t, resources.StateRunning, resp.Instances[0].PreviousState)
}

type instanceSnapshot struct {
	state      resources.InstanceState
	reason     *resources.StateReason
	monitoring string
	reported   string
}

func snapshot(inst *resources.Instance) instanceSnapshot {
	return instanceSnapshot{
		state:      inst.InstanceState,
		reason:     inst.StateReason,
		monitoring: inst.Monitoring.State,
		reported:   inst.ReportedStatus,
	}
}

func TestBulkInstanceActions_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ids := f.launch(2, nil)
	const missing = "i-00000000000000000"
	batch := params.Params{"InstanceId.1": ids[0], "InstanceId.2": missing, "InstanceId.3": ids[1]}

	withStatus := func(p params.Params) params.Params {
		out := params.Params{"Status": "impaired"}
		for k, v := range p {
			out[k] = v
		}
		return out
	}

	tests := []struct {
		name string
		call func(params.Params) error
		p    params.Params
	}{
		{name: "stop", p: batch, call: func(p params.Params) error {
			_, err := f.be.Instances.StopInstances(p)
			return err
		}},
		{name: "start", p: batch, call: func(p params.Params) error {
			_, err := f.be.Instances.StartInstances(p)
			return err
		}},
		{name: "reboot", p: batch, call: func(p params.Params) error {
			_, err := f.be.Instances.RebootInstances(p)
			return err
		}},
		{name: "terminate", p: batch, call: func(p params.Params) error {
			_, err := f.be.Instances.TerminateInstances(p)
			return err
		}},
		{name: "monitor", p: batch, call: func(p params.Params) error {
			_, err := f.be.Instances.MonitorInstances(p)
			return err
		}},
		{name: "unmonitor", p: batch, call: func(p params.Params) error {
			_, err := f.be.Instances.UnmonitorInstances(p)
			return err
		}},
		{name: "report status", p: withStatus(batch), call: func(p params.Params) error {
			_, err := f.be.Instances.ReportInstanceStatus(p)
			return err
		}},
		{name: "diagnostic interrupt", p: params.Params{"InstanceId": missing}, call: func(p params.Params) error {
			_, err := f.be.Instances.SendDiagnosticInterrupt(p)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := map[string]instanceSnapshot{}
			for _, id := range ids {
				before[id] = snapshot(f.instance(id))
			}
			counts := f.be.Store().Counts()

			err := tt.call(tt.p)
			assertErrorType(t, err, "InvalidInstanceID.NotFound")
			assert.Contains(t, err.Error(), missing)
			for _, id := range ids {
				assert.Equal(t, before[id], snapshot(f.instance(id)), "instance %s changed", id)
			}
			assert.Equal(t, counts, f.be.Store().Counts())
		})
	}
}

func TestRebootAndDiagnosticInterrupt_RecordStateReason(t *testing.T) {
	f := newFixture(t)
	ids := f.launch(2, nil)

	_, err := f.be.Instances.RebootInstances(params.Params{"InstanceId.1": ids[0], "InstanceId.2": ids[1]})
	require.NoError(t, err)
	for _, id := range ids {
		inst := f.instance(id)
		assert.Equal(t, resources.StateRunning, inst.InstanceState)
		require.NotNil(t, inst.StateReason)
		assert.Equal(t, "Client.UserInitiatedReboot", inst.StateReason.Code)
	}

	_, err = f.be.Instances.SendDiagnosticInterrupt(params.Params{})
	assertErrorType(t, err, errors.ErrMissingParameter)

	_, err = f.be.Instances.SendDiagnosticInterrupt(params.Params{"InstanceId": ids[1]})
	require.NoError(t, err)
	assert.Equal(t, resources.StateRunning, f.instance(ids[1]).InstanceState)
	assert.Equal(t, "Client.DiagnosticInterrupt", f.instance(ids[1]).StateReason.Code)
	assert.Equal(t, "Client.UserInitiatedReboot", f.instance(ids[0]).StateReason.Code)
}

func TestMonitorUnmonitorInstances(t *testing.T) {
	f := newFixture(t)
	ids := f.launch(2, nil)
	p := params.Params{"InstanceId.1": ids[0], "InstanceId.2": ids[1]}
	for _, id := range ids {
		assert.Equal(t, "disabled", f.instance(id).Monitoring.State)
	}

	resp, err := f.be.Instances.MonitorInstances(p)
	require.NoError(t, err)
	require.Len(t, resp.Instances, 2)
	for i, item := range resp.Instances {
		assert.Equal(t, ids[i], item.InstanceID)
		assert.Equal(t, "enabled", item.Monitoring.State)
		assert.Equal(t, "enabled", f.instance(ids[i]).Monitoring.State)
	}

	described, err := f.be.Instances.DescribeInstances(params.Params{"Filter.1.Name": "monitoring-state", "Filter.1.Value.1": "enabled"})
	require.NoError(t, err)
	require.Len(t, described.Reservations, 1)
	assert.Len(t, described.Reservations[0].Instances, 2)

	resp, err = f.be.Instances.UnmonitorInstances(params.Params{"InstanceId.1": ids[1]})
	require.NoError(t, err)
	require.Len(t, resp.Instances, 1)
	assert.Equal(t, "disabled", resp.Instances[0].Monitoring.State)
	assert.Equal(t, "enabled", f.instance(ids[0]).Monitoring.State)
	assert.Equal(t, "disabled", f.instance(ids[1]).Monitoring.State)
}

func TestReportInstanceStatus(t *testing.T) {
	f := newFixture(t)
	ids := f.launch(2, nil)

	_, err := f.be.Instances.ReportInstanceStatus(params.Params{"InstanceId.1": ids[0]})
	assertErrorType(t, err, errors.ErrMissingParameter)
	_, err = f.be.Instances.ReportInstanceStatus(params.Params{"InstanceId.1": ids[0], "Status": "broken"})
	assertErrorType(t, err, errors.ErrInvalidParameterValue)

	_, err = f.be.Instances.ReportInstanceStatus(params.Params{"InstanceId.1": ids[0], "Status": "impaired"})
	require.NoError(t, err)
	assert.Equal(t, "impaired", f.instance(ids[0]).ReportedStatus)

	_, err = f.be.Instances.StopInstances(params.Params{"InstanceId.1": ids[1]})
	require.NoError(t, err)
	_, err = f.be.Instances.ReportInstanceStatus(params.Params{
		"InstanceId.1": ids[0], "InstanceId.2": ids[1], "Status": "ok",
	})
	assertErrorType(t, err, errors.ErrIncorrectInstanceState)
	assert.Equal(t, "impaired", f.instance(ids[0]).ReportedStatus, "no instance reports when one is stopped")
	assert.Empty(t, f.instance(ids[1]).ReportedStatus)
}

func TestTerminateInstances_DisableAPITermination(t *testing.T) {
	f := newFixture(t)
	id := f.launch(1, params.Params{"DisableApiTermination": "true"})[0]

	assertErrorType(t, f.terminate(id), errors.ErrOperationNotPermitted)
	f.instance(id)
}

func TestDescribeInstances_GroupsByReservation(t *testing.T) {
	f := newFixture(t)
	first := f.launch(2, nil)
	second := f.launch(1, params.Params{"InstanceType": "t3.micro"})

	resp, err := f.be.Instances.DescribeInstances(params.Params{})
	require.NoError(t, err)
	require.Len(t, resp.Reservations, 2)
	assert.Len(t, resp.Reservations[0].Instances, 2)
	assert.Equal(t, first[0], resp.Reservations[0].Instances[0].InstanceID)
	assert.Equal(t, second[0], resp.Reservations[1].Instances[0].InstanceID)

	resp, err = f.be.Instances.DescribeInstances(params.Params{
		"Filter.1.Name": "instance-type", "Filter.1.Value.1": "t3.micro",
	})
	require.NoError(t, err)
	require.Len(t, resp.Reservations, 1)
	assert.Equal(t, second[0], resp.Reservations[0].Instances[0].InstanceID)
}

func TestTerminateInstances_BlockedByDependents(t *testing.T) {
	tests := []struct {
		name string
		// attach creates a dependent of instance and returns a function releasing it.
		attach func(t *testing.T, f *fixture, instanceID string) func()
		kind   state.Kind
	}{
		{
			name: "elastic ip",
			kind: state.KindAddress,
			attach: func(t *testing.T, f *fixture, instanceID string) func() {
				addr, err := f.be.Addresses.AllocateAddress(params.Params{})
				require.NoError(t, err)
				assoc, err := f.be.Addresses.AssociateAddress(params.Params{"AllocationId": addr.AllocationID, "InstanceId": instanceID})
				require.NoError(t, err)

				_, err = f.be.Addresses.ReleaseAddress(params.Params{"AllocationId": addr.AllocationID})
				assertErrorType(t, err, "InvalidIPAddress.InUse")

				return func() {
					_, err := f.be.Addresses.DisassociateAddress(params.Params{"AssociationId": assoc.AssociationID})
					require.NoError(t, err)
				}
			},
		},
		{
			name: "route",
			kind: state.KindRoute,
			attach: func(t *testing.T, f *fixture, instanceID string) func() {
				rt, err := f.be.RouteTables.CreateRouteTable(params.Params{"VpcId": f.vpcID})
				require.NoError(t, err)
				route := params.Params{
					"RouteTableId":         rt.RouteTable.RouteTableID,
					"DestinationCidrBlock": "0.0.0.0/0",
					"InstanceId":           instanceID,
				}
				_, err = f.be.RouteTables.CreateRoute(route)
				require.NoError(t, err)
				_, err = f.be.RouteTables.CreateRoute(route)
				assertErrorType(t, err, "RouteAlreadyExists")

				return func() {
					_, err := f.be.RouteTables.DeleteRoute(params.Params{
						"RouteTableId":         rt.RouteTable.RouteTableID,
						"DestinationCidrBlock": "0.0.0.0/0",
					})
					require.NoError(t, err)
				}
			},
		},
		{
			name: "bundle task",
			kind: state.KindBundleTask,
			attach: func(t *testing.T, f *fixture, instanceID string) func() {
				task, err := f.be.BundleTasks.BundleInstance(params.Params{
					"InstanceId":        instanceID,
					"Storage.S3.Bucket": "images",
					"Storage.S3.Prefix": "winami",
				})
				require.NoError(t, err)
				return func() {
					resp, err := f.be.BundleTasks.CancelBundleTask(params.Params{"BundleId": task.BundleInstanceTask.BundleID})
					require.NoError(t, err)
					assert.Equal(t, "cancelling", resp.BundleInstanceTask.State)

					_, err = f.be.BundleTasks.CancelBundleTask(params.Params{"BundleId": task.BundleInstanceTask.BundleID})
					assertErrorType(t, err, errors.ErrIncorrectState)
				}
			},
		},
		{
			name: "elastic gpu",
			kind: state.KindElasticGpu,
			attach: func(t *testing.T, f *fixture, instanceID string) func() {
				resp, err := f.be.ElasticGpus.DescribeElasticGpus(params.Params{})
				require.NoError(t, err)
				require.Len(t, resp.ElasticGpuSet, 1)
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			launchParams := params.Params{}
			if tt.kind == state.KindElasticGpu {
				launchParams["ElasticGpuSpecification.1.Type"] = "eg1.medium"
			}
			id := f.launch(1, launchParams)[0]
			release := tt.attach(t, f, id)

			err := f.terminate(id)
			assertErrorType(t, err, errors.ErrDependencyViolation)
			assert.Contains(t, err.Error(), string(tt.kind))
			assert.Equal(t, resources.StateRunning, f.instance(id).InstanceState)

			if release == nil {
				return
			}
			release()
			require.NoError(t, f.terminate(id))
		})
	}
}

func TestCapacityReservation_Capacity(t *testing.T) {
	f := newFixture(t)
	cr, err := f.be.CapacityReservations.CreateCapacityReservation(params.Params{
		"InstanceType":     "t3.micro",
		"InstancePlatform": "Linux/UNIX",
		"AvailabilityZone": "us-east-1a",
		"InstanceCount":    "2",
	})
	require.NoError(t, err)
	crID := cr.CapacityReservation.CapacityReservationID

	_, err = f.be.Instances.RunInstances(params.Params{
		"ImageId": f.imageID, "MinCount": "3", "MaxCount": "3", "CapacityReservationId": crID,
	})
	assertErrorType(t, err, "ReservationCapacityExceeded")

	_, err = f.be.Instances.RunInstances(params.Params{
		"ImageId": f.imageID, "MinCount": "1", "MaxCount": "1", "CapacityReservationId": crID, "InstanceType": "m5.large",
	})
	assertErrorType(t, err, errors.ErrInvalidParameterCombo)

	ids := f.launch(2, params.Params{"CapacityReservationId": crID})
	stored, _ := state.Get[*resources.CapacityReservation](f.be.Store(), state.KindCapacityReservation, crID)
	assert.Zero(t, stored.AvailableInstanceCount)
	assert.Equal(t, "t3.micro", f.instance(ids[0]).InstanceType)

	require.NoError(t, f.terminate(ids[0]))
	assert.Equal(t, 1, stored.AvailableInstanceCount)
}

func TestSpotInstanceRequests(t *testing.T) {
	f := newFixture(t)
	_, err := f.be.SpotInstances.RequestSpotInstances(params.Params{
		"InstanceCount":               "1001",
		"LaunchSpecification.ImageId": f.imageID,
	})
	assertErrorType(t, err, errors.ErrInvalidParameterValue)
	assert.Zero(t, f.be.Store().Table(state.KindSpotInstanceRequest).Len())

	resp, err := f.be.SpotInstances.RequestSpotInstances(params.Params{
		"InstanceCount":                    "2",
		"SpotPrice":                        "0.05",
		"LaunchSpecification.ImageId":      f.imageID,
		"LaunchSpecification.SubnetId":     f.subnetID,
		"LaunchSpecification.KeyName":      f.keyName,
		"LaunchSpecification.InstanceType": "t3.micro",
	})
	require.NoError(t, err)
	require.Len(t, resp.SpotInstanceRequests, 2)

	req := resp.SpotInstanceRequests[0]
	assert.Equal(t, "active", req.State)
	inst := f.instance(req.InstanceID)
	assert.Equal(t, "spot", inst.InstanceLifecycle)
	assert.Equal(t, req.SpotInstanceRequestID, inst.SpotInstanceRequestID)

	assertErrorType(t, f.terminate(req.InstanceID), errors.ErrDependencyViolation)

	_, err = f.be.SpotInstances.CancelSpotInstanceRequests(params.Params{
		"SpotInstanceRequestId.1": req.SpotInstanceRequestID,
		"SpotInstanceRequestId.2": "sir-00000000000000000",
	})
	assertErrorType(t, err, "InvalidSpotInstanceRequestID.NotFound")

	cancelled, err := f.be.SpotInstances.CancelSpotInstanceRequests(params.Params{"SpotInstanceRequestId.1": req.SpotInstanceRequestID})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.CancelledSpotInstanceRequests[0].State)
	require.NoError(t, f.terminate(req.InstanceID))

	described, err := f.be.SpotInstances.DescribeSpotInstanceRequests(params.Params{
		"Filter.1.Name": "state", "Filter.1.Value.1": "cancelled",
	})
	require.NoError(t, err)
	require.Len(t, described.SpotInstanceRequests, 1)
	assert.Equal(t, req.SpotInstanceRequestID, described.SpotInstanceRequests[0].SpotInstanceRequestID)
}

func TestGetInstanceTpmEkPub(t *testing.T) {
	f := newFixture(t)
	id := f.launch(1, nil)[0]
	p := params.Params{"InstanceId": id, "KeyType": "rsa-2048", "KeyFormat": "der"}

	first, err := f.be.NitroTpm.GetInstanceTpmEkPub(p)
	require.NoError(t, err)
	assert.NotEmpty(t, first.KeyValue)
	second, err := f.be.NitroTpm.GetInstanceTpmEkPub(p)
	require.NoError(t, err)
	assert.Equal(t, first.KeyValue, second.KeyValue)

	ecc, err := f.be.NitroTpm.GetInstanceTpmEkPub(params.Params{"InstanceId": id, "KeyType": "ecc-sec-p384", "KeyFormat": "tpmt"})
	require.NoError(t, err)
	assert.NotEqual(t, first.KeyValue, ecc.KeyValue)

	_, err = f.be.NitroTpm.GetInstanceTpmEkPub(params.Params{"InstanceId": id, "KeyType": "dsa", "KeyFormat": "der"})
	assertErrorType(t, err, errors.ErrInvalidParameterValue)

	plain, err := f.be.Images.RegisterImage(params.Params{"Name": "no-tpm"})
	require.NoError(t, err)
	other := f.launch(1, params.Params{"ImageId": plain.ImageID})[0]
	_, err = f.be.NitroTpm.GetInstanceTpmEkPub(params.Params{"InstanceId": other, "KeyType": "rsa-2048", "KeyFormat": "der"})
	assertErrorType(t, err, errors.ErrUnsupportedOperation)

	require.NoError(t, f.terminate(id))
	assert.Zero(t, f.be.Store().Table(state.KindNitroTpmKey).Len())
}

func TestMacSystemIntegrityProtectionModificationTask(t *testing.T) {
	f := newFixture(t)
	linux := f.launch(1, nil)[0]
	mac := f.launch(1, params.Params{"InstanceType": "mac1.metal"})[0]

	_, err := f.be.MacModifications.CreateMacSystemIntegrityProtectionModificationTask(params.Params{
		"InstanceId": linux, "MacSystemIntegrityProtectionStatus": "disabled",
	})
	assertErrorType(t, err, errors.ErrUnsupportedOperation)

	_, err = f.be.MacModifications.CreateMacSystemIntegrityProtectionModificationTask(params.Params{
		"InstanceId": mac, "MacSystemIntegrityProtectionStatus": "sometimes",
	})
	assertErrorType(t, err, errors.ErrInvalidParameterValue)

	resp, err := f.be.MacModifications.CreateMacSystemIntegrityProtectionModificationTask(params.Params{
		"InstanceId": mac, "MacSystemIntegrityProtectionStatus": "disabled",
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.MacModificationTask.TaskState)
	assert.Equal(t, "disabled", resp.MacModificationTask.MacSIPConfig.Status)

	described, err := f.be.MacModifications.DescribeMacModificationTasks(params.Params{})
	require.NoError(t, err)
	require.Len(t, described.MacModificationTasks, 1)
	assert.Equal(t, mac, described.MacModificationTasks[0].InstanceID)
}
