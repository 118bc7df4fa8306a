package backends

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// BundleTaskBackend implements the instance bundling actions.
type BundleTaskBackend struct {
	*base
}

var bundleMatcher = filters.Matcher[*resources.BundleTask]{
	Fields: map[string]filters.Field[*resources.BundleTask]{
		"bundle-id":   filters.Value(func(t *resources.BundleTask) string { return t.BundleID }),
		"instance-id": filters.Value(func(t *resources.BundleTask) string { return t.InstanceID }),
		"state":       filters.Value(func(t *resources.BundleTask) string { return t.State }),
		"progress":    filters.Value(func(t *resources.BundleTask) string { return t.Progress }),
		"s3-bucket":   filters.Value(func(t *resources.BundleTask) string { return t.Storage.S3.Bucket }),
		"s3-prefix":   filters.Value(func(t *resources.BundleTask) string { return t.Storage.S3.Prefix }),
		"start-time":  filters.Value(func(t *resources.BundleTask) string { return t.StartTime }),
		"update-time": filters.Value(func(t *resources.BundleTask) string { return t.UpdateTime }),
	},
}

// BundleTaskResponse carries one bundle task.
type BundleTaskResponse struct {
	Meta
	BundleInstanceTask resources.BundleTaskView `xml:"bundleInstanceTask"`
}

// BundleInstance starts bundling an instance to S3. The task blocks termination until it
// is cancelled.
func (b *BundleTaskBackend) BundleInstance(p params.Params) (*BundleTaskResponse, error) {
	if err := p.Require("InstanceId", "Storage.S3.Bucket", "Storage.S3.Prefix"); err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}
	now := b.timestamp()
	task := &resources.BundleTask{BundleTaskView: resources.BundleTaskView{
		BundleID:   b.store.NewID(state.KindBundleTask),
		InstanceID: inst.InstanceID,
		State:      string(types.BundleTaskStatePending),
		StartTime:  now,
		UpdateTime: now,
		Progress:   "0%",
	}}
	task.Storage.S3.Bucket = p.String("Storage.S3.Bucket")
	task.Storage.S3.Prefix = p.String("Storage.S3.Prefix")
	b.store.Table(state.KindBundleTask).Put(task)
	registerChild(state.KindBundleTask, task.BundleID, inst)

	b.log.Debug("Bundle task started",
		zap.String("operation", "BundleInstance"),
		zap.String("bundle_id", task.BundleID),
		zap.String("instance_id", inst.InstanceID),
	)
	return &BundleTaskResponse{BundleInstanceTask: task.View()}, nil
}

// CancelBundleTask moves a task to cancelling and releases its instance. The task stays
// describable.
func (b *BundleTaskBackend) CancelBundleTask(p params.Params) (*BundleTaskResponse, error) {
	if err := p.Require("BundleId"); err != nil {
		return nil, err
	}
	task, err := lookup[*resources.BundleTask](b.store, state.KindBundleTask, p.String("BundleId"))
	if err != nil {
		return nil, err
	}
	if !task.Active() {
		return nil, errors.API(errors.ErrIncorrectState, "Bundle task %s is %s and cannot be cancelled.", task.BundleID, task.State)
	}
	task.State = string(types.BundleTaskStateCancelling)
	task.UpdateTime = b.timestamp()
	unregisterChild(b.store, state.KindBundleTask, task.BundleID, state.KindInstance, task.InstanceID)

	b.log.Debug("Bundle task cancelled", zap.String("operation", "CancelBundleTask"), zap.String("bundle_id", task.BundleID))
	return &BundleTaskResponse{BundleInstanceTask: task.View()}, nil
}

// DescribeBundleTasksResponse lists bundle tasks.
type DescribeBundleTasksResponse struct {
	Meta
	BundleInstanceTasks []resources.BundleTaskView `xml:"bundleInstanceTasksSet>item"`
}

// DescribeBundleTasks lists bundle tasks.
func (b *BundleTaskBackend) DescribeBundleTasks(p params.Params) (*DescribeBundleTasksResponse, error) {
	views, _, err := describe(b.base, state.KindBundleTask, p, idList(p, "BundleId"), bundleMatcher, (*resources.BundleTask).View, false)
	if err != nil {
		return nil, err
	}
	return &DescribeBundleTasksResponse{BundleInstanceTasks: views}, nil
}
