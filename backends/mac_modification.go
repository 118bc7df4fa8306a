package backends

import (
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

const (
	macTaskTypeSIP      = "sip-modification"
	macTaskStatePending = "pending"
	sipEnabled          = "enabled"
	sipDisabled         = "disabled"
)

// MacModificationBackend implements the Mac System Integrity Protection task actions.
type MacModificationBackend struct {
	*base
}

var macTaskMatcher = filters.Matcher[*resources.MacModificationTask]{
	Fields: map[string]filters.Field[*resources.MacModificationTask]{
		"instance-id": filters.Value(func(m *resources.MacModificationTask) string { return m.InstanceID }),
		"task-state":  filters.Value(func(m *resources.MacModificationTask) string { return m.TaskState }),
		"task-type":   filters.Value(func(m *resources.MacModificationTask) string { return m.TaskType }),
	},
	Tags: tagsOf[*resources.MacModificationTask],
}

// MacModificationTaskResponse carries one task.
type MacModificationTaskResponse struct {
	Meta
	MacModificationTask resources.MacModificationTaskView `xml:"macModificationTask"`
}

// CreateMacSystemIntegrityProtectionModificationTask queues a SIP change on a Mac instance.
func (b *MacModificationBackend) CreateMacSystemIntegrityProtectionModificationTask(p params.Params) (*MacModificationTaskResponse, error) {
	if err := p.Require("InstanceId", "MacSystemIntegrityProtectionStatus"); err != nil {
		return nil, err
	}
	status := p.String("MacSystemIntegrityProtectionStatus")
	if err := oneOf("MacSystemIntegrityProtectionStatus", status, sipEnabled, sipDisabled); err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}
	if !isMac(inst.InstanceType) {
		return nil, errors.API(errors.ErrUnsupportedOperation,
			"The instance %s of type %s is not an EC2 Mac instance.", inst.InstanceID, inst.InstanceType)
	}

	task := &resources.MacModificationTask{MacModificationTaskView: resources.MacModificationTaskView{
		MacModificationTaskID: b.store.NewID(state.KindMacModificationTask),
		InstanceID:            inst.InstanceID,
		TaskState:             macTaskStatePending,
		TaskType:              macTaskTypeSIP,
		StartTime:             b.timestamp(),
	}}
	task.MacSIPConfig.Status = status
	task.Tags = p.TagSpecifications(task.ResourceType())
	b.store.Table(state.KindMacModificationTask).Put(task)

	b.log.Debug("Mac modification task created",
		zap.String("operation", "CreateMacSystemIntegrityProtectionModificationTask"),
		zap.String("task_id", task.MacModificationTaskID),
		zap.String("instance_id", inst.InstanceID),
	)
	return &MacModificationTaskResponse{MacModificationTask: task.View()}, nil
}

// DescribeMacModificationTasksResponse lists tasks.
type DescribeMacModificationTasksResponse struct {
	Meta
	MacModificationTasks []resources.MacModificationTaskView `xml:"macModificationTaskSet>item"`
	NextToken            string                              `xml:"nextToken,omitempty"`
}

// DescribeMacModificationTasks lists tasks.
func (b *MacModificationBackend) DescribeMacModificationTasks(p params.Params) (*DescribeMacModificationTasksResponse, error) {
	views, next, err := describe(b.base, state.KindMacModificationTask, p, idList(p, "MacModificationTaskId"),
		macTaskMatcher, (*resources.MacModificationTask).View, true)
	if err != nil {
		return nil, err
	}
	return &DescribeMacModificationTasksResponse{MacModificationTasks: views, NextToken: next}, nil
}
