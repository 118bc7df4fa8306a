package backends

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// ExportTaskBackend implements the instance export actions.
type ExportTaskBackend struct {
	*base
}

var exportTaskMatcher = filters.Matcher[*resources.ExportTask]{
	Fields: map[string]filters.Field[*resources.ExportTask]{
		"export-task-id": filters.Value(func(e *resources.ExportTask) string { return e.ExportTaskID }),
		"instance-id":    filters.Value(func(e *resources.ExportTask) string { return e.InstanceExport.InstanceID }),
		"state":          filters.Value(func(e *resources.ExportTask) string { return e.State }),
	},
	Tags: tagsOf[*resources.ExportTask],
}

// ExportTaskResponse carries one export task.
type ExportTaskResponse struct {
	Meta
	ExportTask resources.ExportTaskView `xml:"exportTask"`
}

// CreateInstanceExportTask starts exporting an instance image to S3.
func (b *ExportTaskBackend) CreateInstanceExportTask(p params.Params) (*ExportTaskResponse, error) {
	if err := p.Require("InstanceId", "TargetEnvironment", "ExportToS3.S3Bucket"); err != nil {
		return nil, err
	}
	if err := oneOf("TargetEnvironment", p.String("TargetEnvironment"), valuesOf(types.ExportEnvironment("").Values())...); err != nil {
		return nil, err
	}
	diskFormat := orDefault(p.String("ExportToS3.DiskImageFormat"), string(types.DiskImageFormatVmdk))
	if err := oneOf("ExportToS3.DiskImageFormat", diskFormat, valuesOf(types.DiskImageFormat("").Values())...); err != nil {
		return nil, err
	}
	container := p.String("ExportToS3.ContainerFormat")
	if container != "" {
		if err := oneOf("ExportToS3.ContainerFormat", container, valuesOf(types.ContainerFormat("").Values())...); err != nil {
			return nil, err
		}
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}

	id := b.store.NewID(state.KindExportTask)
	extension := strings.ToLower(diskFormat)
	if container != "" {
		extension = container
	}
	task := &resources.ExportTask{ExportTaskView: resources.ExportTaskView{
		ExportTaskID: id,
		Description:  p.String("Description"),
		State:        string(types.ExportTaskStateActive),
		InstanceExport: resources.InstanceExport{
			InstanceID:        inst.InstanceID,
			TargetEnvironment: p.String("TargetEnvironment"),
		},
		ExportToS3: resources.ExportToS3{
			DiskImageFormat: diskFormat,
			ContainerFormat: container,
			S3Bucket:        p.String("ExportToS3.S3Bucket"),
			S3Key:           p.String("ExportToS3.S3Prefix") + id + "." + extension,
		},
	}}
	task.Tags = p.TagSpecifications(task.ResourceType())
	b.store.Table(state.KindExportTask).Put(task)

	b.log.Debug("Export task created",
		zap.String("operation", "CreateInstanceExportTask"),
		zap.String("export_task_id", id),
		zap.String("instance_id", inst.InstanceID),
	)
	return &ExportTaskResponse{ExportTask: task.View()}, nil
}

// CancelExportTask cancels an active export task.
func (b *ExportTaskBackend) CancelExportTask(p params.Params) (*ReturnResponse, error) {
	if err := p.Require("ExportTaskId"); err != nil {
		return nil, err
	}
	task, err := lookup[*resources.ExportTask](b.store, state.KindExportTask, p.String("ExportTaskId"))
	if err != nil {
		return nil, err
	}
	if task.State != string(types.ExportTaskStateActive) {
		return nil, errors.API(errors.ErrIncorrectState,
			"Export task %s is %s and cannot be cancelled.", task.ExportTaskID, task.State)
	}
	task.State = string(types.ExportTaskStateCancelled)
	task.StatusMessage = "Canceled by user"
	b.log.Debug("Export task cancelled", zap.String("operation", "CancelExportTask"), zap.String("export_task_id", task.ExportTaskID))
	return ok(), nil
}

// DescribeExportTasksResponse lists export tasks.
type DescribeExportTasksResponse struct {
	Meta
	ExportTasks []resources.ExportTaskView `xml:"exportTaskSet>item"`
}

// DescribeExportTasks lists export tasks.
func (b *ExportTaskBackend) DescribeExportTasks(p params.Params) (*DescribeExportTasksResponse, error) {
	views, _, err := describe(b.base, state.KindExportTask, p, idList(p, "ExportTaskId"), exportTaskMatcher, (*resources.ExportTask).View, false)
	if err != nil {
		return nil, err
	}
	return &DescribeExportTasksResponse{ExportTasks: views}, nil
}
