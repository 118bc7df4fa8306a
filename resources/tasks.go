package resources

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// BundleStorage is the S3 target of a bundle task.
type BundleStorage struct {
	S3 struct {
		Bucket string `xml:"bucket"`
		Prefix string `xml:"prefix"`
	} `xml:"S3"`
}

// BundleTaskView is the public shape of a bundle task.
type BundleTaskView struct {
	BundleID   string        `xml:"bundleId"`
	InstanceID string        `xml:"instanceId"`
	State      string        `xml:"state"`
	StartTime  string        `xml:"startTime"`
	UpdateTime string        `xml:"updateTime"`
	Progress   string        `xml:"progress"`
	Storage    BundleStorage `xml:"storage"`
}

// BundleTask is a stored bundle task. Cancelled tasks stay stored.
type BundleTask struct {
	BundleTaskView
}

func (b *BundleTask) ID() string { return b.BundleID }

// Active reports whether the task still holds its instance.
func (b *BundleTask) Active() bool {
	switch types.BundleTaskState(b.State) {
	case types.BundleTaskStateCancelling, types.BundleTaskStateComplete, types.BundleTaskStateFailed:
		return false
	}
	return true
}

// View returns a copy of the public fields.
func (b *BundleTask) View() BundleTaskView { return b.BundleTaskView }

// ExportToS3 is the destination of an export task.
type ExportToS3 struct {
	DiskImageFormat string `xml:"diskImageFormat"`
	ContainerFormat string `xml:"containerFormat,omitempty"`
	S3Bucket        string `xml:"s3Bucket"`
	S3Key           string `xml:"s3Key"`
}

// InstanceExport names the exported instance.
type InstanceExport struct {
	InstanceID        string `xml:"instanceId"`
	TargetEnvironment string `xml:"targetEnvironment"`
}

// ExportTaskView is the public shape of an instance export task.
type ExportTaskView struct {
	ExportTaskID   string         `xml:"exportTaskId"`
	Description    string         `xml:"description,omitempty"`
	State          string         `xml:"state"`
	StatusMessage  string         `xml:"statusMessage,omitempty"`
	InstanceExport InstanceExport `xml:"instanceExport"`
	ExportToS3     ExportToS3     `xml:"exportToS3"`
	Tagged
}

// ExportTask is a stored export task.
type ExportTask struct {
	ExportTaskView
}

func (e *ExportTask) ID() string           { return e.ExportTaskID }
func (e *ExportTask) ResourceType() string { return string(types.ResourceTypeExportInstanceTask) }

// View returns a detached copy of the public fields.
func (e *ExportTask) View() ExportTaskView {
	out := e.ExportTaskView
	out.Tags = out.Tags.Clone()
	return out
}
