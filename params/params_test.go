package params

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/resources"
)

func TestParams_List(t *testing.T) {
	p := Params{
		"InstanceId.10": "i-10",
		"InstanceId.2":  "i-2",
		"InstanceId.1":  "i-1",
		"InstanceIds":   "ignored",
	}
	assert.Equal(t, []string{"i-1", "i-2", "i-10"}, p.List("InstanceId"))
	assert.Nil(t, p.List("GroupId"))
}

func TestParams_Filters(t *testing.T) {
	values := url.Values{}
	values.Set("Filter.1.Name", "instance-state-name")
	values.Set("Filter.1.Value.1", "running")
	values.Set("Filter.1.Value.2", "stopped")
	values.Set("Filter.2.Name", "tag:env")
	values.Set("Filter.2.Value.1", "dev")

	p := FromValues(values)
	assert.Equal(t, []filters.Filter{
		{Name: "instance-state-name", Values: []string{"running", "stopped"}},
		{Name: "tag:env", Values: []string{"dev"}},
	}, p.Filters())
}

func TestParams_TagSpecifications(t *testing.T) {
	p := Params{
		"TagSpecification.1.ResourceType": "instance",
		"TagSpecification.1.Tag.1.Key":    "Name",
		"TagSpecification.1.Tag.1.Value":  "web",
		"TagSpecification.2.ResourceType": "volume",
		"TagSpecification.2.Tag.1.Key":    "Name",
		"TagSpecification.2.Tag.1.Value":  "disk",
		"TagSpecification.3.ResourceType": "instance",
		"TagSpecification.3.Tag.1.Key":    "env",
		"TagSpecification.3.Tag.1.Value":  "dev",
	}

	assert.Equal(t, resources.Tags{{Key: "Name", Value: "web"}, {Key: "env", Value: "dev"}},
		p.TagSpecifications("instance"))
	assert.Nil(t, p.TagSpecifications("vpc"))
}

func TestParams_Scalars(t *testing.T) {
	p := Params{"MinCount": "2", "Bad": "x", "Flag": "true"}

	n, err := p.Int("MinCount", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.Int("Missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = p.Int("Bad", 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidParameterValue))

	b, err := p.OptionalBool("Flag")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, *b)

	b, err = p.OptionalBool("Missing")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestParams_Require(t *testing.T) {
	p := Params{"ImageId": "ami-1"}

	err := p.Require("ImageId", "MinCount", "MaxCount")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingParameter))
	assert.Contains(t, err.Error(), "MinCount")

	assert.NoError(t, p.Require("ImageId"))
}

func TestParams_Page(t *testing.T) {
	page, err := Params{"MaxResults": "5", "NextToken": "10"}.Page()
	require.NoError(t, err)
	assert.Equal(t, filters.Page{MaxResults: 5, NextToken: "10"}, page)

	_, err = Params{"MaxResults": "0"}.Page()
	assert.True(t, errors.Is(err, errors.ErrInvalidParameterValue))

	_, err = Params{"MaxResults": "1001"}.Page()
	assert.True(t, errors.Is(err, errors.ErrInvalidParameterValue))

	page, err = Params{"MaxResults": "1000"}.Page()
	require.NoError(t, err)
	assert.Equal(t, 1000, page.MaxResults)
}

func TestParams_Indexed(t *testing.T) {
	p := Params{
		"BlockDeviceMapping.2.DeviceName": "/dev/sdb",
		"BlockDeviceMapping.1.DeviceName": "/dev/sda1",
		"BlockDeviceMapping.1.Ebs.Size":   "8",
	}
	blocks := p.Indexed("BlockDeviceMapping")
	require.Len(t, blocks, 2)
	assert.Equal(t, "/dev/sda1", blocks[0].String("DeviceName"))
	assert.Equal(t, "8", blocks[0].String("Ebs.Size"))
	assert.Equal(t, "/dev/sdb", blocks[1].String("DeviceName"))
}
