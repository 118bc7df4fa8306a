package backends

import (
	"strings"

	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

const (
	maxTagsPerResource = 50
	maxTagKeyLength    = 128
	maxTagValueLength  = 256
	reservedTagPrefix  = "aws:"
)

// TagBackend implements the tag actions over every taggable kind.
type TagBackend struct {
	*base
}

// TagDescription is one resource tag as listed by DescribeTags.
type TagDescription struct {
	ResourceID   string `xml:"resourceId"`
	ResourceType string `xml:"resourceType"`
	Key          string `xml:"key"`
	Value        string `xml:"value"`
}

var tagMatcher = filters.Matcher[TagDescription]{
	Fields: map[string]filters.Field[TagDescription]{
		"key":           filters.Value(func(t TagDescription) string { return t.Key }),
		"value":         filters.Value(func(t TagDescription) string { return t.Value }),
		"resource-id":   filters.Value(func(t TagDescription) string { return t.ResourceID }),
		"resource-type": filters.Value(func(t TagDescription) string { return t.ResourceType }),
	},
}

// taggables resolves every ResourceId.N to a taggable record. Any bad id fails the call.
func (b *TagBackend) taggables(p params.Params) ([]resources.Taggable, error) {
	ids := idList(p, "ResourceId")
	if len(ids) == 0 {
		return nil, errors.MissingParameter("ResourceId")
	}
	out := make([]resources.Taggable, 0, len(ids))
	for _, id := range ids {
		kind, known := state.KindForID(id)
		if !known {
			return nil, errors.API(errors.ErrInvalidID, "The ID '%s' is not valid", id)
		}
		rec, found := b.store.Table(kind).Get(id)
		if !found {
			return nil, kind.NotFound(id)
		}
		taggable, ok := rec.(resources.Taggable)
		if !ok {
			return nil, errors.API(errors.ErrInvalidParameterValue, "The resource '%s' does not support tagging", id)
		}
		out = append(out, taggable)
	}
	return out, nil
}

func validateTagKey(key string) error {
	switch {
	case key == "":
		return errors.MissingParameter("Tag.Key")
	case strings.HasPrefix(strings.ToLower(key), reservedTagPrefix):
		return errors.InvalidValue("Tag.Key", key, "Tag keys starting with 'aws:' are reserved for internal use.")
	case len(key) > maxTagKeyLength:
		return errors.InvalidValue("Tag.Key", key, "Tag keys must be at most 128 characters.")
	}
	return nil
}

// CreateTags adds or overwrites tags on every listed resource.
func (b *TagBackend) CreateTags(p params.Params) (*ReturnResponse, error) {
	targets, err := b.taggables(p)
	if err != nil {
		return nil, err
	}
	tags := p.Tags("Tag")
	for _, block := range p.Indexed("Tag") {
		if err := validateTagKey(block.String("Key")); err != nil {
			return nil, err
		}
		if len(block.String("Value")) > maxTagValueLength {
			return nil, errors.InvalidValue("Tag.Value", block.String("Value"), "Tag values must be at most 256 characters.")
		}
	}
	for _, t := range targets {
		merged := t.TagSet().Clone()
		merged.Merge(tags)
		if len(merged) > maxTagsPerResource {
			return nil, errors.API("TagLimitExceeded",
				"The maximum number of tags per resource (%d) would be exceeded", maxTagsPerResource)
		}
	}
	for _, t := range targets {
		t.TagSet().Merge(tags)
	}
	b.log.Debug("Tags created",
		zap.String("operation", "CreateTags"),
		zap.Int("resources", len(targets)),
		zap.Int("tags", len(tags)),
	)
	return ok(), nil
}

// DeleteTags removes tags by key, or by key and value when a value is sent. Without
// Tag.N every tag of the resources is removed.
func (b *TagBackend) DeleteTags(p params.Params) (*ReturnResponse, error) {
	targets, err := b.taggables(p)
	if err != nil {
		return nil, err
	}
	blocks := p.Indexed("Tag")
	for _, block := range blocks {
		if err := validateTagKey(block.String("Key")); err != nil {
			return nil, err
		}
	}
	for _, t := range targets {
		if len(blocks) == 0 {
			*t.TagSet() = nil
			continue
		}
		for _, block := range blocks {
			t.TagSet().Delete(block.String("Key"), block.Optional("Value"))
		}
	}
	b.log.Debug("Tags deleted", zap.String("operation", "DeleteTags"), zap.Int("resources", len(targets)))
	return ok(), nil
}

// DescribeTagsResponse lists tags.
type DescribeTagsResponse struct {
	Meta
	Tags      []TagDescription `xml:"tagSet>item"`
	NextToken string           `xml:"nextToken,omitempty"`
}

// DescribeTags lists the tags of every taggable record, kinds in store order.
func (b *TagBackend) DescribeTags(p params.Params) (*DescribeTagsResponse, error) {
	var all []TagDescription
	for _, kind := range state.Kinds() {
		for _, rec := range b.store.Table(kind).Records() {
			taggable, ok := rec.(resources.Taggable)
			if !ok {
				continue
			}
			for _, tag := range *taggable.TagSet() {
				all = append(all, TagDescription{
					ResourceID:   rec.ID(),
					ResourceType: taggable.ResourceType(),
					Key:          tag.Key,
					Value:        tag.Value,
				})
			}
		}
	}
	matched, err := tagMatcher.Apply(all, p.Filters())
	if err != nil {
		return nil, err
	}
	page, err := p.Page()
	if err != nil {
		return nil, err
	}
	out, next, err := filters.Paginate(matched, page, b.settings.DefaultMaxResults)
	if err != nil {
		return nil, err
	}
	return &DescribeTagsResponse{Tags: out, NextToken: next}, nil
}
