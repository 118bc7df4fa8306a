package resources

// Tag is a key/value label.
type Tag struct {
	Key   string `xml:"key"`
	Value string `xml:"value"`
}

// Tags is an ordered tag list with unique keys.
type Tags []Tag

// Set adds or replaces the value of key.
func (t *Tags) Set(key, value string) {
	for i := range *t {
		if (*t)[i].Key == key {
			(*t)[i].Value = value
			return
		}
	}
	*t = append(*t, Tag{Key: key, Value: value})
}

// Merge applies every tag of other with Set semantics.
func (t *Tags) Merge(other Tags) {
	for _, tag := range other {
		t.Set(tag.Key, tag.Value)
	}
}

// Delete removes key. A non-nil value only removes the tag when the value matches.
func (t *Tags) Delete(key string, value *string) {
	out := (*t)[:0]
	for _, tag := range *t {
		if tag.Key == key && (value == nil || *value == tag.Value) {
			continue
		}
		out = append(out, tag)
	}
	*t = out
}

// Map returns the tags keyed by name.
func (t Tags) Map() map[string]string {
	m := make(map[string]string, len(t))
	for _, tag := range t {
		m[tag.Key] = tag.Value
	}
	return m
}

// Clone returns an independent copy.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	return append(Tags(nil), t...)
}

// Tagged is embedded by every taggable projection.
type Tagged struct {
	Tags Tags `xml:"tagSet>item,omitempty"`
}

// TagSet gives write access to the tags.
func (t *Tagged) TagSet() *Tags { return &t.Tags }

// Taggable is implemented by records that carry tags.
type Taggable interface {
	TagSet() *Tags
	ResourceType() string
}
