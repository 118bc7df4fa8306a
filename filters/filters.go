// Package filters evaluates EC2 Describe filters and slices results into pages.
package filters

import (
	"fmt"
	"strconv"
	"strings"

	"ec2emulator/errors"
)

// Filter is one Filter.N block of a request.
type Filter struct {
	Name   string
	Values []string
}

// Field extracts the comparable values of one filter name from a record.
type Field[T any] func(T) []string

// Matcher knows the filter names supported for records of type T.
type Matcher[T any] struct {
	Fields map[string]Field[T]
	// Tags, when set, enables "tag:<key>", "tag-key" and "tag-value" filters.
	Tags func(T) map[string]string
}

// Validate rejects filter names the matcher does not know.
func (m Matcher[T]) Validate(filters []Filter) error {
	for _, f := range filters {
		if _, ok := m.Fields[f.Name]; ok {
			continue
		}
		if m.Tags != nil && (strings.HasPrefix(f.Name, "tag:") || f.Name == "tag-key" || f.Name == "tag-value") {
			continue
		}
		return errors.New(errors.ErrInvalidParameterValue,
			fmt.Sprintf("The filter '%s' is invalid", f.Name),
			map[string]interface{}{"filter": f.Name}, nil)
	}
	return nil
}

// Apply returns the items matching every filter, keeping their order.
func (m Matcher[T]) Apply(items []T, filters []Filter) ([]T, error) {
	if err := m.Validate(filters); err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return items, nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if m.matchesAll(item, filters) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m Matcher[T]) matchesAll(item T, filters []Filter) bool {
	for _, f := range filters {
		if !anyEqual(m.values(item, f.Name), f.Values) {
			return false
		}
	}
	return true
}

func (m Matcher[T]) values(item T, name string) []string {
	if field, ok := m.Fields[name]; ok {
		return field(item)
	}
	tags := m.Tags(item)
	switch {
	case strings.HasPrefix(name, "tag:"):
		if v, ok := tags[strings.TrimPrefix(name, "tag:")]; ok {
			return []string{v}
		}
		return nil
	case name == "tag-key":
		keys := make([]string, 0, len(tags))
		for k := range tags {
			keys = append(keys, k)
		}
		return keys
	default:
		values := make([]string, 0, len(tags))
		for _, v := range tags {
			values = append(values, v)
		}
		return values
	}
}

// anyEqual reports whether any record value equals any wanted value.
func anyEqual(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// Value wraps a single string accessor.
func Value[T any](fn func(T) string) Field[T] {
	return func(item T) []string { return []string{fn(item)} }
}

// Bool wraps a boolean accessor, rendered as "true"/"false".
func Bool[T any](fn func(T) bool) Field[T] {
	return func(item T) []string { return []string{strconv.FormatBool(fn(item))} }
}

// Int wraps an integer accessor.
func Int[T any](fn func(T) int) Field[T] {
	return func(item T) []string { return []string{strconv.Itoa(fn(item))} }
}

// Values wraps a multi-valued accessor.
func Values[T any](fn func(T) []string) Field[T] {
	return Field[T](fn)
}
