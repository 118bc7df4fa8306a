// Package params decodes flat EC2 query parameters (InstanceId.1, Filter.1.Name,
// TagSpecification.1.Tag.1.Key, ...) into typed accessors.
package params

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/resources"
)

// Params is the flat parameter map of one request.
type Params map[string]string

// FromValues keeps the first value of every key.
func FromValues(values url.Values) Params {
	p := make(Params, len(values))
	for k, v := range values {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p
}

// String returns the value of name, or "".
func (p Params) String(name string) string { return p[name] }

// Has reports whether name was sent with a non-empty value.
func (p Params) Has(name string) bool { return p[name] != "" }

// Optional returns a pointer to the value of name, or nil when absent.
func (p Params) Optional(name string) *string {
	v, ok := p[name]
	if !ok {
		return nil
	}
	return &v
}

// Int parses name as an integer. Absent values yield def.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p[name]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.InvalidValue(name, v, "Expected an integer.")
	}
	return n, nil
}

// Bool parses name as a boolean. Absent values yield def.
func (p Params) Bool(name string, def bool) (bool, error) {
	v, ok := p[name]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.InvalidValue(name, v, "Expected true or false.")
	}
	return b, nil
}

// OptionalBool parses name as a boolean, returning nil when absent.
func (p Params) OptionalBool(name string) (*bool, error) {
	if !p.Has(name) {
		return nil, nil
	}
	b, err := p.Bool(name, false)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// indexes returns the sorted N of every "prefix.N" or "prefix.N.*" key.
func (p Params) indexes(prefix string) []int {
	seen := map[int]bool{}
	for key := range p {
		if !strings.HasPrefix(key, prefix+".") {
			continue
		}
		rest := strings.TrimPrefix(key, prefix+".")
		if dot := strings.IndexByte(rest, '.'); dot >= 0 {
			rest = rest[:dot]
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		seen[n] = true
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// List returns the values of name.1, name.2, ... in index order.
func (p Params) List(name string) []string {
	var out []string
	for _, n := range p.indexes(name) {
		if v, ok := p[name+"."+strconv.Itoa(n)]; ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Sub returns the parameters under "prefix." with the prefix stripped.
func (p Params) Sub(prefix string) Params {
	out := Params{}
	for key, v := range p {
		if strings.HasPrefix(key, prefix+".") {
			out[strings.TrimPrefix(key, prefix+".")] = v
		}
	}
	return out
}

// Indexed returns one Params per prefix.N block, in index order.
func (p Params) Indexed(prefix string) []Params {
	var out []Params
	for _, n := range p.indexes(prefix) {
		out = append(out, p.Sub(prefix+"."+strconv.Itoa(n)))
	}
	return out
}

// Filters decodes Filter.N.Name / Filter.N.Value.M.
func (p Params) Filters() []filters.Filter {
	var out []filters.Filter
	for _, block := range p.Indexed("Filter") {
		name := block.String("Name")
		if name == "" {
			continue
		}
		out = append(out, filters.Filter{Name: name, Values: block.List("Value")})
	}
	return out
}

// Page decodes MaxResults / NextToken.
func (p Params) Page() (filters.Page, error) {
	n, err := p.Int("MaxResults", 0)
	if err != nil {
		return filters.Page{}, err
	}
	if p.Has("MaxResults") && n < 1 {
		return filters.Page{}, errors.InvalidValue("MaxResults", p.String("MaxResults"), "MaxResults must be at least 1.")
	}
	if n > filters.MaxPageSize {
		return filters.Page{}, errors.InvalidValue("MaxResults", p.String("MaxResults"),
			fmt.Sprintf("MaxResults must be at most %d.", filters.MaxPageSize))
	}
	return filters.Page{MaxResults: n, NextToken: p.String("NextToken")}, nil
}

// Tags decodes prefix.N.Key / prefix.N.Value.
func (p Params) Tags(prefix string) resources.Tags {
	var out resources.Tags
	for _, block := range p.Indexed(prefix) {
		if key := block.String("Key"); key != "" {
			out.Set(key, block.String("Value"))
		}
	}
	return out
}

// TagSpecifications returns the tags of every TagSpecification.N block whose
// ResourceType equals resourceType.
func (p Params) TagSpecifications(resourceType string) resources.Tags {
	var out resources.Tags
	for _, spec := range p.Indexed("TagSpecification") {
		if spec.String("ResourceType") != resourceType {
			continue
		}
		out.Merge(spec.Tags("Tag"))
	}
	return out
}

// Require returns MissingParameter for the first absent name, in the given order.
func (p Params) Require(names ...string) error {
	for _, name := range names {
		if !p.Has(name) {
			return errors.MissingParameter(name)
		}
	}
	return nil
}
