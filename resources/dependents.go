// Package resources defines the records kept in the state store, the dependency lists
// that gate their deletion, and the XML projections returned to clients.
//
// Every record embeds its projection type (the public shape) next to a Dependents value
// and any private bookkeeping. Only the projection is ever encoded.
package resources

import (
	"fmt"

	"ec2emulator/state"
)

// Dependents holds one list of child ids per declared child kind.
type Dependents struct {
	kinds []state.Kind
	ids   map[state.Kind][]string
}

// NewDependents declares the child kinds a record tracks. Declaration order is the order
// Blocking reports in.
func NewDependents(kinds ...state.Kind) Dependents {
	ids := make(map[state.Kind][]string, len(kinds))
	for _, k := range kinds {
		ids[k] = nil
	}
	return Dependents{kinds: kinds, ids: ids}
}

// Declares reports whether kind is one of the tracked child kinds.
func (d *Dependents) Declares(kind state.Kind) bool {
	_, ok := d.ids[kind]
	return ok
}

// DeclaredKinds returns the tracked child kinds in declaration order.
func (d *Dependents) DeclaredKinds() []state.Kind {
	return append([]state.Kind(nil), d.kinds...)
}

// AddChild records id as a child of kind. Adding an id twice keeps a single entry.
func (d *Dependents) AddChild(kind state.Kind, id string) {
	if !d.Declares(kind) {
		panic(fmt.Sprintf("resources: child kind %s not declared", kind))
	}
	for _, existing := range d.ids[kind] {
		if existing == id {
			return
		}
	}
	d.ids[kind] = append(d.ids[kind], id)
}

// RemoveChild drops id from the kind's list. Missing ids are ignored.
func (d *Dependents) RemoveChild(kind state.Kind, id string) {
	list := d.ids[kind]
	for i, existing := range list {
		if existing == id {
			d.ids[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Children returns a copy of the kind's child ids.
func (d *Dependents) Children(kind state.Kind) []string {
	return append([]string(nil), d.ids[kind]...)
}

// HasChild reports whether id is listed under kind.
func (d *Dependents) HasChild(kind state.Kind, id string) bool {
	for _, existing := range d.ids[kind] {
		if existing == id {
			return true
		}
	}
	return false
}

// Blocking returns the first non-empty child list in declaration order.
func (d *Dependents) Blocking() (state.Kind, []string, bool) {
	for _, k := range d.kinds {
		if len(d.ids[k]) > 0 {
			return k, d.Children(k), true
		}
	}
	return "", nil, false
}

// HasDependents is implemented by every record that other records point at.
type HasDependents interface {
	state.Record
	AddChild(kind state.Kind, id string)
	RemoveChild(kind state.Kind, id string)
	Children(kind state.Kind) []string
	HasChild(kind state.Kind, id string) bool
	Blocking() (state.Kind, []string, bool)
	Declares(kind state.Kind) bool
}
