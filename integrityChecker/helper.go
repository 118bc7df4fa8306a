package integrityChecker

import (
	"fmt"
	"sync"

	"ec2emulator/errors"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// Violation is one place where a child's parent reference and the parent's child list
// disagree.
type Violation struct {
	Relationship string
	ChildID      string
	ParentID     string
	Reason       string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: child %s, parent %s: %s", v.Relationship, v.ChildID, v.ParentID, v.Reason)
}

func (v Violation) err() error {
	return errors.New(errors.ErrIntegrity, v.String(), map[string]interface{}{
		"relationship": v.Relationship,
		"child_id":     v.ChildID,
		"parent_id":    v.ParentID,
	}, nil)
}

// launch starts fn on its own goroutine tracked by wg.
func launch(wg *sync.WaitGroup, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}

// checkChildren walks the child table: every parent a child names must exist and list
// the child.
func checkChildren(s *state.Store, rel resources.Relationship, ch chan<- Violation) {
	parents := s.Table(rel.Parent)
	for _, rec := range s.Table(rel.Child).Records() {
		for _, pid := range rel.Parents(rec) {
			report := func(reason string) {
				ch <- Violation{Relationship: rel.Name(), ChildID: rec.ID(), ParentID: pid, Reason: reason}
			}
			prec, found := parents.Get(pid)
			if !found {
				report("parent does not exist")
				continue
			}
			parent, ok := prec.(resources.HasDependents)
			if !ok || !parent.Declares(rel.Child) {
				report("parent does not track this child kind")
				continue
			}
			if !parent.HasChild(rel.Child, rec.ID()) {
				report("child missing from parent list")
			}
		}
	}
}

// checkParents walks the parent table: every listed child must exist, appear once and
// name the parent back.
func checkParents(s *state.Store, rel resources.Relationship, ch chan<- Violation) {
	children := s.Table(rel.Child)
	for _, prec := range s.Table(rel.Parent).Records() {
		parent, ok := prec.(resources.HasDependents)
		if !ok || !parent.Declares(rel.Child) {
			continue
		}
		seen := map[string]bool{}
		for _, cid := range parent.Children(rel.Child) {
			report := func(reason string) {
				ch <- Violation{Relationship: rel.Name(), ChildID: cid, ParentID: prec.ID(), Reason: reason}
			}
			if seen[cid] {
				report("child listed more than once")
				continue
			}
			seen[cid] = true
			crec, found := children.Get(cid)
			if !found {
				report("listed child does not exist")
				continue
			}
			if !contains(rel.Parents(crec), prec.ID()) {
				report("listed child does not reference parent")
			}
		}
	}
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
