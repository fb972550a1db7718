package resolver

import (
	"modelc/internal/graph"
	"modelc/internal/model"
)

// slot is the static type of an expression value.
type slot struct {
	typ  model.GenericType
	mult model.Multiplicity
}

// scope holds the variables visible at a point of a body. Inner scopes
// shadow outer ones.
type scope struct {
	parent  *scope
	vars    map[string]slot
	fn      graph.NodeID
	imports Imports
}

func newScope(fn graph.NodeID, imp Imports) *scope {
	return &scope{vars: make(map[string]slot), fn: fn, imports: imp}
}

func (s *scope) child() *scope {
	return &scope{parent: s, vars: make(map[string]slot), fn: s.fn, imports: s.imports}
}

func (s *scope) define(name string, v slot) { s.vars[name] = v }

func (s *scope) lookup(name string) (slot, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return slot{}, false
}

// owners lists the elements whose type parameters are visible.
func (s *scope) owners() []graph.NodeID { return []graph.NodeID{s.fn} }
