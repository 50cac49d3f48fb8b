// Package peerset tracks the set of known peer node identifiers (host:port
// strings) a node gossips with, excluding itself.
package peerset

import (
	"sort"
	"strings"
)

// Set is a plain collection of peer identifiers. It carries no lock of its
// own: it is part of a Node's shared state and every access goes through
// the Node's single coarse lock, the same as chain, mempool, and stakes.
type Set struct {
	self string
	ids  map[string]struct{}
}

func New(self string) *Set {
	return &Set{self: Normalize(self), ids: make(map[string]struct{})}
}

// Normalize strips a leading scheme (e.g. "http://") so peers registered
// as either bare host:port or full URLs compare equal.
func Normalize(id string) string {
	id = strings.TrimPrefix(id, "http://")
	id = strings.TrimPrefix(id, "https://")
	return strings.TrimSuffix(id, "/")
}

// Add registers id as a peer, ignoring it if it equals this node's own
// identifier. Reports whether a new peer was actually added.
func (s *Set) Add(id string) bool {
	id = Normalize(id)
	if id == "" || id == s.self {
		return false
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *Set) Has(id string) bool {
	_, ok := s.ids[Normalize(id)]
	return ok
}

// List returns a sorted snapshot of all known peer identifiers.
func (s *Set) List() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Set) Self() string {
	return s.self
}
