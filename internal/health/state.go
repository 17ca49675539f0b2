// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package health

import "sync/atomic"

// Entry is one service's readiness flag.
type Entry struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// State holds one latched readiness flag per service. The set of names is
// fixed at construction and every flag starts false. A flag only ever goes
// from false to true.
type State struct {
	names    []string
	flags    map[string]*atomic.Bool
	complete atomic.Bool
}

// NewState creates a state with one false entry per unique name, in order.
func NewState(names ...string) *State {
	s := &State{flags: make(map[string]*atomic.Bool, len(names))}
	for _, name := range names {
		if _, ok := s.flags[name]; ok {
			continue
		}
		s.names = append(s.names, name)
		s.flags[name] = new(atomic.Bool)
	}
	return s
}

// MarkReady latches a service's flag. changed is true only for the call
// that flipped it; completed is true only for the call that made every
// flag true. Unknown names are ignored.
func (s *State) MarkReady(name string) (changed, completed bool) {
	flag, ok := s.flags[name]
	if !ok {
		return false, false
	}
	if !flag.CompareAndSwap(false, true) {
		return false, false
	}
	if s.AllReady() && s.complete.CompareAndSwap(false, true) {
		return true, true
	}
	return true, false
}

// Ready returns a service's flag and whether the service is known.
func (s *State) Ready(name string) (ready, ok bool) {
	flag, ok := s.flags[name]
	if !ok {
		return false, false
	}
	return flag.Load(), true
}

// Names returns the service names in order.
func (s *State) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Snapshot returns every entry in order.
func (s *State) Snapshot() []Entry {
	out := make([]Entry, len(s.names))
	for i, name := range s.names {
		out[i] = Entry{Name: name, Ready: s.flags[name].Load()}
	}
	return out
}

// AllReady aggregates the current snapshot.
func (s *State) AllReady() bool {
	return AllReady(s.Snapshot())
}

// AllReady reports whether every entry is ready. An empty set is ready.
func AllReady(entries []Entry) bool {
	for _, e := range entries {
		if !e.Ready {
			return false
		}
	}
	return true
}
