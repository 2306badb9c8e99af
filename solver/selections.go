package solver

import "github.com/zeroinstall-go/zeroinstall/feed"

// Selection is one chosen implementation within a Selections document.
type Selection struct {
	InterfaceURI   string
	ID             string
	Version        feed.Version
	Arch           feed.Arch
	Stability      feed.Stability
	FromFeed       string // distinct from InterfaceURI when the feed that listed this impl isn't the primary one
	ManifestDigest string
	Commands       map[string]feed.Command
	Dependencies   []feed.Dependency
	Restrictions   []feed.Dependency
}

// Selections is the solver's output: a rooted DAG of one chosen
// implementation per interface used to satisfy Root/Command.
type Selections struct {
	Root    string
	Command string
	// order preserves insertion order so Interfaces() is deterministic;
	// byInterface allows O(1) lookup during backtracking.
	order       []string
	byInterface map[string]Selection
}

// NewSelections returns an empty Selections for the given root interface
// and command.
func NewSelections(root, command string) *Selections {
	return &Selections{Root: root, Command: command, byInterface: map[string]Selection{}}
}

// Get returns the selection for interfaceURI, if any.
func (s *Selections) Get(interfaceURI string) (Selection, bool) {
	sel, ok := s.byInterface[interfaceURI]
	return sel, ok
}

// Set records or overwrites the selection for sel.InterfaceURI.
func (s *Selections) Set(sel Selection) {
	if _, exists := s.byInterface[sel.InterfaceURI]; !exists {
		s.order = append(s.order, sel.InterfaceURI)
	}
	s.byInterface[sel.InterfaceURI] = sel
}

// Unset removes the tentative selection for interfaceURI, used when the
// backtracking solver abandons a candidate.
func (s *Selections) Unset(interfaceURI string) {
	if _, ok := s.byInterface[interfaceURI]; !ok {
		return
	}
	delete(s.byInterface, interfaceURI)
	for i, u := range s.order {
		if u == interfaceURI {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Interfaces returns every interface with a current selection, in
// insertion order.
func (s *Selections) Interfaces() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len reports how many interfaces currently have a selection.
func (s *Selections) Len() int { return len(s.order) }

// snapshot captures enough state to restore Selections after a failed
// backtracking attempt.
type snapshot struct {
	order       []string
	byInterface map[string]Selection
}

func (s *Selections) snapshot() snapshot {
	order := make([]string, len(s.order))
	copy(order, s.order)
	byInterface := make(map[string]Selection, len(s.byInterface))
	for k, v := range s.byInterface {
		byInterface[k] = v
	}
	return snapshot{order: order, byInterface: byInterface}
}

func (s *Selections) restore(snap snapshot) {
	s.order = snap.order
	s.byInterface = snap.byInterface
}

// Validate checks the core invariants: every dependency's
// interface URI appears as a key, and there are no cycles (verified simply
// by the fact that the solver only ever adds an interface once it is fully
// resolved — a direct cycle would have been caught as "already being
// solved" by the in-flight visited set during Solve, not here).
func (s *Selections) Validate() []string {
	var missing []string
	for _, iface := range s.order {
		sel := s.byInterface[iface]
		for _, dep := range sel.Dependencies {
			if _, ok := s.byInterface[dep.InterfaceURI]; !ok {
				missing = append(missing, dep.InterfaceURI)
			}
		}
	}
	return missing
}
