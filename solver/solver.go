package solver

import (
	"fmt"
	"time"

	"github.com/zeroinstall-go/zeroinstall/feed"
	"github.com/zeroinstall-go/zeroinstall/metrics"
	"github.com/zeroinstall-go/zeroinstall/zerr"
)

// DefaultAttemptBudget is the recursion/attempt cap applied when a
// BacktrackingSolver is constructed with budget <= 0. Chosen as the more
// permissive of two values observed for this kind of search, since a low
// cap rejects legitimate deep dependency graphs before genuinely
// exhausting the search space. See DESIGN.md.
const DefaultAttemptBudget = 1000

// BacktrackingSolver implements a depth-first search over
// demands with backtracking, bounded by an attempt budget.
type BacktrackingSolver struct {
	Provider Provider
	Policy   StabilityPolicy
	Network  NetworkLevel
	Budget   int
}

// NewBacktrackingSolver returns a solver with the default stability policy
// (feed.Stable), Full network level, and DefaultAttemptBudget.
func NewBacktrackingSolver(p Provider) *BacktrackingSolver {
	return &BacktrackingSolver{Provider: p, Policy: feed.Stable, Network: Full, Budget: DefaultAttemptBudget}
}

// run carries the mutable state of a single solve attempt: the in-progress
// Selections, the attempt counter, and per-interface diagnostics collected
// for the eventual SolverFailure report if every alternative fails.
type run struct {
	s        *Solver
	sel      *Selections
	attempts int
	budget   int
	command  string
	diag     Diagnostics
}

// Solver is the internal, budget-and-diagnostics-aware counterpart of
// BacktrackingSolver; BacktrackingSolver.Solve constructs one per root
// alternative attempted.
type Solver struct {
	provider Provider
	policy   StabilityPolicy
	network  NetworkLevel
}

// Solve normalizes req, tries
// each architecture alternative in priority order, and returns the first
// Selections that satisfies every essential demand. If every alternative
// fails, it returns a zerr.SolverFailure error carrying the collected
// per-interface diagnostics.
func (b *BacktrackingSolver) Solve(req Requirements) (sel *Selections, err error) {
	start := time.Now()
	var totalAttempts int
	defer func() { metrics.ObserveSolve(start, totalAttempts, err == nil) }()

	if b.Budget <= 0 {
		b.Budget = DefaultAttemptBudget
	}
	req = req.Normalize()

	diag := Diagnostics{}
	for _, alt := range req.Architectures {
		altReq := req
		altReq.Architectures = []feed.Arch{alt}

		s := &Solver{provider: b.Provider, policy: b.Policy, network: b.Network}
		r := &run{
			s:       s,
			sel:     NewSelections(req.InterfaceURI, req.Command),
			budget:  b.Budget,
			command: req.Command,
			diag:    diag,
		}
		root := essentialDemand(req.InterfaceURI, altReq.Architectures)
		root.uses = req.Command
		root.restriction = req.ExtraRestrictions[req.InterfaceURI]

		ok, ferr := r.tryFulfill(root)
		totalAttempts += r.attempts
		if ferr != nil {
			err = ferr
			return nil, err
		}
		if ok {
			return r.sel, nil
		}
	}

	err = zerr.New(zerr.SolverFailure, "solver: no selection satisfies %s: %s", req.InterfaceURI, diag.String())
	return nil, err
}

// tryFulfill implements try_fulfill(demand) -> bool.
func (r *run) tryFulfill(d demand) (bool, error) {
	candidates, err := r.s.provider.Candidates(Requirements{
		InterfaceURI:      d.interfaceURI,
		Architectures:     d.architectures,
		ExtraRestrictions: map[string]feed.Range{d.interfaceURI: d.restriction},
	}, r.s.policy, r.s.network)
	if err != nil {
		return false, err
	}

	compat := r.compatible(candidates, d)

	if existing, ok := r.sel.Get(d.interfaceURI); ok {
		if !r.amongIDs(compat, existing.ID) {
			r.reject(d.interfaceURI, "existing selection no longer compatible with this demand")
			return false, nil
		}
		if d.uses != "" {
			if _, hasCmd := existing.Commands[d.uses]; !hasCmd {
				return r.synthesizeCommand(existing, d)
			}
		}
		return true, nil
	}

	for _, c := range compat {
		r.attempts++
		if r.attempts > r.budget {
			return false, zerr.New(zerr.SolverFailure, "solver: exceeded attempt budget (%d) resolving %s", r.budget, d.interfaceURI)
		}

		sel := toSelection(c, d.interfaceURI)
		r.sel.Set(sel)

		demands := demandsFor(sel, d)
		ok, err := r.tryFulfillAll(demands)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		r.sel.Unset(d.interfaceURI)
	}

	if d.importance == feed.Recommended {
		return true, nil
	}
	return false, nil
}

// synthesizeCommand adds the missing command's induced demands against an
// already-selected implementation's original Commands map, then recurses.
func (r *run) synthesizeCommand(existing Selection, d demand) (bool, error) {
	cmd, ok := existing.Commands[d.uses]
	if !ok {
		r.reject(d.interfaceURI, fmt.Sprintf("implementation %s has no command %q", existing.ID, d.uses))
		return false, nil
	}
	var demands []demand
	for _, dep := range cmd.Dependencies {
		demands = append(demands, dependencyDemand(dep, d.architectures))
	}
	if cmd.RunnerURI != "" {
		demands = append(demands, essentialDemand(cmd.RunnerURI, d.architectures))
	}
	return r.tryFulfillAll(demands)
}

// tryFulfillAll implements try_fulfill_all(demands) -> bool.
func (r *run) tryFulfillAll(demands []demand) (bool, error) {
	var essential, recommended []demand
	for _, d := range demands {
		if d.importance == feed.Essential {
			essential = append(essential, d)
		} else {
			recommended = append(recommended, d)
		}
	}

	for _, d := range essential {
		candidates, err := r.s.provider.Candidates(Requirements{InterfaceURI: d.interfaceURI, Architectures: d.architectures}, r.s.policy, r.s.network)
		if err != nil {
			return false, err
		}
		if len(r.compatible(candidates, d)) == 0 {
			if _, already := r.sel.Get(d.interfaceURI); !already {
				r.reject(d.interfaceURI, "no suitable candidate")
				return false, nil
			}
		}
	}

	snap := r.sel.snapshot()
	ok, err := permute(essential, func(order []demand) (bool, error) {
		for _, d := range order {
			ok, err := r.tryFulfill(d)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		for _, d := range recommended {
			if _, err := r.tryFulfill(d); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	r.sel.restore(snap)
	return false, nil
}

// permute tries every permutation of demands against try, restoring nothing
// itself (the caller snapshots/restores around the whole search); it
// returns on the first permutation for which try succeeds. A single-element
// or empty slice short-circuits to one call, the overwhelmingly common case.
func permute(demands []demand, try func([]demand) (bool, error)) (bool, error) {
	if len(demands) <= 1 {
		return try(demands)
	}
	perm := make([]demand, len(demands))
	copy(perm, demands)
	return permuteRec(perm, 0, try)
}

func permuteRec(perm []demand, k int, try func([]demand) (bool, error)) (bool, error) {
	if k == len(perm) {
		return try(perm)
	}
	for i := k; i < len(perm); i++ {
		perm[k], perm[i] = perm[i], perm[k]
		ok, err := permuteRec(perm, k+1, try)
		perm[k], perm[i] = perm[i], perm[k]
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// compatible filters candidates down to those the Provider marked Suitable
// and that satisfy d's restriction and architecture alternatives and the
// Restrictions of every implementation already selected.
func (r *run) compatible(candidates []SelectionCandidate, d demand) []SelectionCandidate {
	var out []SelectionCandidate
	for _, c := range candidates {
		if !c.Suitable {
			r.reject(d.interfaceURI, fmt.Sprintf("%s: %s", c.Implementation.ID, c.UnsuitableReason))
			continue
		}
		if !d.restriction.Contains(c.Implementation.Version) {
			r.reject(d.interfaceURI, fmt.Sprintf("%s: outside restricted version range", c.Implementation.ID))
			continue
		}
		restricted := false
		for _, iface := range r.sel.order {
			for _, res := range r.sel.byInterface[iface].Restrictions {
				if res.InterfaceURI == d.interfaceURI && !res.Versions.Contains(c.Implementation.Version) {
					restricted = true
				}
			}
		}
		if restricted {
			r.reject(d.interfaceURI, fmt.Sprintf("%s: outside a restriction of a selected implementation", c.Implementation.ID))
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *run) amongIDs(candidates []SelectionCandidate, id string) bool {
	for _, c := range candidates {
		if c.Implementation.ID == id {
			return true
		}
	}
	return false
}

func (r *run) reject(interfaceURI, reason string) {
	r.diag.Reject(interfaceURI, reason)
}

func toSelection(c SelectionCandidate, interfaceURI string) Selection {
	impl := c.Implementation
	return Selection{
		InterfaceURI:   interfaceURI,
		ID:             impl.ID,
		Version:        impl.Version,
		Arch:           impl.Arch,
		Stability:      impl.Stability,
		FromFeed:       c.FeedURI,
		ManifestDigest: string(impl.ManifestDigest),
		Commands:       impl.Commands,
		Dependencies:   impl.Dependencies,
		Restrictions:   impl.Restrictions,
	}
}

// demandsFor derives the induced demands of a tentative selection: its bare
// dependencies (those whose Uses is empty or names the requested command),
// plus, when a command is requested and the selection has it, that
// command's dependencies and a runner demand if the command delegates
// execution to another interface. The implementation's own Restrictions are
// not turned into demands; compatible() checks them against the candidates
// of the restricted interface on its next tryFulfill.
func demandsFor(sel Selection, d demand) []demand {
	var demands []demand
	for _, dep := range sel.Dependencies {
		if dep.Uses != "" && dep.Uses != d.uses {
			continue
		}
		demands = append(demands, dependencyDemand(dep, d.architectures))
	}
	if d.uses != "" {
		if cmd, ok := sel.Commands[d.uses]; ok {
			for _, dep := range cmd.Dependencies {
				demands = append(demands, dependencyDemand(dep, d.architectures))
			}
			if cmd.RunnerURI != "" {
				demands = append(demands, essentialDemand(cmd.RunnerURI, d.architectures))
			}
		}
	}
	return demands
}
