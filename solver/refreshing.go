package solver

// StalenessChecker is the outer wrapper's sole collaborator: a feed manager
// that knows whether any feed consulted by the last solve is stale enough
// to warrant a refresh-and-resolve pass.
type StalenessChecker interface {
	// ShouldRefresh reports whether a feed used during the solve for
	// interfaceURI is stale and should be re-fetched before trying again.
	ShouldRefresh(interfaceURI string) bool
	// Refresh forces the feed manager to re-fetch whatever feeds it thinks
	// are stale for interfaceURI.
	Refresh(interfaceURI string) error
}

// RefreshingSolver wraps a BacktrackingSolver with a two-pass staleness
// check: solve once; if the feed manager then reports the
// root interface should be refreshed, force a refresh and solve again. The
// inner solver runs at most twice.
type RefreshingSolver struct {
	Inner   *BacktrackingSolver
	Staleness StalenessChecker
}

// Solve runs the wrapped solver, consulting Staleness between passes. A nil
// Staleness makes this equivalent to a single Inner.Solve call.
func (rs *RefreshingSolver) Solve(req Requirements) (*Selections, error) {
	sel, err := rs.Inner.Solve(req)
	if rs.Staleness == nil {
		return sel, err
	}
	if !rs.Staleness.ShouldRefresh(req.InterfaceURI) {
		return sel, err
	}
	if rerr := rs.Staleness.Refresh(req.InterfaceURI); rerr != nil {
		return sel, err
	}
	return rs.Inner.Solve(req)
}
