package solver

import (
	"sort"

	"github.com/zeroinstall-go/zeroinstall/feed"
)

// NetworkLevel controls how aggressively a cached implementation is
// preferred over an uncached one of higher preference.
type NetworkLevel int

const (
	Full NetworkLevel = iota
	Minimal
	Offline
)

// StabilityPolicy is the ceiling above which distinct stability levels are
// indistinguishable for ranking purposes. The
// default policy is feed.Stable.
type StabilityPolicy = feed.Stability

// FeedPreferences holds the user's per-implementation stability overrides
// for one feed, keyed by implementation id.
type FeedPreferences struct {
	StabilityByID map[string]feed.Stability
}

func (p FeedPreferences) stabilityFor(id string) feed.Stability {
	if p.StabilityByID == nil {
		return feed.Unset
	}
	return p.StabilityByID[id]
}

// SelectionCandidate pairs an implementation with the feed it came from and
// the preference context needed to rank and filter it.
type SelectionCandidate struct {
	FeedURI        string
	Implementation feed.Implementation
	Preferences    FeedPreferences
	IsPackage      bool // from a native package manager, tagged "distribution:"
	Cached         bool

	// Suitable and UnsuitableReason are filled in by the Provider when it
	// evaluates the candidate against Requirements; unsuitable candidates
	// are retained (for diagnostics) but skipped by the solver.
	Suitable         bool
	UnsuitableReason string
}

// EffectiveStability applies the user's per-id override, if any, and the
// policy ceiling.
func (c SelectionCandidate) EffectiveStability(policy StabilityPolicy) feed.Stability {
	return feed.Effective(c.Implementation.Stability, c.Preferences.stabilityFor(c.Implementation.ID), policy)
}

// Provider enumerates and filters SelectionCandidates for one interface
//: site-packages, native feeds, <feed> references, user feed
// preferences, the primary feed, and native package-manager implementations,
// each collected and then evaluated for suitability against req.
type Provider interface {
	Candidates(req Requirements, policy StabilityPolicy, network NetworkLevel) ([]SelectionCandidate, error)
}

// FeedProvider resolves a feed URI to its normalized contents, the sole
// collaborator contract the solver needs from the wider feed-management
// subsystem.
type FeedProvider interface {
	Feed(uri string) (*feed.Normalized, error)
	Preferences(uri string) FeedPreferences
}

// PackageManager resolves native distribution packages that provide an
// interface, tagged with a synthetic "distribution:" feed URI. The core never talks to a real package manager directly;
// this is an injected collaborator.
type PackageManager interface {
	Query(interfaceURI string) ([]feed.Implementation, error)
}

// CacheChecker reports whether an implementation's manifest digest is
// already materialized in the local store, used by candidate ordering step
// 1 and step 7.
type CacheChecker interface {
	Contains(manifestDigest string) bool
}

// DefaultProvider is the core's Provider: it walks a primary feed plus its
// <feed> references (cycle-tracked by feed_uri) and an optional
// PackageManager, in priority order. Site-packages and
// native filesystem feed discovery are left to the caller via ExtraFeeds,
// since they are filesystem-layout concerns outside this package's scope.
type DefaultProvider struct {
	Feeds        FeedProvider
	Packages     PackageManager
	Cache        CacheChecker
	ExtraFeeds   map[string][]string // interfaceURI -> extra feed URIs (site-packages, native feeds, user prefs)
}

// Candidates implements Provider.
func (p DefaultProvider) Candidates(req Requirements, policy StabilityPolicy, network NetworkLevel) ([]SelectionCandidate, error) {
	var out []SelectionCandidate
	visited := map[string]bool{}

	feedURIs := append([]string{}, p.ExtraFeeds[req.InterfaceURI]...)
	feedURIs = append(feedURIs, req.InterfaceURI)

	var walk func(uri string) error
	walk = func(uri string) error {
		if visited[uri] {
			return nil
		}
		visited[uri] = true
		nf, err := p.Feeds.Feed(uri)
		if err != nil {
			return err
		}
		prefs := p.Feeds.Preferences(uri)
		for _, impl := range nf.Implementations {
			out = append(out, SelectionCandidate{FeedURI: uri, Implementation: impl, Preferences: prefs})
		}
		for _, ref := range nf.FeedRefs {
			if err := walk(ref); err != nil {
				return err
			}
		}
		return nil
	}

	for _, uri := range feedURIs {
		if err := walk(uri); err != nil {
			return nil, err
		}
	}

	if p.Packages != nil {
		pkgImpls, err := p.Packages.Query(req.InterfaceURI)
		if err != nil {
			return nil, err
		}
		for _, impl := range pkgImpls {
			out = append(out, SelectionCandidate{
				FeedURI:        "distribution:" + req.InterfaceURI,
				Implementation: impl,
				IsPackage:      true,
			})
		}
	}

	for i := range out {
		evaluateSuitability(&out[i], req, policy)
		if p.Cache != nil {
			out[i].Cached = p.Cache.Contains(string(out[i].Implementation.ManifestDigest))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j], policy, network)
	})
	return out, nil
}

func evaluateSuitability(c *SelectionCandidate, req Requirements, policy StabilityPolicy) {
	impl := c.Implementation
	archOK := false
	for _, a := range req.Architectures {
		if impl.Arch.Compatible(a) {
			archOK = true
			break
		}
	}
	if !archOK {
		c.UnsuitableReason = "incompatible architecture"
		return
	}
	if len(impl.Languages) > 0 && len(req.Languages) > 0 {
		langOK := false
		for _, want := range req.Languages {
			for _, have := range impl.Languages {
				if want == have {
					langOK = true
				}
			}
		}
		if !langOK {
			c.UnsuitableReason = "no acceptable language"
			return
		}
	}
	eff := c.EffectiveStability(policy)
	if eff == feed.Buggy || eff == feed.Insecure {
		c.UnsuitableReason = "stability below policy (" + eff.String() + ")"
		return
	}
	if restrict, ok := req.ExtraRestrictions[req.InterfaceURI]; ok {
		if !restrict.Contains(impl.Version) {
			c.UnsuitableReason = "version outside extra restriction"
			return
		}
	}
	c.Suitable = true
}

// Less implements the 8-step total order of candidate
// ordering: a strictly precedes b ("a is better") when this returns true.
func Less(a, b SelectionCandidate, policy StabilityPolicy, network NetworkLevel) bool {
	if c := cmpCached(a, b, network); c != 0 {
		return c < 0
	}
	if c := -cmpInt(effectiveRank(a, policy), effectiveRank(b, policy)); c != 0 {
		return c < 0
	}
	if c := -cmpBool(a.IsPackage, b.IsPackage); c != 0 {
		return c < 0
	}
	if c := -cmpInt(a.Implementation.Arch.OS.Specificity(), b.Implementation.Arch.OS.Specificity()); c != 0 {
		return c < 0
	}
	if c := -cmpInt(a.Implementation.Arch.CPU.Specificity(), b.Implementation.Arch.CPU.Specificity()); c != 0 {
		return c < 0
	}
	if c := -a.Implementation.Version.Compare(b.Implementation.Version); c != 0 {
		return c < 0
	}
	if c := -cmpBool(a.Cached, b.Cached); c != 0 {
		return c < 0
	}
	return a.Implementation.ID < b.Implementation.ID
}

// cmpCached implements step 1: cache presence is decisive when the network
// is constrained, or when the two versions tie (in which case an already
// materialized implementation is free to use and any other tiebreak would
// be arbitrary).
func cmpCached(a, b SelectionCandidate, network NetworkLevel) int {
	versionsEqual := a.Implementation.Version.Compare(b.Implementation.Version) == 0
	if network == Minimal || network == Offline || versionsEqual {
		return -cmpBool(a.Cached, b.Cached)
	}
	return 0
}

// effectiveRank is the candidate's effective stability as an int. Because
// feed.Effective clamps at policy, two above-policy stabilities compare
// equal; Unset ranks below every declared stability.
func effectiveRank(c SelectionCandidate, policy StabilityPolicy) int {
	return int(c.EffectiveStability(policy))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}
