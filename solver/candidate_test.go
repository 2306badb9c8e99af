package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeroinstall-go/zeroinstall/feed"
)

func mkCandidate(id, version string, cached bool) SelectionCandidate {
	return SelectionCandidate{
		Implementation: feed.Implementation{ID: id, Version: feed.Version(version)},
		Cached:         cached,
		Suitable:       true,
	}
}

func TestLessPrefersHigherVersion(t *testing.T) {
	a := mkCandidate("a", "2.0", false)
	b := mkCandidate("b", "1.0", false)
	require.True(t, Less(a, b, feed.Stable, Full))
	require.False(t, Less(b, a, feed.Stable, Full))
}

func TestLessPrefersCachedWhenVersionsEqual(t *testing.T) {
	a := mkCandidate("a", "1.0", true)
	b := mkCandidate("b", "1.0", false)
	require.True(t, Less(a, b, feed.Stable, Full))
}

func TestLessPrefersCachedUnderMinimalNetwork(t *testing.T) {
	cached := mkCandidate("cached", "1.0", true)
	newer := mkCandidate("newer", "2.0", false)
	require.True(t, Less(cached, newer, feed.Stable, Minimal))
	require.False(t, Less(cached, newer, feed.Stable, Full))
}

func TestLessPrefersPackageCandidate(t *testing.T) {
	a := mkCandidate("a", "1.0", false)
	a.IsPackage = true
	b := mkCandidate("b", "1.0", false)
	require.True(t, Less(a, b, feed.Stable, Full))
}

func TestLessFallsBackToIDOrdinal(t *testing.T) {
	a := mkCandidate("a", "1.0", false)
	b := mkCandidate("b", "1.0", false)
	require.True(t, Less(a, b, feed.Stable, Full))
	require.False(t, Less(b, a, feed.Stable, Full))
}

func TestLessHigherStabilityWins(t *testing.T) {
	a := mkCandidate("a", "1.0", false)
	a.Implementation.Stability = feed.Testing
	b := mkCandidate("b", "1.0", false)
	b.Implementation.Stability = feed.Buggy
	require.True(t, Less(a, b, feed.Stable, Full))
}

func TestLessOSSpecificityBeatsCPUSpecificity(t *testing.T) {
	a := mkCandidate("a", "1.0", false)
	a.Implementation.Arch = feed.Arch{OS: feed.Linux}
	b := mkCandidate("b", "1.0", false)
	b.Implementation.Arch = feed.Arch{OS: feed.Posix, CPU: feed.I686}
	require.True(t, Less(a, b, feed.Stable, Full))
}

type fakeFeedProvider struct {
	feeds map[string]*feed.Normalized
	prefs map[string]FeedPreferences
}

func (p fakeFeedProvider) Feed(uri string) (*feed.Normalized, error) {
	if nf, ok := p.feeds[uri]; ok {
		return nf, nil
	}
	return &feed.Normalized{URI: uri}, nil
}
func (p fakeFeedProvider) Preferences(uri string) FeedPreferences    { return p.prefs[uri] }

func TestDefaultProviderCollectsAndSorts(t *testing.T) {
	provider := DefaultProvider{
		Feeds: fakeFeedProvider{
			feeds: map[string]*feed.Normalized{
				"http://example.com/app.xml": {
					URI: "http://example.com/app.xml",
					Implementations: []feed.Implementation{
						{ID: "old", Version: "1.0", Arch: feed.Arch{OS: feed.Linux, CPU: feed.X64}},
						{ID: "new", Version: "2.0", Arch: feed.Arch{OS: feed.Linux, CPU: feed.X64}},
					},
				},
			},
		},
	}

	req := Requirements{
		InterfaceURI:  "http://example.com/app.xml",
		Architectures: []feed.Arch{{OS: feed.Linux, CPU: feed.X64}},
	}
	candidates, err := provider.Candidates(req, feed.Stable, Full)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, "new", candidates[0].Implementation.ID)
	require.True(t, candidates[0].Suitable)
}

func TestDefaultProviderMarksArchitectureMismatchUnsuitable(t *testing.T) {
	provider := DefaultProvider{
		Feeds: fakeFeedProvider{
			feeds: map[string]*feed.Normalized{
				"app": {URI: "app", Implementations: []feed.Implementation{
					{ID: "win-only", Version: "1.0", Arch: feed.Arch{OS: feed.Windows}},
				}},
			},
		},
	}
	req := Requirements{InterfaceURI: "app", Architectures: []feed.Arch{{OS: feed.Linux, CPU: feed.X64}}}
	candidates, err := provider.Candidates(req, feed.Stable, Full)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.False(t, candidates[0].Suitable)
	require.NotEmpty(t, candidates[0].UnsuitableReason)
}
