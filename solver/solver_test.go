package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeroinstall-go/zeroinstall/feed"
)

func feedOf(uri string, impls ...feed.Implementation) *feed.Normalized {
	return &feed.Normalized{URI: uri, Implementations: impls}
}

func TestSolveSimpleRootOnly(t *testing.T) {
	provider := DefaultProvider{
		Feeds: fakeFeedProvider{feeds: map[string]*feed.Normalized{
			"app": feedOf("app", feed.Implementation{
				ID: "app-1", Version: "1.0", Arch: feed.Arch{OS: feed.Linux, CPU: feed.X64},
				Commands: map[string]feed.Command{"run": {Name: "run", Path: "bin/app"}},
			}),
		}},
	}
	s := NewBacktrackingSolver(provider)
	sel, err := s.Solve(Requirements{InterfaceURI: "app", Architectures: []feed.Arch{{OS: feed.Linux, CPU: feed.X64}}})
	require.NoError(t, err)
	got, ok := sel.Get("app")
	require.True(t, ok)
	require.Equal(t, "app-1", got.ID)
}

func TestSolveWithEssentialDependency(t *testing.T) {
	provider := DefaultProvider{
		Feeds: fakeFeedProvider{feeds: map[string]*feed.Normalized{
			"app": feedOf("app", feed.Implementation{
				ID: "app-1", Version: "1.0", Arch: feed.Arch{OS: feed.Linux, CPU: feed.X64},
				Commands: map[string]feed.Command{"run": {
					Name: "run", Path: "bin/app",
					Dependencies: []feed.Dependency{{InterfaceURI: "lib", Importance: feed.Essential}},
				}},
			}),
			"lib": feedOf("lib", feed.Implementation{
				ID: "lib-1", Version: "1.0", Arch: feed.Arch{OS: feed.Linux, CPU: feed.X64},
			}),
		}},
	}
	s := NewBacktrackingSolver(provider)
	sel, err := s.Solve(Requirements{InterfaceURI: "app", Architectures: []feed.Arch{{OS: feed.Linux, CPU: feed.X64}}})
	require.NoError(t, err)
	_, ok := sel.Get("lib")
	require.True(t, ok)
}

func TestSolveBacktracksOnConflict(t *testing.T) {
	// app has two impls: v2 depends on lib >= 2.0 (doesn't exist), v1 depends
	// on nothing. The solver must reject v2 and fall back to v1.
	provider := DefaultProvider{
		Feeds: fakeFeedProvider{feeds: map[string]*feed.Normalized{
			"app": feedOf("app",
				feed.Implementation{
					ID: "app-2", Version: "2.0", Arch: feed.Arch{OS: feed.Linux, CPU: feed.X64},
					Commands: map[string]feed.Command{"run": {
						Name: "run", Path: "bin/app",
						Dependencies: []feed.Dependency{{
							InterfaceURI: "lib", Importance: feed.Essential,
							Versions: feed.ParseRange("2.0.."),
						}},
					}},
				},
				feed.Implementation{
					ID: "app-1", Version: "1.0", Arch: feed.Arch{OS: feed.Linux, CPU: feed.X64},
					Commands: map[string]feed.Command{"run": {Name: "run", Path: "bin/app"}},
				},
			),
			"lib": feedOf("lib", feed.Implementation{
				ID: "lib-1", Version: "1.0", Arch: feed.Arch{OS: feed.Linux, CPU: feed.X64},
			}),
		}},
	}
	s := NewBacktrackingSolver(provider)
	sel, err := s.Solve(Requirements{InterfaceURI: "app", Architectures: []feed.Arch{{OS: feed.Linux, CPU: feed.X64}}})
	require.NoError(t, err)
	got, ok := sel.Get("app")
	require.True(t, ok)
	require.Equal(t, "app-1", got.ID)
}

func TestSolveFailsWithDiagnosticsWhenNoCandidate(t *testing.T) {
	provider := DefaultProvider{
		Feeds: fakeFeedProvider{feeds: map[string]*feed.Normalized{
			"app": feedOf("app", feed.Implementation{
				ID: "app-1", Version: "1.0", Arch: feed.Arch{OS: feed.Windows, CPU: feed.X64},
			}),
		}},
	}
	s := NewBacktrackingSolver(provider)
	_, err := s.Solve(Requirements{InterfaceURI: "app", Architectures: []feed.Arch{{OS: feed.Linux, CPU: feed.X64}}})
	require.Error(t, err)
}

func TestSolveDropsUnsatisfiableRecommendedDependency(t *testing.T) {
	provider := DefaultProvider{
		Feeds: fakeFeedProvider{feeds: map[string]*feed.Normalized{
			"app": feedOf("app", feed.Implementation{
				ID: "app-1", Version: "1.0", Arch: feed.Arch{OS: feed.Linux, CPU: feed.X64},
				Commands: map[string]feed.Command{"run": {
					Name: "run", Path: "bin/app",
					Dependencies: []feed.Dependency{{InterfaceURI: "missing-lib", Importance: feed.Recommended}},
				}},
			}),
		}},
	}
	s := NewBacktrackingSolver(provider)
	sel, err := s.Solve(Requirements{InterfaceURI: "app", Architectures: []feed.Arch{{OS: feed.Linux, CPU: feed.X64}}})
	require.NoError(t, err)
	_, ok := sel.Get("app")
	require.True(t, ok)
	_, ok = sel.Get("missing-lib")
	require.False(t, ok)
}
