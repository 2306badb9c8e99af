package config

import (
	"io"
	"reflect"

	"github.com/zeroinstall-go/zeroinstall/feed"
	"github.com/zeroinstall-go/zeroinstall/solver"
)

// CurrentVersion is the most recent configuration format this module can
// parse.
var CurrentVersion = MajorMinorVersion(0, 1)

// StoreConfig names one layer of a CompositeStore, ordered outermost
// (highest priority for writes) first.
type StoreConfig struct {
	// Path is the store's root directory.
	Path string `yaml:"path"`
	// ReadOnly marks a layer that Add/Remove/Optimise/Purge must skip,
	// corresponding to store.ReadOnly.
	ReadOnly bool `yaml:"readonly,omitempty"`
}

// SolverConfig carries tunable solver knobs: the stability
// policy, network level, and attempt budget a BacktrackingSolver is
// constructed with.
type SolverConfig struct {
	// StabilityPolicy is the minimum stability treated as "policy-level and
	// above are indistinguishable" in SelectionCandidateComparer step 2.
	// One of "insecure", "buggy", "developer", "testing", "stable",
	// "packaged"; defaults to "stable".
	StabilityPolicy string `yaml:"stability-policy,omitempty"`
	// Network is one of "full", "minimal", "offline"; defaults to "full".
	Network string `yaml:"network,omitempty"`
	// AttemptBudget overrides solver.DefaultAttemptBudget when positive.
	AttemptBudget int `yaml:"attempt-budget,omitempty"`
}

// Configuration is the top-level, versioned, YAML-backed configuration for
// a Zero Install core process: where its stores live, how its solver is
// tuned, and where per-interface feed preference files are kept. It is
// scoped down to what the store and solver packages consume; there is no
// HTTP, auth, or storage-driver section because none of that is in scope.
type Configuration struct {
	// Version is the configuration schema version.
	Version Version `yaml:"version"`

	// Stores lists the composite store's layers, outermost first.
	Stores []StoreConfig `yaml:"stores"`

	// Solver tunes the BacktrackingSolver constructed from this
	// configuration.
	Solver SolverConfig `yaml:"solver,omitempty"`

	// FeedPreferencesDir is the directory holding per-interface
	// FeedPreferences YAML/INI files consulted by the candidate provider.
	FeedPreferencesDir string `yaml:"feed-preferences-dir,omitempty"`

	// SitePackagesDir is the per-interface local-feed directory consulted
	// first by the candidate provider.
	SitePackagesDir string `yaml:"site-packages-dir,omitempty"`
}

// StabilityPolicy resolves the configured stability policy string, falling
// back to feed.Stable (the conventional default) when unset or
// unrecognized.
func (c *Configuration) StabilityPolicy() feed.Stability {
	if c.Solver.StabilityPolicy == "" {
		return feed.Stable
	}
	if s, ok := feed.ParseStability(c.Solver.StabilityPolicy); ok {
		return s
	}
	return feed.Stable
}

// NetworkLevel resolves the configured network level string, defaulting to
// solver.Full.
func (c *Configuration) NetworkLevel() solver.NetworkLevel {
	switch c.Solver.Network {
	case "minimal":
		return solver.Minimal
	case "offline":
		return solver.Offline
	default:
		return solver.Full
	}
}

// AttemptBudget resolves the configured solver attempt budget, defaulting
// to solver.DefaultAttemptBudget when unset.
func (c *Configuration) AttemptBudget() int {
	if c.Solver.AttemptBudget <= 0 {
		return solver.DefaultAttemptBudget
	}
	return c.Solver.AttemptBudget
}

// Parse parses a YAML configuration document, applying the REGISTRY-style
// environment overrides through Parser, using the ZEROINSTALL prefix
// for this module's environment variables.
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	p := NewParser("zeroinstall", []VersionedParseInfo{
		{
			Version: CurrentVersion,
			ParseAs: reflect.TypeOf(Configuration{}),
			ConversionFunc: func(c interface{}) (interface{}, error) {
				cfg := c.(*Configuration)
				return cfg, nil
			},
		},
	})

	var cfg Configuration
	if err := p.Parse(in, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
