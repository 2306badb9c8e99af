// Package feed implements the Zero Install feed data model and the
// normalization contract: turning a parsed, "raw" feed
// (groups nested arbitrarily, legacy main= attributes, bare digest ids)
// into a flat, validated set of implementations the solver's candidate
// provider can enumerate directly.
package feed

import (
	"fmt"

	"github.com/zeroinstall-go/zeroinstall/digest"
	"github.com/zeroinstall-go/zeroinstall/recipe"
	"github.com/zeroinstall-go/zeroinstall/zerr"
)

// Binding describes how a dependency's selected implementation is exposed
// to the command that depends on it (an environment variable prepended/
// appended/set, or an executable placed on PATH). The core treats bindings
// as opaque data: it records and round-trips them but does not interpret
// them (that is the launcher's job, out of scope here).
type Binding struct {
	Kind     string // "environment" or "executable-in-path"
	Name     string
	Insert   string
	Value    string
	Mode     string // "prepend", "append", "replace"
	Default  string
	Separator string
}

// Dependency is a required or recommended implementation of another
// interface, named by InterfaceURI, with its own version restriction and
// bindings.
type Dependency struct {
	InterfaceURI string
	Importance   Importance
	Versions     Range
	Bindings     []Binding
	// Uses, if non-empty, restricts this dependency to only the named
	// <command>; an empty Uses applies unconditionally.
	Uses string
}

// Importance distinguishes a dependency the solver must satisfy from one
// it may silently drop.
type Importance int

const (
	Essential Importance = iota
	Recommended
)

// Command is a named, runnable entry point of an implementation: a Path
// relative to the implementation's root, its own Dependencies (e.g. a
// "compile" command depending on a build toolchain), and an optional
// RunnerOf another interface that provides the interpreter executing Path.
type Command struct {
	Name         string
	Path         string
	Dependencies []Dependency
	Bindings     []Binding
	RunnerURI    string
	RunnerArgs   []string
}

// Implementation is one concrete, versioned, content-addressed candidate
// for an interface.
type Implementation struct {
	ID             string
	Version        Version
	Arch           Arch
	Stability      Stability
	ManifestDigest digest.ID
	Languages      []string
	Commands       map[string]Command
	Dependencies   []Dependency
	Restrictions   []Dependency // interface-level restrictions, no bindings
	RetrievalMethods []recipe.Method
	// Released, if non-zero, is the Unix timestamp of the release, used
	// only for diagnostics; the solver does not rank on it.
	Released int64
}

// Best returns the algorithm of the implementation's manifest digest. An
// Implementation carries a single digest; when a <manifest-digest> element
// lists several, ParseXML keeps the strongest (sha256new > sha256 >
// sha1new).
func (impl Implementation) Best() (digest.Format, bool) {
	f, _, ok := digest.ParseID(string(impl.ManifestDigest))
	return f, ok
}

// Group is a nesting container that propagates shared attributes down to
// the Implementations and nested Groups it contains.
// A raw, unnormalized Feed is a forest of these; Normalize flattens it.
type Group struct {
	Arch         Arch
	Stability    Stability
	Version      Version
	Commands     map[string]Command
	Dependencies []Dependency
	Restrictions []Dependency
	Languages    []string

	Groups          []Group
	Implementations []rawImplementation
}

// rawImplementation is an <implementation> as parsed, before group
// attributes have been propagated onto it and before its bare id has been
// parsed into a ManifestDigest.
type rawImplementation struct {
	ID             string
	Version        Version
	Arch           Arch
	Stability      Stability
	ManifestDigest digest.ID
	Languages      []string
	Commands       map[string]Command
	Dependencies   []Dependency
	Main           string // legacy main= attribute
	RetrievalMethods []recipe.Method
	Released       int64
}

// Feed is a raw, not-yet-normalized interface document: one or more
// top-level groups/implementations, plus references to other feeds that
// may also provide implementations of this interface.
type Feed struct {
	URI          string
	Groups       []Group
	FeedRefs     []string // <feed> elements: other feed URIs to consult
	Restrictions []Dependency
}

// Normalized is the flattened, validated output of Normalize: a plain list
// of Implementations, each fully resolved (no remaining group attributes to
// inherit).
type Normalized struct {
	URI             string
	Implementations []Implementation
	FeedRefs        []string
}

// Normalize performs five steps in order: group
// propagation, bare-id digest extraction, main= desugaring, validation, and
// interface-restriction propagation.
func Normalize(f Feed, feedURI string) (*Normalized, error) {
	out := &Normalized{URI: feedURI, FeedRefs: f.FeedRefs}

	for _, g := range f.Groups {
		impls, err := flattenGroup(g, inherited{
			arch:      Arch{},
			stability: Unset,
			version:   "",
			commands:  nil,
			deps:      nil,
			restricts: nil,
			languages: nil,
		})
		if err != nil {
			return nil, err
		}
		out.Implementations = append(out.Implementations, impls...)
	}

	for i := range out.Implementations {
		impl := &out.Implementations[i]
		if impl.ManifestDigest == "" && digest.LooksLikeID(impl.ID) {
			impl.ManifestDigest = digest.ID(impl.ID)
		}
		if impl.ManifestDigest == "" {
			return nil, zerr.New(zerr.InvalidData, "feed %s: implementation %q has no manifest digest", feedURI, impl.ID)
		}
		if !impl.ManifestDigest.Valid() {
			return nil, zerr.New(zerr.InvalidData, "feed %s: implementation %q has an unrecognized manifest digest %q", feedURI, impl.ID, impl.ManifestDigest)
		}
		if impl.Version == "" {
			return nil, zerr.New(zerr.InvalidData, "feed %s: implementation %q has no version", feedURI, impl.ID)
		}
		// Step 5: propagate interface-level restrictions onto every
		// implementation's own restriction list.
		impl.Restrictions = append(impl.Restrictions, f.Restrictions...)
	}

	return out, nil
}

type inherited struct {
	arch      Arch
	stability Stability
	version   Version
	commands  map[string]Command
	deps      []Dependency
	restricts []Dependency
	languages []string
}

func (in inherited) override(g Group) inherited {
	out := in
	if g.Arch != (Arch{}) {
		out.arch = g.Arch
	}
	if g.Stability != Unset {
		out.stability = g.Stability
	}
	if g.Version != "" {
		out.version = g.Version
	}
	if len(g.Commands) > 0 {
		merged := make(map[string]Command, len(in.commands)+len(g.Commands))
		for k, v := range in.commands {
			merged[k] = v
		}
		for k, v := range g.Commands {
			merged[k] = v
		}
		out.commands = merged
	}
	if len(g.Dependencies) > 0 {
		out.deps = append(append([]Dependency{}, in.deps...), g.Dependencies...)
	}
	if len(g.Restrictions) > 0 {
		out.restricts = append(append([]Dependency{}, in.restricts...), g.Restrictions...)
	}
	if len(g.Languages) > 0 {
		out.languages = g.Languages
	}
	return out
}

// flattenGroup recursively propagates in, then g's own attributes (inner
// values override outer, step 1), down through nested
// groups to the implementations they contain.
func flattenGroup(g Group, in inherited) ([]Implementation, error) {
	cur := in.override(g)

	var out []Implementation
	for _, raw := range g.Implementations {
		impl := Implementation{
			ID:             raw.ID,
			Version:        raw.Version,
			Arch:           raw.Arch,
			Stability:      raw.Stability,
			ManifestDigest: raw.ManifestDigest,
			Languages:      raw.Languages,
			Commands:       raw.Commands,
			Dependencies:   raw.Dependencies,
			RetrievalMethods: raw.RetrievalMethods,
			Released:       raw.Released,
		}
		if impl.Arch == (Arch{}) {
			impl.Arch = cur.arch
		}
		if len(impl.Languages) == 0 {
			impl.Languages = cur.languages
		}
		if impl.Stability == Unset {
			impl.Stability = cur.stability
		}
		if impl.Version == "" {
			impl.Version = cur.version
		}
		if len(impl.Commands) == 0 {
			impl.Commands = cur.commands
		} else if len(cur.commands) > 0 {
			merged := make(map[string]Command, len(cur.commands)+len(impl.Commands))
			for k, v := range cur.commands {
				merged[k] = v
			}
			for k, v := range impl.Commands {
				merged[k] = v
			}
			impl.Commands = merged
		}
		impl.Dependencies = append(append([]Dependency{}, cur.deps...), impl.Dependencies...)

		// Step 3: a legacy main= attribute becomes an implicit <command
		// name="run">, unless an explicit "run" command already exists.
		if raw.Main != "" {
			if impl.Commands == nil {
				impl.Commands = map[string]Command{}
			}
			if _, ok := impl.Commands["run"]; !ok {
				impl.Commands["run"] = Command{Name: "run", Path: raw.Main}
			}
		}

		out = append(out, impl)
	}

	for _, sub := range g.Groups {
		subImpls, err := flattenGroup(sub, cur)
		if err != nil {
			return nil, err
		}
		out = append(out, subImpls...)
	}
	return out, nil
}

func (d Dependency) String() string {
	return fmt.Sprintf("%s %s", d.InterfaceURI, d.Versions)
}
