// Package solver implements the Zero Install dependency solver: given a
// Requirements set and a way to fetch normalized feeds (a FeedProvider),
// BacktrackingSolver.Solve produces a Selections document that satisfies
// every constraint and prefers "better" candidates under the total order
// defined in  (cache presence, stability, architecture
// specificity, version).
package solver

import (
	"runtime"

	"github.com/zeroinstall-go/zeroinstall/feed"
)

// Requirements is the normalized input to a solve: the interface to
// satisfy, the command to run on it, the architecture/language
// alternatives acceptable, and any caller-supplied extra version
// restrictions.
type Requirements struct {
	InterfaceURI     string
	Command          string
	Architectures    []feed.Arch // normalized alternatives, tried in order
	Languages        []string
	ExtraRestrictions map[string]feed.Range
}

// DefaultCommand is used when the caller does not name one and the root
// interface is not a source-only request.
const DefaultCommand = "run"

// hostArch is overridable in tests; defaults to the running process's
// GOOS/GOARCH translated into the feed.Arch enum.
var hostArch = detectHostArch()

func detectHostArch() feed.Arch {
	var a feed.Arch
	switch runtime.GOOS {
	case "linux":
		a.OS = feed.Linux
	case "darwin":
		a.OS = feed.MacOSX
	case "windows":
		a.OS = feed.Windows
	case "solaris":
		a.OS = feed.Solaris
	default:
		a.OS = feed.AllOS
	}
	switch runtime.GOARCH {
	case "amd64":
		a.CPU = feed.X64
	case "386":
		a.CPU = feed.I686
	case "arm":
		a.CPU = feed.ArmV6L
	case "arm64":
		a.CPU = feed.AArch64
	case "ppc64":
		a.CPU = feed.Ppc64
	default:
		a.CPU = feed.AllCPU
	}
	return a
}

// Normalize fills in defaults (command "run", host architecture, languages
// ["en"]; the process locale is not consulted) and, on a 64-bit host, expands the architecture into the two
// ordered alternatives (host-arch, x86), to model
// 32-on-64 compatibility: a 64-bit host first tries to satisfy the request
// natively, then falls back to an all-32-bit selection.
func (r Requirements) Normalize() Requirements {
	out := r
	if out.Command == "" && !isSourceRequest(out) {
		out.Command = DefaultCommand
	}
	if len(out.Languages) == 0 {
		out.Languages = []string{"en"}
	}
	if out.ExtraRestrictions == nil {
		out.ExtraRestrictions = map[string]feed.Range{}
	}
	if len(out.Architectures) > 0 {
		return out
	}
	host := hostArch
	out.Architectures = []feed.Arch{host}
	if host.CPU == feed.X64 {
		out.Architectures = append(out.Architectures, feed.Arch{OS: host.OS, CPU: feed.I686})
	}
	return out
}

func isSourceRequest(r Requirements) bool {
	return r.Command == "compile"
}
