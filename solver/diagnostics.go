package solver

import "strings"

// Diagnostics collects, per interface, the reasons every considered
// candidate was rejected during a failed solve.
// It is attached to the zerr.SolverFailure error text a failed Solve
// returns.
type Diagnostics map[string][]string

// Reject records one rejection reason for interfaceURI.
func (d Diagnostics) Reject(interfaceURI, reason string) {
	d[interfaceURI] = append(d[interfaceURI], reason)
}

// String renders the diagnostics as an indented report, one section per
// interface in the order first encountered is not guaranteed (maps have no
// order); callers that need determinism should sort Interfaces() themselves.
func (d Diagnostics) String() string {
	if len(d) == 0 {
		return "(no candidates considered)"
	}
	var b strings.Builder
	for iface, reasons := range d {
		b.WriteString("\n  ")
		b.WriteString(iface)
		b.WriteString(":")
		for _, reason := range reasons {
			b.WriteString("\n    - ")
			b.WriteString(reason)
		}
	}
	return b.String()
}

// Interfaces returns the set of interfaces with at least one rejection.
func (d Diagnostics) Interfaces() []string {
	out := make([]string, 0, len(d))
	for iface := range d {
		out = append(out, iface)
	}
	return out
}
