package store

// Kind distinguishes how an ImplementationStore may be used.
type Kind int

const (
	// ReadWrite stores accept Add, Remove, and Optimise.
	ReadWrite Kind = iota
	// ReadOnly stores serve lookups only; Add/Remove/Optimise/Purge fail
	// with zerr.UnauthorizedAccess. Used for a vendor-provided or system
	// store the current user does not own.
	ReadOnly
	// Service stores are ReadOnly from this process's perspective but
	// signal to a CompositeStore that additions should be delegated to a
	// privileged helper process rather than attempted locally. The core
	// does not implement that delegation itself (out of scope, beyond
	// the launcher boundary); Service behaves exactly like
	// ReadOnly here.
	Service
)

func (k Kind) String() string {
	switch k {
	case ReadWrite:
		return "read-write"
	case ReadOnly:
		return "read-only"
	case Service:
		return "service"
	default:
		return "unknown"
	}
}

func (k Kind) writable() bool { return k == ReadWrite }
