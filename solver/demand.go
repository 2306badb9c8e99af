package solver

import "github.com/zeroinstall-go/zeroinstall/feed"

// demand is one interface the solver still needs to fulfill, queued during
// try_fulfill_all. essential demands must succeed; a failed
// recommended demand is simply dropped from the final Selections.
type demand struct {
	interfaceURI string
	importance   feed.Importance
	uses         string // non-empty restricts this demand to a specific command context
	restriction  feed.Range
	architectures []feed.Arch
}

func essentialDemand(interfaceURI string, arches []feed.Arch) demand {
	return demand{interfaceURI: interfaceURI, importance: feed.Essential, architectures: arches}
}

func dependencyDemand(dep feed.Dependency, arches []feed.Arch) demand {
	return demand{
		interfaceURI:  dep.InterfaceURI,
		importance:    dep.Importance,
		uses:          dep.Uses,
		restriction:   dep.Versions,
		architectures: arches,
	}
}
