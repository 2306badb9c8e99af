package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeroinstall-go/zeroinstall/feed"
)

func TestNormalizeFillsDefaultCommand(t *testing.T) {
	req := Requirements{InterfaceURI: "http://example.com/app.xml"}.Normalize()
	require.Equal(t, DefaultCommand, req.Command)
	require.Equal(t, []string{"en"}, req.Languages)
}

func TestNormalizeExpands64BitHost(t *testing.T) {
	oldHost := hostArch
	hostArch = feed.Arch{OS: feed.Linux, CPU: feed.X64}
	defer func() { hostArch = oldHost }()

	req := Requirements{InterfaceURI: "x"}.Normalize()
	require.Len(t, req.Architectures, 2)
	require.Equal(t, feed.X64, req.Architectures[0].CPU)
	require.Equal(t, feed.I686, req.Architectures[1].CPU)
}

func TestNormalizeSourceRequestHasNoDefaultCommand(t *testing.T) {
	req := Requirements{InterfaceURI: "x", Command: "compile"}.Normalize()
	require.Equal(t, "compile", req.Command)
}

func TestNormalizePreservesExplicitArchitectures(t *testing.T) {
	explicit := []feed.Arch{{OS: feed.Windows, CPU: feed.X64}}
	req := Requirements{InterfaceURI: "x", Architectures: explicit}.Normalize()
	require.Equal(t, explicit, req.Architectures)
}
