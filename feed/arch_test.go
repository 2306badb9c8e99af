package feed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOSSpecificity(t *testing.T) {
	require.Equal(t, 0, AllOS.Specificity())
	require.Equal(t, 1, Posix.Specificity())
	require.Equal(t, 2, Linux.Specificity())
	require.Greater(t, Linux.Specificity(), Posix.Specificity())
	require.Greater(t, Posix.Specificity(), AllOS.Specificity())
}

func TestOSCompatible(t *testing.T) {
	require.True(t, Posix.Compatible(Linux))
	require.True(t, Posix.Compatible(MacOSX))
	require.False(t, Posix.Compatible(Windows))
	require.True(t, Linux.Compatible(Linux))
	require.False(t, Linux.Compatible(MacOSX))
	require.True(t, AllOS.Compatible(Windows))
}

func TestCPUSpecificity(t *testing.T) {
	require.Greater(t, I686.Specificity(), I486.Specificity())
	require.Greater(t, I486.Specificity(), I386.Specificity())
	require.Greater(t, I386.Specificity(), AllCPU.Specificity())
}

func TestCPUCompatible32On64(t *testing.T) {
	require.True(t, I686.Compatible(X64))
	require.True(t, X64.Compatible(X64))
	require.False(t, AArch64.Compatible(X64))
}

func TestParseArch(t *testing.T) {
	a := ParseArch("Linux-x86_64")
	require.Equal(t, Linux, a.OS)
	require.Equal(t, X64, a.CPU)
}

func TestArchCompatible(t *testing.T) {
	host := Arch{OS: Linux, CPU: X64}
	require.True(t, Arch{OS: AllOS, CPU: AllCPU}.Compatible(host))
	require.True(t, Arch{OS: Posix, CPU: I686}.Compatible(host))
	require.False(t, Arch{OS: Windows, CPU: X64}.Compatible(host))
}
